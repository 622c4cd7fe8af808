package store

import (
	"context"
	"errors"

	"github.com/lmarchau/provider-atlas/internal/domain"
)

// ImportOptions controls a batch import. Progress, when set, is called after
// each row with the number of rows handled so far.
type ImportOptions struct {
	SkipDuplicates bool
	Progress       func(done, total int)
}

// ImportSummary reports what a batch import did.
type ImportSummary struct {
	Added        int
	Skipped      int
	RemoteErrors int
}

// ImportBatch upserts rows in order. With SkipDuplicates set, a row whose
// natural key already exists in the mirror is left untouched and counted as
// skipped. Remote write failures do not stop the batch; rows land in the
// local mirror and the failure count is reported.
func (s *Store) ImportBatch(ctx context.Context, rows []domain.ProviderRecord, opts ImportOptions) (ImportSummary, error) {
	var summary ImportSummary
	total := len(rows)

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if opts.SkipDuplicates && s.HasNaturalKey(row) {
			summary.Skipped++
		} else {
			_, err := s.Upsert(ctx, row)
			if errors.Is(err, ErrRemoteUnavailable) {
				summary.RemoteErrors++
			}
			summary.Added++
		}

		if opts.Progress != nil {
			opts.Progress(i+1, total)
		}
	}
	return summary, nil
}
