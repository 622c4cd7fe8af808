// Package remote defines the document-collection API the directory syncs
// against, plus an HTTP client implementation. The interface is kept minimal
// (five operations) so backends can be swapped without touching the store or
// the sync controller.
package remote

import (
	"context"

	"github.com/lmarchau/provider-atlas/internal/domain"
)

// ChangeType classifies a live-feed mutation.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// ChangeEvent is one incremental remote mutation. Record is populated for
// added/modified events; removed events carry only the ID.
type ChangeEvent struct {
	Type   ChangeType
	ID     string
	Record domain.ProviderRecord
}

// Store is the remote record collection. Add returns the generated document
// id; Update merges the given fields over the stored document.
type Store interface {
	Add(ctx context.Context, rec domain.ProviderRecord) (string, error)
	GetAll(ctx context.Context) ([]domain.ProviderRecord, error)
	Update(ctx context.Context, id string, rec domain.ProviderRecord) error
	Delete(ctx context.Context, id string) error

	// Subscribe delivers incremental changes until ctx is cancelled or the
	// feed fails. It blocks; run it from its own goroutine.
	Subscribe(ctx context.Context, onChange func(ChangeEvent)) error
}
