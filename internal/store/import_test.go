package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmarchau/provider-atlas/internal/domain"
)

func TestImportBatch_SkipDuplicates(t *testing.T) {
	s := newTestStore(Options{})
	ctx := context.Background()

	// Seed 10 existing records.
	for i := 0; i < 10; i++ {
		_, err := s.Upsert(ctx, domain.ProviderRecord{
			CompanyName: fmt.Sprintf("Existing %d", i),
			Email:       fmt.Sprintf("existing%d@x.fr", i),
			Phone:       fmt.Sprintf("01%08d", i),
		})
		require.NoError(t, err)
	}
	priorSize := len(s.List())
	require.Equal(t, 10, priorSize)

	// A batch of 50 rows, 10 of which collide with existing natural keys.
	rows := make([]domain.ProviderRecord, 0, 50)
	for i := 0; i < 10; i++ {
		rows = append(rows, domain.ProviderRecord{
			CompanyName: fmt.Sprintf("Colliding %d", i),
			Email:       fmt.Sprintf("existing%d@x.fr", i),
			Phone:       fmt.Sprintf("01%08d", i),
		})
	}
	for i := 0; i < 40; i++ {
		rows = append(rows, domain.ProviderRecord{
			CompanyName: fmt.Sprintf("New %d", i),
			Email:       fmt.Sprintf("new%d@x.fr", i),
			Phone:       fmt.Sprintf("06%08d", i),
		})
	}

	summary, err := s.ImportBatch(ctx, rows, ImportOptions{SkipDuplicates: true})
	require.NoError(t, err)

	assert.Equal(t, 40, summary.Added)
	assert.Equal(t, 10, summary.Skipped)
	assert.Equal(t, priorSize+40, len(s.List()))

	// Colliding rows were left unmodified.
	for _, r := range s.List() {
		assert.NotContains(t, r.CompanyName, "Colliding")
	}
}

func TestImportBatch_WithoutSkipMergesDuplicates(t *testing.T) {
	s := newTestStore(Options{})
	ctx := context.Background()

	_, err := s.Upsert(ctx, domain.ProviderRecord{
		CompanyName: "Original", Email: "a@x.fr", Phone: "0101",
	})
	require.NoError(t, err)

	summary, err := s.ImportBatch(ctx, []domain.ProviderRecord{
		{CompanyName: "Imported", Email: "a@x.fr", Phone: "0101"},
	}, ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Added)
	got := s.List()
	require.Len(t, got, 1)
	assert.Equal(t, "Imported", got[0].CompanyName, "without skip, duplicates merge per upsert semantics")
}

func TestImportBatch_ReportsProgress(t *testing.T) {
	s := newTestStore(Options{})

	var seen []int
	_, err := s.ImportBatch(context.Background(), []domain.ProviderRecord{
		{Email: "a@x.fr", Phone: "01"},
		{Email: "b@x.fr", Phone: "02"},
		{Email: "c@x.fr", Phone: "03"},
	}, ImportOptions{Progress: func(done, total int) {
		assert.Equal(t, 3, total)
		seen = append(seen, done)
	}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, seen)
}
