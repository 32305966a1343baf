package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexdata-bo/normadex/internal/core/domain"
)

func TestAuditLog_Append(t *testing.T) {
	store := setupTestStore(t)
	log := store.AuditLog()
	ctx := context.Background()

	entry := domain.AuditEntry{
		DocumentID:    "gaceta:ley:1178:1990-07-20",
		Site:          "gaceta",
		Operation:     domain.OpExtract,
		Status:        domain.AuditOK,
		Message:       "extracted 52 articles",
		Detail:        map[string]any{"articles": float64(52)},
		CorrelationID: "run-1",
	}
	require.NoError(t, log.Append(ctx, &entry))
	assert.Equal(t, int64(1), entry.Seq)
	assert.False(t, entry.At.IsZero())

	entries, err := log.ForDocument(ctx, entry.DocumentID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.Message, entries[0].Message)
	assert.Equal(t, entry.Detail, entries[0].Detail)
	assert.Equal(t, "run-1", entries[0].CorrelationID)
}

func TestAuditLog_Append_EmptyReferences(t *testing.T) {
	store := setupTestStore(t)
	log := store.AuditLog()
	ctx := context.Background()

	// Scrape entries may precede any document.
	entry := domain.AuditEntry{
		Operation: domain.OpScrape,
		Status:    domain.AuditError,
		Message:   "fetch timed out",
	}
	require.NoError(t, log.Append(ctx, &entry))

	entries, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].DocumentID)
	assert.Empty(t, entries[0].Site)
}

func TestAuditLog_Recent(t *testing.T) {
	store := setupTestStore(t)
	log := store.AuditLog()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, log.Append(ctx, &domain.AuditEntry{
			Operation: domain.OpVectorize,
			Status:    domain.AuditOK,
			Message:   fmt.Sprintf("entry %d", i),
		}))
	}

	entries, err := log.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "entry 5", entries[0].Message)
	assert.Equal(t, "entry 4", entries[1].Message)
	assert.Equal(t, "entry 3", entries[2].Message)
}

func TestAuditLog_ForDocument_ChronologicalOrder(t *testing.T) {
	store := setupTestStore(t)
	log := store.AuditLog()
	ctx := context.Background()

	docID := "gaceta:ley:1178:1990-07-20"
	for _, msg := range []string{"extracted", "processed", "vectorized"} {
		require.NoError(t, log.Append(ctx, &domain.AuditEntry{
			DocumentID: docID,
			Operation:  domain.OpExtract,
			Status:     domain.AuditOK,
			Message:    msg,
		}))
	}
	require.NoError(t, log.Append(ctx, &domain.AuditEntry{
		DocumentID: "otro:decreto:1:2000-01-01",
		Operation:  domain.OpExtract,
		Status:     domain.AuditOK,
		Message:    "unrelated",
	}))

	entries, err := log.ForDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "extracted", entries[0].Message)
	assert.Equal(t, "processed", entries[1].Message)
	assert.Equal(t, "vectorized", entries[2].Message)
}
