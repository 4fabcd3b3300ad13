package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/marketbloom/storefront-gateway/pkg/errors"
)

func newTestJournal(t *testing.T) (Journal, *gorm.DB) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(conn))

	journal, err := NewJournal(conn)
	require.NoError(t, err)
	return journal, conn
}

func TestJournal_RecordAndAdvance(t *testing.T) {
	journal, conn := newTestJournal(t)
	ctx := context.Background()

	entry := &JournalEntry{CorrelationToken: "ORD-1", MemberID: "5", Amount: 13000, Method: "card"}
	require.NoError(t, journal.Record(ctx, entry))
	assert.Equal(t, PhasePending, entry.Phase)

	require.NoError(t, journal.MarkCollected(ctx, "ORD-1", "pay-1"))
	require.NoError(t, journal.MarkCommitted(ctx, "ORD-1"))

	var stored JournalEntry
	require.NoError(t, conn.Where("correlation_token = ?", "ORD-1").First(&stored).Error)
	assert.Equal(t, PhaseCommitted, stored.Phase)
	assert.Equal(t, "pay-1", stored.PaymentRef)
}

func TestJournal_MarkFailedKeepsReason(t *testing.T) {
	journal, conn := newTestJournal(t)
	ctx := context.Background()

	require.NoError(t, journal.Record(ctx, &JournalEntry{CorrelationToken: "ORD-2", Amount: 500}))
	require.NoError(t, journal.MarkFailed(ctx, "ORD-2", "card expired"))

	var stored JournalEntry
	require.NoError(t, conn.Where("correlation_token = ?", "ORD-2").First(&stored).Error)
	assert.Equal(t, PhaseFailed, stored.Phase)
	assert.Equal(t, "card expired", stored.FailureReason)
}

func TestJournal_AdvanceUnknownTokenIsNotFound(t *testing.T) {
	journal, _ := newTestJournal(t)

	err := journal.MarkCommitted(context.Background(), "ORD-missing")

	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
