package payment

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbloom/storefront-gateway/internal/cart"
	"github.com/marketbloom/storefront-gateway/internal/checkout"
	"github.com/marketbloom/storefront-gateway/internal/commerce"
	pkgerrors "github.com/marketbloom/storefront-gateway/pkg/errors"
)

type fakeCollector struct {
	calls  int
	result CollectResult
	err    error
	last   CollectRequest
}

func (f *fakeCollector) Collect(ctx context.Context, req CollectRequest) (CollectResult, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return CollectResult{}, f.err
	}
	return f.result, nil
}

type fakeCommitter struct {
	calls int
	err   error
	last  commerce.CommitOrder
}

func (f *fakeCommitter) CommitOrder(ctx context.Context, order commerce.CommitOrder) error {
	f.calls++
	f.last = order
	return f.err
}

type memoryJournal struct {
	entries map[string]*JournalEntry
}

func newMemoryJournal() *memoryJournal {
	return &memoryJournal{entries: map[string]*JournalEntry{}}
}

func (m *memoryJournal) Record(ctx context.Context, entry *JournalEntry) error {
	m.entries[entry.CorrelationToken] = entry
	return nil
}

func (m *memoryJournal) MarkCollected(ctx context.Context, token, paymentRef string) error {
	m.entries[token].Phase = PhaseCollected
	m.entries[token].PaymentRef = paymentRef
	return nil
}

func (m *memoryJournal) MarkCommitted(ctx context.Context, token string) error {
	m.entries[token].Phase = PhaseCommitted
	return nil
}

func (m *memoryJournal) MarkFailed(ctx context.Context, token, reason string) error {
	m.entries[token].Phase = PhaseFailed
	m.entries[token].FailureReason = reason
	return nil
}

func (m *memoryJournal) only(t *testing.T) *JournalEntry {
	t.Helper()
	require.Len(t, m.entries, 1)
	for _, entry := range m.entries {
		return entry
	}
	return nil
}

func newTestOrchestrator(t *testing.T, collector *fakeCollector, committer *fakeCommitter, journal Journal) *Orchestrator {
	t.Helper()
	orch, err := NewOrchestrator(OrchestratorParams{
		Collector: collector,
		Committer: committer,
		Journal:   journal,
	})
	require.NoError(t, err)
	return orch
}

func paidOrder(finalTotal int64) Order {
	return Order{
		MemberID:    "5",
		Method:      MethodCard,
		SourceToken: "cnon:ok",
		Lines: []cart.LineItem{{
			LineID: "42", ItemID: 7, ItemName: "Mug", UnitPrice: 12000, Quantity: 2,
		}},
		Quote: checkout.Quote{ProductTotal: finalTotal, FinalTotal: finalTotal},
	}
}

func TestOrchestrator_HappyPath(t *testing.T) {
	collector := &fakeCollector{result: CollectResult{PaymentRef: "pay-1"}}
	committer := &fakeCommitter{}
	journal := newMemoryJournal()
	orch := newTestOrchestrator(t, collector, committer, journal)

	result, err := orch.Execute(context.Background(), paidOrder(24000))

	require.NoError(t, err)
	assert.Equal(t, "pay-1", result.PaymentRef)
	assert.Equal(t, int64(24000), result.AmountCharged)
	assert.Equal(t, 1, collector.calls)
	assert.Equal(t, 1, committer.calls)
	assert.Equal(t, PhaseCommitted, journal.only(t).Phase)

	assert.Equal(t, result.CorrelationToken, committer.last.CorrelationToken)
	assert.Equal(t, result.CorrelationToken, collector.last.CorrelationToken)
	assert.True(t, strings.HasPrefix(result.CorrelationToken, "ORD-"))
}

func TestOrchestrator_ZeroTotalSkipsCollector(t *testing.T) {
	collector := &fakeCollector{}
	committer := &fakeCommitter{}
	journal := newMemoryJournal()
	orch := newTestOrchestrator(t, collector, committer, journal)

	order := paidOrder(0)
	order.Quote.PointsUsed = 24000

	result, err := orch.Execute(context.Background(), order)

	require.NoError(t, err)
	assert.Zero(t, collector.calls, "fully funded orders must not reach the provider")
	assert.Equal(t, 1, committer.calls)
	assert.True(t, strings.HasPrefix(result.PaymentRef, "POINT-"))
	assert.Equal(t, result.PaymentRef, "POINT-"+result.CorrelationToken)
}

func TestOrchestrator_DeclineAbortsBeforeCommit(t *testing.T) {
	collector := &fakeCollector{err: pkgerrors.New(pkgerrors.CodePaymentDecline, "card expired")}
	committer := &fakeCommitter{}
	journal := newMemoryJournal()
	orch := newTestOrchestrator(t, collector, committer, journal)

	_, err := orch.Execute(context.Background(), paidOrder(24000))

	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodePaymentDecline))
	assert.Contains(t, err.Error(), "card expired")
	assert.Zero(t, committer.calls, "no backend call after a decline")
	assert.Equal(t, PhaseFailed, journal.only(t).Phase)
}

func TestOrchestrator_CommitFailureIsHighSeverity(t *testing.T) {
	collector := &fakeCollector{result: CollectResult{PaymentRef: "pay-1"}}
	committer := &fakeCommitter{err: pkgerrors.New(pkgerrors.CodeNetwork, "backend gone")}
	journal := newMemoryJournal()
	orch := newTestOrchestrator(t, collector, committer, journal)

	_, err := orch.Execute(context.Background(), paidOrder(24000))

	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeCommitFailed))

	entry := journal.only(t)
	assert.Equal(t, PhaseFailed, entry.Phase)
	assert.Equal(t, "pay-1", entry.PaymentRef, "collected payment stays visible for reconciliation")
}

func TestOrchestrator_NoAutomaticRetry(t *testing.T) {
	collector := &fakeCollector{result: CollectResult{PaymentRef: "pay-1"}}
	committer := &fakeCommitter{err: pkgerrors.New(pkgerrors.CodeCommitFailed, "rejected")}
	journal := newMemoryJournal()
	orch := newTestOrchestrator(t, collector, committer, journal)

	_, err := orch.Execute(context.Background(), paidOrder(24000))

	require.Error(t, err)
	assert.Equal(t, 1, collector.calls)
	assert.Equal(t, 1, committer.calls)
}

func TestOrchestrator_CommitCarriesListPrices(t *testing.T) {
	collector := &fakeCollector{result: CollectResult{PaymentRef: "pay-1"}}
	committer := &fakeCommitter{}
	orch := newTestOrchestrator(t, collector, committer, newMemoryJournal())

	order := paidOrder(18000)
	order.Lines = []cart.LineItem{{
		LineID: "42", ItemID: 7, ItemName: "Mug", UnitPrice: 10000, Quantity: 2,
		IsDiscounted: true, DiscountPercent: 10,
	}}

	_, err := orch.Execute(context.Background(), order)

	require.NoError(t, err)
	require.Len(t, committer.last.Lines, 1)

	// The backend reapplies discounts itself; the commit carries the
	// pre-discount list price, the discounted total rides in Amount.
	assert.Equal(t, int64(10000), committer.last.Lines[0].UnitPrice)
	assert.Equal(t, int64(18000), committer.last.Amount)
}

func TestOrchestrator_OrderNameSummarizesLines(t *testing.T) {
	assert.Equal(t, "Mug", deriveOrderName([]cart.LineItem{{ItemName: "Mug"}}))
	assert.Equal(t, "Mug and 2 more", deriveOrderName([]cart.LineItem{
		{ItemName: "Mug"}, {ItemName: "Plate"}, {ItemName: "Bowl"},
	}))
	assert.Equal(t, "order", deriveOrderName(nil))
}

func TestOrchestrator_DistinctTokensPerExecution(t *testing.T) {
	collector := &fakeCollector{result: CollectResult{PaymentRef: "pay-1"}}
	committer := &fakeCommitter{}
	orch := newTestOrchestrator(t, collector, committer, newMemoryJournal())

	first, err := orch.Execute(context.Background(), paidOrder(1000))
	require.NoError(t, err)
	second, err := orch.Execute(context.Background(), paidOrder(1000))
	require.NoError(t, err)

	assert.NotEqual(t, first.CorrelationToken, second.CorrelationToken)
}
