package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/marketbloom/storefront-gateway/internal/cart"
	"github.com/marketbloom/storefront-gateway/internal/checkout"
	"github.com/marketbloom/storefront-gateway/internal/commerce"
	pkgerrors "github.com/marketbloom/storefront-gateway/pkg/errors"
	"github.com/marketbloom/storefront-gateway/pkg/logger"
	"github.com/marketbloom/storefront-gateway/pkg/metrics"
	"github.com/marketbloom/storefront-gateway/pkg/types"
)

// syntheticRefPrefix marks orders fully funded by points and coupons;
// they never touch the payment provider.
const syntheticRefPrefix = "POINT-"

// Committer is the slice of the commerce backend the orchestrator commits
// orders through.
type Committer interface {
	CommitOrder(ctx context.Context, order commerce.CommitOrder) error
}

// Order is one checkout to run end to end. Lines are the priced selection
// and Quote must have been computed from exactly those lines.
type Order struct {
	MemberID    string
	Method      Method
	SourceToken string
	Customer    types.Contact
	CouponRef   string
	Lines       []cart.LineItem
	Quote       checkout.Quote
}

// Result reports a committed order.
type Result struct {
	CorrelationToken string `json:"correlation_token"`
	PaymentRef       string `json:"payment_ref"`
	AmountCharged    int64  `json:"amount_charged"`
	PointsUsed       int64  `json:"points_used"`
	OrderName        string `json:"order_name"`
}

// Orchestrator drives collect, then verify-and-commit. It never retries on
// its own: a repeated collection could double-charge, so any failure is
// surfaced and the buyer must re-initiate.
type Orchestrator struct {
	collector Collector
	committer Committer
	journal   Journal
	met       *metrics.CheckoutMetrics
	logg      *logger.Logger
	now       func() time.Time
}

type OrchestratorParams struct {
	Collector Collector
	Committer Committer
	Journal   Journal
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
}

func NewOrchestrator(params OrchestratorParams) (*Orchestrator, error) {
	if params.Collector == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment collector required")
	}
	if params.Committer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order committer required")
	}
	if params.Journal == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout journal required")
	}
	return &Orchestrator{
		collector: params.Collector,
		committer: params.Committer,
		journal:   params.Journal,
		met:       params.Metrics,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

// Execute runs the full protocol. The context deliberately ignores
// cancellation once collection starts: an in-flight charge must reach an
// explicit commit or failure, never be abandoned mid-protocol.
func (o *Orchestrator) Execute(ctx context.Context, order Order) (Result, error) {
	started := o.now()
	token := o.newCorrelationToken()
	orderName := deriveOrderName(order.Lines)

	o.met.IncAttempt(string(order.Method))
	ctx = o.logCtx(ctx, token, order)

	entry := &JournalEntry{
		CorrelationToken: token,
		MemberID:         order.MemberID,
		Amount:           order.Quote.FinalTotal,
		PointsUsed:       order.Quote.PointsUsed,
		Method:           string(order.Method),
		Phase:            PhasePending,
	}
	if err := o.journal.Record(ctx, entry); err != nil {
		return Result{}, err
	}

	ctx = context.WithoutCancel(ctx)

	paymentRef, err := o.collect(ctx, token, orderName, order)
	if err != nil {
		o.met.IncDeclined()
		o.markFailed(ctx, token, err)
		return Result{}, err
	}

	if err := o.journal.MarkCollected(ctx, token, paymentRef); err != nil && o.logg != nil {
		o.logg.Error(ctx, "journal update lost after collection", err)
	}

	if err := o.commit(ctx, token, paymentRef, order); err != nil {
		o.met.IncFailed("commit")
		o.markFailed(ctx, token, err)
		return Result{}, err
	}

	o.finish(ctx, token)
	o.met.IncCompleted()
	o.met.ObserveDuration(o.now().Sub(started))

	return Result{
		CorrelationToken: token,
		PaymentRef:       paymentRef,
		AmountCharged:    order.Quote.FinalTotal,
		PointsUsed:       order.Quote.PointsUsed,
		OrderName:        orderName,
	}, nil
}

// collect charges the buyer, or mints a synthetic reference when the order
// is fully covered by points and coupon.
func (o *Orchestrator) collect(ctx context.Context, token, orderName string, order Order) (string, error) {
	if order.Quote.FinalTotal == 0 {
		return syntheticRefPrefix + token, nil
	}
	result, err := o.collector.Collect(ctx, CollectRequest{
		Amount:           order.Quote.FinalTotal,
		Method:           order.Method,
		SourceToken:      order.SourceToken,
		CorrelationToken: token,
		OrderName:        orderName,
		Customer:         order.Customer,
	})
	if err != nil {
		return "", err
	}
	return result.PaymentRef, nil
}

func (o *Orchestrator) commit(ctx context.Context, token, paymentRef string, order Order) error {
	lines := make([]commerce.OrderLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, commerce.OrderLine{
			CartLineID: line.LineID,
			ItemID:     line.ItemID,
			Quantity:   line.Quantity,
			OptionName: line.OptionLabel,
			UnitPrice:  line.UnitPrice,
		})
	}
	err := o.committer.CommitOrder(ctx, commerce.CommitOrder{
		PaymentRef:       paymentRef,
		CorrelationToken: token,
		Amount:           order.Quote.FinalTotal,
		PointsUsed:       order.Quote.PointsUsed,
		CouponRef:        order.CouponRef,
		Lines:            lines,
	})
	if err == nil {
		return nil
	}
	if pkgerrors.Is(err, pkgerrors.CodeCommitFailed) {
		return err
	}
	// Money may already have moved; everything after collection surfaces as
	// a commit failure so support can reconcile by correlation token.
	return pkgerrors.Wrap(pkgerrors.CodeCommitFailed, err, "order commit did not complete")
}

// finish does the post-commit bookkeeping. The order is already durable on
// the backend, so nothing here can fail the checkout; problems are
// aggregated and logged.
func (o *Orchestrator) finish(ctx context.Context, token string) {
	var cleanup error
	if err := o.journal.MarkCommitted(ctx, token); err != nil {
		cleanup = multierr.Append(cleanup, err)
	}
	if cleanup != nil && o.logg != nil {
		o.logg.Error(ctx, "post-commit bookkeeping incomplete", cleanup)
	}
}

func (o *Orchestrator) markFailed(ctx context.Context, token string, cause error) {
	reason := cause.Error()
	if err := o.journal.MarkFailed(ctx, token, reason); err != nil && o.logg != nil {
		o.logg.Error(ctx, "journal update lost after failure", err)
	}
}

func (o *Orchestrator) logCtx(ctx context.Context, token string, order Order) context.Context {
	if o.logg == nil {
		return ctx
	}
	return o.logg.WithFields(ctx, map[string]any{
		"correlation_token": token,
		"amount":            order.Quote.FinalTotal,
		"points_used":       order.Quote.PointsUsed,
	})
}

func (o *Orchestrator) newCorrelationToken() string {
	millis := o.now().UnixMilli()
	fragment := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("ORD-%d-%s", millis, fragment)
}

// deriveOrderName is the provider-facing label: the first item's name, with
// a count suffix when the order spans several items.
func deriveOrderName(lines []cart.LineItem) string {
	if len(lines) == 0 {
		return "order"
	}
	name := lines[0].ItemName
	if name == "" {
		name = "order"
	}
	if len(lines) > 1 {
		return fmt.Sprintf("%s and %d more", name, len(lines)-1)
	}
	return name
}
