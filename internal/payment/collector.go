package payment

import (
	"context"

	"github.com/marketbloom/storefront-gateway/pkg/types"
)

// Method is the buyer-facing payment instrument.
type Method string

const (
	MethodCard    Method = "card"
	MethodEasyPay Method = "easy_pay"
)

// CollectRequest is everything the external collector needs to take money.
// CorrelationToken doubles as the provider-side idempotency key, so a
// repeated collect for the same checkout can never charge twice.
type CollectRequest struct {
	Amount           int64
	Method           Method
	SourceToken      string
	CorrelationToken string
	OrderName        string
	Customer         types.Contact
}

// CollectResult carries the provider's reference for a successful charge.
type CollectResult struct {
	PaymentRef string
}

// Collector abstracts the external payment provider. A decline or
// cancellation comes back as an error carrying the provider's message.
type Collector interface {
	Collect(ctx context.Context, req CollectRequest) (CollectResult, error)
}
