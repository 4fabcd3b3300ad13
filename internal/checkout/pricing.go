package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketbloom/storefront-gateway/internal/cart"
)

// Coupon is a flat-amount discount held by the member. An expired coupon may
// still be presented; it simply contributes nothing to the quote.
type Coupon struct {
	CouponRef      string    `json:"coupon_ref"`
	Name           string    `json:"name"`
	DiscountAmount int64     `json:"discount_amount"`
	ValidUntil     time.Time `json:"valid_until"`
}

// Expired reports whether the coupon is past its validity at the given time.
func (c Coupon) Expired(now time.Time) bool {
	return !c.ValidUntil.IsZero() && now.After(c.ValidUntil)
}

// QuoteInput carries everything the pricing pass needs. Lines must already be
// the buyer's selection, not the whole cart.
type QuoteInput struct {
	Lines           []cart.LineItem
	Coupon          *Coupon
	PointsRequested int64
	PointBalance    int64
	Now             time.Time
}

// Quote is the fully resolved price breakdown. All amounts are whole currency
// units and never negative.
type Quote struct {
	ProductTotal   int64 `json:"product_total"`
	DeliveryTotal  int64 `json:"delivery_total"`
	CouponDiscount int64 `json:"coupon_discount"`
	PointsUsed     int64 `json:"points_used"`
	FinalTotal     int64 `json:"final_total"`

	// CouponExpired is set when a presented coupon was past its validity
	// and therefore contributed nothing.
	CouponExpired bool `json:"coupon_expired,omitempty"`
}

var oneHundred = decimal.NewFromInt(100)

// EffectiveUnitPrice applies the line's percent discount, rounding down to a
// whole currency unit.
func EffectiveUnitPrice(line cart.LineItem) int64 {
	if !line.IsDiscounted || line.DiscountPercent <= 0 {
		return line.UnitPrice
	}
	rate := decimal.NewFromInt(int64(line.DiscountPercent)).Div(oneHundred)
	discounted := decimal.NewFromInt(line.UnitPrice).Mul(decimal.NewFromInt(1).Sub(rate))
	return discounted.Floor().IntPart()
}

// LineSubtotal is the discounted unit price plus the option surcharge, times
// the quantity. The delivery fee is not part of it.
func LineSubtotal(line cart.LineItem) int64 {
	perUnit := EffectiveUnitPrice(line) + line.OptionExtraPrice
	return perUnit * int64(line.Quantity)
}

// ComputeQuote prices a selection. The order of operations is fixed: per-line
// subtotals with floored discounts, delivery fees summed once per line
// regardless of quantity, then the flat coupon, then points clamped to both
// the balance and what remains payable.
func ComputeQuote(input QuoteInput) Quote {
	var quote Quote

	for _, line := range input.Lines {
		quote.ProductTotal += LineSubtotal(line)
		quote.DeliveryTotal += line.DeliveryFee
	}

	if input.Coupon != nil {
		if input.Coupon.Expired(input.Now) {
			quote.CouponExpired = true
		} else {
			quote.CouponDiscount = input.Coupon.DiscountAmount
		}
	}

	payable := quote.ProductTotal + quote.DeliveryTotal - quote.CouponDiscount
	if payable < 0 {
		payable = 0
	}

	quote.PointsUsed = min64(input.PointsRequested, input.PointBalance, payable)
	if quote.PointsUsed < 0 {
		quote.PointsUsed = 0
	}

	quote.FinalTotal = payable - quote.PointsUsed
	if quote.FinalTotal < 0 {
		quote.FinalTotal = 0
	}
	return quote
}

func min64(values ...int64) int64 {
	out := values[0]
	for _, v := range values[1:] {
		if v < out {
			out = v
		}
	}
	return out
}
