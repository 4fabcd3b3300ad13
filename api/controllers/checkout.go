package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/marketbloom/storefront-gateway/api/middleware"
	"github.com/marketbloom/storefront-gateway/api/responses"
	"github.com/marketbloom/storefront-gateway/api/validators"
	cartsvc "github.com/marketbloom/storefront-gateway/internal/cart"
	"github.com/marketbloom/storefront-gateway/internal/checkout"
	"github.com/marketbloom/storefront-gateway/internal/commerce"
	"github.com/marketbloom/storefront-gateway/internal/payment"
	pkgerrors "github.com/marketbloom/storefront-gateway/pkg/errors"
	"github.com/marketbloom/storefront-gateway/pkg/logger"
	"github.com/marketbloom/storefront-gateway/pkg/types"
)

// CheckoutRunner executes the payment protocol for a priced order.
type CheckoutRunner interface {
	Execute(ctx context.Context, order payment.Order) (payment.Result, error)
}

// CheckoutBackend is everything checkout needs from the commerce backend.
type CheckoutBackend interface {
	CouponLister
	SessionFetcher
}

type quoteRequest struct {
	LineIDs         []string `json:"line_ids" validate:"required,min=1,dive,required"`
	CouponRef       string   `json:"coupon_ref"`
	PointsRequested int64    `json:"points_requested" validate:"min=0"`
}

type checkoutRequest struct {
	LineIDs         []string      `json:"line_ids" validate:"required,min=1,dive,required"`
	CouponRef       string        `json:"coupon_ref"`
	PointsRequested int64         `json:"points_requested" validate:"min=0"`
	Method          string        `json:"method" validate:"required,oneof=card easy_pay"`
	SourceToken     string        `json:"source_token"`
	Customer        types.Contact `json:"customer"`
}

type quoteResponse struct {
	checkout.Quote
	Lines []cartsvc.LineItem `json:"lines"`
}

type checkoutResponse struct {
	payment.Result
	Quote checkout.Quote   `json:"quote"`
	Cart  cartsvc.Snapshot `json:"cart"`
}

// CheckoutQuote prices a selection without side effects. Guests can quote
// too; they just have no coupon wallet or point balance to draw on.
func CheckoutQuote(carts *cartsvc.Manager, backend CheckoutBackend, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store, err := storeForRequest(carts, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, _, err := buildQuoteInput(r, store, backend, payload.LineIDs, payload.CouponRef, payload.PointsRequested)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, quoteResponse{
			Quote: checkout.ComputeQuote(input),
			Lines: input.Lines,
		})
	}
}

// Checkout runs the full pay-then-commit protocol for the selected lines.
func Checkout(carts *cartsvc.Manager, backend CheckoutBackend, runner CheckoutRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID := middleware.MemberIDFromContext(r.Context())

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store, err := storeForRequest(carts, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, session, err := buildQuoteInput(r, store, backend, payload.LineIDs, payload.CouponRef, payload.PointsRequested)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quote := checkout.ComputeQuote(input)

		if quote.FinalTotal > 0 && payload.SourceToken == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "source_token required for paid orders"))
			return
		}

		customer := payload.Customer
		if customer.IsZero() {
			customer = types.Contact{
				Name:    session.Name,
				Email:   session.Email,
				Phone:   session.Phone,
				Address: session.Address,
			}
		}

		result, err := runner.Execute(r.Context(), payment.Order{
			MemberID:    memberID,
			Method:      payment.Method(payload.Method),
			SourceToken: payload.SourceToken,
			Customer:    customer,
			CouponRef:   payload.CouponRef,
			Lines:       input.Lines,
			Quote:       quote,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// The backend deletes purchased lines on commit; reload so the
		// response shows the cart without them.
		snap, err := store.Load(r.Context())
		if err != nil {
			if logg != nil {
				logg.Warn(r.Context(), "cart reload after checkout failed")
			}
			snap = cartsvc.Snapshot{Mode: store.Mode()}
		}

		responses.WriteSuccess(w, checkoutResponse{Result: result, Quote: quote, Cart: snap})
	}
}

// buildQuoteInput gathers the selection, the resolved coupon, and the point
// balance. An expired coupon is rejected here at selection time, not
// silently zeroed at pricing time.
func buildQuoteInput(
	r *http.Request,
	store *cartsvc.Store,
	backend CheckoutBackend,
	lineIDs []string,
	couponRef string,
	pointsRequested int64,
) (checkout.QuoteInput, commerce.Session, error) {
	snap, err := store.Load(r.Context())
	if err != nil {
		return checkout.QuoteInput{}, commerce.Session{}, err
	}
	lines, err := checkout.SelectLines(snap, lineIDs)
	if err != nil {
		return checkout.QuoteInput{}, commerce.Session{}, err
	}

	now := time.Now()
	input := checkout.QuoteInput{
		Lines:           lines,
		PointsRequested: pointsRequested,
		Now:             now,
	}

	var session commerce.Session
	if middleware.MemberIDFromContext(r.Context()) != "" {
		session, err = backend.FetchSession(r.Context())
		if err != nil {
			return checkout.QuoteInput{}, commerce.Session{}, err
		}
		input.PointBalance = session.PointBalance

		if couponRef != "" {
			coupon, err := resolveCoupon(r.Context(), backend, couponRef, now)
			if err != nil {
				return checkout.QuoteInput{}, commerce.Session{}, err
			}
			input.Coupon = coupon
		}
	} else if couponRef != "" || pointsRequested > 0 {
		return checkout.QuoteInput{}, commerce.Session{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "coupons and points need a signed-in member")
	}

	return input, session, nil
}

func resolveCoupon(ctx context.Context, coupons CouponLister, couponRef string, now time.Time) (*checkout.Coupon, error) {
	wallet, err := coupons.FetchCoupons(ctx)
	if err != nil {
		return nil, err
	}
	for _, coupon := range wallet {
		if coupon.CouponRef != couponRef {
			continue
		}
		if coupon.Expired(now) {
			return nil, pkgerrors.New(pkgerrors.CodeExpiredCoupon, "coupon is no longer valid")
		}
		return &coupon, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
}
