package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/marketbloom/storefront-gateway/api/responses"
	"github.com/marketbloom/storefront-gateway/internal/checkout"
	"github.com/marketbloom/storefront-gateway/pkg/logger"
)

// CouponLister fetches the member's coupon wallet.
type CouponLister interface {
	FetchCoupons(ctx context.Context) ([]checkout.Coupon, error)
}

type couponResponse struct {
	checkout.Coupon
	Expired bool `json:"expired"`
}

// CouponList returns every coupon with an expiry flag so the client can
// render expired ones as unselectable instead of hiding them.
func CouponList(coupons CouponLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wallet, err := coupons.FetchCoupons(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		now := time.Now()
		out := make([]couponResponse, 0, len(wallet))
		for _, coupon := range wallet {
			out = append(out, couponResponse{Coupon: coupon, Expired: coupon.Expired(now)})
		}
		responses.WriteSuccess(w, out)
	}
}
