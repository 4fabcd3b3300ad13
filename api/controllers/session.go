package controllers

import (
	"context"
	"net/http"

	"github.com/marketbloom/storefront-gateway/api/middleware"
	"github.com/marketbloom/storefront-gateway/api/responses"
	"github.com/marketbloom/storefront-gateway/internal/commerce"
	"github.com/marketbloom/storefront-gateway/pkg/logger"
)

// SessionFetcher resolves the caller against the commerce backend.
type SessionFetcher interface {
	FetchSession(ctx context.Context) (commerce.Session, error)
}

type sessionResponse struct {
	commerce.Session
	CartMode string `json:"cart_mode"`
}

// SessionInfo proxies the backend's view of the session and adds the cart
// mode the gateway resolved for this request.
func SessionInfo(sessions SessionFetcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := middleware.CartModeFromContext(r.Context())

		if middleware.MemberIDFromContext(r.Context()) == "" {
			responses.WriteSuccess(w, sessionResponse{CartMode: mode})
			return
		}

		session, err := sessions.FetchSession(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sessionResponse{Session: session, CartMode: mode})
	}
}
