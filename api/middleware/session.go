package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/marketbloom/storefront-gateway/api/responses"
	"github.com/marketbloom/storefront-gateway/internal/cart"
	"github.com/marketbloom/storefront-gateway/internal/commerce"
	"github.com/marketbloom/storefront-gateway/pkg/config"
	pkgerrors "github.com/marketbloom/storefront-gateway/pkg/errors"
	"github.com/marketbloom/storefront-gateway/pkg/logger"
)

const guestTokenHeader = "X-Guest-Token"

// Session resolves the request's cart mode. A valid bearer token makes it a
// member session and forwards the token to the commerce backend; anything
// else is a guest session keyed by a guest cart token. A request that
// presents a bearer token that does not verify is rejected rather than
// silently downgraded to guest, so a member never sees the wrong cart.
func Session(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw != "" {
				token := raw
				if strings.HasPrefix(strings.ToLower(token), "bearer ") {
					token = strings.TrimSpace(token[7:])
				}
				memberID, err := verifyAccessToken(cfg, token)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}

				ctx := WithMemberID(r.Context(), memberID)
				ctx = context.WithValue(ctx, ctxCartMode, string(cart.ModeMember))
				ctx = commerce.WithToken(ctx, token)
				if logg != nil {
					ctx = logg.WithMemberID(ctx, memberID)
					ctx = logg.WithCartMode(ctx, string(cart.ModeMember))
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			guestToken := strings.TrimSpace(r.Header.Get(guestTokenHeader))
			if guestToken == "" {
				// First contact: mint a token and hand it back so the
				// client can pin its cart slot on subsequent requests.
				guestToken = uuid.NewString()
			}
			w.Header().Set(guestTokenHeader, guestToken)

			ctx := WithGuestToken(r.Context(), guestToken)
			ctx = context.WithValue(ctx, ctxCartMode, string(cart.ModeGuest))
			if logg != nil {
				ctx = logg.WithCartMode(ctx, string(cart.ModeGuest))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireMember gates endpoints that only make sense for a signed-in buyer.
func RequireMember(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if MemberIDFromContext(r.Context()) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func verifyAccessToken(cfg config.JWTConfig, raw string) (string, error) {
	if raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}

	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "unexpected signing method")
		}
		return []byte(cfg.Secret), nil
	}, jwt.WithIssuer(cfg.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "token carries no subject")
	}
	return claims.Subject, nil
}
