package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/marketbloom/storefront-gateway/pkg/config"
	pkgerrors "github.com/marketbloom/storefront-gateway/pkg/errors"
	"github.com/marketbloom/storefront-gateway/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// SquareCollector charges cards through Square. The checkout's correlation
// token is passed straight through as the Square idempotency key.
type SquareCollector struct {
	sdk        *sqclient.Client
	locationID string
	currency   string
	logg       *logger.Logger
}

func NewSquareCollector(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*SquareCollector, error) {
	env := strings.ToLower(strings.TrimSpace(cfg.Environment))
	baseURL, ok := baseURLs[env]
	if !ok {
		return nil, fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	}
	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errors.New("square access token is required")
	}
	if strings.TrimSpace(cfg.LocationID) == "" {
		return nil, errors.New("square location id is required")
	}

	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURL),
		sqoption.WithToken(accessToken),
	)
	if logg != nil {
		logg.Info(ctx, "square collector initialized")
	}
	return &SquareCollector{
		sdk:        sdk,
		locationID: cfg.LocationID,
		currency:   strings.ToUpper(strings.TrimSpace(cfg.Currency)),
		logg:       logg,
	}, nil
}

func (c *SquareCollector) Collect(ctx context.Context, req CollectRequest) (CollectResult, error) {
	currency := sq.Currency(c.currency)
	payReq := &sq.CreatePaymentRequest{
		IdempotencyKey: req.CorrelationToken,
		SourceID:       req.SourceToken,
		LocationID:     ptrString(c.locationID),
		AmountMoney: &sq.Money{
			Amount:   ptrInt64(req.Amount),
			Currency: &currency,
		},
		ReferenceID: ptrString(req.CorrelationToken),
		Note:        ptrString(req.OrderName),
	}
	if email := strings.TrimSpace(req.Customer.Email); email != "" {
		payReq.BuyerEmailAddress = ptrString(email)
	}

	c.log(ctx, "request", req)

	resp, err := c.sdk.Payments.Create(ctx, payReq)
	if err != nil {
		if c.logg != nil {
			c.logg.Error(c.logg.WithField(ctx, "correlation_token", req.CorrelationToken), "square payment failed", err)
		}
		return CollectResult{}, mapSquareError(err)
	}

	paymentRef := ""
	if payment := resp.GetPayment(); payment != nil && payment.GetID() != nil {
		paymentRef = *payment.GetID()
	}
	if paymentRef == "" {
		return CollectResult{}, pkgerrors.New(pkgerrors.CodePaymentDecline, "payment provider returned no payment reference")
	}
	return CollectResult{PaymentRef: paymentRef}, nil
}

func (c *SquareCollector) log(ctx context.Context, phase string, req CollectRequest) {
	if c.logg == nil {
		return
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"phase":             phase,
		"amount":            req.Amount,
		"method":            string(req.Method),
		"correlation_token": req.CorrelationToken,
	})
	c.logg.Info(ctx, "square payment")
}

// mapSquareError keeps the provider's own wording: a declined buyer needs to
// see what the provider said, not a generic failure.
func mapSquareError(err error) error {
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "payment provider unreachable")
	}
	for _, sqErr := range extractSquareErrors(apiErr) {
		if sqErr == nil {
			continue
		}
		if sqErr.Code == sq.ErrorCodeIdempotencyKeyReused {
			return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, "payment already attempted for this checkout")
		}
		if sqErr.Category == sq.ErrorCategoryPaymentMethodError || sqErr.Category == sq.ErrorCategoryRefundError {
			message := "payment was declined"
			if sqErr.Detail != nil && strings.TrimSpace(*sqErr.Detail) != "" {
				message = *sqErr.Detail
			}
			return pkgerrors.Wrap(pkgerrors.CodePaymentDecline, err, message)
		}
	}
	if apiErr.StatusCode == 401 || apiErr.StatusCode == 403 {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "payment provider rejected credentials")
	}
	return pkgerrors.Wrap(pkgerrors.CodePaymentDecline, err, "payment was not accepted")
}

func extractSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil {
		return nil
	}
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func ptrInt64(value int64) *int64 {
	return &value
}
