package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/marketbloom/storefront-gateway/internal/cart"
	"github.com/marketbloom/storefront-gateway/internal/checkout"
	"github.com/marketbloom/storefront-gateway/pkg/config"
	pkgerrors "github.com/marketbloom/storefront-gateway/pkg/errors"
	"github.com/marketbloom/storefront-gateway/pkg/logger"
)

type tokenKey struct{}

// WithToken attaches the member's bearer token to the context. Requests
// without one go out unauthenticated, which the backend treats as a guest.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the bearer token WithToken attached, if any.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Client talks to the commerce backend. Reads are retried on transient
// failure; writes are never retried here, the caller decides whether a
// mutation is safe to repeat.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	readRetries int
	readBackoff time.Duration
	logg        *logger.Logger
}

func NewClient(cfg config.CommerceConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commerce base url required")
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
		readRetries: cfg.ReadRetries,
		readBackoff: cfg.ReadRetryBackoff,
		logg:        logg,
	}, nil
}

// FetchCart implements cart.CommerceAPI.
func (c *Client) FetchCart(ctx context.Context) ([]cart.LineItem, error) {
	var wire []wireCartLine
	if err := c.getJSON(ctx, "/api/cart", &wire); err != nil {
		return nil, err
	}
	lines := make([]cart.LineItem, 0, len(wire))
	for _, w := range wire {
		lines = append(lines, w.toLineItem())
	}
	return lines, nil
}

func (c *Client) AddCartLine(ctx context.Context, input cart.AddInput) (string, error) {
	var created wireCartLine
	if err := c.doJSON(ctx, http.MethodPost, "/api/cart", toWireAddLine(input), &created); err != nil {
		return "", err
	}
	return strconv.FormatInt(created.ID, 10), nil
}

func (c *Client) UpdateCartLine(ctx context.Context, lineID string, quantity int) error {
	body := map[string]int{"count": quantity}
	return c.doJSON(ctx, http.MethodPatch, "/api/cart/"+lineID, body, nil)
}

func (c *Client) DeleteCartLines(ctx context.Context, lineIDs []string) error {
	ids, err := numericIDs(lineIDs)
	if err != nil {
		return err
	}
	body := map[string][]int64{"cartItemIds": ids}
	return c.doJSON(ctx, http.MethodPost, "/api/cart/delete", body, nil)
}

func (c *Client) MergeCartLines(ctx context.Context, inputs []cart.AddInput) error {
	wire := make([]wireAddLine, 0, len(inputs))
	for _, input := range inputs {
		wire = append(wire, toWireAddLine(input))
	}
	body := map[string][]wireAddLine{"items": wire}
	return c.doJSON(ctx, http.MethodPost, "/api/cart/merge", body, nil)
}

// FetchSession asks the backend who the caller is. A 401 is not an error
// here: it means the token is absent or stale and the session is a guest one.
func (c *Client) FetchSession(ctx context.Context) (Session, error) {
	var wire wireSession
	err := c.getJSON(ctx, "/members/info", &wire)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
			return Session{}, nil
		}
		return Session{}, err
	}
	return Session{
		Authenticated: true,
		MemberID:      strconv.FormatInt(wire.MemberID, 10),
		Name:          wire.Name,
		Email:         wire.Email,
		Phone:         wire.Phone,
		Address:       wire.Address,
		Role:          wire.Role,
		PointBalance:  wire.PointBalance,
	}, nil
}

func (c *Client) FetchCoupons(ctx context.Context) ([]checkout.Coupon, error) {
	var wire []wireCoupon
	if err := c.getJSON(ctx, "/api/my-coupons", &wire); err != nil {
		return nil, err
	}
	coupons := make([]checkout.Coupon, 0, len(wire))
	for _, w := range wire {
		coupons = append(coupons, w.toCoupon())
	}
	return coupons, nil
}

// CommitOrder runs the backend's verify-and-commit. The backend treats the
// correlation token as an idempotency key, so a repeated commit with the same
// token is acknowledged without recording a second order.
func (c *Client) CommitOrder(ctx context.Context, order CommitOrder) error {
	req := wireCommitRequest{
		PaymentID:  order.PaymentRef,
		OrderID:    order.CorrelationToken,
		Amount:     order.Amount,
		UsedPoints: order.PointsUsed,
		OrderItems: make([]wireOrderLine, 0, len(order.Lines)),
	}
	if order.CouponRef != "" {
		id, err := strconv.ParseInt(order.CouponRef, 10, 64)
		if err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "coupon reference is not recognized")
		}
		req.MemberCouponID = &id
	}
	for _, line := range order.Lines {
		cartItemID, err := strconv.ParseInt(line.CartLineID, 10, 64)
		if err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart line %q is not a member cart line", line.CartLineID))
		}
		req.OrderItems = append(req.OrderItems, wireOrderLine{
			CartItemID: cartItemID,
			ItemID:     line.ItemID,
			Count:      line.Quantity,
			OptionName: line.OptionName,
			Price:      line.UnitPrice,
		})
	}

	var resp wireCommitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/payment/complete", req, &resp); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeCommitFailed, err, "order commit did not complete")
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "order commit rejected"
		}
		return pkgerrors.New(pkgerrors.CodeCommitFailed, msg)
	}
	return nil
}

// getJSON is the read path: transient failures and 5xx responses are retried
// with a constant backoff before giving up.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	backoff := retry.WithMaxRetries(uint64(c.readRetries), retry.NewConstant(c.readBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.doJSON(ctx, http.MethodGet, path, nil, out)
		if err == nil {
			return nil
		}
		if typed := pkgerrors.As(err); typed != nil && pkgerrors.MetadataFor(typed.Code()).Retryable {
			if c.logg != nil {
				c.logg.Warn(c.logg.WithField(ctx, "path", path), "commerce read failed, retrying")
			}
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "commerce backend unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.statusError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "decode commerce response")
	}
	return nil
}

func (c *Client) statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	message := strings.TrimSpace(string(snippet))
	if message == "" {
		message = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, message)
	case resp.StatusCode == http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeForbidden, message)
	case resp.StatusCode == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	case resp.StatusCode == http.StatusConflict:
		return pkgerrors.New(pkgerrors.CodeConflict, message)
	case resp.StatusCode >= http.StatusInternalServerError:
		return pkgerrors.New(pkgerrors.CodeNetwork, message)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, message)
	}
}

func numericIDs(lineIDs []string) ([]int64, error) {
	ids := make([]int64, 0, len(lineIDs))
	for _, raw := range lineIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart line %q is not a member cart line", raw))
		}
		ids = append(ids, id)
	}
	return ids, nil
}
