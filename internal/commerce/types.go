package commerce

import (
	"strconv"
	"time"

	"github.com/marketbloom/storefront-gateway/internal/cart"
	"github.com/marketbloom/storefront-gateway/internal/checkout"
)

// Wire types mirror the commerce backend's JSON contract. The backend speaks
// camelCase and numeric cart-line ids; the gateway's own surface does not, so
// every shape is translated at this boundary.

type wireCartLine struct {
	ID           int64  `json:"id"`
	ItemID       int64  `json:"itemId"`
	ItemName     string `json:"itemName"`
	Price        int64  `json:"price"`
	OptionName   string `json:"optionName"`
	OptionPrice  int64  `json:"optionPrice"`
	Count        int    `json:"count"`
	IsDiscount   bool   `json:"isDiscount"`
	DiscountRate int    `json:"discountRate"`
	DeliveryFee  int64  `json:"deliveryFee"`
	ImageURL     string `json:"imageUrl"`
}

func (w wireCartLine) toLineItem() cart.LineItem {
	return cart.LineItem{
		LineID:           strconv.FormatInt(w.ID, 10),
		ItemID:           w.ItemID,
		ItemName:         w.ItemName,
		UnitPrice:        w.Price,
		OptionLabel:      w.OptionName,
		OptionExtraPrice: w.OptionPrice,
		Quantity:         w.Count,
		IsDiscounted:     w.IsDiscount,
		DiscountPercent:  w.DiscountRate,
		DeliveryFee:      w.DeliveryFee,
		ImageURL:         w.ImageURL,
	}
}

type wireAddLine struct {
	ItemID      int64  `json:"itemId"`
	Count       int    `json:"count"`
	OptionName  string `json:"optionName"`
	OptionPrice int64  `json:"optionPrice"`
}

func toWireAddLine(input cart.AddInput) wireAddLine {
	return wireAddLine{
		ItemID:      input.ItemID,
		Count:       input.Quantity,
		OptionName:  input.OptionLabel,
		OptionPrice: input.OptionExtraPrice,
	}
}

type wireCoupon struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	DiscountAmount int64     `json:"discountAmount"`
	ValidUntil     time.Time `json:"validUntil"`
}

func (w wireCoupon) toCoupon() checkout.Coupon {
	return checkout.Coupon{
		CouponRef:      strconv.FormatInt(w.ID, 10),
		Name:           w.Name,
		DiscountAmount: w.DiscountAmount,
		ValidUntil:     w.ValidUntil,
	}
}

// Session is the backend's view of the caller's session, used to pick the
// cart mode and to seed checkout with the point balance.
type Session struct {
	Authenticated bool   `json:"authenticated"`
	MemberID      string `json:"member_id,omitempty"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address,omitempty"`
	Role          string `json:"role,omitempty"`
	PointBalance  int64  `json:"point_balance"`
}

type wireSession struct {
	MemberID     int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	Role         string `json:"role"`
	PointBalance int64  `json:"point"`
}

// OrderLine is one purchased cart line as the commit endpoint expects it.
type OrderLine struct {
	CartLineID string `json:"-"`
	ItemID     int64  `json:"-"`
	Quantity   int    `json:"-"`
	OptionName string `json:"-"`
	UnitPrice  int64  `json:"-"`
}

type wireOrderLine struct {
	CartItemID int64  `json:"cartItemId"`
	ItemID     int64  `json:"itemId"`
	Count      int    `json:"count"`
	OptionName string `json:"optionName"`
	Price      int64  `json:"price"`
}

// CommitOrder is the full payload of the verify-and-commit call.
type CommitOrder struct {
	PaymentRef       string
	CorrelationToken string
	Amount           int64
	PointsUsed       int64
	CouponRef        string
	Lines            []OrderLine
}

type wireCommitRequest struct {
	PaymentID      string          `json:"paymentId"`
	OrderID        string          `json:"orderId"`
	Amount         int64           `json:"amount"`
	UsedPoints     int64           `json:"usedPoints"`
	MemberCouponID *int64          `json:"memberCouponId"`
	OrderItems     []wireOrderLine `json:"orderItems"`
}

type wireCommitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
