package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marketbloom/storefront-gateway/api/middleware"
	"github.com/marketbloom/storefront-gateway/api/responses"
	"github.com/marketbloom/storefront-gateway/api/validators"
	cartsvc "github.com/marketbloom/storefront-gateway/internal/cart"
	pkgerrors "github.com/marketbloom/storefront-gateway/pkg/errors"
	"github.com/marketbloom/storefront-gateway/pkg/logger"
)

// storeForRequest picks the caller's store from the session the middleware
// resolved.
func storeForRequest(carts *cartsvc.Manager, r *http.Request) (*cartsvc.Store, error) {
	if memberID := middleware.MemberIDFromContext(r.Context()); memberID != "" {
		return carts.Member(memberID)
	}
	store, _, err := carts.Guest(middleware.GuestTokenFromContext(r.Context()))
	return store, err
}

// CartFetch returns the caller's cart snapshot.
func CartFetch(carts *cartsvc.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := storeForRequest(carts, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := store.Load(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

type addCartRequest struct {
	ItemID           int64  `json:"item_id" validate:"required"`
	Quantity         int    `json:"quantity" validate:"required,min=1"`
	OptionLabel      string `json:"option_label"`
	OptionExtraPrice int64  `json:"option_extra_price" validate:"min=0"`

	// Display fields; the commerce backend resolves these itself for member
	// carts, guest carts carry what the product page showed.
	ItemName        string `json:"item_name"`
	UnitPrice       int64  `json:"unit_price" validate:"min=0"`
	IsDiscounted    bool   `json:"is_discounted"`
	DiscountPercent int    `json:"discount_percent" validate:"min=0,max=100"`
	DeliveryFee     int64  `json:"delivery_fee" validate:"min=0"`
	ImageURL        string `json:"image_url"`
}

func (p addCartRequest) toLineItem() cartsvc.LineItem {
	return cartsvc.LineItem{
		ItemID:           p.ItemID,
		Quantity:         p.Quantity,
		OptionLabel:      p.OptionLabel,
		OptionExtraPrice: p.OptionExtraPrice,
		ItemName:         p.ItemName,
		UnitPrice:        p.UnitPrice,
		IsDiscounted:     p.IsDiscounted,
		DiscountPercent:  p.DiscountPercent,
		DeliveryFee:      p.DeliveryFee,
		ImageURL:         p.ImageURL,
	}
}

// CartAdd adds a line, merging into an existing one with the same item and
// option.
func CartAdd(carts *cartsvc.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addCartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store, err := storeForRequest(carts, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := store.Add(r.Context(), payload.toLineItem())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, snap)
	}
}

type setQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// CartSetQuantity replaces a line's quantity. Going to zero is a remove, not
// a quantity change.
func CartSetQuantity(carts *cartsvc.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lineID := chi.URLParam(r, "lineId")
		if lineID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "line id required"))
			return
		}

		var payload setQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store, err := storeForRequest(carts, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := store.SetQuantity(r.Context(), lineID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

// CartRemove deletes a single line.
func CartRemove(carts *cartsvc.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lineID := chi.URLParam(r, "lineId")
		if lineID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "line id required"))
			return
		}

		store, err := storeForRequest(carts, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := store.Remove(r.Context(), lineID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

type batchDeleteRequest struct {
	LineIDs []string `json:"line_ids" validate:"required,min=1,dive,required"`
}

// CartBatchDelete removes several lines in one backend call, so a failure
// removes nothing.
func CartBatchDelete(carts *cartsvc.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload batchDeleteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store, err := storeForRequest(carts, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := store.RemoveMany(r.Context(), payload.LineIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

// CartMerge drains the guest cart named by X-Guest-Token into the signed-in
// member's cart. Runs behind the idempotency middleware so a retried
// sign-in flow replays the stored response instead of merging twice.
func CartMerge(carts *cartsvc.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID := middleware.MemberIDFromContext(r.Context())
		if memberID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required"))
			return
		}
		guestToken := r.Header.Get("X-Guest-Token")
		if guestToken == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "guest token required"))
			return
		}

		memberStore, err := carts.Member(memberID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		_, local, err := carts.Guest(guestToken)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := memberStore.MergeGuestCart(r.Context(), local)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		carts.DropGuest(guestToken)
		responses.WriteSuccess(w, snap)
	}
}
