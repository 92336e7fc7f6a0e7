package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kirana-labs/backend-pos/internal/common"
	"github.com/kirana-labs/backend-pos/internal/pricing"
)

// Handler wires cart sessions to HTTP.
type Handler struct {
	Svc *Service
}

// CartView is the wire representation of a cart plus its computed totals.
type CartView struct {
	ID            string          `json:"id"`
	TierID        string          `json:"tierId,omitempty"`
	CustomerID    string          `json:"customerId,omitempty"`
	PlaceOfSupply string          `json:"placeOfSupply,omitempty"`
	DiscountPct   decimal.Decimal `json:"discountPercentage"`
	Lines         []Line          `json:"lines"`
	Totals        pricing.Totals  `json:"totals"`
}

func viewOf(c *Cart) CartView {
	lines := make([]Line, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, *l)
	}
	return CartView{
		ID:            c.ID,
		TierID:        c.TierID,
		CustomerID:    c.CustomerID,
		PlaceOfSupply: c.PlaceOfSupply,
		DiscountPct:   c.DiscountPct,
		Lines:         lines,
		Totals:        c.Totals(),
	}
}

// Create opens a new cart session.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	c, err := h.Svc.Create()
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "create cart", nil)
		return
	}
	common.JSONData(w, http.StatusCreated, viewOf(c))
}

// Get returns the cart with its lines and computed totals.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cartId")
	var view CartView
	err := h.Svc.Store.View(id, func(c *Cart) error {
		view = viewOf(c)
		return nil
	})
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// AddItem adds one unit of a product to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cartId")
	var payload struct {
		ProductID string `json:"productId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.ProductID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "productId is required", nil)
		return
	}
	if err := h.Svc.AddItem(r.Context(), id, payload.ProductID); err != nil {
		h.writeMutateError(w, err)
		return
	}
	h.Get(w, r)
}

// ChangeQuantity sets a line's quantity. Requests outside stock bounds leave
// the line unchanged and report changed=false instead of failing.
func (h *Handler) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cartId")
	lineID, err := strconv.ParseInt(chi.URLParam(r, "lineId"), 10, 64)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid line id", nil)
		return
	}
	var payload struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	changed, err := h.Svc.ChangeQuantity(id, lineID, payload.Quantity)
	if err != nil {
		h.writeMutateError(w, err)
		return
	}
	var view CartView
	if err := h.Svc.Store.View(id, func(c *Cart) error { view = viewOf(c); return nil }); err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
		return
	}
	common.JSONData(w, http.StatusOK, struct {
		Changed bool     `json:"changed"`
		Cart    CartView `json:"cart"`
	}{Changed: changed, Cart: view})
}

// RemoveItem deletes a line from the cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cartId")
	lineID, err := strconv.ParseInt(chi.URLParam(r, "lineId"), 10, 64)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid line id", nil)
		return
	}
	if err := h.Svc.RemoveLine(id, lineID); err != nil {
		h.writeMutateError(w, err)
		return
	}
	h.Get(w, r)
}

// SetTier switches the cart's pricing tier and reprices every line.
func (h *Handler) SetTier(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cartId")
	var payload struct {
		TierID string `json:"tierId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	if err := h.Svc.SetTier(r.Context(), id, payload.TierID); err != nil {
		h.writeMutateError(w, err)
		return
	}
	h.Get(w, r)
}

// SetDiscount stores the cart-level discount percentage.
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cartId")
	var payload struct {
		Percentage decimal.Decimal `json:"percentage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	if err := h.Svc.SetDiscount(id, payload.Percentage); err != nil {
		h.writeMutateError(w, err)
		return
	}
	h.Get(w, r)
}

// SetCustomer attaches the billing customer to the cart.
func (h *Handler) SetCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cartId")
	var payload struct {
		CustomerID    string `json:"customerId"`
		PlaceOfSupply string `json:"placeOfSupply"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	if err := h.Svc.SetCustomer(id, payload.CustomerID, payload.PlaceOfSupply); err != nil {
		h.writeMutateError(w, err)
		return
	}
	h.Get(w, r)
}

// Reset clears all lines, the discount and the customer from the cart.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cartId")
	if err := h.Svc.Reset(id); err != nil {
		h.writeMutateError(w, err)
		return
	}
	h.Get(w, r)
}

func (h *Handler) writeMutateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrLineNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart line not found", nil)
	case errors.Is(err, ErrUnknownProduct):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
	case errors.Is(err, ErrUnknownTier):
		common.JSONError(w, http.StatusUnprocessableEntity, "UNKNOWN_TIER", "pricing tier not found or inactive", nil)
	case errors.Is(err, ErrOutOfStock):
		common.JSONError(w, http.StatusConflict, "OUT_OF_STOCK", "product is out of stock", nil)
	case errors.Is(err, ErrStockExceeded):
		common.JSONError(w, http.StatusConflict, "STOCK_EXCEEDED", "quantity exceeds available stock", nil)
	case errors.Is(err, ErrInvalidDiscount):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_DISCOUNT", "discount percentage must be between 0 and 100", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart operation failed", nil)
	}
}
