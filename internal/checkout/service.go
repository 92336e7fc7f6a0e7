package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirana-labs/backend-pos/internal/cart"
	"github.com/kirana-labs/backend-pos/internal/events"
	"github.com/kirana-labs/backend-pos/internal/lock"
	"github.com/kirana-labs/backend-pos/internal/obs"
	"github.com/kirana-labs/backend-pos/internal/pricing"
)

// ErrEmptyCart is returned when checkout is attempted on a cart with no lines.
var ErrEmptyCart = errors.New("checkout: cart is empty")

// Input carries the operator-supplied checkout fields.
type Input struct {
	PaymentMethod string `json:"paymentMethod"`
	Notes         string `json:"notes,omitempty"`
}

// OrderItem is one line of the submitted order. UnitPrice is always the
// tax-exclusive unit price, regardless of how the product was entered.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku,omitempty"`
	HSNCode   string          `json:"hsn_code,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	GSTRate   decimal.Decimal `json:"gst_rate"`
	CGST      decimal.Decimal `json:"cgst"`
	SGST      decimal.Decimal `json:"sgst"`
}

// OrderPayload is the order document sent to the orders API.
type OrderPayload struct {
	CartID        string          `json:"cart_id"`
	CustomerID    string          `json:"customer_id,omitempty"`
	PlaceOfSupply string          `json:"place_of_supply,omitempty"`
	TierID        string          `json:"pricing_tier_id,omitempty"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes,omitempty"`
	DiscountPct   decimal.Decimal `json:"discount_percentage"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalGST      decimal.Decimal `json:"total_gst"`
	Discount      decimal.Decimal `json:"discount"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	RoundOff      decimal.Decimal `json:"round_off"`
	Items         []OrderItem     `json:"items"`
}

// Receipt is the orders API acknowledgement for a submitted sale.
type Receipt struct {
	OrderID       string `json:"order_id"`
	InvoiceNumber string `json:"invoice_number"`
	Status        string `json:"status"`
}

// OrderSubmitter delivers a completed order to the upstream orders API.
type OrderSubmitter interface {
	Submit(ctx context.Context, payload OrderPayload) (Receipt, error)
}

// Service finalises a cart: it freezes the totals, submits the order and
// clears the cart only after the upstream acknowledges the sale.
type Service struct {
	Carts     *cart.Service
	Submitter OrderSubmitter
	Locker    *lock.Locker
	Events    *events.Bus
	LockTTL   time.Duration
}

// Checkout submits the cart as an order. The cart survives any failure so the
// operator can retry without re-ringing the sale.
func (s *Service) Checkout(ctx context.Context, cartID string, in Input) (Receipt, error) {
	if s == nil || s.Carts == nil || s.Submitter == nil {
		return Receipt{}, errors.New("checkout: service not configured")
	}
	if s.Locker != nil {
		var receipt Receipt
		err := s.Locker.WithLock(ctx, "checkout:"+cartID, s.lockTTL(), func(ctx context.Context) error {
			var lockErr error
			receipt, lockErr = s.checkout(ctx, cartID, in)
			return lockErr
		})
		return receipt, err
	}
	return s.checkout(ctx, cartID, in)
}

func (s *Service) checkout(ctx context.Context, cartID string, in Input) (Receipt, error) {
	started := time.Now()

	var payload OrderPayload
	err := s.Carts.Store.View(cartID, func(c *cart.Cart) error {
		if len(c.Lines) == 0 {
			return ErrEmptyCart
		}
		payload = buildPayload(c, in)
		return nil
	})
	if err != nil {
		s.observe("rejected", started)
		return Receipt{}, err
	}

	receipt, err := s.Submitter.Submit(ctx, payload)
	if err != nil {
		s.observe("error", started)
		s.emit(ctx, events.TopicSaleFailed, cartID, map[string]any{
			"cart_id": cartID,
			"error":   err.Error(),
		})
		return Receipt{}, fmt.Errorf("submit order: %w", err)
	}
	s.observe("ok", started)

	// The sale is acknowledged; only now does the terminal forget the cart.
	if resetErr := s.Carts.Reset(cartID); resetErr != nil && !errors.Is(resetErr, cart.ErrNotFound) {
		return receipt, resetErr
	}

	s.emit(ctx, events.TopicSaleCompleted, cartID, map[string]any{
		"cart_id":        cartID,
		"order_id":       receipt.OrderID,
		"invoice_number": receipt.InvoiceNumber,
		"grand_total":    payload.GrandTotal,
		"payment_method": payload.PaymentMethod,
	})
	return receipt, nil
}

func buildPayload(c *cart.Cart, in Input) OrderPayload {
	totals := c.Totals()
	items := make([]OrderItem, 0, len(c.Lines))
	for _, line := range c.Lines {
		tax := pricing.DecomposeLine(pricing.LineInput{
			UnitPrice:    line.UnitPrice,
			SellingPrice: line.SellingPrice,
			Qty:          line.Qty,
			GSTRate:      line.GSTRate,
			TaxIncluded:  line.TaxIncluded,
		})
		items = append(items, OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			SKU:       line.SKU,
			HSNCode:   line.HSNCode,
			Quantity:  line.Qty,
			UnitPrice: line.UnitPrice,
			GSTRate:   line.GSTRate,
			CGST:      tax.CGST,
			SGST:      tax.SGST,
		})
	}
	return OrderPayload{
		CartID:        c.ID,
		CustomerID:    c.CustomerID,
		PlaceOfSupply: c.PlaceOfSupply,
		TierID:        c.TierID,
		PaymentMethod: in.PaymentMethod,
		Notes:         in.Notes,
		DiscountPct:   c.DiscountPct,
		Subtotal:      totals.Subtotal,
		TotalGST:      totals.TotalGST,
		Discount:      totals.Discount,
		GrandTotal:    totals.GrandTotal,
		RoundOff:      totals.RoundOff,
		Items:         items,
	}
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL > 0 {
		return s.LockTTL
	}
	return 30 * time.Second
}

func (s *Service) observe(result string, started time.Time) {
	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues(result).Inc()
	}
	if obs.CheckoutLatency != nil {
		ms := float64(time.Since(started).Milliseconds())
		obs.CheckoutLatency.WithLabelValues(result).Observe(ms)
	}
}

func (s *Service) emit(ctx context.Context, topic, cartID string, payload map[string]any) {
	if s.Events == nil {
		return
	}
	_, _ = s.Events.Emit(ctx, topic, cartID, payload)
}
