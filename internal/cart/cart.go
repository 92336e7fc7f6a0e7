package cart

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirana-labs/backend-pos/internal/catalog"
	"github.com/kirana-labs/backend-pos/internal/pricing"
)

// ErrOutOfStock is returned when adding a product with no stock on hand.
var ErrOutOfStock = errors.New("cart: product out of stock")

// ErrStockExceeded is returned when an increment would exceed the stock
// ceiling snapshotted when the line was created.
var ErrStockExceeded = errors.New("cart: quantity exceeds available stock")

// ErrInvalidDiscount is returned for discount percentages outside [0,100].
var ErrInvalidDiscount = errors.New("cart: discount percentage outside 0-100")

// ErrLineNotFound indicates the referenced line is not in the cart.
var ErrLineNotFound = errors.New("cart: line not found")

// Line is a cart line item. It exists only for the lifetime of the cart
// session and is never persisted.
//
// BasePrice is the product's untouched base selling price, retained for the
// whole life of the line: tier changes always re-resolve from it, never from
// the currently displayed selling price, otherwise successive tier changes
// would compound multiplicatively instead of resetting to the new tier's
// absolute adjustment.
type Line struct {
	ID           int64           `json:"id"`
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	HSNCode      string          `json:"hsn_code"`
	BasePrice    decimal.Decimal `json:"base_price"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Qty          int             `json:"qty"`
	GSTRate      decimal.Decimal `json:"gst_rate"`
	TaxIncluded  bool            `json:"tax_included"`
	StockCeiling int             `json:"stock_ceiling"`
}

// Cart holds one operator session's mutable state. All mutations go through
// its methods so the tax-consistency invariant is re-established every time:
// when TaxIncluded is set, SellingPrice == UnitPrice * (1 + GSTRate/100).
type Cart struct {
	ID            string          `json:"id"`
	TierID        string          `json:"tier_id,omitempty"`
	CustomerID    string          `json:"customer_id,omitempty"`
	PlaceOfSupply string          `json:"place_of_supply,omitempty"`
	DiscountPct   decimal.Decimal `json:"discount_pct"`
	Lines         []*Line         `json:"lines"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	nextLineID int64
}

// AddProduct inserts the product as a new line, or increments the existing
// line's quantity by one. The effective unit selling price is resolved under
// the currently selected tier.
func (c *Cart) AddProduct(p catalog.Product, rs pricing.RuleSet) (*Line, error) {
	if p.StockQuantity <= 0 {
		return nil, ErrOutOfStock
	}
	for _, line := range c.Lines {
		if line.ProductID == p.ID {
			if line.Qty+1 > line.StockCeiling {
				return nil, ErrStockExceeded
			}
			line.Qty++
			c.touch()
			return line, nil
		}
	}
	c.nextLineID++
	line := &Line{
		ID:           c.nextLineID,
		ProductID:    p.ID,
		Name:         p.Name,
		SKU:          p.SKU,
		HSNCode:      p.HSNCode,
		BasePrice:    p.BaseSellingPrice,
		Qty:          1,
		GSTRate:      p.GSTRate,
		TaxIncluded:  p.TaxIncluded,
		StockCeiling: p.StockQuantity,
	}
	line.reprice(pricing.ResolvePrice(line.BasePrice, line.ProductID, c.TierID, rs))
	c.Lines = append(c.Lines, line)
	c.touch()
	return line, nil
}

// ChangeQuantity sets the line quantity. Values below one are ignored, and a
// value above the stock ceiling is a deliberate soft-fail: the quantity stays
// unchanged and no error is raised, keeping the terminal responsive. The
// return value reports whether the quantity actually changed.
func (c *Cart) ChangeQuantity(lineID int64, qty int) (bool, error) {
	line := c.line(lineID)
	if line == nil {
		return false, ErrLineNotFound
	}
	if qty < 1 || qty > line.StockCeiling {
		return false, nil
	}
	line.Qty = qty
	c.touch()
	return true, nil
}

// RemoveLine removes the line unconditionally.
func (c *Cart) RemoveLine(lineID int64) error {
	for i, line := range c.Lines {
		if line.ID == lineID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			c.touch()
			return nil
		}
	}
	return ErrLineNotFound
}

// ApplyTier switches the selected pricing tier and re-resolves every line's
// effective price from its retained base price.
func (c *Cart) ApplyTier(tierID string, rs pricing.RuleSet) {
	c.TierID = tierID
	for _, line := range c.Lines {
		line.reprice(pricing.ResolvePrice(line.BasePrice, line.ProductID, tierID, rs))
	}
	c.touch()
}

// SetDiscount validates and stores the cart-level discount percentage. The
// aggregator assumes a pre-validated value, so rejection happens here.
func (c *Cart) SetDiscount(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return ErrInvalidDiscount
	}
	c.DiscountPct = pct
	c.touch()
	return nil
}

// Reset clears all lines and selections. Invoked after a successful checkout
// or when the operator cancels the sale.
func (c *Cart) Reset() {
	c.Lines = nil
	c.TierID = ""
	c.CustomerID = ""
	c.DiscountPct = decimal.Zero
	c.touch()
}

// LineInputs converts the cart lines into the pricing engine's input form.
func (c *Cart) LineInputs() []pricing.LineInput {
	out := make([]pricing.LineInput, 0, len(c.Lines))
	for _, line := range c.Lines {
		out = append(out, pricing.LineInput{
			UnitPrice:    line.UnitPrice,
			SellingPrice: line.SellingPrice,
			Qty:          line.Qty,
			GSTRate:      line.GSTRate,
			TaxIncluded:  line.TaxIncluded,
		})
	}
	return out
}

// Totals aggregates the cart into the GST-bucketed pricing summary.
func (c *Cart) Totals() pricing.Totals {
	return pricing.Aggregate(c.LineInputs(), c.DiscountPct)
}

func (c *Cart) line(id int64) *Line {
	for _, line := range c.Lines {
		if line.ID == id {
			return line
		}
	}
	return nil
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now()
}

// reprice stores the resolved selling price and re-derives the tax-exclusive
// unit price under the tax-consistency invariant.
func (l *Line) reprice(selling decimal.Decimal) {
	l.SellingPrice = selling
	if l.TaxIncluded {
		divisor := decimal.NewFromInt(1).Add(l.GSTRate.Div(decimal.NewFromInt(100)))
		l.UnitPrice = selling.Div(divisor)
	} else {
		l.UnitPrice = selling
	}
}
