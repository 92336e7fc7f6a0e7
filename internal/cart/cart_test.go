package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kirana-labs/backend-pos/internal/catalog"
	"github.com/kirana-labs/backend-pos/internal/pricing"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testProduct(id string, price string, stock int) catalog.Product {
	return catalog.Product{
		ID:               id,
		Name:             "Product " + id,
		SKU:              "SKU-" + id,
		BaseSellingPrice: dec(price),
		GSTRate:          dec("18"),
		StockQuantity:    stock,
	}
}

func testRules(t *testing.T) pricing.RuleSet {
	t.Helper()
	rs, err := pricing.NewRuleSet(
		[]pricing.Tier{
			{ID: "wholesale", Name: "Wholesale", DefaultPercentage: dec("-10"), Active: true},
			{ID: "vip", Name: "VIP", DefaultPercentage: dec("-20"), Active: true},
		},
		[]pricing.Rule{
			{ProductID: "p2", TierID: "wholesale", Type: pricing.RuleFixed, Value: dec("75")},
		},
	)
	require.NoError(t, err)
	return rs
}

func TestAddProduct(t *testing.T) {
	c := &Cart{ID: "c1"}
	rs := testRules(t)

	line, err := c.AddProduct(testProduct("p1", "100", 5), rs)
	require.NoError(t, err)
	require.Equal(t, 1, line.Qty)
	require.True(t, line.SellingPrice.Equal(dec("100")))

	// Same product again increments the existing line.
	again, err := c.AddProduct(testProduct("p1", "100", 5), rs)
	require.NoError(t, err)
	require.Equal(t, line.ID, again.ID)
	require.Equal(t, 2, again.Qty)
	require.Len(t, c.Lines, 1)
}

func TestAddProductOutOfStock(t *testing.T) {
	c := &Cart{ID: "c1"}
	_, err := c.AddProduct(testProduct("p1", "100", 0), testRules(t))
	require.ErrorIs(t, err, ErrOutOfStock)
	require.Empty(t, c.Lines)
}

func TestAddProductStockExceeded(t *testing.T) {
	c := &Cart{ID: "c1"}
	rs := testRules(t)
	p := testProduct("p1", "100", 1)

	_, err := c.AddProduct(p, rs)
	require.NoError(t, err)
	_, err = c.AddProduct(p, rs)
	require.ErrorIs(t, err, ErrStockExceeded)
	require.Equal(t, 1, c.Lines[0].Qty)
}

func TestChangeQuantitySoftFail(t *testing.T) {
	c := &Cart{ID: "c1"}
	rs := testRules(t)
	_, err := c.AddProduct(testProduct("p1", "100", 5), rs)
	require.NoError(t, err)
	lineID := c.Lines[0].ID

	changed, err := c.ChangeQuantity(lineID, 4)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, 4, c.Lines[0].Qty)

	// Above the stock ceiling: no error, quantity untouched.
	changed, err = c.ChangeQuantity(lineID, 6)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, 4, c.Lines[0].Qty)

	// Below one: also a no-op.
	changed, err = c.ChangeQuantity(lineID, 0)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, 4, c.Lines[0].Qty)

	_, err = c.ChangeQuantity(999, 1)
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestApplyTierRepricesFromBase(t *testing.T) {
	c := &Cart{ID: "c1"}
	rs := testRules(t)
	_, err := c.AddProduct(testProduct("p1", "100", 5), rs)
	require.NoError(t, err)

	c.ApplyTier("wholesale", rs)
	require.True(t, c.Lines[0].SellingPrice.Equal(dec("90")), "got %s", c.Lines[0].SellingPrice)

	c.ApplyTier("vip", rs)
	require.True(t, c.Lines[0].SellingPrice.Equal(dec("80")), "got %s", c.Lines[0].SellingPrice)

	// Switching back must not compound the earlier adjustment.
	c.ApplyTier("wholesale", rs)
	require.True(t, c.Lines[0].SellingPrice.Equal(dec("90")), "got %s", c.Lines[0].SellingPrice)

	c.ApplyTier("", rs)
	require.True(t, c.Lines[0].SellingPrice.Equal(dec("100")))
}

func TestApplyTierProductRuleWins(t *testing.T) {
	c := &Cart{ID: "c1"}
	rs := testRules(t)
	_, err := c.AddProduct(testProduct("p2", "100", 5), rs)
	require.NoError(t, err)

	c.ApplyTier("wholesale", rs)
	// Fixed rule at 75 overrides the -10% tier default; they never stack.
	require.True(t, c.Lines[0].SellingPrice.Equal(dec("75")), "got %s", c.Lines[0].SellingPrice)
}

func TestRepriceKeepsTaxConsistency(t *testing.T) {
	c := &Cart{ID: "c1"}
	rs := testRules(t)
	p := testProduct("p1", "118", 5)
	p.TaxIncluded = true
	_, err := c.AddProduct(p, rs)
	require.NoError(t, err)

	line := c.Lines[0]
	require.True(t, line.UnitPrice.Equal(dec("100")), "got %s", line.UnitPrice)

	c.ApplyTier("wholesale", rs)
	// -10% on the tax-inclusive price; the exclusive unit price follows.
	require.True(t, line.SellingPrice.Equal(dec("106.2")), "got %s", line.SellingPrice)
	require.True(t, line.UnitPrice.Equal(dec("90")), "got %s", line.UnitPrice)
}

func TestSetDiscountBounds(t *testing.T) {
	c := &Cart{ID: "c1"}
	require.NoError(t, c.SetDiscount(dec("0")))
	require.NoError(t, c.SetDiscount(dec("100")))
	require.ErrorIs(t, c.SetDiscount(dec("-1")), ErrInvalidDiscount)
	require.ErrorIs(t, c.SetDiscount(dec("100.01")), ErrInvalidDiscount)
	// Last accepted value survives the rejections.
	require.True(t, c.DiscountPct.Equal(dec("100")))
}

func TestReset(t *testing.T) {
	c := &Cart{ID: "c1"}
	rs := testRules(t)
	_, err := c.AddProduct(testProduct("p1", "100", 5), rs)
	require.NoError(t, err)
	c.ApplyTier("vip", rs)
	require.NoError(t, c.SetDiscount(dec("5")))
	c.CustomerID = "cust-1"

	c.Reset()
	require.Empty(t, c.Lines)
	require.Empty(t, c.TierID)
	require.Empty(t, c.CustomerID)
	require.True(t, c.DiscountPct.IsZero())
}

func TestTotals(t *testing.T) {
	c := &Cart{ID: "c1"}
	rs := testRules(t)
	_, err := c.AddProduct(testProduct("p1", "100", 5), rs)
	require.NoError(t, err)
	_, err = c.AddProduct(testProduct("p1", "100", 5), rs)
	require.NoError(t, err)

	totals := c.Totals()
	require.True(t, totals.Subtotal.Equal(dec("200")), "got %s", totals.Subtotal)
	require.True(t, totals.TotalGST.Equal(dec("36")), "got %s", totals.TotalGST)
	require.True(t, totals.GrandTotal.Equal(dec("236")), "got %s", totals.GrandTotal)
}

func TestStoreLifecycle(t *testing.T) {
	s := NewStore(0)
	c := s.Create()
	require.NotEmpty(t, c.ID)

	err := s.Mutate(c.ID, func(c *Cart) error {
		return c.SetDiscount(dec("10"))
	})
	require.NoError(t, err)

	err = s.View(c.ID, func(c *Cart) error {
		require.True(t, c.DiscountPct.Equal(dec("10")))
		return nil
	})
	require.NoError(t, err)

	s.Delete(c.ID)
	require.ErrorIs(t, s.View(c.ID, func(*Cart) error { return nil }), ErrNotFound)
}
