package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAggregateSingleExclusiveLine(t *testing.T) {
	totals := Aggregate([]LineInput{
		{UnitPrice: dec("100"), SellingPrice: dec("100"), Qty: 2, GSTRate: dec("18")},
	}, decimal.Zero)

	if !totals.Subtotal.Equal(dec("200")) {
		t.Fatalf("subtotal: want 200, got %s", totals.Subtotal)
	}
	if !totals.TotalGST.Equal(dec("36")) {
		t.Fatalf("total gst: want 36, got %s", totals.TotalGST)
	}
	if !totals.GrossTotal.Equal(dec("236")) || !totals.GrandTotal.Equal(dec("236")) {
		t.Fatalf("gross/grand: want 236/236, got %s/%s", totals.GrossTotal, totals.GrandTotal)
	}
	if !totals.RoundOff.IsZero() {
		t.Fatalf("round off: want 0, got %s", totals.RoundOff)
	}
	if len(totals.Buckets) != 1 {
		t.Fatalf("expected one rate bucket, got %d", len(totals.Buckets))
	}
	b := totals.Buckets[0]
	if !b.CGST.Equal(dec("18")) || !b.SGST.Equal(dec("18")) {
		t.Fatalf("bucket split: want 18/18, got %s/%s", b.CGST, b.SGST)
	}
}

func TestAggregateEmptyCart(t *testing.T) {
	for _, d := range []string{"0", "10", "100"} {
		totals := Aggregate(nil, dec(d))
		if !totals.Subtotal.IsZero() || !totals.TotalGST.IsZero() || !totals.GrandTotal.IsZero() || !totals.RoundOff.IsZero() {
			t.Fatalf("discount %s: empty cart must be all zero, got %+v", d, totals)
		}
	}
}

func TestAggregateDiscountOnPreTaxSubtotalOnly(t *testing.T) {
	lines := []LineInput{
		{UnitPrice: dec("100"), SellingPrice: dec("100"), Qty: 2, GSTRate: dec("18")},
		{UnitPrice: dec("100"), SellingPrice: dec("100"), Qty: 1, GSTRate: dec("5")},
	}
	totals := Aggregate(lines, dec("10"))

	if !totals.Discount.Equal(dec("30")) {
		t.Fatalf("discount: want 30, got %s", totals.Discount)
	}
	// gross = subtotal*(1-d/100) + totalGST
	want := totals.Subtotal.Mul(dec("0.9")).Add(totals.TotalGST)
	if !totals.GrossTotal.Equal(want) {
		t.Fatalf("gross: want %s, got %s", want, totals.GrossTotal)
	}
	// Buckets never absorb the discount.
	for _, b := range totals.Buckets {
		switch {
		case b.Rate.Equal(dec("18")):
			if !b.Taxable.Equal(dec("200")) {
				t.Fatalf("18%% bucket scaled by discount: %s", b.Taxable)
			}
		case b.Rate.Equal(dec("5")):
			if !b.Taxable.Equal(dec("100")) {
				t.Fatalf("5%% bucket scaled by discount: %s", b.Taxable)
			}
		default:
			t.Fatalf("unexpected bucket rate %s", b.Rate)
		}
	}
}

func TestAggregateBucketsDescendingWithExempted(t *testing.T) {
	lines := []LineInput{
		{UnitPrice: dec("10"), SellingPrice: dec("10"), Qty: 1, GSTRate: dec("5")},
		{UnitPrice: dec("20"), SellingPrice: dec("20"), Qty: 1, GSTRate: dec("28")},
		{UnitPrice: dec("30"), SellingPrice: dec("30"), Qty: 1, GSTRate: dec("0")},
		{UnitPrice: dec("40"), SellingPrice: dec("40"), Qty: 1, GSTRate: dec("12")},
	}
	totals := Aggregate(lines, decimal.Zero)

	if !totals.Exempted.Equal(dec("30")) {
		t.Fatalf("exempted: want 30, got %s", totals.Exempted)
	}
	if len(totals.Buckets) != 3 {
		t.Fatalf("want 3 buckets, got %d", len(totals.Buckets))
	}
	for i := 1; i < len(totals.Buckets); i++ {
		if totals.Buckets[i].Rate.GreaterThan(totals.Buckets[i-1].Rate) {
			t.Fatalf("buckets not in descending rate order: %s before %s",
				totals.Buckets[i-1].Rate, totals.Buckets[i].Rate)
		}
	}
}

func TestAggregateRateBucketPartition(t *testing.T) {
	lines := []LineInput{
		{UnitPrice: dec("84.7457627118644068"), SellingPrice: dec("99.99"), Qty: 3, GSTRate: dec("18"), TaxIncluded: true},
		{UnitPrice: dec("55"), SellingPrice: dec("55"), Qty: 2, GSTRate: dec("5")},
		{UnitPrice: dec("12.5"), SellingPrice: dec("12.5"), Qty: 4, GSTRate: dec("0")},
	}
	totals := Aggregate(lines, dec("7"))

	sum := totals.Exempted
	for _, b := range totals.Buckets {
		sum = sum.Add(b.Taxable)
	}
	if !sum.Equal(totals.Subtotal) {
		t.Fatalf("bucket taxables + exempted %s != subtotal %s", sum, totals.Subtotal)
	}
}

func TestAggregateRoundingLaw(t *testing.T) {
	cases := [][]LineInput{
		{{UnitPrice: dec("33.33"), SellingPrice: dec("33.33"), Qty: 1, GSTRate: dec("18")}},
		{{UnitPrice: dec("10.55"), SellingPrice: dec("10.55"), Qty: 3, GSTRate: dec("5")}},
		{{UnitPrice: dec("84.74"), SellingPrice: dec("99.99"), Qty: 2, GSTRate: dec("18"), TaxIncluded: true}},
	}
	for i, lines := range cases {
		totals := Aggregate(lines, dec("2.5"))
		if !totals.GrandTotal.Equal(totals.GrandTotal.Round(0)) {
			t.Fatalf("case %d: grand total %s is not a whole unit", i, totals.GrandTotal)
		}
		if !totals.GrossTotal.Add(totals.RoundOff).Equal(totals.GrandTotal) {
			t.Fatalf("case %d: gross %s + round off %s != grand %s",
				i, totals.GrossTotal, totals.RoundOff, totals.GrandTotal)
		}
	}
}

func TestAggregateHalfUpRounding(t *testing.T) {
	// 100.50 gross rounds up to 101.
	totals := Aggregate([]LineInput{
		{UnitPrice: dec("100.50"), SellingPrice: dec("100.50"), Qty: 1, GSTRate: dec("0")},
	}, decimal.Zero)
	if !totals.GrandTotal.Equal(dec("101")) {
		t.Fatalf("want grand 101, got %s", totals.GrandTotal)
	}
	if !totals.RoundOff.Equal(dec("0.5")) {
		t.Fatalf("want round off 0.5, got %s", totals.RoundOff)
	}
}
