package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// RateBucket accumulates the taxable amount and tax split for one GST rate.
type RateBucket struct {
	Rate    decimal.Decimal `json:"rate"`
	Taxable decimal.Decimal `json:"taxable"`
	CGST    decimal.Decimal `json:"cgst"`
	SGST    decimal.Decimal `json:"sgst"`
	Tax     decimal.Decimal `json:"tax"`
}

// Totals is the cart-level pricing summary. GrandTotal is always a whole
// number of currency units and GrossTotal + RoundOff == GrandTotal exactly,
// so the displayed figure and the stored figure can never disagree.
type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Exempted   decimal.Decimal `json:"exempted"`
	TotalGST   decimal.Decimal `json:"total_gst"`
	Discount   decimal.Decimal `json:"discount"`
	GrossTotal decimal.Decimal `json:"gross_total"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	RoundOff   decimal.Decimal `json:"round_off"`
	Buckets    []RateBucket    `json:"buckets"`
}

// Aggregate folds all lines into rate-keyed buckets and computes cart totals.
// Zero-rate lines land in the exempted amount instead of a bucket. The
// discount applies to the pre-tax subtotal only, never to the tax. Buckets
// are returned in descending rate order for display.
//
// The discount percentage is assumed pre-validated to [0,100] by the cart
// state holder; Aggregate does not clamp.
func Aggregate(lines []LineInput, discountPct decimal.Decimal) Totals {
	subtotal := decimal.Zero
	totalGST := decimal.Zero
	exempted := decimal.Zero
	buckets := make(map[string]*RateBucket)

	for _, line := range lines {
		lt := DecomposeLine(line)
		subtotal = subtotal.Add(lt.Taxable)
		if line.GSTRate.IsZero() {
			exempted = exempted.Add(lt.Taxable)
			continue
		}
		key := line.GSTRate.String()
		b, ok := buckets[key]
		if !ok {
			b = &RateBucket{Rate: line.GSTRate}
			buckets[key] = b
		}
		b.Taxable = b.Taxable.Add(lt.Taxable)
		b.CGST = b.CGST.Add(lt.CGST)
		b.SGST = b.SGST.Add(lt.SGST)
		b.Tax = b.Tax.Add(lt.Tax)
		totalGST = totalGST.Add(lt.Tax)
	}

	discount := subtotal.Mul(discountPct).Div(hundred)
	gross := subtotal.Add(totalGST).Sub(discount)
	// Half-up to the nearest whole currency unit; no sub-unit currency.
	grand := gross.Round(0)
	roundOff := grand.Sub(gross)

	ordered := make([]RateBucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, *b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Rate.GreaterThan(ordered[j].Rate)
	})

	return Totals{
		Subtotal:   subtotal,
		Exempted:   exempted,
		TotalGST:   totalGST,
		Discount:   discount,
		GrossTotal: gross,
		GrandTotal: grand,
		RoundOff:   roundOff,
		Buckets:    ordered,
	}
}
