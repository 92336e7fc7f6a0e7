package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// LineInput carries the resolved figures the tax decomposition needs for a
// single cart line. UnitPrice is always the tax-exclusive base per unit;
// SellingPrice is the effective per-unit retail price, inclusive of tax when
// TaxIncluded is set and equal to UnitPrice otherwise.
type LineInput struct {
	UnitPrice    decimal.Decimal
	SellingPrice decimal.Decimal
	Qty          int
	GSTRate      decimal.Decimal
	TaxIncluded  bool
}

// LineTax is the taxable/tax split of one line. CGST and SGST are the equal
// intrastate halves of Tax; whether the invoice ultimately reports them or
// IGST is a place-of-supply decision made downstream.
type LineTax struct {
	Taxable decimal.Decimal
	Tax     decimal.Decimal
	CGST    decimal.Decimal
	SGST    decimal.Decimal
}

// DecomposeLine splits a line into its taxable base amount and tax amount.
// Tax-inclusive prices are back-calculated; tax-exclusive prices are taxed
// forward. No rounding happens here: rounding is deferred to Aggregate so
// error never compounds across lines.
func DecomposeLine(in LineInput) LineTax {
	qty := decimal.NewFromInt(int64(in.Qty))
	var taxable, tax decimal.Decimal
	if in.TaxIncluded {
		totalWithTax := in.SellingPrice.Mul(qty)
		divisor := decimal.NewFromInt(1).Add(in.GSTRate.Div(hundred))
		taxable = totalWithTax.Div(divisor)
		tax = totalWithTax.Sub(taxable)
	} else {
		taxable = in.UnitPrice.Mul(qty)
		tax = taxable.Mul(in.GSTRate).Div(hundred)
	}
	half := tax.Div(decimal.NewFromInt(2))
	return LineTax{Taxable: taxable, Tax: tax, CGST: half, SGST: half}
}
