package pricing

import "testing"

func TestDecomposeLineExclusive(t *testing.T) {
	lt := DecomposeLine(LineInput{
		UnitPrice:    dec("100"),
		SellingPrice: dec("100"),
		Qty:          2,
		GSTRate:      dec("18"),
	})
	if !lt.Taxable.Equal(dec("200")) {
		t.Fatalf("expected taxable 200, got %s", lt.Taxable)
	}
	if !lt.Tax.Equal(dec("36")) {
		t.Fatalf("expected tax 36, got %s", lt.Tax)
	}
	if !lt.CGST.Equal(dec("18")) || !lt.SGST.Equal(dec("18")) {
		t.Fatalf("expected 18/18 split, got %s/%s", lt.CGST, lt.SGST)
	}
}

func TestDecomposeLineInclusive(t *testing.T) {
	lt := DecomposeLine(LineInput{
		UnitPrice:    dec("100"),
		SellingPrice: dec("118"),
		Qty:          1,
		GSTRate:      dec("18"),
		TaxIncluded:  true,
	})
	if !lt.Taxable.Equal(dec("100")) {
		t.Fatalf("expected taxable 100, got %s", lt.Taxable)
	}
	if !lt.Tax.Equal(dec("18")) {
		t.Fatalf("expected tax 18, got %s", lt.Tax)
	}
}

func TestDecomposeLineZeroRate(t *testing.T) {
	lt := DecomposeLine(LineInput{
		UnitPrice:    dec("40"),
		SellingPrice: dec("40"),
		Qty:          3,
		GSTRate:      dec("0"),
	})
	if !lt.Taxable.Equal(dec("120")) {
		t.Fatalf("expected taxable 120, got %s", lt.Taxable)
	}
	if !lt.Tax.IsZero() {
		t.Fatalf("expected zero tax, got %s", lt.Tax)
	}
}

func TestDecomposeLineHalvesSumToTax(t *testing.T) {
	lt := DecomposeLine(LineInput{
		UnitPrice:    dec("33.33"),
		SellingPrice: dec("33.33"),
		Qty:          7,
		GSTRate:      dec("12"),
	})
	if !lt.CGST.Add(lt.SGST).Equal(lt.Tax) {
		t.Fatalf("CGST+SGST != tax: %s + %s != %s", lt.CGST, lt.SGST, lt.Tax)
	}
}

func TestDecomposeLineInclusiveRoundTrips(t *testing.T) {
	// Back-calculated taxable plus tax must reconstruct the listed total.
	in := LineInput{
		UnitPrice:    dec("84.75"),
		SellingPrice: dec("99.99"),
		Qty:          4,
		GSTRate:      dec("28"),
		TaxIncluded:  true,
	}
	lt := DecomposeLine(in)
	total := in.SellingPrice.Mul(dec("4"))
	if !lt.Taxable.Add(lt.Tax).Equal(total) {
		t.Fatalf("taxable+tax %s does not reconstruct %s", lt.Taxable.Add(lt.Tax), total)
	}
}
