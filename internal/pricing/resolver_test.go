package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func mustRuleSet(t *testing.T, tiers []Tier, rules []Rule) RuleSet {
	t.Helper()
	rs, err := NewRuleSet(tiers, rules)
	if err != nil {
		t.Fatalf("build rule set: %v", err)
	}
	return rs
}

func TestResolvePriceNoTier(t *testing.T) {
	rs := mustRuleSet(t, nil, nil)
	got := ResolvePrice(dec("100"), "p1", "", rs)
	if !got.Equal(dec("100")) {
		t.Fatalf("expected base price 100, got %s", got)
	}
}

func TestResolvePriceTierDefaultDiscount(t *testing.T) {
	rs := mustRuleSet(t, []Tier{{ID: "wholesale", Name: "Wholesale", DefaultPercentage: dec("-10"), Active: true}}, nil)
	got := ResolvePrice(dec("100"), "p1", "wholesale", rs)
	if !got.Equal(dec("90")) {
		t.Fatalf("expected 90 under -10%% tier, got %s", got)
	}
}

func TestResolvePriceFixedRuleOverridesDefault(t *testing.T) {
	rs := mustRuleSet(t,
		[]Tier{{ID: "wholesale", DefaultPercentage: dec("-10"), Active: true}},
		[]Rule{{ProductID: "p1", TierID: "wholesale", Type: RuleFixed, Value: dec("75")}},
	)
	got := ResolvePrice(dec("100"), "p1", "wholesale", rs)
	if !got.Equal(dec("75")) {
		t.Fatalf("expected fixed rule price 75, got %s", got)
	}
	// The base price is ignored entirely for fixed rules.
	got = ResolvePrice(dec("999"), "p1", "wholesale", rs)
	if !got.Equal(dec("75")) {
		t.Fatalf("expected fixed rule price 75 regardless of base, got %s", got)
	}
}

func TestResolvePricePercentageRule(t *testing.T) {
	rs := mustRuleSet(t,
		[]Tier{{ID: "vip", DefaultPercentage: dec("5"), Active: true}},
		[]Rule{{ProductID: "p1", TierID: "vip", Type: RulePercentage, Value: dec("-20")}},
	)
	got := ResolvePrice(dec("250"), "p1", "vip", rs)
	if !got.Equal(dec("200")) {
		t.Fatalf("expected 200 under -20%% rule, got %s", got)
	}
	// Other products fall back to the tier default.
	got = ResolvePrice(dec("100"), "p2", "vip", rs)
	if !got.Equal(dec("105")) {
		t.Fatalf("expected 105 under +5%% default, got %s", got)
	}
}

func TestResolvePriceUnknownTierOrZeroDefault(t *testing.T) {
	rs := mustRuleSet(t, []Tier{{ID: "retail", DefaultPercentage: decimal.Zero, Active: true}}, nil)
	if got := ResolvePrice(dec("100"), "p1", "retail", rs); !got.Equal(dec("100")) {
		t.Fatalf("zero default should return base, got %s", got)
	}
	if got := ResolvePrice(dec("100"), "p1", "missing", rs); !got.Equal(dec("100")) {
		t.Fatalf("unknown tier should return base, got %s", got)
	}
}

func TestResolvePriceIdempotent(t *testing.T) {
	rs := mustRuleSet(t,
		[]Tier{{ID: "wholesale", DefaultPercentage: dec("-7.5"), Active: true}},
		[]Rule{{ProductID: "p1", TierID: "wholesale", Type: RulePercentage, Value: dec("12.5")}},
	)
	first := ResolvePrice(dec("199.99"), "p1", "wholesale", rs)
	for i := 0; i < 10; i++ {
		again := ResolvePrice(dec("199.99"), "p1", "wholesale", rs)
		if !again.Equal(first) {
			t.Fatalf("resolution drifted on call %d: %s vs %s", i, again, first)
		}
	}
}

func TestNewRuleSetRejectsDuplicates(t *testing.T) {
	_, err := NewRuleSet(
		[]Tier{{ID: "wholesale", Active: true}},
		[]Rule{
			{ProductID: "p1", TierID: "wholesale", Type: RuleFixed, Value: dec("75")},
			{ProductID: "p1", TierID: "wholesale", Type: RulePercentage, Value: dec("-5")},
		},
	)
	if err == nil {
		t.Fatal("expected duplicate (product, tier) rule to be rejected")
	}
}

func TestNewRuleSetRejectsUnknownType(t *testing.T) {
	_, err := NewRuleSet(nil, []Rule{{ProductID: "p1", TierID: "t1", Type: "flat", Value: dec("10")}})
	if err == nil {
		t.Fatal("expected unknown rule type to be rejected")
	}
}
