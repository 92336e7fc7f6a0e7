package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RuleType discriminates how a product-tier rule adjusts the base price.
type RuleType string

const (
	// RuleFixed replaces the base price with the rule value outright.
	RuleFixed RuleType = "fixed"
	// RulePercentage adjusts the base price by a signed percentage.
	RulePercentage RuleType = "percentage"
)

// Tier is a named customer segment carrying a default price adjustment.
type Tier struct {
	ID                string
	Name              string
	DefaultPercentage decimal.Decimal
	Active            bool
}

// Rule overrides pricing for a single (product, tier) pair.
type Rule struct {
	ProductID string
	TierID    string
	Type      RuleType
	Value     decimal.Decimal
}

type ruleKey struct {
	productID string
	tierID    string
}

// RuleSet is an immutable snapshot of tiers and product-tier rules used for
// price resolution. Build one per catalog refresh and pass it explicitly;
// it is never mutated after construction.
type RuleSet struct {
	tiers map[string]Tier
	rules map[ruleKey]Rule
}

// NewRuleSet indexes tiers and rules for lookup. A second rule for the same
// (product, tier) pair is a data-integrity violation of the rule catalog and
// is rejected here rather than resolved by precedence guessing.
func NewRuleSet(tiers []Tier, rules []Rule) (RuleSet, error) {
	rs := RuleSet{
		tiers: make(map[string]Tier, len(tiers)),
		rules: make(map[ruleKey]Rule, len(rules)),
	}
	for _, t := range tiers {
		if strings.TrimSpace(t.ID) == "" {
			return RuleSet{}, fmt.Errorf("pricing: tier with empty id")
		}
		rs.tiers[t.ID] = t
	}
	for _, r := range rules {
		if r.Type != RuleFixed && r.Type != RulePercentage {
			return RuleSet{}, fmt.Errorf("pricing: rule for product %s has unknown type %q", r.ProductID, r.Type)
		}
		key := ruleKey{productID: r.ProductID, tierID: r.TierID}
		if _, exists := rs.rules[key]; exists {
			return RuleSet{}, fmt.Errorf("pricing: duplicate rule for product %s tier %s", r.ProductID, r.TierID)
		}
		rs.rules[key] = r
	}
	return rs, nil
}

// Tier returns the tier for the given id.
func (rs RuleSet) Tier(id string) (Tier, bool) {
	t, ok := rs.tiers[id]
	return t, ok
}

// Tiers returns all tiers in the snapshot.
func (rs RuleSet) Tiers() []Tier {
	out := make([]Tier, 0, len(rs.tiers))
	for _, t := range rs.tiers {
		out = append(out, t)
	}
	return out
}

// ResolvePrice computes the effective unit selling price for a product under
// the selected tier. Precedence is strict: a product-specific rule always
// wins over the tier default; the two never stack. With no tier selected, or
// an unknown tier, the base price is returned unchanged.
//
// The function is pure and idempotent: it is called both when a line is added
// to the cart and again for every line whenever the tier selection changes,
// always from the product's untouched base price.
func ResolvePrice(base decimal.Decimal, productID, tierID string, rs RuleSet) decimal.Decimal {
	if tierID == "" {
		return base
	}
	if rule, ok := rs.rules[ruleKey{productID: productID, tierID: tierID}]; ok {
		switch rule.Type {
		case RuleFixed:
			return rule.Value
		case RulePercentage:
			return applyPercentage(base, rule.Value)
		}
	}
	tier, ok := rs.tiers[tierID]
	if !ok || tier.DefaultPercentage.IsZero() {
		return base
	}
	return applyPercentage(base, tier.DefaultPercentage)
}

func applyPercentage(base, pct decimal.Decimal) decimal.Decimal {
	return base.Add(base.Mul(pct).Div(decimal.NewFromInt(100)))
}
