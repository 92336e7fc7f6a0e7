package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"

	"github.com/kirana-labs/backend-pos/internal/obs"
	"github.com/kirana-labs/backend-pos/internal/pricing"
)

const snapshotCacheKey = "catalog:snapshot"

// Fetcher is the subset of the upstream client the service depends on.
type Fetcher interface {
	FetchProducts(ctx context.Context, search string) ([]Product, error)
	FetchTiers(ctx context.Context) ([]TierPayload, error)
	FetchRules(ctx context.Context) ([]RulePayload, error)
}

// Snapshot is an immutable view of the catalog for one cart session: the
// product list plus the rule set the pricing resolver consumes. Mutating
// upstream data never changes a snapshot already handed out.
type Snapshot struct {
	Products  []Product
	Tiers     []pricing.Tier
	RuleSet   pricing.RuleSet
	FetchedAt time.Time

	byID map[string]Product
}

// Product looks up a product by id.
func (s *Snapshot) Product(id string) (Product, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// rawSnapshot is the cacheable wire form of a snapshot.
type rawSnapshot struct {
	Products  []Product     `json:"products"`
	Tiers     []TierPayload `json:"tiers"`
	Rules     []RulePayload `json:"rules"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// Service owns catalog snapshot assembly: fetch, validate at the collaborator
// boundary, filter inactive tiers and index rules for the resolver.
type Service struct {
	Client   Fetcher
	Cache    *Cache
	Validate *validator.Validate
	Now      func() time.Time
}

// NewService constructs a catalog service with a ready validator.
func NewService(client Fetcher, cache *Cache) *Service {
	return &Service{
		Client:   client,
		Cache:    cache,
		Validate: validator.New(),
	}
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Snapshot returns the current catalog snapshot, from cache when fresh,
// otherwise refreshed from the upstream API.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	if s == nil || s.Client == nil {
		return nil, errors.New("catalog: service not configured")
	}
	var raw rawSnapshot
	if ok, err := s.Cache.GetJSON(ctx, snapshotCacheKey, &raw); err == nil && ok {
		return s.assemble(raw)
	}

	raw, err := s.refresh(ctx)
	if err != nil {
		if obs.CatalogRefreshTotal != nil {
			obs.CatalogRefreshTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	if obs.CatalogRefreshTotal != nil {
		obs.CatalogRefreshTotal.WithLabelValues("ok").Inc()
	}
	_ = s.Cache.SetJSON(ctx, snapshotCacheKey, raw)
	return s.assemble(raw)
}

// Search returns snapshot products whose name or SKU contains the query,
// case-insensitively. An empty query returns the full list.
func (s *Service) Search(ctx context.Context, query string) ([]Product, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return snap.Products, nil
	}
	out := make([]Product, 0)
	for _, p := range snap.Products {
		if strings.Contains(strings.ToLower(p.Name), query) || strings.Contains(strings.ToLower(p.SKU), query) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Service) refresh(ctx context.Context) (rawSnapshot, error) {
	products, err := s.Client.FetchProducts(ctx, "")
	if err != nil {
		return rawSnapshot{}, err
	}
	tiers, err := s.Client.FetchTiers(ctx)
	if err != nil {
		return rawSnapshot{}, err
	}
	rules, err := s.Client.FetchRules(ctx)
	if err != nil {
		return rawSnapshot{}, err
	}
	raw := rawSnapshot{Products: products, Tiers: tiers, Rules: rules, FetchedAt: s.now()}
	if err := s.validate(raw); err != nil {
		return rawSnapshot{}, err
	}
	return raw, nil
}

// validate guards the collaborator boundary: malformed upstream data is
// rejected here so the engine only ever sees well-formed inputs.
func (s *Service) validate(raw rawSnapshot) error {
	for _, p := range raw.Products {
		if err := s.Validate.Struct(p); err != nil {
			return fmt.Errorf("catalog: invalid product %s: %w", p.ID, err)
		}
		if p.BaseSellingPrice.IsNegative() {
			return fmt.Errorf("catalog: product %s has negative base price", p.ID)
		}
		if p.GSTRate.IsNegative() {
			return fmt.Errorf("catalog: product %s has negative gst rate", p.ID)
		}
	}
	for _, t := range raw.Tiers {
		if err := s.Validate.Struct(t); err != nil {
			return fmt.Errorf("catalog: invalid tier %s: %w", t.ID, err)
		}
	}
	for _, r := range raw.Rules {
		if err := s.Validate.Struct(r); err != nil {
			return fmt.Errorf("catalog: invalid rule %s/%s: %w", r.ProductID, r.TierID, err)
		}
		if r.Type == string(pricing.RuleFixed) && r.Value.IsNegative() {
			return fmt.Errorf("catalog: rule %s/%s has negative fixed price", r.ProductID, r.TierID)
		}
	}
	return nil
}

func (s *Service) assemble(raw rawSnapshot) (*Snapshot, error) {
	tiers := make([]pricing.Tier, 0, len(raw.Tiers))
	for _, t := range raw.Tiers {
		if !t.IsActive {
			continue
		}
		tiers = append(tiers, pricing.Tier{
			ID:                t.ID,
			Name:              t.Name,
			DefaultPercentage: t.DefaultPercentage,
			Active:            true,
		})
	}
	rules := make([]pricing.Rule, 0, len(raw.Rules))
	for _, r := range raw.Rules {
		rules = append(rules, pricing.Rule{
			ProductID: r.ProductID,
			TierID:    r.TierID,
			Type:      pricing.RuleType(r.Type),
			Value:     r.Value,
		})
	}
	rs, err := pricing.NewRuleSet(tiers, rules)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Product, len(raw.Products))
	for _, p := range raw.Products {
		byID[p.ID] = p
	}
	return &Snapshot{
		Products:  raw.Products,
		Tiers:     tiers,
		RuleSet:   rs,
		FetchedAt: raw.FetchedAt,
		byID:      byID,
	}, nil
}
