package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/kirana-labs/backend-pos/internal/resilience"
)

// Product is the product shape consumed by the pricing engine. HSN code is
// carried through for invoicing only and never enters the arithmetic.
type Product struct {
	ID               string          `json:"id" validate:"required"`
	Name             string          `json:"name" validate:"required"`
	SKU              string          `json:"sku"`
	BaseSellingPrice decimal.Decimal `json:"base_selling_price"`
	GSTRate          decimal.Decimal `json:"gst_rate"`
	TaxIncluded      bool            `json:"tax_included"`
	StockQuantity    int             `json:"stock_quantity" validate:"gte=0"`
	HSNCode          string          `json:"hsn_code"`
}

// TierPayload mirrors the upstream pricing tier resource.
type TierPayload struct {
	ID                string          `json:"id" validate:"required"`
	Name              string          `json:"name" validate:"required"`
	DefaultPercentage decimal.Decimal `json:"default_percentage"`
	IsActive          bool            `json:"is_active"`
}

// RulePayload mirrors the upstream product-tier rule resource.
type RulePayload struct {
	ProductID string          `json:"product_id" validate:"required"`
	TierID    string          `json:"tier_id" validate:"required"`
	Type      string          `json:"type" validate:"required,oneof=fixed percentage"`
	Value     decimal.Decimal `json:"value"`
}

// Client fetches products, tiers and rules from the upstream catalog API.
type Client struct {
	BaseURL string
	HTTP    *resilience.HTTPClient
}

// FetchProducts retrieves the product list, optionally filtered by a search term.
func (c *Client) FetchProducts(ctx context.Context, search string) ([]Product, error) {
	endpoint := c.BaseURL + "/products"
	if search != "" {
		endpoint += "?search=" + url.QueryEscape(search)
	}
	var out []Product
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, fmt.Errorf("catalog: fetch products: %w", err)
	}
	return out, nil
}

// FetchTiers retrieves all pricing tiers, active or not. Filtering to active
// tiers happens in the service so the raw list stays available for admin views.
func (c *Client) FetchTiers(ctx context.Context) ([]TierPayload, error) {
	var out []TierPayload
	if err := c.getJSON(ctx, c.BaseURL+"/pricing-tiers", &out); err != nil {
		return nil, fmt.Errorf("catalog: fetch tiers: %w", err)
	}
	return out, nil
}

// FetchRules retrieves all product-tier rules.
func (c *Client) FetchRules(ctx context.Context) ([]RulePayload, error) {
	var out []RulePayload
	if err := c.getJSON(ctx, c.BaseURL+"/product-tier-rules", &out); err != nil {
		return nil, fmt.Errorf("catalog: fetch rules: %w", err)
	}
	return out, nil
}

// Ping probes the upstream catalog API for readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("catalog: upstream returned %s", resp.Status)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dst any) error {
	if c == nil || c.HTTP == nil {
		return fmt.Errorf("client not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	// Upstream wraps collections in the standard data envelope.
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Data, dst)
}
