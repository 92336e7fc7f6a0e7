package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kirana-labs/backend-pos/internal/resilience"
)

// RESTSubmitter posts orders to the upstream orders API. Requests ride the
// shared retrying client, so a transient upstream failure does not lose the
// sale and the circuit breaker sheds load when the API is down.
type RESTSubmitter struct {
	BaseURL string
	APIKey  string
	HTTP    *resilience.HTTPClient
}

// Submit implements OrderSubmitter.
func (s *RESTSubmitter) Submit(ctx context.Context, payload OrderPayload) (Receipt, error) {
	if s == nil || s.HTTP == nil {
		return Receipt{}, fmt.Errorf("orders client not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Receipt{}, fmt.Errorf("encode order: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}
	resp, err := s.HTTP.Do(ctx, req)
	if err != nil {
		return Receipt{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return Receipt{}, fmt.Errorf("orders api returned %s", resp.Status)
	}
	var envelope struct {
		Data Receipt `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return Receipt{}, fmt.Errorf("decode order receipt: %w", err)
	}
	return envelope.Data, nil
}
