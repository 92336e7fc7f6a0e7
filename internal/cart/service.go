package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kirana-labs/backend-pos/internal/catalog"
	"github.com/kirana-labs/backend-pos/internal/obs"
)

// ErrUnknownProduct indicates the product id is not in the catalog snapshot.
var ErrUnknownProduct = errors.New("cart: unknown product")

// ErrUnknownTier indicates the tier id is not an active tier.
var ErrUnknownTier = errors.New("cart: unknown pricing tier")

// Service mediates cart mutations: it resolves products and tier rules from
// the catalog snapshot and applies them to the session's cart.
type Service struct {
	Store   *Store
	Catalog *catalog.Service
}

func (s *Service) count(op, result string) {
	if obs.CartMutationsTotal != nil {
		obs.CartMutationsTotal.WithLabelValues(op, result).Inc()
	}
}

// Create opens a new cart session.
func (s *Service) Create() (*Cart, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("cart: service not configured")
	}
	return s.Store.Create(), nil
}

// AddItem adds one unit of the product to the cart, resolving its effective
// price under the cart's selected tier.
func (s *Service) AddItem(ctx context.Context, cartID, productID string) error {
	if s == nil || s.Store == nil || s.Catalog == nil {
		return errors.New("cart: service not configured")
	}
	snap, err := s.Catalog.Snapshot(ctx)
	if err != nil {
		s.count("add", "upstream_error")
		return fmt.Errorf("load catalog: %w", err)
	}
	product, ok := snap.Product(productID)
	if !ok {
		s.count("add", "unknown_product")
		return ErrUnknownProduct
	}
	err = s.Store.Mutate(cartID, func(c *Cart) error {
		_, err := c.AddProduct(product, snap.RuleSet)
		return err
	})
	switch {
	case err == nil:
		s.count("add", "ok")
	case errors.Is(err, ErrOutOfStock), errors.Is(err, ErrStockExceeded):
		s.count("add", "stock_rejected")
	default:
		s.count("add", "error")
	}
	return err
}

// ChangeQuantity sets a line's quantity with the soft-fail stock semantics.
func (s *Service) ChangeQuantity(cartID string, lineID int64, qty int) (changed bool, err error) {
	err = s.Store.Mutate(cartID, func(c *Cart) error {
		var innerErr error
		changed, innerErr = c.ChangeQuantity(lineID, qty)
		return innerErr
	})
	if err == nil {
		s.count("change_qty", "ok")
	} else {
		s.count("change_qty", "error")
	}
	return changed, err
}

// RemoveLine removes a line unconditionally.
func (s *Service) RemoveLine(cartID string, lineID int64) error {
	err := s.Store.Mutate(cartID, func(c *Cart) error {
		return c.RemoveLine(lineID)
	})
	if err == nil {
		s.count("remove", "ok")
	} else {
		s.count("remove", "error")
	}
	return err
}

// SetTier switches the cart's pricing tier and recomputes every line's
// effective price. An empty tier id clears the selection.
func (s *Service) SetTier(ctx context.Context, cartID, tierID string) error {
	snap, err := s.Catalog.Snapshot(ctx)
	if err != nil {
		s.count("set_tier", "upstream_error")
		return fmt.Errorf("load catalog: %w", err)
	}
	if tierID != "" {
		if _, ok := snap.RuleSet.Tier(tierID); !ok {
			s.count("set_tier", "unknown_tier")
			return ErrUnknownTier
		}
	}
	err = s.Store.Mutate(cartID, func(c *Cart) error {
		c.ApplyTier(tierID, snap.RuleSet)
		return nil
	})
	if err == nil {
		s.count("set_tier", "ok")
	} else {
		s.count("set_tier", "error")
	}
	return err
}

// SetDiscount validates and stores the cart-level discount percentage.
func (s *Service) SetDiscount(cartID string, pct decimal.Decimal) error {
	err := s.Store.Mutate(cartID, func(c *Cart) error {
		return c.SetDiscount(pct)
	})
	if err == nil {
		s.count("set_discount", "ok")
	} else {
		s.count("set_discount", "error")
	}
	return err
}

// SetCustomer attaches the billing customer; an empty id means a walk-in sale.
func (s *Service) SetCustomer(cartID, customerID, placeOfSupply string) error {
	return s.Store.Mutate(cartID, func(c *Cart) error {
		c.CustomerID = customerID
		c.PlaceOfSupply = placeOfSupply
		c.touch()
		return nil
	})
}

// Reset clears the cart after checkout or on operator cancel.
func (s *Service) Reset(cartID string) error {
	err := s.Store.Mutate(cartID, func(c *Cart) error {
		c.Reset()
		return nil
	})
	if err == nil {
		s.count("reset", "ok")
	}
	return err
}
