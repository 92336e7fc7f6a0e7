package cart

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirana-labs/backend-pos/internal/obs"
)

// ErrNotFound indicates the requested cart session could not be located.
var ErrNotFound = errors.New("cart: not found")

// Store is the in-memory cart session registry. Carts are deliberately
// volatile: there is no durability guarantee, and an expired or reset
// session simply disappears. Exactly one operator drives one cart, so a
// coarse store-level mutex is all the isolation required.
type Store struct {
	mu    sync.Mutex
	carts map[string]*session
	TTL   time.Duration
	Now   func() time.Time
}

type session struct {
	cart      *Cart
	expiresAt time.Time
}

// NewStore constructs a session store with the given TTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Store{carts: make(map[string]*session), TTL: ttl}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create registers a new empty cart session and returns it.
func (s *Store) Create() *Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	now := s.now()
	c := &Cart{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	s.carts[c.ID] = &session{cart: c, expiresAt: now.Add(s.TTL)}
	s.recordGaugeLocked()
	return c
}

// View runs fn with read access to the cart. The callback must not retain
// the cart beyond the call.
func (s *Store) View(id string, fn func(*Cart) error) error {
	return s.Mutate(id, fn)
}

// Mutate runs fn against the cart under the store lock, extending the
// session TTL. Each mutation is atomic with respect to the in-memory cart:
// a rejected operation leaves the cart untouched.
func (s *Store) Mutate(id string, fn func(*Cart) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	sess, ok := s.carts[id]
	if !ok {
		return ErrNotFound
	}
	sess.expiresAt = s.now().Add(s.TTL)
	return fn(sess.cart)
}

// Delete discards the cart session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, id)
	s.recordGaugeLocked()
}

func (s *Store) sweepLocked() {
	now := s.now()
	for id, sess := range s.carts {
		if now.After(sess.expiresAt) {
			delete(s.carts, id)
		}
	}
	s.recordGaugeLocked()
}

func (s *Store) recordGaugeLocked() {
	if obs.ActiveCarts != nil {
		obs.ActiveCarts.Set(float64(len(s.carts)))
	}
}
