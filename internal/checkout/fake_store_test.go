package checkout

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/coupons"
	"github.com/lfreyesc23-dotcom/OsitosLua/internal/models"
)

type memState struct {
	products map[primitive.ObjectID]models.Product
	coupons  map[primitive.ObjectID]models.Coupon
	orders   map[primitive.ObjectID]models.Order
	users    map[primitive.ObjectID]models.User
}

func (s memState) clone() memState {
	c := memState{
		products: make(map[primitive.ObjectID]models.Product, len(s.products)),
		coupons:  make(map[primitive.ObjectID]models.Coupon, len(s.coupons)),
		orders:   make(map[primitive.ObjectID]models.Order, len(s.orders)),
		users:    make(map[primitive.ObjectID]models.User, len(s.users)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.coupons {
		c.coupons[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

// memStore is an in-memory Store. Transactions snapshot the whole state and
// restore it when the callback fails.
type memStore struct {
	mu    sync.Mutex
	state memState

	insertErr error
	txCount   int
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		products: map[primitive.ObjectID]models.Product{},
		coupons:  map[primitive.ObjectID]models.Coupon{},
		orders:   map[primitive.ObjectID]models.Order{},
		users:    map[primitive.ObjectID]models.User{},
	}}
}

func (m *memStore) addProduct(p models.Product) models.Product {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	m.state.products[p.ID] = p
	return p
}

func (m *memStore) addCoupon(c models.Coupon) models.Coupon {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	m.state.coupons[c.ID] = c
	return c
}

func (m *memStore) addUser(u models.User) models.User {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	m.state.users[u.ID] = u
	return u
}

func (m *memStore) product(id primitive.ObjectID) models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.products[id]
}

func (m *memStore) coupon(id primitive.ObjectID) models.Coupon {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.coupons[id]
}

func (m *memStore) order(id primitive.ObjectID) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.orders[id]
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.orders)
}

func (m *memStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.txCount++
	snapshot := m.state.clone()
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) UserExistsWithRUT(_ context.Context, rut string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.state.users {
		if u.RUT == rut {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) UserEmail(_ context.Context, id primitive.ObjectID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.users[id].Email, nil
}

func (m *memStore) GetProduct(_ context.Context, id primitive.ObjectID) (models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.products[id]
	if !ok || p.IsDeleted {
		return models.Product{}, ErrProductNotFound
	}
	return p, nil
}

func (m *memStore) DecrementStock(_ context.Context, id primitive.ObjectID, qty int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.products[id]
	if !ok || qty <= 0 || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	m.state.products[id] = p
	return true, nil
}

func (m *memStore) IncrementStock(_ context.Context, id primitive.ObjectID, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.state.products[id]
	p.Stock += qty
	m.state.products[id] = p
	return nil
}

func (m *memStore) GetCoupon(_ context.Context, id primitive.ObjectID) (models.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.coupons[id]
	if !ok {
		return models.Coupon{}, coupons.ErrNotFound
	}
	return c, nil
}

func (m *memStore) IncrementCouponUsage(_ context.Context, id primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.coupons[id]
	if !ok || (c.MaxUses != nil && c.Uses >= *c.MaxUses) {
		return false, nil
	}
	c.Uses++
	m.state.coupons[id] = c
	return true, nil
}

func (m *memStore) DecrementCouponUsage(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.state.coupons[id]
	if c.Uses > 0 {
		c.Uses--
	}
	m.state.coupons[id] = c
	return nil
}

func (m *memStore) InsertOrder(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	order.ID = primitive.NewObjectID()
	m.state.orders[order.ID] = *order
	return nil
}

func (m *memStore) GetOrder(_ context.Context, id primitive.ObjectID) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[id]
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (m *memStore) TransitionOrder(_ context.Context, id primitive.ObjectID, t Transition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, from := range t.From {
		if o.Status == from {
			allowed = true
		}
	}
	if !allowed {
		return false, nil
	}
	o.Status = t.To
	o.UpdatedAt = t.At
	at := t.At
	switch t.To {
	case "COMPLETED":
		o.CompletedAt = &at
	case "CANCELLED":
		o.CancelledAt = &at
		o.CancelReason = t.Reason
	}
	m.state.orders[id] = o
	return true, nil
}

func (m *memStore) SetPaymentSession(_ context.Context, id primitive.ObjectID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.state.orders[id]
	o.PaymentSessionID = sessionID
	m.state.orders[id] = o
	return nil
}

func (m *memStore) ListStalePending(_ context.Context, before time.Time, limit int64) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.state.orders {
		if o.Status == "PENDING" && o.CreatedAt.Before(before) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}
