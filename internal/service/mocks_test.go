package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
)

// MockCartRepository keeps carts in a map and copies documents on the
// way in and out, so service-side mutations don't alias stored state.
type MockCartRepository struct {
	mu        sync.Mutex
	carts     map[string]*domain.Cart
	GetErr    error
	UpsertErr error
	Upserts   int

	// ConflictUpserts makes that many upserts fail with
	// ErrVersionConflict before writes succeed again, like a writer in
	// another process bumping the version between read and write.
	ConflictUpserts int
}

func NewMockCartRepository() *MockCartRepository {
	return &MockCartRepository{carts: make(map[string]*domain.Cart)}
}

func copyCart(cart *domain.Cart) *domain.Cart {
	cp := *cart
	cp.Lines = make([]domain.CartLine, len(cart.Lines))
	copy(cp.Lines, cart.Lines)
	return &cp
}

func (m *MockCartRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return copyCart(cart), nil
}

func (m *MockCartRepository) UpsertCart(_ context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Upserts++
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	if m.ConflictUpserts > 0 {
		m.ConflictUpserts--
		return repository.ErrVersionConflict
	}
	cart.Version++
	m.carts[cart.UserID] = copyCart(cart)
	return nil
}

// Seed stores a cart directly, bypassing the version bump.
func (m *MockCartRepository) Seed(cart *domain.Cart) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[cart.UserID] = copyCart(cart)
}

func (m *MockCartRepository) Stored(userID string) *domain.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[userID]
	if !ok {
		return nil
	}
	return copyCart(cart)
}

type MockCatalogRepository struct {
	mu       sync.Mutex
	products map[string]*domain.Product

	// FailDecrementFor forces DecrementStock on that product to return
	// DecrementErr even when stock would suffice.
	FailDecrementFor string
	DecrementErr     error

	DecrementCalls []string
	IncrementCalls []string
}

func NewMockCatalogRepository(products ...*domain.Product) *MockCatalogRepository {
	m := &MockCatalogRepository{products: make(map[string]*domain.Product)}
	for _, p := range products {
		cp := *p
		m.products[p.ID] = &cp
	}
	return m
}

func (m *MockCatalogRepository) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockCatalogRepository) ListProducts(_ context.Context) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Product, 0, len(m.products))
	for _, p := range m.products {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockCatalogRepository) InsertProduct(_ context.Context, product *domain.Product) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	cp := *product
	m.products[product.ID] = &cp
	return product.ID, nil
}

func (m *MockCatalogRepository) DecrementStock(_ context.Context, productID string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DecrementCalls = append(m.DecrementCalls, productID)
	if productID == m.FailDecrementFor {
		return m.DecrementErr
	}
	p, ok := m.products[productID]
	if !ok {
		return repository.ErrProductNotFound
	}
	if p.Stock < n {
		return repository.ErrInsufficientStock
	}
	p.Stock -= n
	return nil
}

func (m *MockCatalogRepository) IncrementStock(_ context.Context, productID string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IncrementCalls = append(m.IncrementCalls, productID)
	p, ok := m.products[productID]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Stock += n
	return nil
}

func (m *MockCatalogRepository) Stock(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[productID].Stock
}

type MockOrderRepository struct {
	mu        sync.Mutex
	orders    []*domain.Order
	CreateErr error
}

func (m *MockOrderRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *order
	m.orders = append(m.orders, &cp)
	return nil
}

func (m *MockOrderRepository) GetOrder(_ context.Context, userID string, orderID uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.UserID == userID && o.ID == orderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *MockOrderRepository) ListOrders(_ context.Context, userID string) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockOrderRepository) GetOrderByIdempotencyKey(_ context.Context, userID, key string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *MockOrderRepository) GetUnprocessedEvents(_ context.Context, _ int) ([]*repository.OutboxEvent, error) {
	return nil, nil
}

func (m *MockOrderRepository) MarkEventProcessed(_ context.Context, _ int64) error {
	return nil
}

func (m *MockOrderRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// MockCache misses unless seeded; Set and Delete record the keys they saw.
type MockCache struct {
	mu      sync.Mutex
	entries map[string]*domain.Cart
	Sets    []string
	Deletes []string
}

func NewMockCache() *MockCache {
	return &MockCache{entries: make(map[string]*domain.Cart)}
}

func (m *MockCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.entries[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return copyCart(cart), nil
}

func (m *MockCache) Set(_ context.Context, userID string, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sets = append(m.Sets, userID)
	m.entries[userID] = copyCart(cart)
	return nil
}

func (m *MockCache) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deletes = append(m.Deletes, userID)
	delete(m.entries, userID)
	return nil
}
