package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/fjod/storefront/internal/domain"
)

var (
	ErrCartNotFound      = errors.New("cart not found")
	ErrVersionConflict   = errors.New("cart version conflict")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOrderNotFound     = errors.New("order not found")
)

// CartRepository defines the interface for cart persistence.
// Consumers define this interface, not the MongoDB implementation.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	// UpsertCart writes the whole cart document. A cart with Version 0 is
	// inserted; otherwise the write matches the stored version and bumps
	// it, returning ErrVersionConflict on a concurrent update.
	UpsertCart(ctx context.Context, cart *domain.Cart) error
}

// CatalogRepository reads products and mutates only their stock.
type CatalogRepository interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	InsertProduct(ctx context.Context, product *domain.Product) (string, error)
	// DecrementStock subtracts n from the product's stock only when
	// stock >= n, as one atomic update. Returns ErrInsufficientStock when
	// the condition fails and ErrProductNotFound when the product is gone.
	DecrementStock(ctx context.Context, productID string, n int) error
	// IncrementStock returns stock to the catalog; used to compensate a
	// partially decremented checkout.
	IncrementStock(ctx context.Context, productID string, n int) error
}

// OrderRepository is the append-only order store plus its outbox.
type OrderRepository interface {
	// CreateOrder inserts the order row and its order.placed outbox event
	// in one transaction.
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, userID string, orderID uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]*domain.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error)

	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventProcessed(ctx context.Context, eventID int64) error
}
