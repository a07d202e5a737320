package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fjod/storefront/internal/domain"
)

func setupOrdersDB(t *testing.T) (*PostgresOrderRepository, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "../../migrations",
	}

	repo, err := NewPostgresOrderRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func newTestOrder(userID, idempotencyKey string) *domain.Order {
	cart := domain.NewCart(userID)
	cart.Lines = []domain.CartLine{
		{ProductID: "p1", Name: "Runner", Category: "Shoes", Price: 100, Quantity: 1, AddedAt: time.Now()},
		{ProductID: "p2", Name: "Novel", Category: "Books", Price: 50, Quantity: 2, AddedAt: time.Now()},
	}
	cart.CouponCode = "SAVE10"
	cart.CouponApplied = true
	cart.Recompute()
	return domain.OrderFromCart(cart, idempotencyKey)
}

func TestCreateOrder_Success(t *testing.T) {
	repo, cleanup := setupOrdersDB(t)
	defer cleanup()
	ctx := context.Background()

	order := newTestOrder("user-123", "")
	require.NoError(t, repo.CreateOrder(ctx, order))

	fetched, err := repo.GetOrder(ctx, "user-123", order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, fetched.ID)
	assert.Equal(t, "user-123", fetched.UserID)
	assert.Equal(t, domain.OrderStatusPending, fetched.Status)
	assert.InDelta(t, 180.0, fetched.TotalPrice, 1e-9)
	assert.InDelta(t, 20.0, fetched.Discount, 1e-9)
	assert.Equal(t, 3, fetched.TotalItems)
	require.Len(t, fetched.Items, 2)
	assert.Equal(t, "p1", fetched.Items[0].ProductID)
	assert.Equal(t, 2, fetched.Items[1].Quantity)
	assert.Equal(t, "credit_card", fetched.PaymentInfo.Method)
}

func TestCreateOrder_WritesOutboxEventInSameTx(t *testing.T) {
	repo, cleanup := setupOrdersDB(t)
	defer cleanup()
	ctx := context.Background()

	order := newTestOrder("user-123", "")
	require.NoError(t, repo.CreateOrder(ctx, order))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, order.ID.String(), ev.AggregateID)
	assert.Equal(t, "order.placed", ev.EventType)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, order.ID.String(), payload["order_id"])
	assert.Equal(t, "user-123", payload["user_id"])
	assert.InDelta(t, 180.0, payload["total_price"].(float64), 1e-9)
}

func TestGetOrder_ScopedToOwner(t *testing.T) {
	repo, cleanup := setupOrdersDB(t)
	defer cleanup()
	ctx := context.Background()

	order := newTestOrder("user-123", "")
	require.NoError(t, repo.CreateOrder(ctx, order))

	_, err := repo.GetOrder(ctx, "someone-else", order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestGetOrder_NotFound(t *testing.T) {
	repo, cleanup := setupOrdersDB(t)
	defer cleanup()

	_, err := repo.GetOrder(context.Background(), "user-123", uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestGetOrderByIdempotencyKey(t *testing.T) {
	repo, cleanup := setupOrdersDB(t)
	defer cleanup()
	ctx := context.Background()

	order := newTestOrder("user-123", "key-1")
	require.NoError(t, repo.CreateOrder(ctx, order))

	fetched, err := repo.GetOrderByIdempotencyKey(ctx, "user-123", "key-1")
	require.NoError(t, err)
	assert.Equal(t, order.ID, fetched.ID)
	assert.Equal(t, "key-1", fetched.IdempotencyKey)

	_, err = repo.GetOrderByIdempotencyKey(ctx, "user-123", "other-key")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	// Keys are per owner, not global.
	_, err = repo.GetOrderByIdempotencyKey(ctx, "someone-else", "key-1")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCreateOrder_DuplicateIdempotencyKeyRejected(t *testing.T) {
	repo, cleanup := setupOrdersDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.CreateOrder(ctx, newTestOrder("user-123", "key-1")))

	err := repo.CreateOrder(ctx, newTestOrder("user-123", "key-1"))
	assert.Error(t, err)

	// A different owner can reuse the same key.
	assert.NoError(t, repo.CreateOrder(ctx, newTestOrder("user-456", "key-1")))

	// Orders without keys never collide.
	assert.NoError(t, repo.CreateOrder(ctx, newTestOrder("user-123", "")))
	assert.NoError(t, repo.CreateOrder(ctx, newTestOrder("user-123", "")))
}

func TestListOrders_NewestFirst(t *testing.T) {
	repo, cleanup := setupOrdersDB(t)
	defer cleanup()
	ctx := context.Background()

	first := newTestOrder("user-123", "")
	first.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.CreateOrder(ctx, first))

	second := newTestOrder("user-123", "")
	require.NoError(t, repo.CreateOrder(ctx, second))

	require.NoError(t, repo.CreateOrder(ctx, newTestOrder("someone-else", "")))

	orders, err := repo.ListOrders(ctx, "user-123")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
}

func TestDeleteOrder_RemovesOrderAndPendingEvents(t *testing.T) {
	repo, cleanup := setupOrdersDB(t)
	defer cleanup()
	ctx := context.Background()

	order := newTestOrder("user-123", "")
	require.NoError(t, repo.CreateOrder(ctx, order))

	require.NoError(t, repo.DeleteOrder(ctx, order.ID))

	_, err := repo.GetOrder(ctx, "user-123", order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)

	err = repo.DeleteOrder(ctx, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMarkEventProcessed(t *testing.T) {
	repo, cleanup := setupOrdersDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.CreateOrder(ctx, newTestOrder("user-123", "")))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	require.NoError(t, repo.MarkEventProcessed(ctx, events[0].ID))

	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
