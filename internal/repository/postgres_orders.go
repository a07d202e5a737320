package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/fjod/storefront/internal/domain"
)

const orderPlacedEventType = "order.placed"

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OutboxEvent is a pending order.placed message written in the same
// transaction as its order row.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type PostgresOrderRepository struct {
	db *sql.DB
}

func NewPostgresOrderRepository(cred *Credentials) (*PostgresOrderRepository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &PostgresOrderRepository{db: db}, nil
}

func (r *PostgresOrderRepository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *PostgresOrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	paymentJSON, err := json.Marshal(order.PaymentInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal payment info: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order tx: %w", err)
	}
	defer tx.Rollback()

	var key sql.NullString
	if order.IdempotencyKey != "" {
		key = sql.NullString{String: order.IdempotencyKey, Valid: true}
	}

	insertOrder := `INSERT INTO orders (id, owner_id, items, total_price, total_items, discount, status, payment_info, idempotency_key, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = tx.ExecContext(ctx, insertOrder,
		order.ID,
		order.UserID,
		itemsJSON,
		order.TotalPrice,
		order.TotalItems,
		order.Discount,
		order.Status.String(),
		paymentJSON,
		key,
		order.CreatedAt,
		order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"order_id":    order.ID,
		"user_id":     order.UserID,
		"items":       order.Items,
		"total_price": order.TotalPrice,
		"total_items": order.TotalItems,
		"discount":    order.Discount,
		"placed_at":   order.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	insertEvent := `INSERT INTO order_outbox (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`
	if _, err = tx.ExecContext(ctx, insertEvent, order.ID.String(), orderPlacedEventType, payload); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	return tx.Commit()
}

func (r *PostgresOrderRepository) GetOrder(ctx context.Context, userID string, orderID uuid.UUID) (*domain.Order, error) {
	query := `SELECT id, owner_id, items, total_price, total_items, discount, status, payment_info, idempotency_key, created_at, updated_at
	          FROM orders WHERE id = $1 AND owner_id = $2`

	return r.scanOrder(r.db.QueryRowContext(ctx, query, orderID, userID))
}

func (r *PostgresOrderRepository) GetOrderByIdempotencyKey(ctx context.Context, userID, idempotencyKey string) (*domain.Order, error) {
	query := `SELECT id, owner_id, items, total_price, total_items, discount, status, payment_info, idempotency_key, created_at, updated_at
	          FROM orders WHERE owner_id = $1 AND idempotency_key = $2`

	return r.scanOrder(r.db.QueryRowContext(ctx, query, userID, idempotencyKey))
}

func (r *PostgresOrderRepository) scanOrder(row *sql.Row) (*domain.Order, error) {
	var order domain.Order
	var itemsJSON, paymentJSON []byte
	var key sql.NullString
	var status string
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&itemsJSON,
		&order.TotalPrice,
		&order.TotalItems,
		&order.Discount,
		&status,
		&paymentJSON,
		&key,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	order.Status = domain.OrderStatus(status)
	order.IdempotencyKey = key.String
	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(paymentJSON, &order.PaymentInfo); err != nil {
		return nil, fmt.Errorf("unmarshal payment info: %w", err)
	}

	return &order, nil
}

func (r *PostgresOrderRepository) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT id, owner_id, items, total_price, total_items, discount, status, payment_info, idempotency_key, created_at, updated_at
	          FROM orders WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by owner: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var order domain.Order
		var itemsJSON, paymentJSON []byte
		var key sql.NullString
		var status string
		if err := rows.Scan(
			&order.ID,
			&order.UserID,
			&itemsJSON,
			&order.TotalPrice,
			&order.TotalItems,
			&order.Discount,
			&status,
			&paymentJSON,
			&key,
			&order.CreatedAt,
			&order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		order.Status = domain.OrderStatus(status)
		order.IdempotencyKey = key.String
		if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
			return nil, fmt.Errorf("unmarshal order items: %w", err)
		}
		if err := json.Unmarshal(paymentJSON, &order.PaymentInfo); err != nil {
			return nil, fmt.Errorf("unmarshal payment info: %w", err)
		}
		orders = append(orders, &order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

func (r *PostgresOrderRepository) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_outbox WHERE aggregate_id = $1 AND NOT processed`, orderID.String()); err != nil {
		return fmt.Errorf("delete outbox events: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete order rows affected: %w", err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	return tx.Commit()
}

func (r *PostgresOrderRepository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM order_outbox WHERE NOT processed ORDER BY id LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var ev OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &ev.EventType, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return events, nil
}

func (r *PostgresOrderRepository) MarkEventProcessed(ctx context.Context, eventID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE order_outbox SET processed = TRUE WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("mark outbox event processed: %w", err)
	}
	return nil
}

func (r *PostgresOrderRepository) Close() error {
	return r.db.Close()
}
