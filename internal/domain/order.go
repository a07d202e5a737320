package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
)

func (s OrderStatus) String() string {
	return string(s)
}

// OrderItem mirrors the cart line shape; items are copied verbatim from
// the cart at checkout time.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// PaymentInfo is an opaque stub; no payment gateway is wired.
type PaymentInfo struct {
	Method string `json:"method"`
	Status string `json:"status"`
}

func DefaultPaymentInfo() PaymentInfo {
	return PaymentInfo{Method: "credit_card", Status: "completed"}
}

// Order is an immutable snapshot created once per checkout. Nothing in
// this service mutates an order after creation.
type Order struct {
	ID             uuid.UUID   `json:"id"`
	UserID         string      `json:"user_id"`
	Items          []OrderItem `json:"items"`
	TotalPrice     float64     `json:"total_price"`
	TotalItems     int         `json:"total_items"`
	Discount       float64     `json:"discount"`
	Status         OrderStatus `json:"status"`
	PaymentInfo    PaymentInfo `json:"payment_info"`
	IdempotencyKey string      `json:"-"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// OrderFromCart snapshots the cart into a pending order. Line snapshots
// are carried over as stored on the cart, not re-read from the catalog.
func OrderFromCart(cart *Cart, idempotencyKey string) *Order {
	items := make([]OrderItem, len(cart.Lines))
	for i, l := range cart.Lines {
		items[i] = OrderItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Category:  l.Category,
			Price:     l.Price,
			Quantity:  l.Quantity,
		}
	}

	now := time.Now()
	return &Order{
		ID:             uuid.New(),
		UserID:         cart.UserID,
		Items:          items,
		TotalPrice:     cart.TotalPrice,
		TotalItems:     cart.TotalItems,
		Discount:       cart.Discount,
		Status:         OrderStatusPending,
		PaymentInfo:    DefaultPaymentInfo(),
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
