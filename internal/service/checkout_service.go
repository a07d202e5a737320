package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
)

const cacheTimeout = time.Second

func parseOrderID(raw string) (uuid.UUID, error) {
	return uuid.Parse(raw)
}

// CheckoutService drives the cart-to-order transition:
//
//	Validating -> StockChecking -> OrderCreating -> StockDecrementing -> CartClearing -> Done
//
// Stock decrements are conditional atomic updates; when one fails after
// others succeeded, the earlier decrements are compensated and the order
// is removed, so no half-decremented order becomes visible.
type CheckoutService struct {
	carts   repository.CartRepository
	catalog repository.CatalogRepository
	orders  repository.OrderRepository
	cache   cache.CartCache
	locks   *UserLocks
	log     *zap.Logger
}

func NewCheckoutService(
	carts repository.CartRepository,
	catalog repository.CatalogRepository,
	orders repository.OrderRepository,
	cartCache cache.CartCache,
	locks *UserLocks,
	log *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		carts:   carts,
		catalog: catalog,
		orders:  orders,
		cache:   cartCache,
		locks:   locks,
		log:     log,
	}
}

// Checkout converts the user's cart into a pending order. A non-empty
// idempotencyKey makes retries safe: a repeated key returns the order
// created by the first call instead of decrementing stock again.
func (s *CheckoutService) Checkout(ctx context.Context, userID, idempotencyKey string) (*domain.Order, error) {
	if idempotencyKey != "" {
		existing, err := s.orders.GetOrderByIdempotencyKey(ctx, userID, idempotencyKey)
		if err == nil {
			s.log.Info("duplicate checkout request",
				zap.String("user_id", userID),
				zap.String("idempotency_key", idempotencyKey),
				zap.String("order_id", existing.ID.String()))
			return existing, nil
		}
		if !errors.Is(err, repository.ErrOrderNotFound) {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	state := domain.CheckoutStateValidating

	cart, err := s.carts.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		s.transition(userID, state, domain.CheckoutStateFailed)
		return nil, ErrEmptyCart
	}
	if err != nil {
		s.transition(userID, state, domain.CheckoutStateFailed)
		return nil, err
	}
	if len(cart.Lines) == 0 {
		s.transition(userID, state, domain.CheckoutStateFailed)
		return nil, ErrEmptyCart
	}

	state = s.transition(userID, state, domain.CheckoutStateStockChecking)
	if err := s.checkStock(ctx, cart); err != nil {
		s.transition(userID, state, domain.CheckoutStateFailed)
		return nil, err
	}

	// Order snapshot copies the cart lines verbatim: the denormalized
	// price/name/category as stored, not re-fetched.
	state = s.transition(userID, state, domain.CheckoutStateOrderCreating)
	order := domain.OrderFromCart(cart, idempotencyKey)

	state = s.transition(userID, state, domain.CheckoutStateStockDecrement)
	if err := s.decrementStock(ctx, cart); err != nil {
		s.transition(userID, state, domain.CheckoutStateFailed)
		return nil, err
	}

	// Stock is committed; persist the order (with its outbox event) and
	// give the stock back if that fails.
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		s.restock(ctx, cart.Lines)
		s.transition(userID, state, domain.CheckoutStateFailed)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	state = s.transition(userID, state, domain.CheckoutStateCartClearing)
	s.clearCart(ctx, cart)
	s.transition(userID, state, domain.CheckoutStateDone)

	s.log.Info("checkout completed",
		zap.String("user_id", userID),
		zap.String("order_id", order.ID.String()),
		zap.Float64("total_price", order.TotalPrice),
		zap.Int("total_items", order.TotalItems))

	return order, nil
}

// GetOrder returns one of the user's orders.
func (s *CheckoutService) GetOrder(ctx context.Context, userID string, orderID string) (*domain.Order, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	order, err := s.orders.GetOrder(ctx, userID, id)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders returns the user's order history, newest first.
func (s *CheckoutService) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.orders.ListOrders(ctx, userID)
}

// checkStock re-resolves every product live to catch depletion between
// cart-build time and checkout time.
func (s *CheckoutService) checkStock(ctx context.Context, cart *domain.Cart) error {
	for _, line := range cart.Lines {
		product, err := s.catalog.GetProduct(ctx, line.ProductID)
		if errors.Is(err, repository.ErrProductNotFound) {
			return ErrProductGone
		}
		if err != nil {
			return err
		}
		if product.Stock < line.Quantity {
			return ErrInsufficientStock
		}
	}
	return nil
}

// decrementStock applies the conditional decrements line by line. A
// failure restocks every line already decremented before returning.
func (s *CheckoutService) decrementStock(ctx context.Context, cart *domain.Cart) error {
	done := make([]domain.CartLine, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		err := s.catalog.DecrementStock(ctx, line.ProductID, line.Quantity)
		if err == nil {
			done = append(done, line)
			continue
		}

		s.restock(ctx, done)

		if errors.Is(err, repository.ErrProductNotFound) {
			return ErrProductGone
		}
		if errors.Is(err, repository.ErrInsufficientStock) {
			return ErrInsufficientStock
		}
		return err
	}
	return nil
}

func (s *CheckoutService) restock(ctx context.Context, lines []domain.CartLine) {
	for _, line := range lines {
		if err := s.catalog.IncrementStock(ctx, line.ProductID, line.Quantity); err != nil {
			s.log.Error("failed to restock after checkout failure",
				zap.String("product_id", line.ProductID),
				zap.Int("quantity", line.Quantity),
				zap.Error(err))
		}
	}
}

// clearCart empties the cart in place, re-reading and retrying once when
// a cross-process writer bumped the version. The order already exists at
// this point, so a failure here is logged rather than failing the
// checkout; the next cart mutation recomputes from the stored state.
func (s *CheckoutService) clearCart(ctx context.Context, cart *domain.Cart) {
	for attempt := 0; ; attempt++ {
		cart.Lines = []domain.CartLine{}
		cart.ResetCoupon()
		cart.Recompute()

		err := s.carts.UpsertCart(ctx, cart)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrVersionConflict) && attempt == 0 {
			fresh, readErr := s.carts.GetCart(ctx, cart.UserID)
			if readErr == nil {
				cart = fresh
				continue
			}
		}
		s.log.Error("failed to clear cart after checkout",
			zap.String("user_id", cart.UserID),
			zap.Error(err))
		return
	}

	deleteCtx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := s.cache.Delete(deleteCtx, cart.UserID); err != nil {
		s.log.Warn("cache invalidate failed", zap.String("user_id", cart.UserID), zap.Error(err))
	}
}

func (s *CheckoutService) transition(userID string, from, to domain.CheckoutState) domain.CheckoutState {
	if !domain.CanTransitionTo(from, to) {
		// Transitions are fixed at compile time; a bad one is a bug.
		s.log.Error("illegal checkout transition",
			zap.String("user_id", userID),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
		return from
	}
	s.log.Debug("checkout transition",
		zap.String("user_id", userID),
		zap.String("from", from.String()),
		zap.String("to", to.String()))
	return to
}
