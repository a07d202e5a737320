package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
)

// CartService owns the per-user cart aggregate. Every mutation loads or
// creates the cart, applies the change, recomputes the derived pricing
// fields and persists the whole document under the user's lock.
type CartService struct {
	carts   repository.CartRepository
	catalog repository.CatalogRepository
	coupons domain.CouponValidator
	cache   cache.CartCache
	locks   *UserLocks
	log     *zap.Logger
	sfg     singleflight.Group // Prevents cache stampede
}

func NewCartService(
	carts repository.CartRepository,
	catalog repository.CatalogRepository,
	coupons domain.CouponValidator,
	cartCache cache.CartCache,
	locks *UserLocks,
	log *zap.Logger,
) *CartService {
	return &CartService{
		carts:   carts,
		catalog: catalog,
		coupons: coupons,
		cache:   cartCache,
		locks:   locks,
		log:     log,
	}
}

// GetCart returns the user's cart, creating an empty one on first read.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to collapse concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cache get failed", zap.String("user_id", userID), zap.Error(err))
		}

		cart, err = s.loadOrCreate(ctx, userID)
		if err != nil {
			return nil, err
		}

		// Carts are created lazily on first read; persist the fresh one
		// so later operations find it. Losing the insert race to a
		// concurrent first write just means re-reading the winner.
		if cart.Version == 0 {
			if errUpsert := s.carts.UpsertCart(ctx, cart); errUpsert != nil {
				if !errors.Is(errUpsert, repository.ErrVersionConflict) {
					return nil, errUpsert
				}
				if cart, err = s.carts.GetCart(ctx, userID); err != nil {
					return nil, err
				}
			}
		}

		go func() {
			cacheCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := s.cache.Set(cacheCtx, userID, cart); errSet != nil {
				s.log.Warn("cache set failed", zap.String("user_id", userID), zap.Error(errSet))
			}
		}()

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem appends a snapshot line for the product or bumps the quantity
// of an existing line. The stock check covers only the requested delta;
// checkout re-validates the full quantity against live stock.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	if quantity > product.Stock {
		return nil, ErrInsufficientStock
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	return s.mutate(ctx, userID, s.loadOrCreate, func(cart *domain.Cart) error {
		if i := cart.LineIndex(productID); i >= 0 {
			cart.Lines[i].Quantity += quantity
			return nil
		}
		cart.Lines = append(cart.Lines, domain.CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			Category:  product.Category,
			Price:     product.Price,
			Quantity:  quantity,
			AddedAt:   time.Now(),
		})
		return nil
	})
}

// UpdateItem sets the line's quantity to the given absolute value.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	return s.mutate(ctx, userID, s.requireCart, func(cart *domain.Cart) error {
		i := cart.LineIndex(productID)
		if i < 0 {
			return ErrItemNotFound
		}
		cart.Lines[i].Quantity = quantity
		return nil
	})
}

// RemoveItem drops the whole line for the product. The stored coupon
// survives even when the removal loses discount eligibility; only the
// recomputed discount fields change.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	return s.mutate(ctx, userID, s.requireCart, func(cart *domain.Cart) error {
		i := cart.LineIndex(productID)
		if i < 0 {
			return ErrItemNotFound
		}
		cart.Lines = append(cart.Lines[:i], cart.Lines[i+1:]...)
		return nil
	})
}

// ClearCart empties the cart in place, including coupon state.
func (s *CartService) ClearCart(ctx context.Context, userID string) (*domain.Cart, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	return s.mutate(ctx, userID, s.requireCart, func(cart *domain.Cart) error {
		cart.Lines = []domain.CartLine{}
		cart.ResetCoupon()
		return nil
	})
}

// ApplyCoupon validates the code against the registry, stores it in
// normalized form and recomputes the discount. The code never changes
// the discount magnitude; eligibility still depends on the line set.
func (s *CartService) ApplyCoupon(ctx context.Context, userID, code string) (*domain.Cart, error) {
	normalized := domain.NormalizeCouponCode(code)
	if normalized == "" || !s.coupons.IsValidDiscountCoupon(normalized) {
		return nil, ErrInvalidCoupon
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	load := func(ctx context.Context, userID string) (*domain.Cart, error) {
		cart, err := s.requireCart(ctx, userID)
		if errors.Is(err, ErrCartNotFound) {
			return nil, ErrEmptyCart
		}
		return cart, err
	}

	return s.mutate(ctx, userID, load, func(cart *domain.Cart) error {
		if len(cart.Lines) == 0 {
			return ErrEmptyCart
		}
		if cart.CouponApplied {
			return ErrCouponAlreadyApplied
		}
		cart.CouponCode = normalized
		cart.CouponApplied = true
		return nil
	})
}

// RemoveCoupon clears the active coupon; the discount recomputes to 0.
func (s *CartService) RemoveCoupon(ctx context.Context, userID string) (*domain.Cart, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	load := func(ctx context.Context, userID string) (*domain.Cart, error) {
		cart, err := s.requireCart(ctx, userID)
		if errors.Is(err, ErrCartNotFound) {
			return nil, ErrNoCouponApplied
		}
		return cart, err
	}

	return s.mutate(ctx, userID, load, func(cart *domain.Cart) error {
		if !cart.CouponApplied {
			return ErrNoCouponApplied
		}
		cart.ResetCoupon()
		return nil
	})
}

// loadOrCreate returns the stored cart or a fresh empty one. The empty
// cart is not persisted until the first write.
func (s *CartService) loadOrCreate(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return domain.NewCart(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartService) requireCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// mutate loads the cart, applies the change and persists it. The
// per-user lock serializes writers in this process, but a writer in
// another process can still slip between our read and write; that
// surfaces as a version conflict, and the change is re-applied once on
// a fresh read before the conflict is given back to the caller.
func (s *CartService) mutate(
	ctx context.Context,
	userID string,
	load func(context.Context, string) (*domain.Cart, error),
	apply func(*domain.Cart) error,
) (*domain.Cart, error) {
	for attempt := 0; ; attempt++ {
		cart, err := load(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := apply(cart); err != nil {
			return nil, err
		}

		saved, err := s.saveCart(ctx, cart)
		if errors.Is(err, repository.ErrVersionConflict) && attempt == 0 {
			s.log.Debug("cart version conflict, retrying", zap.String("user_id", userID))
			continue
		}
		return saved, err
	}
}

// saveCart recomputes derived fields, persists and invalidates the cache.
func (s *CartService) saveCart(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	cart.Recompute()

	if err := s.carts.UpsertCart(ctx, cart); err != nil {
		return nil, err
	}

	s.invalidateCache(cart.UserID)
	return cart, nil
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn("cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}
