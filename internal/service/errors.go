package service

import "errors"

// The operation contracts surface exactly these kinds; storage failures
// are wrapped and reported as generic internal errors by the transport.
var (
	ErrInvalidQuantity      = errors.New("quantity must be greater than 0")
	ErrProductNotFound      = errors.New("product not found")
	ErrInsufficientStock    = errors.New("not enough stock available")
	ErrCartNotFound         = errors.New("cart not found")
	ErrItemNotFound         = errors.New("item not found in cart")
	ErrInvalidCoupon        = errors.New("invalid coupon code")
	ErrCouponAlreadyApplied = errors.New("a coupon is already applied")
	ErrNoCouponApplied      = errors.New("no coupon applied")
	ErrEmptyCart            = errors.New("cart is empty, nothing to checkout")
	ErrProductGone          = errors.New("product no longer exists")
	ErrOrderNotFound        = errors.New("order not found")
)
