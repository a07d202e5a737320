package domain

import "strings"

// CouponValidator decides whether a code grants the cross-category
// discount. The consumer defines the interface so a real coupon service
// can replace the built-in allow-list without touching the pricing policy.
type CouponValidator interface {
	IsValidDiscountCoupon(code string) bool
}

// NormalizeCouponCode uppercases and trims a code; codes are matched and
// stored in this form.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type fixedCouponSet map[string]struct{}

func (s fixedCouponSet) IsValidDiscountCoupon(code string) bool {
	_, ok := s[NormalizeCouponCode(code)]
	return ok
}

// NewFixedCouponSet builds a validator from a static list of codes.
func NewFixedCouponSet(codes ...string) CouponValidator {
	s := make(fixedCouponSet, len(codes))
	for _, c := range codes {
		s[NormalizeCouponCode(c)] = struct{}{}
	}
	return s
}

// DefaultCouponSet returns the built-in allow-list.
func DefaultCouponSet() CouponValidator {
	return NewFixedCouponSet("SAVE10", "DISCOUNT10", "BUNDLE10")
}
