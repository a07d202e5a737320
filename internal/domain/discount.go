package domain

import "math"

// DiscountRate is applied to the cart subtotal when a valid coupon is
// active on a cross-category cart. All accepted coupons share this rate.
const DiscountRate = 0.10

type DiscountResult struct {
	Eligible bool
	Applied  bool
	Amount   float64
}

// ComputeDiscount is the pricing policy. A cart is eligible when its
// lines span at least two distinct categories; the discount is granted
// only when a coupon is also applied. Pure and deterministic, so it is
// safe to re-run on every mutation and on retries.
func ComputeDiscount(lines []CartLine, couponApplied bool) DiscountResult {
	if len(lines) <= 1 {
		return DiscountResult{}
	}

	categories := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		categories[l.Category] = struct{}{}
	}

	eligible := len(categories) >= 2
	if !eligible || !couponApplied {
		return DiscountResult{Eligible: eligible}
	}

	var subtotal float64
	for _, l := range lines {
		subtotal += l.Price * float64(l.Quantity)
	}

	return DiscountResult{
		Eligible: true,
		Applied:  true,
		Amount:   Round2(subtotal * DiscountRate),
	}
}

// Round2 rounds to two decimal places, matching how the totals are
// presented to clients.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
