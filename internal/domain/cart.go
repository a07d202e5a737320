package domain

import "time"

// CartLine holds a snapshot of the product taken when the line was added.
// Price, name and category are deliberately denormalized: later catalog
// changes do not affect lines already in a cart.
type CartLine struct {
	ProductID string    `bson:"product_id" json:"product_id"`
	Name      string    `bson:"name" json:"name"`
	Category  string    `bson:"category" json:"category"`
	Price     float64   `bson:"price" json:"price"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	AddedAt   time.Time `bson:"added_at" json:"added_at"`
}

// Cart is the per-user aggregate. One cart per user, keyed by UserID.
// Version carries optimistic concurrency through the repository.
type Cart struct {
	ID               string     `bson:"_id,omitempty" json:"id,omitempty"`
	UserID           string     `bson:"user_id" json:"user_id"`
	Lines            []CartLine `bson:"lines" json:"lines"`
	TotalItems       int        `bson:"total_items" json:"total_items"`
	TotalPrice       float64    `bson:"total_price" json:"total_price"`
	Discount         float64    `bson:"discount" json:"discount"`
	DiscountEligible bool       `bson:"discount_eligible" json:"discount_eligible"`
	DiscountApplied  bool       `bson:"discount_applied" json:"discount_applied"`
	CouponCode       string     `bson:"coupon_code,omitempty" json:"coupon_code,omitempty"`
	CouponApplied    bool       `bson:"coupon_applied" json:"coupon_applied"`
	Version          int64      `bson:"version" json:"-"`
	CreatedAt        time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at" json:"updated_at"`
}

// NewCart returns an empty cart for the user with zeroed totals.
func NewCart(userID string) *Cart {
	now := time.Now()
	return &Cart{
		UserID:    userID,
		Lines:     []CartLine{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// LineIndex returns the index of the line for the given product, or -1.
func (c *Cart) LineIndex(productID string) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Subtotal is the pre-discount sum of price*quantity over all lines.
func (c *Cart) Subtotal() float64 {
	var sum float64
	for _, l := range c.Lines {
		sum += l.Price * float64(l.Quantity)
	}
	return sum
}

// Recompute rederives every derived field from the line set and coupon
// state. Called after every structural mutation so the invariants
// totalItems = sum(quantity) and totalPrice = subtotal - discount hold.
func (c *Cart) Recompute() {
	items := 0
	for _, l := range c.Lines {
		items += l.Quantity
	}
	c.TotalItems = items

	res := ComputeDiscount(c.Lines, c.CouponApplied)
	c.DiscountEligible = res.Eligible
	c.DiscountApplied = res.Applied
	c.Discount = res.Amount
	c.TotalPrice = Round2(c.Subtotal() - res.Amount)
}

// ResetCoupon clears the stored code and applied flag.
func (c *Cart) ResetCoupon() {
	c.CouponCode = ""
	c.CouponApplied = false
}
