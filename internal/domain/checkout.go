package domain

// CheckoutState tracks the single cart-to-order transition.
type CheckoutState string

const (
	CheckoutStateValidating     CheckoutState = "VALIDATING"
	CheckoutStateStockChecking  CheckoutState = "STOCK_CHECKING"
	CheckoutStateOrderCreating  CheckoutState = "ORDER_CREATING"
	CheckoutStateStockDecrement CheckoutState = "STOCK_DECREMENTING"
	CheckoutStateCartClearing   CheckoutState = "CART_CLEARING"
	CheckoutStateDone           CheckoutState = "DONE"
	CheckoutStateFailed         CheckoutState = "FAILED"
)

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutStateValidating:     {CheckoutStateStockChecking, CheckoutStateFailed},
	CheckoutStateStockChecking:  {CheckoutStateOrderCreating, CheckoutStateFailed},
	CheckoutStateOrderCreating:  {CheckoutStateStockDecrement},
	CheckoutStateStockDecrement: {CheckoutStateCartClearing, CheckoutStateFailed},
	CheckoutStateCartClearing:   {CheckoutStateDone},
}

// CanTransitionTo reports whether the checkout may move from one state
// to the next.
func CanTransitionTo(from, to CheckoutState) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateDone || s == CheckoutStateFailed
}

func (s CheckoutState) String() string {
	return string(s)
}
