package models

// DiscountClass is a capability the host pricing pipeline enables per
// invocation.
type DiscountClass string

const (
	ClassOrder    DiscountClass = "ORDER"
	ClassProduct  DiscountClass = "PRODUCT"
	ClassShipping DiscountClass = "SHIPPING"
)

// SelectionStrategy tells the platform how to choose among candidates of a
// single operation.
type SelectionStrategy string

const (
	SelectionFirst SelectionStrategy = "FIRST"
	SelectionAll   SelectionStrategy = "ALL"
)

// Percentage is a whole-number percentage discount value.
type Percentage struct {
	Value float64 `json:"value"`
}

// FixedAmount is a fixed monetary discount value in the shop currency.
type FixedAmount struct {
	Amount float64 `json:"amount"`
}

// DiscountValue is either a percentage or a fixed amount.
type DiscountValue struct {
	Percentage  *Percentage  `json:"percentage,omitempty"`
	FixedAmount *FixedAmount `json:"fixedAmount,omitempty"`
}

// CartLineTarget aims a candidate at one cart line.
type CartLineTarget struct {
	ID string `json:"id"`
}

// OrderSubtotalTarget aims a candidate at the order subtotal.
type OrderSubtotalTarget struct {
	ExcludedCartLineIDs []string `json:"excludedCartLineIds"`
}

// DeliveryGroupTarget aims a candidate at one delivery group.
type DeliveryGroupTarget struct {
	ID string `json:"id"`
}

// DiscountTarget is the union of candidate target shapes.
type DiscountTarget struct {
	CartLine      *CartLineTarget      `json:"cartLine,omitempty"`
	OrderSubtotal *OrderSubtotalTarget `json:"orderSubtotal,omitempty"`
	DeliveryGroup *DeliveryGroupTarget `json:"deliveryGroup,omitempty"`
}

// DiscountCandidate is one concrete discount a planning pass proposes.
type DiscountCandidate struct {
	Message string           `json:"message"`
	Targets []DiscountTarget `json:"targets"`
	Value   DiscountValue    `json:"value"`
}

// DiscountsAdd groups candidates under a selection strategy.
type DiscountsAdd struct {
	Candidates        []DiscountCandidate `json:"candidates"`
	SelectionStrategy SelectionStrategy   `json:"selectionStrategy"`
}

// Operation is one entry of the result list handed back to the host
// checkout pipeline. Exactly one field is set.
type Operation struct {
	OrderDiscountsAdd    *DiscountsAdd `json:"orderDiscountsAdd,omitempty"`
	ProductDiscountsAdd  *DiscountsAdd `json:"productDiscountsAdd,omitempty"`
	DeliveryDiscountsAdd *DiscountsAdd `json:"deliveryDiscountsAdd,omitempty"`
}

// OperationsResult is the wire shape of a discount computation response.
type OperationsResult struct {
	Operations []Operation `json:"operations"`
}
