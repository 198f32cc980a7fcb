package models

// Attribute is a key/value pair attached to a cart line.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Reward-line tag keys. The storefront scripts historically wrote both the
// prefixed and un-prefixed spelling, so reads accept all of them; writes use
// the canonical keys.
const (
	AttrFreeGift       = "isFreeGift"
	AttrFreeGiftLegacy = "_isFreeGift"
	AttrBXGYGift       = "isBXGYGift"
)

// CartLine is a single line of a cart snapshot.
type CartLine struct {
	LineID        string      `json:"lineId"`
	VariantID     string      `json:"variantId"`
	Quantity      int         `json:"quantity"`
	UnitCost      FlexFloat   `json:"unitCost"`
	Attributes    []Attribute `json:"attributes,omitempty"`
	CollectionIDs []string    `json:"collectionIds,omitempty"`
}

// DeliveryGroup is one shipping group of the cart.
type DeliveryGroup struct {
	ID string `json:"id"`
}

// CartSnapshot is a point-in-time view of the live cart.
type CartSnapshot struct {
	Lines          []CartLine      `json:"items"`
	DeliveryGroups []DeliveryGroup `json:"deliveryGroups,omitempty"`
}

// HasAttribute reports whether the line carries key with the given value.
func (l CartLine) HasAttribute(key, value string) bool {
	for _, a := range l.Attributes {
		if a.Key == key && a.Value == value {
			return true
		}
	}
	return false
}

// IsTieredGift reports whether the line is tagged as a tiered-campaign gift.
func (l CartLine) IsTieredGift() bool {
	return l.HasAttribute(AttrFreeGift, "true") || l.HasAttribute(AttrFreeGiftLegacy, "true")
}

// IsBXGYGift reports whether the line is tagged as a bxgy reward.
func (l CartLine) IsBXGYGift() bool {
	return l.HasAttribute(AttrBXGYGift, "true")
}

// IsRewardLine reports whether the line is tagged as any campaign's reward.
// Reward lines never count toward buy conditions.
func (l CartLine) IsRewardLine() bool {
	return l.IsTieredGift() || l.IsBXGYGift()
}

// Subtotal is the line's price contribution (unit cost times quantity).
func (l CartLine) Subtotal() float64 {
	return l.UnitCost.Float() * float64(l.Quantity)
}

// InAnyCollection reports whether the line's product belongs to any of the
// given collections.
func (l CartLine) InAnyCollection(ids []string) bool {
	for _, want := range ids {
		for _, have := range l.CollectionIDs {
			if want == have {
				return true
			}
		}
	}
	return false
}

// RewardLines returns the cart's reward-tagged lines.
func (c CartSnapshot) RewardLines() []CartLine {
	var out []CartLine
	for _, l := range c.Lines {
		if l.IsRewardLine() {
			out = append(out, l)
		}
	}
	return out
}

// FindLine returns the first line for the given variant that satisfies the
// match function, or nil.
func (c CartSnapshot) FindLine(variantID string, match func(CartLine) bool) *CartLine {
	for i := range c.Lines {
		l := c.Lines[i]
		if l.VariantID == variantID && (match == nil || match(l)) {
			return &l
		}
	}
	return nil
}
