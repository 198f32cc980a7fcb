package models

// CampaignType discriminates the two supported campaign shapes.
type CampaignType string

const (
	CampaignTypeTiered CampaignType = "tiered"
	CampaignTypeBXGY   CampaignType = "bxgy"
)

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	StatusDraft  CampaignStatus = "draft"
	StatusActive CampaignStatus = "active"
)

// TrackType selects the metric a tiered campaign measures the cart by.
type TrackType string

const (
	TrackCart     TrackType = "cart"
	TrackQuantity TrackType = "quantity"
)

// GoalType identifies a tiered milestone goal.
type GoalType string

const (
	GoalFreeProduct   GoalType = "free_product"
	GoalOrderDiscount GoalType = "order_discount"
	GoalFreeShipping  GoalType = "free_shipping"
)

// BXGYMode defines how a buy-x-get-y campaign matches its buy condition.
type BXGYMode string

const (
	BXGYModeProduct            BXGYMode = "product"
	BXGYModeCollection         BXGYMode = "collection"
	BXGYModeSpendAnyCollection BXGYMode = "spend_any_collection"
	BXGYModeAll                BXGYMode = "all"
)

// DiscountType is the pricing effect of a goal.
type DiscountType string

const (
	DiscountFreeProduct DiscountType = "free_product"
	DiscountPercentage  DiscountType = "percentage"
	DiscountAmount      DiscountType = "amount"
	DiscountFixed       DiscountType = "fixed"
)

// ProductRef points at a product variant offered as a reward or required
// as a buy condition.
type ProductRef struct {
	ID           string `json:"id"`
	ProductTitle string `json:"productTitle,omitempty"`
}

// CollectionRef points at a product collection used by bxgy buy conditions.
type CollectionRef struct {
	ID string `json:"id"`
}

// DateOnly is the admin UI's calendar-date shape, e.g. {"date":"2025-01-01"}.
type DateOnly struct {
	Date string `json:"date"`
}

// ActiveDates is an optional campaign eligibility window interpreted in the
// shop's local timezone.
type ActiveDates struct {
	Start      *DateOnly `json:"start,omitempty"`
	End        *DateOnly `json:"end,omitempty"`
	HasEndDate bool      `json:"hasEndDate"`
}

// Goal holds the union of tiered-milestone and bxgy-rule fields. Which
// subset is populated depends on the owning campaign's type.
type Goal struct {
	// Tiered milestone fields.
	Type     GoalType     `json:"type,omitempty"`
	Target   FlexFloat    `json:"target,omitempty"`
	GiftQty  FlexInt      `json:"giftQty,omitempty"`
	Products []ProductRef `json:"products,omitempty"`

	// BXGY rule fields.
	BXGYMode       BXGYMode        `json:"bxgyMode,omitempty"`
	BuyQty         FlexInt         `json:"buyQty,omitempty"`
	BuyProducts    []ProductRef    `json:"buyProducts,omitempty"`
	BuyCollections []CollectionRef `json:"buyCollections,omitempty"`
	SpendAmount    FlexFloat       `json:"spendAmount,omitempty"`
	GetQty         FlexInt         `json:"getQty,omitempty"`
	GetProducts    []ProductRef    `json:"getProducts,omitempty"`

	// Shared pricing fields.
	DiscountType  DiscountType `json:"discountType,omitempty"`
	DiscountValue FlexFloat    `json:"discountValue,omitempty"`
}

// Campaign is one promotional campaign as persisted in the shop's campaign
// document.
type Campaign struct {
	ID           string         `json:"id"`
	CampaignName string         `json:"campaignName"`
	CampaignType CampaignType   `json:"campaignType"`
	Status       CampaignStatus `json:"status"`
	Priority     int            `json:"priority"`
	TrackType    TrackType      `json:"trackType,omitempty"`
	ActiveDates  *ActiveDates   `json:"activeDates,omitempty"`
	Goals        []Goal         `json:"goals"`
}

// CampaignDocument is the shop-level JSON blob holding the ordered campaign
// list.
type CampaignDocument struct {
	Campaigns []Campaign `json:"campaigns"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
