package validation

import (
	"fmt"
	"strings"
	"unicode"

	"cart-promotion-engine/internal/models"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ValidateCampaign checks a campaign for the save path. This guards the
// admin write endpoint only; the evaluation path never validates, it
// degrades (a malformed campaign simply never matches).
func ValidateCampaign(c models.Campaign) error {
	switch c.CampaignType {
	case models.CampaignTypeTiered, models.CampaignTypeBXGY:
	default:
		return &ValidationError{Field: "campaignType", Message: "must be 'tiered' or 'bxgy'"}
	}

	switch c.Status {
	case models.StatusDraft, models.StatusActive:
	default:
		return &ValidationError{Field: "status", Message: "must be 'draft' or 'active'"}
	}

	if c.CampaignName == "" {
		return &ValidationError{Field: "campaignName", Message: "is required"}
	}

	if c.CampaignType == models.CampaignTypeTiered {
		switch c.TrackType {
		case models.TrackCart, models.TrackQuantity:
		default:
			return &ValidationError{Field: "trackType", Message: "must be 'cart' or 'quantity'"}
		}
	}

	if c.CampaignType == models.CampaignTypeBXGY && len(c.Goals) != 1 {
		return &ValidationError{Field: "goals", Message: "bxgy campaigns must have exactly one goal"}
	}

	if c.ActiveDates != nil {
		if err := validateActiveDates(*c.ActiveDates); err != nil {
			return err
		}
	}

	for i, g := range c.Goals {
		if err := validateGoal(c.CampaignType, g); err != nil {
			if ve, ok := err.(*ValidationError); ok {
				ve.Field = fmt.Sprintf("goals[%d].%s", i, ve.Field)
			}
			return err
		}
	}

	return nil
}

func validateActiveDates(d models.ActiveDates) error {
	if d.Start == nil || d.Start.Date == "" {
		return &ValidationError{Field: "activeDates.start", Message: "is required"}
	}
	if d.HasEndDate {
		if d.End == nil || d.End.Date == "" {
			return &ValidationError{Field: "activeDates.end", Message: "is required when hasEndDate is set"}
		}
		if d.End.Date < d.Start.Date {
			return &ValidationError{Field: "activeDates.end", Message: "must not precede start"}
		}
	}
	return nil
}

func validateGoal(ct models.CampaignType, g models.Goal) error {
	if ct == models.CampaignTypeTiered {
		switch g.Type {
		case models.GoalFreeProduct, models.GoalOrderDiscount, models.GoalFreeShipping:
		default:
			return &ValidationError{Field: "type", Message: "unknown goal type"}
		}
		if g.Target.Float() < 0 {
			return &ValidationError{Field: "target", Message: "must be non-negative"}
		}
		if g.Type == models.GoalFreeProduct {
			if len(g.Products) == 0 {
				return &ValidationError{Field: "products", Message: "at least one reward product is required"}
			}
			if g.GiftQty.Int() < 1 {
				return &ValidationError{Field: "giftQty", Message: "must be at least 1"}
			}
		}
		if g.Type == models.GoalOrderDiscount {
			return validateDiscount(g.DiscountType, g.DiscountValue.Float(), false)
		}
		return nil
	}

	switch g.BXGYMode {
	case models.BXGYModeProduct:
		if len(g.BuyProducts) == 0 {
			return &ValidationError{Field: "buyProducts", Message: "at least one buy product is required"}
		}
	case models.BXGYModeCollection, models.BXGYModeSpendAnyCollection:
		if len(g.BuyCollections) == 0 {
			return &ValidationError{Field: "buyCollections", Message: "at least one buy collection is required"}
		}
	case models.BXGYModeAll:
	default:
		return &ValidationError{Field: "bxgyMode", Message: "unknown mode"}
	}

	if g.BXGYMode == models.BXGYModeSpendAnyCollection {
		if g.SpendAmount.Float() <= 0 {
			return &ValidationError{Field: "spendAmount", Message: "must be positive"}
		}
	} else if g.BuyQty.Int() < 1 {
		return &ValidationError{Field: "buyQty", Message: "must be at least 1"}
	}

	if len(g.GetProducts) == 0 {
		return &ValidationError{Field: "getProducts", Message: "at least one reward product is required"}
	}
	if g.GetQty.Int() < 1 {
		return &ValidationError{Field: "getQty", Message: "must be at least 1"}
	}

	return validateDiscount(g.DiscountType, g.DiscountValue.Float(), true)
}

func validateDiscount(dt models.DiscountType, value float64, allowFree bool) error {
	switch dt {
	case models.DiscountPercentage:
		if value < 0 || value > 100 {
			return &ValidationError{Field: "discountValue", Message: "percentage must be within [0,100]"}
		}
	case models.DiscountAmount, models.DiscountFixed:
		if value < 0 {
			return &ValidationError{Field: "discountValue", Message: "must be non-negative"}
		}
	case models.DiscountFreeProduct:
		if !allowFree {
			return &ValidationError{Field: "discountType", Message: "free_product is not valid here"}
		}
	default:
		return &ValidationError{Field: "discountType", Message: "unknown discount type"}
	}
	return nil
}

// SanitizeString strips control characters and surrounding whitespace.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}
