// Package planner turns satisfied goals into discount operations for the
// host checkout pipeline. Like the evaluator it is pure: it inspects the
// cart, never mutates it. Reward lines are created by the reconciler; the
// planner only prices lines that already exist.
package planner

import (
	"fmt"

	"cart-promotion-engine/internal/evaluator"
	"cart-promotion-engine/internal/models"
)

// ClassSet is the discount-class capability set enabled for one invocation.
type ClassSet map[models.DiscountClass]bool

// NewClassSet builds a ClassSet from the wire list.
func NewClassSet(classes []models.DiscountClass) ClassSet {
	s := make(ClassSet, len(classes))
	for _, c := range classes {
		s[c] = true
	}
	return s
}

// Plan emits order- and line-level discount operations for the given
// satisfactions. Order discounts use the First strategy (single
// highest-priority winner, no stacking); product discounts use All, with
// each cart line claimed by at most one candidate.
func Plan(sats []evaluator.GoalSatisfaction, cart models.CartSnapshot, classes ClassSet) []models.Operation {
	var ops []models.Operation

	if classes[models.ClassOrder] {
		if cand, ok := bestOrderCandidate(sats); ok {
			ops = append(ops, models.Operation{
				OrderDiscountsAdd: &models.DiscountsAdd{
					Candidates:        []models.DiscountCandidate{cand},
					SelectionStrategy: models.SelectionFirst,
				},
			})
		}
	}

	if classes[models.ClassProduct] {
		if cands := productCandidates(sats, cart); len(cands) > 0 {
			ops = append(ops, models.Operation{
				ProductDiscountsAdd: &models.DiscountsAdd{
					Candidates:        cands,
					SelectionStrategy: models.SelectionAll,
				},
			})
		}
	}

	return ops
}

// bestOrderCandidate picks the single order discount to apply: the
// highest-priority campaign wins, and within one campaign the highest
// satisfied milestone wins.
func bestOrderCandidate(sats []evaluator.GoalSatisfaction) (models.DiscountCandidate, bool) {
	var best *evaluator.GoalSatisfaction
	for i := range sats {
		s := sats[i]
		if s.Goal.Type != models.GoalOrderDiscount {
			continue
		}
		switch {
		case best == nil:
			best = &sats[i]
		case s.Priority < best.Priority:
			best = &sats[i]
		case s.Priority == best.Priority && s.Goal.Target.Float() > best.Goal.Target.Float():
			best = &sats[i]
		}
	}
	if best == nil {
		return models.DiscountCandidate{}, false
	}

	value, label := orderValue(best.Goal)
	return models.DiscountCandidate{
		Message: fmt.Sprintf("%s – %s", label, best.CampaignName),
		Targets: []models.DiscountTarget{
			{OrderSubtotal: &models.OrderSubtotalTarget{ExcludedCartLineIDs: []string{}}},
		},
		Value: value,
	}, true
}

func orderValue(g models.Goal) (models.DiscountValue, string) {
	v := g.DiscountValue.Float()
	if g.DiscountType == models.DiscountAmount || g.DiscountType == models.DiscountFixed {
		return models.DiscountValue{FixedAmount: &models.FixedAmount{Amount: v}},
			fmt.Sprintf("%.2f OFF", v)
	}
	return models.DiscountValue{Percentage: &models.Percentage{Value: v}},
		fmt.Sprintf("%.0f%% OFF", v)
}

// productCandidates emits one candidate per distinct reward-tagged cart
// line, walking satisfactions in priority order so an earlier campaign's
// claim locks the line against later ones.
func productCandidates(sats []evaluator.GoalSatisfaction, cart models.CartSnapshot) []models.DiscountCandidate {
	claimedLines := make(map[string]bool)
	var cands []models.DiscountCandidate

	for _, s := range sats {
		switch {
		case s.CampaignType == models.CampaignTypeTiered && s.Goal.Type == models.GoalFreeProduct:
			for _, id := range s.RewardIDs {
				line := cart.FindLine(id, models.CartLine.IsTieredGift)
				if line == nil || claimedLines[line.LineID] {
					continue
				}
				claimedLines[line.LineID] = true
				cands = append(cands, models.DiscountCandidate{
					Message: giftMessage(s, id),
					Targets: []models.DiscountTarget{{CartLine: &models.CartLineTarget{ID: line.LineID}}},
					Value:   models.DiscountValue{Percentage: &models.Percentage{Value: 100}},
				})
			}

		case s.CampaignType == models.CampaignTypeBXGY:
			value, message, ok := bxgyValue(s)
			if !ok {
				continue
			}
			for _, id := range s.RewardIDs {
				line := cart.FindLine(id, models.CartLine.IsBXGYGift)
				if line == nil || claimedLines[line.LineID] {
					continue
				}
				claimedLines[line.LineID] = true
				cands = append(cands, models.DiscountCandidate{
					Message: message,
					Targets: []models.DiscountTarget{{CartLine: &models.CartLineTarget{ID: line.LineID}}},
					Value:   value,
				})
			}
		}
	}
	return cands
}

func giftMessage(s evaluator.GoalSatisfaction, variantID string) string {
	for _, p := range s.Goal.Products {
		if p.ID == variantID && p.ProductTitle != "" {
			return fmt.Sprintf("Free Gift – %s", p.ProductTitle)
		}
	}
	return fmt.Sprintf("Free Gift – %s", s.CampaignName)
}

func bxgyValue(s evaluator.GoalSatisfaction) (models.DiscountValue, string, bool) {
	v := s.Goal.DiscountValue.Float()
	switch s.Goal.DiscountType {
	case models.DiscountFreeProduct, "":
		return models.DiscountValue{Percentage: &models.Percentage{Value: 100}},
			fmt.Sprintf("Free Gift – %s", s.CampaignName), true
	case models.DiscountPercentage:
		return models.DiscountValue{Percentage: &models.Percentage{Value: v}},
			fmt.Sprintf("%.0f%% off – %s", v, s.CampaignName), true
	case models.DiscountFixed, models.DiscountAmount:
		return models.DiscountValue{FixedAmount: &models.FixedAmount{Amount: v}},
			fmt.Sprintf("%.2f off – %s", v, s.CampaignName), true
	default:
		// Unknown discount type: skip the goal, never fail.
		return models.DiscountValue{}, "", false
	}
}

// PlanDelivery is the delivery-discount pass: among satisfied free_shipping
// goals, the most advanced milestone crossed wins and every delivery group
// is waived in full.
func PlanDelivery(sats []evaluator.GoalSatisfaction, cart models.CartSnapshot) []models.Operation {
	var best *evaluator.GoalSatisfaction
	for i := range sats {
		s := sats[i]
		if s.Goal.Type != models.GoalFreeShipping {
			continue
		}
		if best == nil || s.Goal.Target.Float() > best.Goal.Target.Float() {
			best = &sats[i]
		}
	}
	if best == nil || len(cart.DeliveryGroups) == 0 {
		return nil
	}

	targets := make([]models.DiscountTarget, 0, len(cart.DeliveryGroups))
	for _, g := range cart.DeliveryGroups {
		targets = append(targets, models.DiscountTarget{
			DeliveryGroup: &models.DeliveryGroupTarget{ID: g.ID},
		})
	}
	return []models.Operation{{
		DeliveryDiscountsAdd: &models.DiscountsAdd{
			Candidates: []models.DiscountCandidate{{
				Message: "Free Shipping",
				Targets: targets,
				Value:   models.DiscountValue{Percentage: &models.Percentage{Value: 100}},
			}},
			SelectionStrategy: models.SelectionAll,
		},
	}}
}
