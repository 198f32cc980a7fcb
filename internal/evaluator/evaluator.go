// Package evaluator decides which campaigns are currently satisfied by a
// cart. It is a pure function of its inputs: no I/O, no shared state, safe
// to call concurrently for independent checkout sessions. The same pass is
// run server-side (authoritative pricing) and client-side (gift
// reconciliation), so both reach the same answer from the same persisted
// campaign state.
package evaluator

import (
	"time"

	"cart-promotion-engine/internal/campaign"
	"cart-promotion-engine/internal/models"
)

// GoalSatisfaction records one satisfied goal and the concrete reward the
// planner or reconciler may act on.
type GoalSatisfaction struct {
	CampaignID   string
	CampaignName string
	CampaignType models.CampaignType
	Priority     int
	TrackType    models.TrackType
	Goal         models.Goal

	// RewardIDs are the reward variant ids this goal may still claim after
	// higher-priority campaigns took theirs.
	RewardIDs []string

	// MetricValue is the tracked metric at evaluation time (subtotal or
	// quantity for tiered goals, matched buy quantity or spend for bxgy).
	MetricValue float64
}

// Evaluate runs the full eligibility and satisfaction pass: status filter,
// date window, priority sort, per-goal condition checks, and the
// cross-campaign reward claim set. Satisfactions come back in priority
// order.
func Evaluate(campaigns []models.Campaign, cart models.CartSnapshot, now time.Time, shopTZOffsetMinutes int) []GoalSatisfaction {
	eligible := campaign.Eligible(campaigns, now, shopTZOffsetMinutes)
	if len(eligible) == 0 {
		return nil
	}

	knownRewards := campaign.KnownRewardIDs(eligible)
	claimed := make(map[string]bool)

	var out []GoalSatisfaction
	for _, c := range eligible {
		switch c.CampaignType {
		case models.CampaignTypeTiered:
			out = append(out, evaluateTiered(c, cart, claimed)...)
		case models.CampaignTypeBXGY:
			out = append(out, evaluateBXGY(c, cart, knownRewards, claimed)...)
		default:
			// Unrecognized campaign type: skip, never fail.
		}
	}
	return out
}

// TieredMetric computes the shared milestone metric for a tiered campaign:
// cart subtotal or total quantity, excluding reward-tagged lines so a gift
// can never push the cart over its own milestone.
func TieredMetric(track models.TrackType, cart models.CartSnapshot) float64 {
	var subtotal, quantity float64
	for _, l := range cart.Lines {
		if l.IsRewardLine() {
			continue
		}
		subtotal += l.Subtotal()
		quantity += float64(l.Quantity)
	}
	if track == models.TrackQuantity {
		return quantity
	}
	return subtotal
}

func evaluateTiered(c models.Campaign, cart models.CartSnapshot, claimed map[string]bool) []GoalSatisfaction {
	metric := TieredMetric(c.TrackType, cart)

	var out []GoalSatisfaction
	for _, g := range c.Goals {
		switch g.Type {
		case models.GoalFreeProduct, models.GoalOrderDiscount, models.GoalFreeShipping:
		default:
			continue
		}
		if metric < g.Target.Float() {
			continue
		}
		sat := GoalSatisfaction{
			CampaignID:   c.ID,
			CampaignName: c.CampaignName,
			CampaignType: c.CampaignType,
			Priority:     c.Priority,
			TrackType:    c.TrackType,
			Goal:         g,
			MetricValue:  metric,
		}
		if g.Type == models.GoalFreeProduct {
			sat.RewardIDs = claimRewards(g.Products, claimed)
			if len(sat.RewardIDs) == 0 {
				// All reward products already locked by higher priority.
				continue
			}
		}
		out = append(out, sat)
	}
	return out
}

func evaluateBXGY(c models.Campaign, cart models.CartSnapshot, knownRewards, claimed map[string]bool) []GoalSatisfaction {
	var out []GoalSatisfaction
	for _, g := range c.Goals {
		met, metric := buyConditionMet(g, cart, knownRewards)
		if !met {
			continue
		}
		rewards := claimRewards(g.GetProducts, claimed)
		if len(rewards) == 0 {
			continue
		}
		out = append(out, GoalSatisfaction{
			CampaignID:   c.ID,
			CampaignName: c.CampaignName,
			CampaignType: c.CampaignType,
			Priority:     c.Priority,
			TrackType:    c.TrackType,
			Goal:         g,
			RewardIDs:    rewards,
			MetricValue:  metric,
		})
	}
	return out
}

// buyConditionMet checks a bxgy goal's buy condition against the cart.
// Reward-tagged lines never count (self-reference exclusion), and for
// storewide mode neither do zero-cost lines nor lines matching any known
// reward variant.
func buyConditionMet(g models.Goal, cart models.CartSnapshot, knownRewards map[string]bool) (bool, float64) {
	switch g.BXGYMode {
	case models.BXGYModeProduct:
		// Every required buy product must individually reach the minimum.
		if len(g.BuyProducts) == 0 {
			return false, 0
		}
		var total float64
		for _, p := range g.BuyProducts {
			qty := 0
			for _, l := range cart.Lines {
				if !l.IsRewardLine() && l.VariantID == p.ID {
					qty += l.Quantity
				}
			}
			if qty < g.BuyQty.Int() {
				return false, float64(qty)
			}
			total += float64(qty)
		}
		return true, total

	case models.BXGYModeCollection:
		var qty float64
		for _, l := range cart.Lines {
			if l.IsRewardLine() {
				continue
			}
			if l.InAnyCollection(collectionIDs(g.BuyCollections)) {
				qty += float64(l.Quantity)
			}
		}
		return qty >= float64(g.BuyQty.Int()), qty

	case models.BXGYModeSpendAnyCollection:
		var spend float64
		for _, l := range cart.Lines {
			if l.IsRewardLine() {
				continue
			}
			if l.InAnyCollection(collectionIDs(g.BuyCollections)) {
				spend += l.Subtotal()
			}
		}
		return spend >= g.SpendAmount.Float(), spend

	case models.BXGYModeAll:
		var qty float64
		for _, l := range cart.Lines {
			if l.IsRewardLine() || l.UnitCost.Float() <= 0 || knownRewards[l.VariantID] {
				continue
			}
			qty += float64(l.Quantity)
		}
		return qty >= float64(g.BuyQty.Int()), qty

	default:
		// Unknown mode is a no-op condition.
		return false, 0
	}
}

// claimRewards filters refs down to reward ids not yet claimed by a
// higher-priority campaign, and marks the survivors claimed.
func claimRewards(refs []models.ProductRef, claimed map[string]bool) []string {
	var out []string
	for _, p := range refs {
		if p.ID == "" || claimed[p.ID] {
			continue
		}
		claimed[p.ID] = true
		out = append(out, p.ID)
	}
	return out
}

func collectionIDs(refs []models.CollectionRef) []string {
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	return ids
}
