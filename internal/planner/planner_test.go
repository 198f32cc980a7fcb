package planner

import (
	"testing"
	"time"

	"cart-promotion-engine/internal/evaluator"
	"cart-promotion-engine/internal/models"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func alwaysActive() *models.ActiveDates {
	return &models.ActiveDates{Start: &models.DateOnly{Date: "2000-01-01"}}
}

func allClasses() ClassSet {
	return NewClassSet([]models.DiscountClass{models.ClassOrder, models.ClassProduct, models.ClassShipping})
}

func orderSat(campaignID string, priority int, target, value float64) evaluator.GoalSatisfaction {
	return evaluator.GoalSatisfaction{
		CampaignID:   campaignID,
		CampaignName: campaignID,
		CampaignType: models.CampaignTypeTiered,
		Priority:     priority,
		Goal: models.Goal{
			Type:          models.GoalOrderDiscount,
			Target:        models.FlexFloat(target),
			DiscountType:  models.DiscountPercentage,
			DiscountValue: models.FlexFloat(value),
		},
	}
}

func TestPlan_OrderDiscountsNeverStack(t *testing.T) {
	sats := []evaluator.GoalSatisfaction{
		orderSat("high", 1, 100, 10),
		orderSat("low", 2, 100, 50),
	}

	ops := Plan(sats, models.CartSnapshot{}, allClasses())
	if len(ops) != 1 || ops[0].OrderDiscountsAdd == nil {
		t.Fatalf("Expected a single order operation, got %+v", ops)
	}

	add := ops[0].OrderDiscountsAdd
	if add.SelectionStrategy != models.SelectionFirst {
		t.Errorf("Expected FIRST strategy, got %s", add.SelectionStrategy)
	}
	if len(add.Candidates) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(add.Candidates))
	}
	// The higher-priority campaign wins even though its discount is smaller.
	cand := add.Candidates[0]
	if cand.Value.Percentage == nil || cand.Value.Percentage.Value != 10 {
		t.Errorf("Expected the priority-1 campaign's 10%% discount, got %+v", cand.Value)
	}
}

func TestPlan_OrderDiscountTieTakesHighestMilestone(t *testing.T) {
	sats := []evaluator.GoalSatisfaction{
		orderSat("c", 1, 100, 10),
		orderSat("c", 1, 250, 20),
	}

	ops := Plan(sats, models.CartSnapshot{}, allClasses())
	cand := ops[0].OrderDiscountsAdd.Candidates[0]
	if cand.Value.Percentage.Value != 20 {
		t.Errorf("Expected the 250 milestone's 20%%, got %v", cand.Value.Percentage.Value)
	}
}

func TestPlan_FixedOrderDiscount(t *testing.T) {
	sat := orderSat("c", 1, 100, 15)
	sat.Goal.DiscountType = models.DiscountAmount

	ops := Plan([]evaluator.GoalSatisfaction{sat}, models.CartSnapshot{}, allClasses())
	cand := ops[0].OrderDiscountsAdd.Candidates[0]
	if cand.Value.FixedAmount == nil || cand.Value.FixedAmount.Amount != 15 {
		t.Errorf("Expected fixed amount 15, got %+v", cand.Value)
	}
	if cand.Targets[0].OrderSubtotal == nil {
		t.Error("Expected an order subtotal target")
	}
}

func TestPlan_ClassGating(t *testing.T) {
	sats := []evaluator.GoalSatisfaction{orderSat("c", 1, 100, 10)}

	ops := Plan(sats, models.CartSnapshot{}, NewClassSet([]models.DiscountClass{models.ClassProduct}))
	if len(ops) != 0 {
		t.Fatalf("Expected no operations without ORDER class, got %d", len(ops))
	}
}

func TestPlan_ProductCandidatesTargetTaggedLines(t *testing.T) {
	sat := evaluator.GoalSatisfaction{
		CampaignID:   "gifts",
		CampaignName: "Spend & Win",
		CampaignType: models.CampaignTypeTiered,
		Priority:     1,
		Goal: models.Goal{
			Type:     models.GoalFreeProduct,
			Products: []models.ProductRef{{ID: "v9", ProductTitle: "Tote Bag"}},
		},
		RewardIDs: []string{"v9"},
	}

	cart := models.CartSnapshot{Lines: []models.CartLine{
		{LineID: "paid", VariantID: "v9", Quantity: 1},
		{LineID: "gift", VariantID: "v9", Quantity: 1, Attributes: []models.Attribute{{Key: models.AttrFreeGift, Value: "true"}}},
	}}

	ops := Plan([]evaluator.GoalSatisfaction{sat}, cart, allClasses())
	if len(ops) != 1 || ops[0].ProductDiscountsAdd == nil {
		t.Fatalf("Expected a product operation, got %+v", ops)
	}

	add := ops[0].ProductDiscountsAdd
	if add.SelectionStrategy != models.SelectionAll {
		t.Errorf("Expected ALL strategy, got %s", add.SelectionStrategy)
	}
	cand := add.Candidates[0]
	if cand.Targets[0].CartLine.ID != "gift" {
		t.Errorf("Expected the tagged line, got %s", cand.Targets[0].CartLine.ID)
	}
	if cand.Value.Percentage.Value != 100 {
		t.Errorf("Expected 100%%, got %v", cand.Value.Percentage.Value)
	}
	if cand.Message != "Free Gift – Tote Bag" {
		t.Errorf("Unexpected message %q", cand.Message)
	}
}

func TestPlan_UntaggedRewardVariantIsNotDiscounted(t *testing.T) {
	sat := evaluator.GoalSatisfaction{
		CampaignType: models.CampaignTypeTiered,
		Goal:         models.Goal{Type: models.GoalFreeProduct, Products: []models.ProductRef{{ID: "v9"}}},
		RewardIDs:    []string{"v9"},
	}

	cart := models.CartSnapshot{Lines: []models.CartLine{{LineID: "paid", VariantID: "v9", Quantity: 2}}}

	if ops := Plan([]evaluator.GoalSatisfaction{sat}, cart, allClasses()); len(ops) != 0 {
		t.Fatalf("Expected no operations for an untagged line, got %d", len(ops))
	}
}

func TestPlan_LineClaimedByOneCampaignOnly(t *testing.T) {
	line := models.CartLine{LineID: "gift", VariantID: "v9", Quantity: 1,
		Attributes: []models.Attribute{{Key: models.AttrFreeGift, Value: "true"}}}
	cart := models.CartSnapshot{Lines: []models.CartLine{line}}

	mk := func(id string, priority int) evaluator.GoalSatisfaction {
		return evaluator.GoalSatisfaction{
			CampaignID:   id,
			CampaignType: models.CampaignTypeTiered,
			Priority:     priority,
			Goal:         models.Goal{Type: models.GoalFreeProduct, Products: []models.ProductRef{{ID: "v9"}}},
			RewardIDs:    []string{"v9"},
		}
	}

	ops := Plan([]evaluator.GoalSatisfaction{mk("first", 1), mk("second", 2)}, cart, allClasses())
	if len(ops) != 1 {
		t.Fatalf("Expected 1 operation, got %d", len(ops))
	}
	if got := len(ops[0].ProductDiscountsAdd.Candidates); got != 1 {
		t.Errorf("Expected the line claimed once, got %d candidates", got)
	}
}

func TestPlan_BXGYDiscountValues(t *testing.T) {
	mkSat := func(dt models.DiscountType, value float64) evaluator.GoalSatisfaction {
		return evaluator.GoalSatisfaction{
			CampaignID:   "bundle",
			CampaignName: "Bundle",
			CampaignType: models.CampaignTypeBXGY,
			Goal:         models.Goal{DiscountType: dt, DiscountValue: models.FlexFloat(value)},
			RewardIDs:    []string{"r1"},
		}
	}
	cart := models.CartSnapshot{Lines: []models.CartLine{
		{LineID: "reward", VariantID: "r1", Quantity: 1, Attributes: []models.Attribute{{Key: models.AttrBXGYGift, Value: "true"}}},
	}}

	pct := Plan([]evaluator.GoalSatisfaction{mkSat(models.DiscountPercentage, 25)}, cart, allClasses())
	if v := pct[0].ProductDiscountsAdd.Candidates[0].Value.Percentage.Value; v != 25 {
		t.Errorf("Expected 25%%, got %v", v)
	}

	free := Plan([]evaluator.GoalSatisfaction{mkSat("", 0)}, cart, allClasses())
	if v := free[0].ProductDiscountsAdd.Candidates[0].Value.Percentage.Value; v != 100 {
		t.Errorf("Expected 100%% for free_product, got %v", v)
	}

	fixed := Plan([]evaluator.GoalSatisfaction{mkSat(models.DiscountFixed, 5)}, cart, allClasses())
	if a := fixed[0].ProductDiscountsAdd.Candidates[0].Value.FixedAmount.Amount; a != 5 {
		t.Errorf("Expected fixed 5, got %v", a)
	}

	if unknown := Plan([]evaluator.GoalSatisfaction{mkSat("bogus", 5)}, cart, allClasses()); len(unknown) != 0 {
		t.Errorf("Expected unknown discount type skipped, got %d operations", len(unknown))
	}
}

func TestPlanDelivery_HighestMilestoneAllGroups(t *testing.T) {
	mk := func(target float64) evaluator.GoalSatisfaction {
		return evaluator.GoalSatisfaction{
			Goal: models.Goal{Type: models.GoalFreeShipping, Target: models.FlexFloat(target)},
		}
	}
	cart := models.CartSnapshot{DeliveryGroups: []models.DeliveryGroup{{ID: "g1"}, {ID: "g2"}}}

	ops := PlanDelivery([]evaluator.GoalSatisfaction{mk(50), mk(150)}, cart)
	if len(ops) != 1 || ops[0].DeliveryDiscountsAdd == nil {
		t.Fatalf("Expected a delivery operation, got %+v", ops)
	}

	cand := ops[0].DeliveryDiscountsAdd.Candidates[0]
	if len(cand.Targets) != 2 {
		t.Errorf("Expected all delivery groups targeted, got %d", len(cand.Targets))
	}
	if cand.Value.Percentage.Value != 100 || cand.Message != "Free Shipping" {
		t.Errorf("Unexpected candidate %+v", cand)
	}

	if ops := PlanDelivery([]evaluator.GoalSatisfaction{mk(50)}, models.CartSnapshot{}); len(ops) != 0 {
		t.Error("Expected no operation without delivery groups")
	}
}

// End-to-end: a tiered spend campaign at the 100 milestone on a 120 cart.
func TestEvaluateAndPlan_TieredSpendScenario(t *testing.T) {
	c := models.Campaign{
		ID: "spend", CampaignName: "Spend More", CampaignType: models.CampaignTypeTiered,
		Status: models.StatusActive, Priority: 1, TrackType: models.TrackCart,
		ActiveDates: alwaysActive(),
		Goals: []models.Goal{
			{Type: models.GoalFreeShipping, Target: 50},
			{Type: models.GoalOrderDiscount, Target: 100, DiscountType: models.DiscountPercentage, DiscountValue: 10},
			{Type: models.GoalFreeProduct, Target: 250, Products: []models.ProductRef{{ID: "gift"}}},
		},
	}
	cart := models.CartSnapshot{
		Lines:          []models.CartLine{{LineID: "l1", VariantID: "v1", Quantity: 3, UnitCost: 40}},
		DeliveryGroups: []models.DeliveryGroup{{ID: "g1"}},
	}

	sats := evaluator.Evaluate([]models.Campaign{c}, cart, testNow, 0)

	ops := Plan(sats, cart, allClasses())
	if len(ops) != 1 || ops[0].OrderDiscountsAdd == nil {
		t.Fatalf("Expected only the order operation, got %+v", ops)
	}
	if v := ops[0].OrderDiscountsAdd.Candidates[0].Value.Percentage.Value; v != 10 {
		t.Errorf("Expected 10%%, got %v", v)
	}

	delivery := PlanDelivery(sats, cart)
	if len(delivery) != 1 {
		t.Fatalf("Expected a free shipping operation, got %d", len(delivery))
	}
}

// End-to-end: bxgy bundle satisfied with the reward already in the cart.
func TestEvaluateAndPlan_BXGYScenario(t *testing.T) {
	c := models.Campaign{
		ID: "bundle", CampaignName: "Bundle", CampaignType: models.CampaignTypeBXGY,
		Status: models.StatusActive, Priority: 1,
		ActiveDates: alwaysActive(),
		Goals: []models.Goal{{
			BXGYMode:    models.BXGYModeProduct,
			BuyQty:      2,
			BuyProducts: []models.ProductRef{{ID: "a"}},
			GetQty:      1,
			GetProducts: []models.ProductRef{{ID: "r1"}},
		}},
	}
	cart := models.CartSnapshot{Lines: []models.CartLine{
		{LineID: "buy", VariantID: "a", Quantity: 2, UnitCost: 10},
		{LineID: "reward", VariantID: "r1", Quantity: 1, UnitCost: 8,
			Attributes: []models.Attribute{{Key: models.AttrBXGYGift, Value: "true"}}},
	}}

	sats := evaluator.Evaluate([]models.Campaign{c}, cart, testNow, 0)
	ops := Plan(sats, cart, allClasses())
	if len(ops) != 1 || ops[0].ProductDiscountsAdd == nil {
		t.Fatalf("Expected a product operation, got %+v", ops)
	}
	cand := ops[0].ProductDiscountsAdd.Candidates[0]
	if cand.Targets[0].CartLine.ID != "reward" || cand.Value.Percentage.Value != 100 {
		t.Errorf("Unexpected candidate %+v", cand)
	}
}
