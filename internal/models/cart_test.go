package models

import "testing"

func TestCartLine_RewardTags(t *testing.T) {
	gift := CartLine{Attributes: []Attribute{{Key: AttrFreeGift, Value: "true"}}}
	legacy := CartLine{Attributes: []Attribute{{Key: AttrFreeGiftLegacy, Value: "true"}}}
	bxgy := CartLine{Attributes: []Attribute{{Key: AttrBXGYGift, Value: "true"}}}
	plain := CartLine{Attributes: []Attribute{{Key: "giftWrap", Value: "true"}}}

	if !gift.IsTieredGift() || !legacy.IsTieredGift() {
		t.Error("Expected both gift tag spellings to be recognized")
	}
	if gift.IsBXGYGift() {
		t.Error("Tiered gift tag should not read as a bxgy tag")
	}
	if !bxgy.IsBXGYGift() || !bxgy.IsRewardLine() {
		t.Error("Expected bxgy tag to be recognized")
	}
	if plain.IsRewardLine() {
		t.Error("Unrelated attribute should not mark a reward line")
	}

	// The tag value must be the string "true", not merely present.
	off := CartLine{Attributes: []Attribute{{Key: AttrFreeGift, Value: "false"}}}
	if off.IsRewardLine() {
		t.Error("Tag with value 'false' should not mark a reward line")
	}
}

func TestCartSnapshot_FindLine(t *testing.T) {
	cart := CartSnapshot{Lines: []CartLine{
		{LineID: "l1", VariantID: "v1", Quantity: 2},
		{LineID: "l2", VariantID: "v1", Quantity: 1, Attributes: []Attribute{{Key: AttrFreeGift, Value: "true"}}},
	}}

	line := cart.FindLine("v1", CartLine.IsTieredGift)
	if line == nil || line.LineID != "l2" {
		t.Fatalf("Expected tagged line l2, got %+v", line)
	}

	if cart.FindLine("v2", nil) != nil {
		t.Error("Expected no line for unknown variant")
	}
}

func TestCartLine_InAnyCollection(t *testing.T) {
	l := CartLine{CollectionIDs: []string{"c1", "c2"}}

	if !l.InAnyCollection([]string{"c9", "c2"}) {
		t.Error("Expected membership in c2")
	}
	if l.InAnyCollection([]string{"c9"}) {
		t.Error("Expected no membership in c9")
	}
	if l.InAnyCollection(nil) {
		t.Error("Empty collection set should never match")
	}
}
