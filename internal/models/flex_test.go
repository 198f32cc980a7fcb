package models

import (
	"encoding/json"
	"testing"
)

func TestFlexFloat_AcceptsNumberAndString(t *testing.T) {
	cases := []struct {
		raw      string
		expected float64
	}{
		{`250`, 250},
		{`250.5`, 250.5},
		{`"250"`, 250},
		{`"  50.0 "`, 50},
		{`""`, 0},
		{`"not a number"`, 0},
		{`null`, 0},
		{`true`, 0},
		{`{"nested":1}`, 0},
	}

	for _, tc := range cases {
		var f FlexFloat
		if err := json.Unmarshal([]byte(tc.raw), &f); err != nil {
			t.Fatalf("Unmarshal(%s) returned error: %v", tc.raw, err)
		}
		if f.Float() != tc.expected {
			t.Errorf("Unmarshal(%s): expected %v, got %v", tc.raw, tc.expected, f.Float())
		}
	}
}

func TestFlexInt_AcceptsNumberAndString(t *testing.T) {
	cases := []struct {
		raw      string
		expected int
	}{
		{`3`, 3},
		{`"3"`, 3},
		{`"2.9"`, 2},
		{`""`, 0},
		{`null`, 0},
	}

	for _, tc := range cases {
		var i FlexInt
		if err := json.Unmarshal([]byte(tc.raw), &i); err != nil {
			t.Fatalf("Unmarshal(%s) returned error: %v", tc.raw, err)
		}
		if i.Int() != tc.expected {
			t.Errorf("Unmarshal(%s): expected %d, got %d", tc.raw, tc.expected, i.Int())
		}
	}
}

func TestFlexFields_SurviveSloppyGoalDocument(t *testing.T) {
	raw := `{"type":"free_product","target":"250","giftQty":"2","discountValue":15}`

	var g Goal
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		t.Fatalf("Failed to unmarshal goal: %v", err)
	}

	if g.Target.Float() != 250 {
		t.Errorf("Expected target 250, got %v", g.Target.Float())
	}
	if g.GiftQty.Int() != 2 {
		t.Errorf("Expected giftQty 2, got %d", g.GiftQty.Int())
	}
	if g.DiscountValue.Float() != 15 {
		t.Errorf("Expected discountValue 15, got %v", g.DiscountValue.Float())
	}
}
