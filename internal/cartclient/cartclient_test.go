package cartclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cart-promotion-engine/internal/models"
)

// cartServer fakes the storefront cart API.
type cartServer struct {
	mu        sync.Mutex
	items     []storefrontItem
	cartReads int
	adds      []map[string]interface{}
	changes   []map[string]interface{}
}

func (s *cartServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(cartPath, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cartReads++
		json.NewEncoder(w).Encode(storefrontCart{Items: s.items})
	})
	mux.HandleFunc(addPath, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		json.NewDecoder(r.Body).Decode(&payload)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.adds = append(s.adds, payload)
	})
	mux.HandleFunc(changePath, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		json.NewDecoder(r.Body).Decode(&payload)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.changes = append(s.changes, payload)
	})
	mux.HandleFunc(campaignsPath, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"campaigns":[]}`))
	})
	return mux
}

func (s *cartServer) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartReads
}

func TestCart_MapsStorefrontShape(t *testing.T) {
	srv := &cartServer{items: []storefrontItem{{
		Key:        "line-key-1",
		VariantID:  44444,
		Quantity:   2,
		PriceCents: 2550,
		Properties: map[string]string{models.AttrFreeGift: "true"},
	}}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	c := New(ts.URL, Options{})
	snap, err := c.Cart(context.Background(), true)
	if err != nil {
		t.Fatalf("Cart failed: %v", err)
	}

	if len(snap.Lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(snap.Lines))
	}
	l := snap.Lines[0]
	if l.LineID != "line-key-1" || l.VariantID != "44444" || l.Quantity != 2 {
		t.Errorf("Unexpected line %+v", l)
	}
	if l.UnitCost.Float() != 25.50 {
		t.Errorf("Expected unit cost 25.50, got %v", l.UnitCost.Float())
	}
	if !l.IsTieredGift() {
		t.Errorf("Expected gift property mapped to an attribute, got %+v", l.Attributes)
	}
}

func TestCart_CachedWithinTTL(t *testing.T) {
	srv := &cartServer{}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	c := New(ts.URL, Options{CartTTL: time.Minute})
	ctx := context.Background()

	if _, err := c.Cart(ctx, false); err != nil {
		t.Fatalf("Cart failed: %v", err)
	}
	if _, err := c.Cart(ctx, false); err != nil {
		t.Fatalf("Cart failed: %v", err)
	}
	if got := srv.readCount(); got != 1 {
		t.Errorf("Expected 1 backend read, got %d", got)
	}

	// fresh bypasses the cache.
	if _, err := c.Cart(ctx, true); err != nil {
		t.Fatalf("Cart failed: %v", err)
	}
	if got := srv.readCount(); got != 2 {
		t.Errorf("Expected a fresh read, got %d backend reads", got)
	}
}

func TestMutations_InvalidateCache(t *testing.T) {
	srv := &cartServer{}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	c := New(ts.URL, Options{CartTTL: time.Minute})
	ctx := context.Background()

	if _, err := c.Cart(ctx, false); err != nil {
		t.Fatalf("Cart failed: %v", err)
	}

	if err := c.AddLine(ctx, "v9", 1, []models.Attribute{{Key: models.AttrFreeGift, Value: "true"}}); err != nil {
		t.Fatalf("AddLine failed: %v", err)
	}

	if _, err := c.Cart(ctx, false); err != nil {
		t.Fatalf("Cart failed: %v", err)
	}
	if got := srv.readCount(); got != 2 {
		t.Errorf("Expected the mutation to invalidate the cache, got %d reads", got)
	}

	srv.mu.Lock()
	add := srv.adds[0]
	srv.mu.Unlock()
	if add["id"] != "v9" {
		t.Errorf("Expected variant v9 in add payload, got %v", add["id"])
	}
	props, ok := add["properties"].(map[string]interface{})
	if !ok || props[models.AttrFreeGift] != "true" {
		t.Errorf("Expected gift property in add payload, got %v", add["properties"])
	}
}

func TestChangeLine_ZeroRemoves(t *testing.T) {
	srv := &cartServer{}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	c := New(ts.URL, Options{})
	if err := c.ChangeLine(context.Background(), "line-key-1", 0); err != nil {
		t.Fatalf("ChangeLine failed: %v", err)
	}

	srv.mu.Lock()
	change := srv.changes[0]
	srv.mu.Unlock()
	if change["id"] != "line-key-1" || change["quantity"].(float64) != 0 {
		t.Errorf("Unexpected change payload %v", change)
	}
}

func TestFetchCampaigns(t *testing.T) {
	srv := &cartServer{}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	c := New(ts.URL, Options{})
	raw, err := c.FetchCampaigns(context.Background())
	if err != nil {
		t.Fatalf("FetchCampaigns failed: %v", err)
	}
	if string(raw) != `{"campaigns":[]}` {
		t.Errorf("Unexpected document %s", raw)
	}
}

func TestCart_ErrorOnBadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c := New(ts.URL, Options{})
	if _, err := c.Cart(context.Background(), true); err == nil {
		t.Error("Expected an error on status 502")
	}
	if err := c.AddLine(context.Background(), "v1", 1, nil); err == nil {
		t.Error("Expected an error on status 502")
	}
}
