// Package cartclient talks to the platform's storefront cart API. The cart
// backend is eventually consistent from the client's perspective, so reads
// go through a very short cache (bypassable) and writes are plain POSTs the
// caller is expected to serialize.
package cartclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"cart-promotion-engine/internal/models"
)

const (
	cartPath      = "/cart.js"
	addPath       = "/cart/add.js"
	changePath    = "/cart/change.js"
	campaignsPath = "/apps/cart/campaigns.json"

	// defaultCartTTL matches the storefront script's 500ms cart cache.
	defaultCartTTL = 500 * time.Millisecond
)

// Options tunes a Client.
type Options struct {
	CartTTL time.Duration
	// FetchRate bounds cart/campaign reads per second; zero means no limit.
	FetchRate float64
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client is the HTTP cart API client.
type Client struct {
	baseURL string
	http    *http.Client
	cartTTL time.Duration
	limiter *rate.Limiter

	mu        sync.Mutex
	cached    *models.CartSnapshot
	cachedAt  time.Time
}

// New creates a cart client rooted at baseURL.
func New(baseURL string, opts Options) *Client {
	ttl := opts.CartTTL
	if ttl <= 0 {
		ttl = defaultCartTTL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	var limiter *rate.Limiter
	if opts.FetchRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.FetchRate), 1)
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		cartTTL: ttl,
		limiter: limiter,
	}
}

// storefrontCart is the wire shape of the storefront cart read.
type storefrontCart struct {
	Items []storefrontItem `json:"items"`
}

type storefrontItem struct {
	Key        string            `json:"key"`
	VariantID  int64             `json:"variant_id"`
	Quantity   int               `json:"quantity"`
	PriceCents int64             `json:"price"`
	Properties map[string]string `json:"properties"`
}

// Cart returns a snapshot of the live cart. With fresh set the short cache
// is bypassed; reconciliation passes always force a fresh read.
func (c *Client) Cart(ctx context.Context, fresh bool) (models.CartSnapshot, error) {
	c.mu.Lock()
	if !fresh && c.cached != nil && time.Since(c.cachedAt) < c.cartTTL {
		snap := *c.cached
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	if err := c.wait(ctx); err != nil {
		return models.CartSnapshot{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+cartPath, nil)
	if err != nil {
		return models.CartSnapshot{}, err
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.CartSnapshot{}, fmt.Errorf("cart fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.CartSnapshot{}, fmt.Errorf("cart fetch failed: status %d", resp.StatusCode)
	}

	var raw storefrontCart
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.CartSnapshot{}, fmt.Errorf("cart decode failed: %w", err)
	}

	snap := toSnapshot(raw)
	c.mu.Lock()
	c.cached = &snap
	c.cachedAt = time.Now()
	c.mu.Unlock()
	return snap, nil
}

func toSnapshot(raw storefrontCart) models.CartSnapshot {
	snap := models.CartSnapshot{Lines: make([]models.CartLine, 0, len(raw.Items))}
	for _, it := range raw.Items {
		line := models.CartLine{
			LineID:    it.Key,
			VariantID: strconv.FormatInt(it.VariantID, 10),
			Quantity:  it.Quantity,
			UnitCost:  models.FlexFloat(float64(it.PriceCents) / 100),
		}
		for k, v := range it.Properties {
			line.Attributes = append(line.Attributes, models.Attribute{Key: k, Value: v})
		}
		snap.Lines = append(snap.Lines, line)
	}
	return snap
}

// AddLine adds a variant to the cart with the given attributes.
func (c *Client) AddLine(ctx context.Context, variantID string, qty int, attrs []models.Attribute) error {
	props := make(map[string]string, len(attrs))
	for _, a := range attrs {
		props[a.Key] = a.Value
	}
	payload := map[string]interface{}{
		"id":         variantID,
		"quantity":   qty,
		"properties": props,
	}
	if err := c.post(ctx, addPath, payload); err != nil {
		return err
	}
	c.invalidate()
	return nil
}

// ChangeLine sets a line's quantity by line key; zero removes the line.
// The cart API has no replace verb.
func (c *Client) ChangeLine(ctx context.Context, lineID string, qty int) error {
	payload := map[string]interface{}{
		"id":       lineID,
		"quantity": qty,
	}
	if err := c.post(ctx, changePath, payload); err != nil {
		return err
	}
	c.invalidate()
	return nil
}

// FetchCampaigns reads the raw campaign document from the storefront proxy
// route.
func (c *Client) FetchCampaigns(ctx context.Context) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+campaignsPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("campaign fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("campaign fetch failed: status %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cart mutation failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("cart mutation failed: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}
