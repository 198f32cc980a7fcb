package reconciler

import (
	"context"
	"sync"
	"time"

	"cart-promotion-engine/internal/cache"
	"cart-promotion-engine/internal/campaign"
	"cart-promotion-engine/internal/database"
	"cart-promotion-engine/internal/models"
)

// Fetcher retrieves the raw campaign document bytes.
type Fetcher interface {
	FetchCampaigns(ctx context.Context) ([]byte, error)
}

// defaultCampaignTTL bounds campaign request volume; campaign data changes
// rarely compared to the cart.
const defaultCampaignTTL = 60 * time.Second

// CachedSource is a CampaignSource with a short-lived cache in front of a
// Fetcher. On fetch failure it serves the last good document if one is
// still around, matching the storefront script's stale-on-error behavior.
type CachedSource struct {
	fetcher Fetcher
	cache   cache.Cache
	key     string
	ttl     time.Duration

	mu   sync.Mutex
	last []models.Campaign
}

// NewCachedSource wraps fetcher with a TTL cache. A nil cache disables
// caching; every call hits the fetcher.
func NewCachedSource(fetcher Fetcher, c cache.Cache, key string, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = defaultCampaignTTL
	}
	return &CachedSource{fetcher: fetcher, cache: c, key: key, ttl: ttl}
}

// Campaigns returns the parsed campaign list. Malformed documents parse to
// an empty list rather than an error. The cache holds the parsed list, so a
// document is decoded once per TTL.
func (s *CachedSource) Campaigns(ctx context.Context) ([]models.Campaign, error) {
	if s.cache != nil {
		var cached []models.Campaign
		if err := cache.GetJSON(ctx, s.cache, s.key, &cached); err == nil {
			return cached, nil
		}
	}

	raw, err := s.fetcher.FetchCampaigns(ctx)
	if err != nil {
		s.mu.Lock()
		last := s.last
		s.mu.Unlock()
		if last != nil {
			return last, nil
		}
		return nil, err
	}

	campaigns := campaign.ParseDocument(raw).Campaigns
	if s.cache != nil {
		_ = cache.SetJSON(ctx, s.cache, s.key, campaigns, s.ttl)
	}

	s.mu.Lock()
	s.last = campaigns
	s.mu.Unlock()
	return campaigns, nil
}

// StoreFetcher reads the campaign document straight from the local store,
// for reconcilers running inside the engine process.
type StoreFetcher struct {
	DB   *database.DB
	Shop string
}

func (f *StoreFetcher) FetchCampaigns(ctx context.Context) ([]byte, error) {
	return f.DB.GetDocument(f.Shop, campaign.Namespace, campaign.DocumentKey)
}
