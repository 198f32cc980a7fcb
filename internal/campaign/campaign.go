// Package campaign handles the shop campaign document: defensive parsing,
// priority ordering, and date-window eligibility. Promotions are a
// non-critical enhancement, so nothing here ever returns an error to the
// pricing path; malformed input degrades to an empty campaign list.
package campaign

import (
	"encoding/json"
	"sort"
	"time"

	"cart-promotion-engine/internal/models"
)

// Metafield coordinates of the campaign document in shop-level storage.
const (
	Namespace   = "optimaio_cart"
	DocumentKey = "campaigns"
)

// dateLayout is the calendar-date format the admin UI persists.
const dateLayout = "2006-01-02"

// ParseDocument decodes a raw campaign document. Unparseable JSON yields an
// empty document, never an error.
func ParseDocument(raw []byte) models.CampaignDocument {
	if len(raw) == 0 {
		return models.CampaignDocument{}
	}
	var doc models.CampaignDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.CampaignDocument{}
	}
	return doc
}

// NormalizePriorities reassigns dense 1..N priorities following the slice
// order. Applied on every save so priorities stay unique and gap-free.
func NormalizePriorities(campaigns []models.Campaign) {
	for i := range campaigns {
		campaigns[i].Priority = i + 1
	}
}

// SortByPriority orders campaigns ascending by priority (lower number wins).
// A zero priority means the campaign predates normalization and sorts last.
func SortByPriority(campaigns []models.Campaign) []models.Campaign {
	out := make([]models.Campaign, len(campaigns))
	copy(out, campaigns)
	sort.SliceStable(out, func(i, j int) bool {
		return sortKey(out[i].Priority) < sortKey(out[j].Priority)
	})
	return out
}

func sortKey(priority int) int {
	if priority <= 0 {
		return 1 << 30
	}
	return priority
}

// WithinActiveDates reports whether the campaign's date window contains the
// given instant, evaluated in shop-local time (UTC offset in minutes).
// A campaign without a start date is treated as not yet configured and is
// never eligible.
func WithinActiveDates(c models.Campaign, now time.Time, shopTZOffsetMinutes int) bool {
	if c.ActiveDates == nil || c.ActiveDates.Start == nil || c.ActiveDates.Start.Date == "" {
		return false
	}
	loc := time.FixedZone("shop", shopTZOffsetMinutes*60)
	local := now.In(loc)

	start, err := time.ParseInLocation(dateLayout, c.ActiveDates.Start.Date, loc)
	if err != nil {
		return false
	}
	if local.Before(start) {
		return false
	}
	if c.ActiveDates.HasEndDate && c.ActiveDates.End != nil && c.ActiveDates.End.Date != "" {
		end, err := time.ParseInLocation(dateLayout, c.ActiveDates.End.Date, loc)
		if err != nil {
			return false
		}
		// The window is inclusive of the whole end day.
		if !local.Before(end.AddDate(0, 0, 1)) {
			return false
		}
	}
	return true
}

// Eligible filters to active campaigns whose date window contains now, and
// returns them sorted by priority.
func Eligible(campaigns []models.Campaign, now time.Time, shopTZOffsetMinutes int) []models.Campaign {
	var active []models.Campaign
	for _, c := range campaigns {
		if c.Status != models.StatusActive {
			continue
		}
		if !WithinActiveDates(c, now, shopTZOffsetMinutes) {
			continue
		}
		active = append(active, c)
	}
	return SortByPriority(active)
}

// KnownRewardIDs collects every reward product id referenced by any
// campaign's goals. Lines for these variants are excluded from storewide
// buy counting so a reward can never feed its own or another campaign's
// condition.
func KnownRewardIDs(campaigns []models.Campaign) map[string]bool {
	ids := make(map[string]bool)
	for _, c := range campaigns {
		for _, g := range c.Goals {
			if g.Type == models.GoalFreeProduct {
				for _, p := range g.Products {
					ids[p.ID] = true
				}
			}
			for _, p := range g.GetProducts {
				ids[p.ID] = true
			}
		}
	}
	return ids
}
