package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cart-promotion-engine/internal/campaign"
	"cart-promotion-engine/internal/database"
	"cart-promotion-engine/internal/evaluator"
	"cart-promotion-engine/internal/features"
	"cart-promotion-engine/internal/metrics"
	"cart-promotion-engine/internal/models"
	"cart-promotion-engine/internal/planner"
	"cart-promotion-engine/internal/reconciler"
	"cart-promotion-engine/internal/validation"
)

// Handler provides HTTP handlers for the engine's API surface.
type Handler struct {
	db          *database.DB
	manager     *reconciler.Manager
	flags       *features.Manager
	defaultShop string
	tzOffset    int
	maxBodySize int64
}

// Options configures a Handler.
type Options struct {
	DefaultShop     string
	TZOffsetMinutes int
	MaxBodySize     int64
}

// New creates a handler. manager may be nil when reconciliation is
// disabled.
func New(db *database.DB, manager *reconciler.Manager, flags *features.Manager, opts Options) *Handler {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = 10 << 20
	}
	if opts.DefaultShop == "" {
		opts.DefaultShop = "default"
	}
	return &Handler{
		db:          db,
		manager:     manager,
		flags:       flags,
		defaultShop: opts.DefaultShop,
		tzOffset:    opts.TZOffsetMinutes,
		maxBodySize: opts.MaxBodySize,
	}
}

// discountRequest is the body of both discount computation entrypoints.
// CampaignsJSON lets the host pipeline pass the metafield value inline;
// when omitted the document is read from the store.
type discountRequest struct {
	Shop            string                 `json:"shop,omitempty"`
	Cart            models.CartSnapshot    `json:"cart"`
	DiscountClasses []models.DiscountClass `json:"discountClasses,omitempty"`
	CampaignsJSON   json.RawMessage        `json:"campaignsJson,omitempty"`
}

// CartLinesDiscounts handles POST /discounts/cart-lines — the line/order
// discount generation entrypoint. Any malformed campaign data yields an
// empty operation list; this path must never fail a checkout.
func (h *Handler) CartLinesDiscounts(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDiscountRequest(w, r)
	if !ok {
		return
	}

	campaigns := h.resolveCampaigns(req)
	sats := evaluator.Evaluate(campaigns, req.Cart, time.Now().UTC(), h.tzOffset)
	ops := planner.Plan(sats, req.Cart, planner.NewClassSet(req.DiscountClasses))

	for _, op := range ops {
		if op.OrderDiscountsAdd != nil {
			metrics.RecordPlannedOperations("order", len(op.OrderDiscountsAdd.Candidates))
		}
		if op.ProductDiscountsAdd != nil {
			metrics.RecordPlannedOperations("product", len(op.ProductDiscountsAdd.Candidates))
		}
	}

	h.respondJSON(w, http.StatusOK, models.OperationsResult{Operations: orEmpty(ops)})
}

// DeliveryDiscounts handles POST /discounts/delivery-options — the
// delivery discount generation entrypoint.
func (h *Handler) DeliveryDiscounts(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDiscountRequest(w, r)
	if !ok {
		return
	}

	var ops []models.Operation
	if h.flags == nil || h.flags.IsEnabled(features.FeatureDeliveryDiscounts) {
		campaigns := h.resolveCampaigns(req)
		sats := evaluator.Evaluate(campaigns, req.Cart, time.Now().UTC(), h.tzOffset)
		ops = planner.PlanDelivery(sats, req.Cart)
		for _, op := range ops {
			if op.DeliveryDiscountsAdd != nil {
				metrics.RecordPlannedOperations("delivery", len(op.DeliveryDiscountsAdd.Candidates))
			}
		}
	}

	h.respondJSON(w, http.StatusOK, models.OperationsResult{Operations: orEmpty(ops)})
}

// GetCampaigns handles GET /apps/cart/campaigns.json — the storefront read
// of the campaign document. Missing or malformed documents come back as an
// empty campaign list.
func (h *Handler) GetCampaigns(w http.ResponseWriter, r *http.Request) {
	shop := h.shopOf(r.URL.Query().Get("shop"))

	raw, err := h.db.GetDocument(shop, campaign.Namespace, campaign.DocumentKey)
	if err != nil {
		h.respondJSON(w, http.StatusOK, models.CampaignDocument{Campaigns: []models.Campaign{}})
		return
	}

	doc := campaign.ParseDocument(raw)
	if doc.Campaigns == nil {
		doc.Campaigns = []models.Campaign{}
	}
	w.Header().Set("Cache-Control", "no-store")
	h.respondJSON(w, http.StatusOK, doc)
}

// saveCampaignsRequest is the body of PUT /campaigns.
type saveCampaignsRequest struct {
	Shop      string            `json:"shop,omitempty"`
	Campaigns []models.Campaign `json:"campaigns"`
}

// SaveCampaigns handles PUT /campaigns: validates the list, mints missing
// ids, renumbers priorities to a dense 1..N sequence, and persists the
// document.
func (h *Handler) SaveCampaigns(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req saveCampaignsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}
	if req.Campaigns == nil {
		h.respondError(w, http.StatusBadRequest, "campaigns array is required")
		return
	}

	for i := range req.Campaigns {
		c := &req.Campaigns[i]
		c.CampaignName = validation.SanitizeString(c.CampaignName)
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if err := validation.ValidateCampaign(*c); err != nil {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	campaign.NormalizePriorities(req.Campaigns)

	doc := models.CampaignDocument{Campaigns: req.Campaigns}
	raw, err := json.Marshal(doc)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to encode document")
		return
	}

	shop := h.shopOf(req.Shop)
	if err := h.db.PutDocument(shop, campaign.Namespace, campaign.DocumentKey, raw); err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, doc)
}

// cartEventRequest is the body of POST /carts/{cart_id}/events.
type cartEventRequest struct {
	Verb string `json:"verb"`
}

// CartEvent handles POST /carts/{cart_id}/events: an observed cart
// mutation that should trigger reconciliation for that cart.
func (h *Handler) CartEvent(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil || (h.flags != nil && !h.flags.IsEnabled(features.FeatureReconciler)) {
		h.respondError(w, http.StatusServiceUnavailable, "reconciliation is disabled")
		return
	}

	cartID := validation.SanitizeString(chi.URLParam(r, "cart_id"))
	if cartID == "" {
		h.respondError(w, http.StatusBadRequest, "cart_id is required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	var req cartEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	verb := validation.SanitizeString(req.Verb)
	switch verb {
	case "add", "change", "update", "clear", "":
	default:
		h.respondError(w, http.StatusBadRequest, "unknown cart verb")
		return
	}

	h.manager.Trigger(cartID, verb)
	h.respondJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

// giftChoiceRequest is the body of POST /carts/{cart_id}/gift-choice.
type giftChoiceRequest struct {
	GoalKey    string   `json:"goalKey"`
	VariantIDs []string `json:"variantIds"`
}

// GiftChoice handles POST /carts/{cart_id}/gift-choice: the selection UI
// confirming the shopper's reward picks for a suspended goal.
func (h *Handler) GiftChoice(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil || (h.flags != nil && !h.flags.IsEnabled(features.FeatureGiftSelection)) {
		h.respondError(w, http.StatusServiceUnavailable, "gift selection is disabled")
		return
	}

	cartID := validation.SanitizeString(chi.URLParam(r, "cart_id"))
	if cartID == "" {
		h.respondError(w, http.StatusBadRequest, "cart_id is required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	var req giftChoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}
	if req.GoalKey == "" {
		h.respondError(w, http.StatusBadRequest, "goalKey is required")
		return
	}

	h.manager.ConfirmGiftChoice(cartID, req.GoalKey, req.VariantIDs)
	h.respondJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (h *Handler) decodeDiscountRequest(w http.ResponseWriter, r *http.Request) (discountRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req discountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return req, false
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return req, false
	}
	return req, true
}

// resolveCampaigns prefers the inline metafield value, falling back to the
// store. Either way parsing is defensive: garbage in, empty list out.
func (h *Handler) resolveCampaigns(req discountRequest) []models.Campaign {
	if len(req.CampaignsJSON) > 0 {
		return campaign.ParseDocument(req.CampaignsJSON).Campaigns
	}
	raw, err := h.db.GetDocument(h.shopOf(req.Shop), campaign.Namespace, campaign.DocumentKey)
	if err != nil {
		return nil
	}
	return campaign.ParseDocument(raw).Campaigns
}

func (h *Handler) shopOf(shop string) string {
	if shop == "" {
		return h.defaultShop
	}
	return validation.SanitizeString(shop)
}

func orEmpty(ops []models.Operation) []models.Operation {
	if ops == nil {
		return []models.Operation{}
	}
	return ops
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
