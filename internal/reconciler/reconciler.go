// Package reconciler keeps reward/gift line items in a live cart in sync
// with campaign state. It is the engine's stateful half: an event-driven
// loop fed by cart-mutation triggers, with debouncing, single-flight
// execution, bounded retries, and a settling delay after every mutation
// because the cart backend is eventually consistent. It is best-effort and
// purely visual; the server-side planner stays authoritative at checkout.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"cart-promotion-engine/internal/evaluator"
	"cart-promotion-engine/internal/events"
	"cart-promotion-engine/internal/metrics"
	"cart-promotion-engine/internal/models"
)

// CartClient is the cart API surface the reconciler mutates through.
type CartClient interface {
	Cart(ctx context.Context, fresh bool) (models.CartSnapshot, error)
	AddLine(ctx context.Context, variantID string, qty int, attrs []models.Attribute) error
	ChangeLine(ctx context.Context, lineID string, qty int) error
}

// CampaignSource supplies the current campaign list.
type CampaignSource interface {
	Campaigns(ctx context.Context) ([]models.Campaign, error)
}

// GiftSelector presents a picker when a goal offers several reward
// products. Implementations may answer synchronously, or return
// ErrSelectionPending after showing a UI and later call
// Reconciler.ConfirmGiftChoice.
type GiftSelector interface {
	SelectGifts(ctx context.Context, candidates []models.ProductRef, maxSelectable int) ([]string, error)
}

var (
	// ErrSelectionPending means a selection UI is showing; the pass
	// suspends and resumes once the shopper confirms.
	ErrSelectionPending = errors.New("gift selection pending")
	// ErrSelectionCancelled means the shopper dismissed the picker.
	ErrSelectionCancelled = errors.New("gift selection cancelled")
)

// Options tunes a Reconciler. Zero values take the defaults below.
type Options struct {
	Debounce            time.Duration // quiet period for non-add triggers
	SettleDelay         time.Duration // wait after each cart mutation
	VerifyDelay         time.Duration // wait before the re-verify read on removal
	MaxAttempts         int           // fetch retry budget
	RetryBackoff        time.Duration // base backoff between fetch retries
	ShopTZOffsetMinutes int
}

func (o *Options) applyDefaults() {
	if o.Debounce <= 0 {
		o.Debounce = 200 * time.Millisecond
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 600 * time.Millisecond
	}
	if o.VerifyDelay <= 0 {
		o.VerifyDelay = 400 * time.Millisecond
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 250 * time.Millisecond
	}
}

// Reconciler drives reconciliation for a single cart.
type Reconciler struct {
	cartID    string
	cart      CartClient
	campaigns CampaignSource
	selector  GiftSelector
	bus       *events.Bus
	logger    *log.Logger
	opts      Options

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	busy     bool
	rerun    bool
	mutating bool
	debounce *time.Timer
	chosen   map[string][]string // goal key -> confirmed reward variant ids
}

// New creates a reconciler for one cart. selector and bus may be nil.
func New(cartID string, cart CartClient, campaigns CampaignSource, selector GiftSelector, bus *events.Bus, logger *log.Logger, opts Options) *Reconciler {
	opts.applyDefaults()
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		cartID:    cartID,
		cart:      cart,
		campaigns: campaigns,
		selector:  selector,
		bus:       bus,
		logger:    logger,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		chosen:    make(map[string][]string),
	}
}

// Start runs the initial reconciliation pass, the page-load equivalent.
func (r *Reconciler) Start() {
	go r.run()
}

// Close cancels any in-flight pass and pending debounce.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.debounce != nil {
		r.debounce.Stop()
	}
	r.mu.Unlock()
	r.cancel()
}

// Trigger reacts to an observed cart mutation. An "add" reconciles
// immediately, since the shopper is waiting for gift feedback; every other
// verb is debounced so bursts (quantity steppers) collapse into one pass.
func (r *Reconciler) Trigger(verb string) {
	if verb == "add" {
		go r.run()
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.debounce != nil {
		r.debounce.Stop()
	}
	r.debounce = time.AfterFunc(r.opts.Debounce, r.run)
}

// ConfirmGiftChoice records the shopper's picks for a suspended goal and
// schedules the follow-up pass that applies them.
func (r *Reconciler) ConfirmGiftChoice(goalKey string, variantIDs []string) {
	r.mu.Lock()
	r.chosen[goalKey] = variantIDs
	r.mu.Unlock()
	go r.run()
}

// run enforces at-most-one in-flight pass. Triggers arriving while busy are
// coalesced into a single trailing re-run, never dropped, so the final cart
// state is never left stale.
func (r *Reconciler) run() {
	r.mu.Lock()
	if r.busy || r.mutating {
		r.rerun = true
		r.mu.Unlock()
		return
	}
	r.busy = true
	r.mu.Unlock()

	for {
		r.pass()

		r.mu.Lock()
		if r.rerun {
			r.rerun = false
			r.mu.Unlock()
			continue
		}
		r.busy = false
		r.mu.Unlock()
		return
	}
}

// pass is one full reconciliation: fetch, evaluate, diff, mutate, notify.
func (r *Reconciler) pass() {
	start := time.Now()
	result := "completed"
	mutations := 0
	var passErr error

	ctx, span := otel.Tracer("cart-promotion-engine").Start(r.ctx, "reconciler.pass")
	span.SetAttributes(attribute.String("cart.id", r.cartID))

	defer func() {
		metrics.RecordReconcilePass(result, time.Since(start).Seconds())
		span.SetAttributes(
			attribute.String("reconcile.result", result),
			attribute.Int("reconcile.mutations", mutations),
		)
		span.End()
		if r.bus != nil {
			r.bus.Publish(ctx, events.EventReconcileCompleted, events.ReconcileCompletedData{
				CartID:    r.cartID,
				Mutations: mutations,
				Err:       passErr,
			})
		}
	}()

	var campaigns []models.Campaign
	passErr = r.withRetry("campaign fetch", func() error {
		var err error
		campaigns, err = r.campaigns.Campaigns(ctx)
		return err
	})
	if passErr != nil {
		result = "aborted"
		return
	}
	if len(campaigns) == 0 {
		return
	}

	var cart models.CartSnapshot
	passErr = r.withRetry("cart fetch", func() error {
		var err error
		cart, err = r.cart.Cart(ctx, true)
		return err
	})
	if passErr != nil {
		result = "aborted"
		return
	}

	desired, suspended := r.desiredRewards(campaigns, cart)
	if suspended {
		result = "suspended"
	}

	mutations, passErr = r.apply(ctx, campaigns, cart, desired)
	if passErr != nil {
		result = "aborted"
		return
	}

	if mutations > 0 && r.bus != nil {
		r.bus.Publish(ctx, events.EventCartRefresh, events.CartRefreshData{
			CartID:    r.cartID,
			Mutations: mutations,
		})
	}
}

// desiredReward is the target state of one reward variant.
type desiredReward struct {
	quantity int
	tag      string
}

// desiredRewards computes the variant -> quantity set the cart should hold,
// honoring cross-campaign claims (already applied by the evaluator) and
// shopper gift choices. The second return reports that a goal suspended
// awaiting a choice.
func (r *Reconciler) desiredRewards(campaigns []models.Campaign, cart models.CartSnapshot) (map[string]desiredReward, bool) {
	sats := evaluator.Evaluate(campaigns, cart, time.Now(), r.opts.ShopTZOffsetMinutes)

	desired := make(map[string]desiredReward)
	suspended := false

	for _, s := range sats {
		switch {
		case s.CampaignType == models.CampaignTypeTiered && s.Goal.Type == models.GoalFreeProduct:
			ids, ok := r.tieredRewardSet(s, cart)
			if !ok {
				suspended = true
				continue
			}
			qty := 1
			if len(s.Goal.Products) == 1 {
				// Single reward product: giftQty is the unit count.
				qty = maxInt(s.Goal.GiftQty.Int(), 1)
			}
			for _, id := range ids {
				if _, taken := desired[id]; taken {
					continue
				}
				desired[id] = desiredReward{quantity: qty, tag: models.AttrFreeGift}
			}

		case s.CampaignType == models.CampaignTypeBXGY:
			qty := maxInt(s.Goal.GetQty.Int(), 1)
			for _, id := range s.RewardIDs {
				if _, taken := desired[id]; taken {
					continue
				}
				desired[id] = desiredReward{quantity: qty, tag: models.AttrBXGYGift}
			}
		}
	}
	return desired, suspended
}

// tieredRewardSet resolves which reward variants a free_product goal grants.
// When the goal offers a real choice (several products, more than one
// allowed) and no reward line exists yet, the automatic pass suspends and
// the selector decides; otherwise the listed products are granted directly,
// bounded by giftQty.
func (r *Reconciler) tieredRewardSet(s evaluator.GoalSatisfaction, cart models.CartSnapshot) ([]string, bool) {
	key := goalKey(s)

	r.mu.Lock()
	chosen, hasChoice := r.chosen[key]
	r.mu.Unlock()
	if hasChoice {
		return intersect(chosen, s.RewardIDs), true
	}

	offersChoice := len(s.Goal.Products) > 1 && s.Goal.GiftQty.Int() > 1
	if offersChoice && !hasExistingGift(cart, s.RewardIDs) {
		if r.bus != nil {
			r.bus.Publish(r.ctx, events.EventGiftChoiceRequired, events.GiftChoiceRequiredData{
				CartID:        r.cartID,
				CampaignID:    s.CampaignID,
				CandidateIDs:  s.RewardIDs,
				MaxSelectable: s.Goal.GiftQty.Int(),
			})
		}
		if r.selector == nil {
			return nil, false
		}
		ids, err := r.selector.SelectGifts(r.ctx, s.Goal.Products, s.Goal.GiftQty.Int())
		if err != nil {
			if !errors.Is(err, ErrSelectionCancelled) {
				// Pending or failed: suspend until confirmed.
				return nil, false
			}
			// Cancelled: leave the cart untouched for this goal.
			return nil, true
		}
		r.mu.Lock()
		r.chosen[key] = ids
		r.mu.Unlock()
		return intersect(ids, s.RewardIDs), true
	}

	// No choice flow: grant the listed products, at most giftQty of them.
	limit := maxInt(s.Goal.GiftQty.Int(), 1)
	if limit > len(s.RewardIDs) {
		limit = len(s.RewardIDs)
	}
	return s.RewardIDs[:limit], true
}

// apply diffs desired against actual reward lines and issues the needed
// mutations, strictly serialized: the backend's last-write-wins semantics
// make concurrent quantity changes to the same line unsafe.
func (r *Reconciler) apply(ctx context.Context, campaigns []models.Campaign, cart models.CartSnapshot, desired map[string]desiredReward) (int, error) {
	mutations := 0

	for _, id := range sortedKeys(desired) {
		want := desired[id]
		line := findTagged(cart, id, want.tag)
		if line != nil {
			if line.Quantity != want.quantity {
				if err := r.mutate("change", func() error {
					return r.cart.ChangeLine(ctx, line.LineID, want.quantity)
				}); err != nil {
					return mutations, err
				}
				mutations++
			}
			continue
		}

		// Verify before add: a concurrent pass or the shopper may have
		// added the gift since our snapshot.
		fresh, err := r.cart.Cart(ctx, true)
		if err != nil {
			return mutations, err
		}
		if findTagged(fresh, id, want.tag) != nil {
			continue
		}
		if err := r.mutate("add", func() error {
			return r.cart.AddLine(ctx, id, want.quantity, []models.Attribute{{Key: want.tag, Value: "true"}})
		}); err != nil {
			return mutations, err
		}
		mutations++
	}

	orphans := orphanLines(cart, desired)
	if len(orphans) == 0 {
		return mutations, nil
	}

	// A condition that just turned false may be a transient artifact of a
	// multi-step cart mutation. Re-verify against a second fresh read
	// before removing anything.
	time.Sleep(r.opts.VerifyDelay)
	fresh, err := r.cart.Cart(ctx, true)
	if err != nil {
		return mutations, err
	}
	freshDesired, _ := r.desiredRewards(campaigns, fresh)
	for _, line := range orphanLines(fresh, freshDesired) {
		if err := r.mutate("remove", func() error {
			return r.cart.ChangeLine(ctx, line.LineID, 0)
		}); err != nil {
			return mutations, err
		}
		mutations++
	}

	return mutations, nil
}

// mutate performs one cart mutation under the mutation guard, then waits
// for the backend to settle before anything re-reads the cart.
func (r *Reconciler) mutate(verb string, fn func() error) error {
	r.mu.Lock()
	r.mutating = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.mutating = false
		r.mu.Unlock()
	}()

	if err := fn(); err != nil {
		r.logger.Printf("reconciler cart=%s: %s failed: %v", r.cartID, verb, err)
		return err
	}
	metrics.RecordCartMutation(verb)
	time.Sleep(r.opts.SettleDelay)
	return nil
}

func (r *Reconciler) withRetry(op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if r.ctx.Err() != nil {
			return err
		}
		if attempt < r.opts.MaxAttempts {
			time.Sleep(r.opts.RetryBackoff * time.Duration(attempt))
		}
	}
	r.logger.Printf("reconciler cart=%s: %s failed after %d attempts: %v", r.cartID, op, r.opts.MaxAttempts, err)
	return fmt.Errorf("%s: %w", op, err)
}

func goalKey(s evaluator.GoalSatisfaction) string {
	return s.CampaignID + ":" + strconv.FormatFloat(s.Goal.Target.Float(), 'f', -1, 64)
}

func hasExistingGift(cart models.CartSnapshot, ids []string) bool {
	for _, id := range ids {
		if findTagged(cart, id, models.AttrFreeGift) != nil {
			return true
		}
	}
	return false
}

func findTagged(cart models.CartSnapshot, variantID, tag string) *models.CartLine {
	return cart.FindLine(variantID, func(l models.CartLine) bool {
		if tag == models.AttrFreeGift {
			return l.IsTieredGift()
		}
		return l.HasAttribute(tag, "true")
	})
}

// orphanLines returns reward-tagged lines whose owning condition is no
// longer satisfied and which no other still-satisfied campaign claims.
func orphanLines(cart models.CartSnapshot, desired map[string]desiredReward) []models.CartLine {
	var out []models.CartLine
	for _, l := range cart.RewardLines() {
		if _, ok := desired[l.VariantID]; !ok {
			out = append(out, l)
		}
	}
	return out
}

func sortedKeys(m map[string]desiredReward) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func intersect(chosen, allowed []string) []string {
	allowedSet := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = true
	}
	var out []string
	for _, id := range chosen {
		if allowedSet[id] {
			out = append(out, id)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
