package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cart-promotion-engine/internal/cache"
	"cart-promotion-engine/internal/cartclient"
	"cart-promotion-engine/internal/config"
	"cart-promotion-engine/internal/database"
	"cart-promotion-engine/internal/events"
	"cart-promotion-engine/internal/features"
	"cart-promotion-engine/internal/handler"
	"cart-promotion-engine/internal/middleware"
	"cart-promotion-engine/internal/reconciler"
	"cart-promotion-engine/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "Path to JSON config file")
	port := flag.String("port", "", "Server port (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize database
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize tracing
	if _, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "cart-promotion-engine",
		Environment: cfg.Tracing.Environment,
	}); err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracing: %v", err)
		}
	}()

	// Campaign cache: Redis when configured, otherwise in-process
	var campaignCache cache.Cache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rc.Close()
		campaignCache = rc
		log.Printf("Campaign cache: redis (%s)", cfg.Redis.Addr)
	} else {
		campaignCache = cache.NewInMemoryCache()
		log.Printf("Campaign cache: in-memory")
	}

	// Feature flags
	flags := features.NewManager()
	flags.Register(features.FeatureGiftSelection, true, "Suspend passes for multi-product gift choices")
	flags.Register(features.FeatureDeliveryDiscounts, true, "Generate free shipping operations")
	flags.Register(features.FeatureCampaignCache, true, "Cache the campaign document between passes")
	flags.Register(features.FeatureReconciler, true, "Run per-cart reward reconciliation")

	// Event bus
	bus := events.NewBus(true)
	defer bus.Shutdown()
	bus.Subscribe(events.EventGiftChoiceRequired, func(ctx context.Context, e events.Event) error {
		if d, ok := e.Data.(events.GiftChoiceRequiredData); ok {
			log.Printf("Gift choice required: cart=%s campaign=%s candidates=%d", d.CartID, d.CampaignID, len(d.CandidateIDs))
		}
		return nil
	})
	bus.Subscribe(events.EventReconcileCompleted, func(ctx context.Context, e events.Event) error {
		d, ok := e.Data.(events.ReconcileCompletedData)
		if ok && d.Err != nil {
			log.Printf("Reconcile failed: cart=%s err=%v", d.CartID, d.Err)
		}
		return nil
	})

	// Reconciler manager: one reconciler per observed cart
	cartCli := cartclient.New(cfg.Cart.BaseURL, cartclient.Options{
		CartTTL:   time.Duration(cfg.Cart.CacheTTLMillis) * time.Millisecond,
		FetchRate: cfg.Cart.FetchRatePerSecond,
	})
	var sourceCache cache.Cache
	if flags.IsEnabled(features.FeatureCampaignCache) {
		sourceCache = campaignCache
	}
	source := reconciler.NewCachedSource(
		&reconciler.StoreFetcher{DB: db, Shop: cfg.Shop.Name},
		sourceCache,
		"campaigns:"+cfg.Shop.Name,
		time.Duration(cfg.Reconcile.CampaignTTLSeconds)*time.Second,
	)
	recOpts := reconciler.Options{
		Debounce:            time.Duration(cfg.Reconcile.DebounceMillis) * time.Millisecond,
		SettleDelay:         time.Duration(cfg.Reconcile.SettleDelayMillis) * time.Millisecond,
		VerifyDelay:         time.Duration(cfg.Reconcile.VerifyDelayMillis) * time.Millisecond,
		MaxAttempts:         cfg.Reconcile.MaxAttempts,
		RetryBackoff:        time.Duration(cfg.Reconcile.RetryBackoffMillis) * time.Millisecond,
		ShopTZOffsetMinutes: cfg.Shop.TZOffsetMinutes,
	}
	manager := reconciler.NewManager(func(cartID string) *reconciler.Reconciler {
		return reconciler.New(cartID, cartCli, source, nil, bus, log.Default(), recOpts)
	})
	defer manager.Close()

	// Initialize handlers
	h := handler.New(db, manager, flags, handler.Options{
		DefaultShop:     cfg.Shop.Name,
		TZOffsetMinutes: cfg.Shop.TZOffsetMinutes,
		MaxBodySize:     cfg.Security.MaxRequestBodySize,
	})

	// Setup router
	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
		defer rateLimiter.Stop()
		r.Use(middleware.RateLimit(rateLimiter))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.Security.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing())
	}

	// Routes
	r.Route("/discounts", func(r chi.Router) {
		r.Post("/cart-lines", h.CartLinesDiscounts)
		r.Post("/delivery-options", h.DeliveryDiscounts)
	})

	r.Put("/campaigns", h.SaveCampaigns)
	r.Get("/apps/cart/campaigns.json", h.GetCampaigns)

	r.Route("/carts", func(r chi.Router) {
		r.Post("/{cart_id}/events", h.CartEvent)
		r.Post("/{cart_id}/gift-choice", h.GiftChoice)
	})

	r.Handle("/metrics", promhttp.Handler())

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Printf("Database: %s", cfg.Database.Path)
	log.Printf("Shop: %s (tz offset %d minutes)", cfg.Shop.Name, cfg.Shop.TZOffsetMinutes)

	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}
