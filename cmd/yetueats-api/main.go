// README: API entrypoint: config, backend wiring, graceful shutdown.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MetricCode/yetueats-orders/internal/config"
	apihttp "github.com/MetricCode/yetueats-orders/internal/http"
	"github.com/MetricCode/yetueats-orders/internal/infra"
	"github.com/MetricCode/yetueats-orders/internal/maps"
	"github.com/MetricCode/yetueats-orders/internal/modules/autoaccept"
	"github.com/MetricCode/yetueats-orders/internal/modules/history"
	"github.com/MetricCode/yetueats-orders/internal/modules/order"
	"github.com/MetricCode/yetueats-orders/internal/modules/pricing"
	"github.com/MetricCode/yetueats-orders/internal/modules/restaurant"
	"github.com/MetricCode/yetueats-orders/internal/modules/tracking"
	"github.com/MetricCode/yetueats-orders/internal/notify"
	"github.com/MetricCode/yetueats-orders/internal/store"
	"github.com/MetricCode/yetueats-orders/internal/types"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	deps := apihttp.Deps{}

	// Firebase backs both the firestore store and push notifications; the
	// memory backend runs without it for local development.
	var fb *infra.Firebase
	if cfg.Firebase.ProjectID != "" {
		fb, err = infra.NewFirebase(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile, cfg.Firebase.DatabaseURL)
		if err != nil {
			log.Fatalf("initializing firebase: %v", err)
		}
		defer fb.Close()
		deps.Verifier = fb.Verifier()
		if fb.Database != nil {
			deps.Tracker = tracking.NewTracker(fb.Database)
		}
	}

	var orderStore order.Store
	var profiles restaurant.Reader
	switch cfg.Store.Backend {
	case "firestore":
		if fb == nil {
			log.Fatal("firestore backend requires YETU_FIREBASE_PROJECT_ID")
		}
		orderStore = store.NewFirestore(fb.Firestore, cfg.Store.OrdersCollection)
		profiles = restaurant.NewFirestoreReader(fb.Firestore, cfg.Store.ProfilesCollection)
	case "memory":
		orderStore = store.NewMemory()
		// Dev fixture so the API is usable out of the box.
		profiles = restaurant.NewStaticReader(&restaurant.Profile{
			ID:       "r1",
			Name:     "Demo Kitchen",
			IsActive: true,
			Rates: restaurant.Rates{
				ServiceChargePercent: 10,
				TaxPercent:           16,
				DeliveryFee:          types.Money{Amount: 100, Currency: "KES"},
				MinimumOrder:         types.Money{Amount: 500, Currency: "KES"},
			},
		})
		log.Println("using in-memory order store; orders do not survive restarts")
	default:
		log.Fatalf("unknown store backend %q", cfg.Store.Backend)
	}
	deps.Store = orderStore
	deps.Profiles = profiles

	notifiers := notify.Multi{}
	if fb != nil && fb.Messaging != nil {
		notifiers = append(notifiers, notify.NewFCM(fb.Messaging))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		k := notify.NewKafka(cfg.Kafka.Brokers, "yetueats-orders")
		defer k.Close()
		notifiers = append(notifiers, k)
	}

	opts := []order.Option{order.WithStoreTimeout(cfg.StoreTimeout)}
	if len(notifiers) > 0 {
		opts = append(opts, order.WithNotifier(notifiers))
	}
	if cfg.Journal.DSN != "" {
		pool, err := infra.NewDB(ctx, cfg.Journal.DSN)
		if err != nil {
			log.Fatalf("connecting journal database: %v", err)
		}
		defer pool.Close()
		deps.Journal = history.NewJournal(pool)
		opts = append(opts, order.WithJournal(deps.Journal))
	}

	orders := order.NewService(orderStore, pricing.NewEngine(), profiles, opts...)
	deps.Orders = orders

	var dedup autoaccept.Dedup
	if cfg.Redis.Addr != "" {
		dedup = autoaccept.NewRedisDedup(infra.NewRedis(cfg.Redis.Addr))
	}
	actor := autoaccept.NewActor(orderStore, orders, profiles, dedup, cfg.AutoAccept.GraceDelay)
	defer actor.Close()
	deps.AutoAccept = actor

	if cfg.Maps.APIKey != "" {
		eta, err := maps.NewETAService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatalf("initializing maps client: %v", err)
		}
		deps.ETA = eta
	}

	srv := apihttp.NewServer(cfg.HTTP.Addr, apihttp.Router(deps))
	go func() {
		log.Printf("listening on %s (store backend %s)", cfg.HTTP.Addr, cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
