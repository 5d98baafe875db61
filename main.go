package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"ms-ticket-lifecycle/internal/analytics"
	analytics_api "ms-ticket-lifecycle/internal/analytics/api"
	"ms-ticket-lifecycle/internal/auth"
	"ms-ticket-lifecycle/internal/checkin"
	"ms-ticket-lifecycle/internal/checkin/checkin_api"
	"ms-ticket-lifecycle/internal/config"
	"ms-ticket-lifecycle/internal/database"
	"ms-ticket-lifecycle/internal/database/migrations"
	"ms-ticket-lifecycle/internal/kafka"
	"ms-ticket-lifecycle/internal/logger"
	"ms-ticket-lifecycle/internal/models"
	"ms-ticket-lifecycle/internal/monitoring"
	"ms-ticket-lifecycle/internal/scanner"
	"ms-ticket-lifecycle/internal/scanner/scanner_api"
	"ms-ticket-lifecycle/internal/sse"
	ticketdb "ms-ticket-lifecycle/internal/tickets/db"
	"ms-ticket-lifecycle/internal/tickets/qr"
	tickets "ms-ticket-lifecycle/internal/tickets/service"
	"ms-ticket-lifecycle/internal/tickets/ticket_api"
	"ms-ticket-lifecycle/internal/utils"
)

// publisher is the union of what the ticket service and the validator
// publish through.
type publisher interface {
	Publish(ctx context.Context, evt models.LifecycleEvent) error
}

func main() {
	cfg := config.Load()

	log := logger.NewLogger(logger.Options{
		Dir:     cfg.Log.Dir,
		Service: "ticket-lifecycle",
		Level:   logger.ParseLevel(cfg.Log.Level),
	})
	defer log.Close()

	log.Info("APP", "Starting Ticket Lifecycle Service initialization")
	if err := run(cfg, log); err != nil {
		log.Fatal("APP", err.Error())
	}
	log.Info("APP", "Ticket Lifecycle Service shutdown complete")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		// the runner shares bunDB's pool, so it is not closed here
		runner := migrations.NewRunner(bunDB, migrations.Options{Dir: cfg.Database.MigrationsDir, AutoMigrate: true}, log)
		if err := runner.RunMigrations(); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}

	var (
		cache       checkin.Cache
		redisClient *redis.Client
	)
	redisClient, err = database.ConnectRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Warn("REDIS", fmt.Sprintf("%v; check-in cache falls back to memory", err))
		cache = checkin.NewMemoryCache()
	} else {
		defer redisClient.Close()
		cache = checkin.NewRedisCache(redisClient, cfg.Redis.CacheTTL)
	}

	var (
		pub      publisher
		producer *kafka.Producer
		consumer *kafka.Consumer
	)
	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.TicketEvents, cfg.Kafka.Topics.CheckinEvents}
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, topics, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}

		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		defer producer.Close()
		pub = producer

		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.CheckinEvents, cfg.Kafka.GroupID, log)
		defer consumer.Close()
		log.Info("KAFKA", fmt.Sprintf("Kafka producer and consumer initialized (group %s)", cfg.Kafka.GroupID))
	} else {
		log.Warn("KAFKA", "Kafka disabled, lifecycle events are not published")
	}

	verifier, err := auth.NewVerifier(ctx, cfg.Auth)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	store := &ticketdb.DB{Bun: bunDB}
	ticketService := tickets.NewTicketService(store, &ticketdb.EventDB{DB: store}, pub, log)
	ticketService.MaxQuantity = cfg.Issue.MaxQuantity
	validator := checkin.NewValidator(checkin.NewLedger(bunDB), cache, pub, log)
	decoder := qr.NewDecodeClient(cfg.QR.DecodeURL, cfg.QR.HTTPTimeout)
	manager := scanner.NewManager(gCtx, log)

	ticketHandler := ticket_api.NewHandler(ticketService, qr.DefaultRenderOptions(cfg.QR), cfg.QR.EncodeURL, cfg.Issue.MaxAttempts, log)
	checkinHandler := checkin_api.NewHandler(validator, sse.NewCheckinEventEmitter(), log)
	scanHandler := scanner_api.NewHandler(manager, decoder, validator, cfg.Scanner, log)
	analyticsHandler := analytics_api.NewHandler(analytics.NewService(analytics.NewDB(bunDB)), log)

	r := newRouter(cfg, log, verifier, ticketHandler, checkinHandler, scanHandler, analyticsHandler)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g.Go(func() error {
		log.Info("HTTP", fmt.Sprintf("🚀 Ticket Lifecycle Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
		manager.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		log.Info("HTTP", "✅ HTTP server stopped")
		return nil
	})

	if consumer != nil {
		g.Go(func() error {
			return consumer.Run(gCtx, validator.HandleLifecycleEvent)
		})
	}

	g.Go(func() error {
		return monitoring.NewMonitor(redisClient, checkin.KeyCheckedIn()).Run(gCtx)
	})

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	return g.Wait()
}

func newRouter(
	cfg *config.Config,
	log *logger.Logger,
	verifier auth.Verifier,
	ticketHandler *ticket_api.Handler,
	checkinHandler *checkin_api.Handler,
	scanHandler *scanner_api.Handler,
	analyticsHandler *analytics_api.Handler,
) http.Handler {
	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", scanner_api.ClientSessionHeader},
		MaxAge:         300,
	}))
	r.Use(requestLogger(log))

	// --- Public Routes ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", nil))
	})
	r.Handle("/metrics", promhttp.Handler())

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier, log))
		log.Info("AUTH", "Token middleware applied to protected API routes")

		r.Route("/api", func(r chi.Router) {
			ticketHandler.Routes(r)
			log.Info("ROUTER", "Ticket routes registered under /api/tickets and /api/events")
			checkinHandler.Routes(r)
			log.Info("ROUTER", "Check-in routes registered under /api/checkin")
			scanHandler.Routes(r)
			log.Info("ROUTER", "Scanner routes registered under /api/scan")
			analyticsHandler.Routes(r)
			log.Info("ROUTER", "Attendance routes registered under /api/analytics")
		})
	})
	return r
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, fmt.Sprint(ww.Status()), time.Since(start).String())
		})
	}
}
