package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"registrar/internal/dedupe"
	"registrar/internal/drafts"
	"registrar/internal/fhir"
	"registrar/internal/notification"
	"registrar/internal/platform/config"
	"registrar/internal/platform/httpserver"
	"registrar/internal/platform/jwt"
	platformkafka "registrar/internal/platform/kafka"
	kafkaproducer "registrar/internal/platform/kafka/producer"
	"registrar/internal/platform/logger"
	platformmetrics "registrar/internal/platform/metrics"
	platformredis "registrar/internal/platform/redis"
	"registrar/internal/record/handler"
	recordmetrics "registrar/internal/record/metrics"
	"registrar/internal/record/service"
	"registrar/internal/record/store"
	storememory "registrar/internal/record/store/memory"
	storepostgres "registrar/internal/record/store/postgres"
	"registrar/internal/search"
	"registrar/internal/synchronizer"
	"registrar/internal/validationqueue"
	"registrar/internal/webhook"
	audit "registrar/pkg/platform/audit"
	auditpublisher "registrar/pkg/platform/audit/publisher"
	auditmemory "registrar/pkg/platform/audit/store/memory"
	auditpostgres "registrar/pkg/platform/audit/store/postgres"
	auditworker "registrar/pkg/platform/audit/worker"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps
// the server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Action log store. Postgres when configured, in-memory otherwise.
	var (
		recordStore store.Store
		db          *sql.DB
	)
	if cfg.Postgres.URL != "" {
		var err error
		db, err = sql.Open("pgx", cfg.Postgres.URL)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pgStore := storepostgres.NewPostgres(db)
		if err := pgStore.Migrate(ctx); err != nil {
			log.Error("migrate record schema", "error", err)
			os.Exit(1)
		}
		recordStore = pgStore
	} else {
		recordStore = storememory.NewInMemoryStore()
		log.Warn("no postgres configured, using in-memory action log")
	}

	// Draft store. Redis when configured.
	var draftStore drafts.Store = drafts.NewInMemoryStore()
	if redisClient, err := platformredis.New(cfg.Redis); err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	} else if redisClient != nil {
		defer redisClient.Close()
		draftStore = drafts.NewRedisStore(redisClient.Client, cfg.DraftTTL)
	}

	// Audit trail. Postgres outbox when available, in-memory otherwise.
	var auditStore audit.Store = auditmemory.NewInMemoryStore()
	var auditPg *auditpostgres.Store
	if db != nil {
		auditPg = auditpostgres.New(db)
		if err := auditPg.Migrate(ctx); err != nil {
			log.Error("migrate audit schema", "error", err)
			os.Exit(1)
		}
		auditStore = auditPg
	}
	auditPub := auditpublisher.NewPublisher(auditStore,
		auditpublisher.WithAsyncBuffer(256),
		auditpublisher.WithLogger(log),
	)
	defer auditPub.Close()

	// Kafka: validation queue plus audit relay, when brokers are set.
	var reviews validationqueue.Reviewer = validationqueue.NopQueue{}
	if len(cfg.Kafka.Brokers) > 0 {
		topics := []string{
			validationqueue.Topic,
			auditworker.TopicFor(audit.CategoryCompliance),
			auditworker.TopicFor(audit.CategorySecurity),
			auditworker.TopicFor(audit.CategoryOperations),
		}
		if err := platformkafka.EnsureTopics(ctx, cfg.Kafka.Brokers, topics...); err != nil {
			log.Error("ensure kafka topics", "error", err)
			os.Exit(1)
		}
		producer, err := kafkaproducer.New(kafkaproducer.Config{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
		}, log)
		if err != nil {
			log.Error("create kafka producer", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		reviews = validationqueue.New(producer)

		if auditPg != nil {
			relay := auditworker.NewRelay(db, producer, log)
			go func() {
				if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
					log.Error("audit relay stopped", "error", err)
				}
			}()
		}
	}

	// Downstream persistence store for record bundles.
	var fhirClient fhir.Client = fhir.NewInMemoryClient()
	if cfg.Upstreams.FHIRBaseURL != "" {
		fhirClient = fhir.NewHTTPClient(cfg.Upstreams.FHIRBaseURL)
	}

	var notifier notification.Notifier = notification.NopNotifier{}
	if cfg.Upstreams.NotificationURL != "" {
		notifier = notification.NewGatewayNotifier(cfg.Upstreams.NotificationURL)
	}

	searchClient := search.NewInMemoryClient()
	rules := dedupe.NewConfigStore(dedupe.StaticRules(dedupe.DefaultRules()), cfg.DedupeRuleTTL)
	engine := dedupe.NewEngine(searchClient, rules, log)

	webhooks := webhook.NewDispatcher(log)
	recMetrics := recordmetrics.New()

	sync := synchronizer.New(recordStore, fhirClient, log,
		synchronizer.WithSearch(searchClient),
		synchronizer.WithAudit(auditPub),
		synchronizer.WithWebhooks(webhooks),
		synchronizer.WithNotifier(notifier),
		synchronizer.WithReviewQueue(reviews),
		synchronizer.WithMetrics(recMetrics),
	)

	records := service.NewService(recordStore, sync, log,
		service.WithDrafts(draftStore),
		service.WithDeduper(engine),
		service.WithMetrics(recMetrics),
	)

	httpMetrics := platformmetrics.New()
	jwtValidator := jwt.NewValidator(cfg.Server.JWTSigningKey)
	recordHandler := handler.New(records, log, httpMetrics, jwtValidator, auditPub)

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	recordHandler.Register(router)

	srv := httpserver.New(cfg.Server.Addr, router)

	go func() {
		log.Info("starting registrar", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
