package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waypost/internal/audit"
	authhandler "waypost/internal/auth/handler"
	authservice "waypost/internal/auth/service"
	refreshtoken "waypost/internal/auth/store/refresh-token"
	userstore "waypost/internal/auth/store/user"
	badgehandler "waypost/internal/badge/handler"
	badgeservice "waypost/internal/badge/service"
	badgestore "waypost/internal/badge/store"
	"waypost/internal/confidence"
	confidencehandler "waypost/internal/confidence/handler"
	"waypost/internal/db"
	jwttoken "waypost/internal/jwt_token"
	"waypost/internal/platform/config"
	"waypost/internal/platform/httpserver"
	"waypost/internal/platform/logger"
	"waypost/internal/platform/metrics"
	platformredis "waypost/internal/platform/redis"
	httptransport "waypost/internal/transport/http"
	venuehandler "waypost/internal/venue/handler"
	venueservice "waypost/internal/venue/service"
	venuestore "waypost/internal/venue/store"
	verify "waypost/internal/verify"
	verifyhandler "waypost/internal/verify/handler"
)

// badgeStore is the union of what the badge lifecycle and the public
// resolver need from one backing store.
type badgeStore interface {
	badgeservice.Store
	verify.BadgeSource
}

// main wires dependencies and owns the server lifecycle. Stores fall back to
// their in-memory variants when the backing service is not configured, so a
// bare `go run` gives a working dev instance.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New(cfg.Env)
	m := metrics.New()

	ctx := context.Background()

	var database *sql.DB
	if cfg.DatabaseURL != "" {
		database, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer database.Close()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var publisher audit.Publisher
	var kafkaPublisher *audit.KafkaPublisher
	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		kafkaPublisher, err = audit.NewKafkaPublisher(brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Error("connect kafka", slog.String("error", err.Error()))
			os.Exit(1)
		}
		publisher = kafkaPublisher
	} else {
		publisher = audit.NewMemoryPublisher()
		log.Info("kafka brokers not configured, auditing in memory")
	}

	// Feature stores: postgres when a database is configured, memory
	// otherwise. Refresh tokens and the level cache prefer redis.
	var (
		users   authservice.UserStore
		venues  venueservice.Store
		badges  badgeStore
		refresh authservice.RefreshTokenStore
		cache   confidence.Cache
	)
	if database != nil {
		users = userstore.NewPostgres(database)
		venues = venuestore.NewPostgres(database)
		badges = badgestore.NewPostgres(database)
	} else {
		users = userstore.New()
		venues = venuestore.New()
		badges = badgestore.New()
		log.Info("database not configured, storing in memory")
	}
	if redisClient != nil {
		refresh = refreshtoken.NewRedis(redisClient.Client)
		cache = confidence.NewRedisCache(redisClient.Client)
	} else {
		refresh = refreshtoken.New()
		cache = confidence.NewMemoryCache()
	}

	tokens := jwttoken.New(cfg.SigningKey(), cfg.JWTIssuer, cfg.JWTAudience)

	authSvc := authservice.New(users, refresh, tokens, log, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	venueSvc := venueservice.New(venues, cache, publisher, m, log)
	badgeSvc := badgeservice.New(badges, venues, publisher, m, log, cfg.BadgeTTL)
	confidenceSvc := confidence.NewService(venues, cache, log)
	resolver := verify.NewResolver(badges, venues, m, log)

	health := map[string]httptransport.HealthChecker{}
	if database != nil {
		health["postgres"] = database.PingContext
	}
	if redisClient != nil {
		health["redis"] = redisClient.Health
	}

	router := httptransport.NewRouter(httptransport.Options{
		Logger:  log,
		Metrics: m,
		Features: []httptransport.Registrar{
			authhandler.New(authSvc, log, tokens),
			venuehandler.New(venueSvc, log, tokens),
			confidencehandler.New(confidenceSvc),
			badgehandler.New(badgeSvc, log, tokens),
			verifyhandler.New(resolver),
		},
		Health: health,
	})

	srv := httpserver.New(cfg.HTTPAddr, router)
	log.Info("starting waypost", slog.String("addr", cfg.HTTPAddr), slog.String("env", cfg.Env))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(shutdownCtx); err != nil {
			log.Error("kafka close failed", slog.String("error", err.Error()))
		}
	}
}
