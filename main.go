package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/activity"
	"messaging-service/internal/auth"
	"messaging-service/internal/boost"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/ledger"
	"messaging-service/internal/media"
	"messaging-service/internal/messaging"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
	"messaging-service/internal/pricing"
	"messaging-service/internal/progression"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/social"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

const presenceKey = "messaging:presence"

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setupLogging(cfg.Server)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tracing")
	}

	database, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Info().Str("mode", rabbitmq.PublisherMode(publisher)).Str("reason", rabbitmq.PublisherNoopReason(publisher)).Msg("event publisher ready")

	tracker, closePresence := newPresence(ctx, cfg.Redis)
	defer closePresence()

	table, err := pricing.FromConfig(cfg.Pricing)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid pricing table")
	}
	ladder, err := progression.NewLadder(cfg.VIP.Thresholds)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid vip thresholds")
	}
	mediaStore, err := media.NewDiskStore(cfg.Media.Dir, cfg.Media.BaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare media store")
	}

	accountRepo := repositories.NewAccountRepo(database)
	ledgerRepo := repositories.NewLedgerRepo(database)
	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	boostRepo := repositories.NewBoostRepo(database)
	socialRepo := repositories.NewSocialRepo(database)
	activityRepo := repositories.NewActivityRepo(database)

	hub := ws.NewHub()
	emitter := telemetry.NewAuditEmitter(publisher, cfg.AMQP.ActivityRoutingKey, cfg.Tracing.ServiceName, cfg.Server.Environment)
	feed := activity.NewFeed(activityRepo, cfg.Activity.QueueSize, hub, emitter)
	go feed.Run(ctx)

	coins := ledger.New(ledgerRepo, cfg.Ledger.LockTimeout)
	pipeline := messaging.NewPipeline(messaging.Deps{
		Accounts:    accountRepo,
		Chats:       chatRepo,
		Messages:    messageRepo,
		Pricing:     table,
		Ledger:      coins,
		Media:       mediaStore,
		Broadcaster: hub,
	})
	progress := progression.NewService(ladder, coins, accountRepo, feed)
	scheduler := boost.NewScheduler(coins, boostRepo, feed)
	socialService := social.NewService(accountRepo, socialRepo, tracker, feed)
	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	api := handlers.Handlers{
		Chat:   handlers.NewChatHandler(pipeline),
		Wallet: handlers.NewWalletHandler(coins, table),
		Boost:  handlers.NewBoostHandler(scheduler, hub),
		VIP:    handlers.NewVIPHandler(progress, hub),
		Social: handlers.NewSocialHandler(socialService),
		Admin: handlers.NewAdminHandler(handlers.AdminDeps{
			Ledger:      coins,
			Progression: progress,
			Accounts:    accountRepo,
			Feed:        feed,
			Notifier:    hub,
		}),
	}
	wsHandler := ws.NewHandler(ws.Deps{
		Hub:      hub,
		Pipeline: pipeline,
		Verifier: verifier,
		Accounts: accountRepo,
		Presence: tracker,
		Recorder: feed,
		Config:   cfg.WS,
	})

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	router.Use(observability.RequestIDMiddleware())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if strings.HasPrefix(cfg.Media.BaseURL, "/") {
		router.Static(cfg.Media.BaseURL, mediaStore.Dir())
	}
	router.GET("/ws", wsHandler.Handle)

	authMiddleware := middleware.AuthMiddleware(verifier, accountRepo, feed)
	api.Register(router, authMiddleware)
	handlers.RegisterDebugRoutes(router.Group("/", authMiddleware), emitter, cfg.Server.Debug)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Server.Environment).Msg("messaging service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("tracer shutdown failed")
	}
}

func setupLogging(cfg config.ServerConfig) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// newPresence uses Redis when configured and reachable, memory otherwise.
func newPresence(ctx context.Context, cfg config.RedisConfig) (presence.Tracker, func()) {
	if cfg.Addr == "" {
		log.Info().Msg("redis disabled, presence kept in memory")
		return presence.NewMemoryTracker(), func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unreachable, presence kept in memory")
		_ = client.Close()
		return presence.NewMemoryTracker(), func() {}
	}
	return presence.NewRedisTracker(client, presenceKey), func() { _ = client.Close() }
}
