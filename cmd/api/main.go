package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yemeli/swiftride/internal/geo"
	"github.com/yemeli/swiftride/internal/notifications"
	"github.com/yemeli/swiftride/internal/payments"
	"github.com/yemeli/swiftride/internal/realtime"
	"github.com/yemeli/swiftride/internal/rides"
	"github.com/yemeli/swiftride/internal/users"
	"github.com/yemeli/swiftride/internal/wallet"
	"github.com/yemeli/swiftride/pkg/common"
	"github.com/yemeli/swiftride/pkg/config"
	"github.com/yemeli/swiftride/pkg/database"
	"github.com/yemeli/swiftride/pkg/eventbus"
	"github.com/yemeli/swiftride/pkg/logger"
	"github.com/yemeli/swiftride/pkg/middleware"
	"github.com/yemeli/swiftride/pkg/redis"
	"github.com/yemeli/swiftride/pkg/validation"
	ws "github.com/yemeli/swiftride/pkg/websocket"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load("api")
	if err != nil {
		panic(err)
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer database.Close(pool)

	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	var bus eventbus.Bus
	if cfg.NATS.Enabled {
		natsBus, err := eventbus.NewNATSBus(cfg.NATS.URL)
		if err != nil {
			logger.Fatal("failed to connect to nats", zap.Error(err))
		}
		bus = natsBus
	} else {
		logger.Info("nats disabled, using in-process event bus")
		bus = eventbus.NewMemoryBus()
	}
	defer bus.Close()

	// Repositories
	usersRepo := users.NewRepository(pool)
	ridesRepo := rides.NewRepository(pool)
	walletRepo := wallet.NewRepository(pool)

	// Driver location index
	index := geo.NewRedisIndex(redisClient)
	geoService := geo.NewService(index)

	// Wallet and payments
	gateway := payments.NewStripeGateway(cfg.Payments.StripeSecretKey)
	walletService := wallet.NewService(walletRepo, gateway, bus, cfg.Payments)

	// Dispatch and ride lifecycle
	matchingCfg := rides.DefaultMatchingConfig()
	matchingCfg.RadiusKm = cfg.Business.DispatchRadiusKm
	matchingCfg.MaxDrivers = cfg.Business.DispatchMaxDrivers
	dispatcher := rides.NewDispatcher(matchingCfg, index, ridesRepo, bus)
	ridesService := rides.NewService(ridesRepo, usersRepo, index, dispatcher, walletService, bus, cfg.Business)

	// Realtime fan-out
	hub := ws.NewHub()
	go hub.Run()
	realtimeHandler := realtime.NewHandler(hub, geoService)

	notificationsHandler := notifications.NewEventHandler(notifications.NewService(hub))
	if err := notificationsHandler.RegisterSubscriptions(ctx, bus); err != nil {
		logger.Fatal("failed to subscribe notifications", zap.Error(err))
	}
	paymentsCollector := payments.NewEventHandler(walletService)
	if err := paymentsCollector.RegisterSubscriptions(ctx, bus); err != nil {
		logger.Fatal("failed to subscribe payments collector", zap.Error(err))
	}

	// Stale pending rides get system-cancelled in the background
	go ridesService.RunExpiryLoop(ctx, time.Minute)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	validation.RegisterGinValidators()
	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery())
	router.Use(middleware.Metrics(cfg.Server.ServiceName))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.MaxBodySize(1 << 20))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = strings.Split(cfg.Server.CORSOrigins, ",")
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", "X-Correlation-ID")
	router.Use(cors.New(corsCfg))

	router.GET("/health", common.HealthCheckWithDeps(cfg.Server.ServiceName, version, map[string]func() error{
		"postgres": func() error { return pool.Ping(context.Background()) },
		"redis":    func() error { return redisClient.Ping(context.Background()).Err() },
	}))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	jwtSecret := cfg.JWT.Secret
	geo.NewHandler(geoService, geo.HandlerConfig{
		DefaultRadiusKm: cfg.Business.DispatchRadiusKm,
		MaxDrivers:      cfg.Business.DispatchMaxDrivers,
	}).RegisterRoutes(router, jwtSecret)
	rides.NewHandler(ridesService).RegisterRoutes(router, jwtSecret)
	wallet.NewHandler(walletService).RegisterRoutes(router, jwtSecret)
	payments.NewHandler(walletService, ridesRepo).RegisterRoutes(router)
	realtimeHandler.RegisterRoutes(router, jwtSecret)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("environment", cfg.Server.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
