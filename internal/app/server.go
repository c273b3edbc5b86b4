// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mileage-service/internal/config"
	"mileage-service/internal/db"
	tripHandler "mileage-service/internal/handlers/trip"
	wsHandler "mileage-service/internal/handlers/websocket"
	"mileage-service/internal/middleware"
	"mileage-service/internal/pkg/jwt"
	"mileage-service/internal/pkg/lock"
	"mileage-service/internal/pkg/metrics"
	"mileage-service/internal/repository/postgres"
	auditsvc "mileage-service/internal/service/audit"
	"mileage-service/internal/service/mileage"
	"mileage-service/internal/websocket"
	wsHandlers "mileage-service/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

type Server struct {
	cfg        config.AppConfig
	engine     *gin.Engine
	httpServer *http.Server
	logger     *zap.Logger

	// Run in reverse order on shutdown
	closers []func()
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	return &Server{cfg: cfg, engine: gin.New(), logger: logger}
}

// Init connects the stores and wires every component. Start must not be
// called before Init succeeds.
func (s *Server) Init(ctx context.Context) error {
	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, db.PostgresConfig{URL: s.cfg.DatabaseURL, MaxConns: s.cfg.DBMaxConns})
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	s.closers = append(s.closers, pool.Close)
	s.logger.Info("connected to PostgreSQL")

	dbWrapper := postgres.NewDB(pool)
	if err := dbWrapper.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	// ----- Chain lock -----
	locker, err := s.buildLocker(ctx)
	if err != nil {
		return err
	}

	// ----- JWT -----
	verifier, err := jwt.LoadVerifier(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT verifier: %w", err)
	}

	// ----- Metrics -----
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// ----- Repositories -----
	tripRepo := postgres.NewTripRepository(dbWrapper)
	auditRepo := postgres.NewAuditLogRepository(dbWrapper)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(verifier, s.logger)
	if err := hub.RegisterHandler(wsHandlers.NewAuditHistoryHandler(auditRepo)); err != nil {
		return err
	}
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)
	s.closers = append(s.closers, stopHub)

	// ----- Services -----
	sink := auditsvc.MultiSink{auditRepo, auditsvc.NewLogSink(s.logger), hub}
	mileageService := mileage.NewService(
		tripRepo,
		locker,
		sink,
		m,
		s.logger,
		mileage.WithLockTimeout(s.cfg.LockTimeout),
		mileage.WithFleetWorkers(s.cfg.AuditWorkers),
	)

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RecoveryMiddleware(s.logger),
		middleware.LoggingMiddleware(s.logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	SetupRouter(s.engine, &Handlers{
		TripHandler:    tripHandler.NewTripHandler(mileageService, auditRepo, s.logger),
		ChainHandler:   tripHandler.NewChainHandler(mileageService, s.logger),
		WSHandler:      wsHandler.NewWebSocketHandler(hub, s.cfg.AllowedOrigins, s.logger),
		AuthMiddleware: middleware.NewAuthMiddleware(verifier),
	}, registry)

	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

func (s *Server) buildLocker(ctx context.Context) (lock.Locker, error) {
	switch s.cfg.LockBackend {
	case config.LockRedis:
		client, err := db.NewRedisClient(ctx, db.RedisConfig{
			Addresses: s.cfg.RedisAddrs,
			Password:  s.cfg.RedisPass,
			PoolSize:  10,
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { client.Close() })
		s.logger.Info("using Redis chain lock", zap.Strings("addrs", s.cfg.RedisAddrs))
		return lock.NewRedisLocker(client, s.cfg.LockTTL), nil

	case config.LockLocal, "":
		s.logger.Info("using in-process chain lock")
		return lock.NewLocalLocker(), nil

	default:
		return nil, fmt.Errorf("unknown LOCK_BACKEND %q", s.cfg.LockBackend)
	}
}

// Start serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	if s.httpServer == nil {
		return errors.New("server not initialized")
	}
	s.logger.Info("server running", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the stores.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
	return err
}
