// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"waitlist-service/internal/config"
	"waitlist-service/internal/db"
	authHandler "waitlist-service/internal/handlers/auth"
	establishmentHandler "waitlist-service/internal/handlers/establishment"
	wsHandler "waitlist-service/internal/handlers/websocket"
	"waitlist-service/internal/middleware"
	"waitlist-service/internal/pkg/jwt"
	"waitlist-service/internal/pkg/session"
	"waitlist-service/internal/repository/memory"
	"waitlist-service/internal/repository/postgres"
	authUsecase "waitlist-service/internal/service/auth"
	queueUsecase "waitlist-service/internal/service/queue"
	"waitlist-service/internal/telemetry"
	"waitlist-service/internal/websocket"
	wsHandlers "waitlist-service/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	serviceName     = "waitlist-service"
	shutdownTimeout = 10 * time.Second
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{cfg: cfg, engine: gin.New(), logger: logger}
}

// stores is the storage backend selected by STORE_BACKEND.
type stores struct {
	queues         queueUsecase.QueueStore
	customers      queueUsecase.CustomerStore
	establishments authUsecase.EstablishmentRepository
	pingers        map[string]Pinger
	close          func()
}

func (s *Server) openStores(ctx context.Context) (*stores, error) {
	switch s.cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		pg := postgres.NewDB(pool)
		s.logger.Info("store backend ready", zap.String("backend", "postgres"))
		return &stores{
			queues:         pg.Queues(),
			customers:      pg.Customers(),
			establishments: pg.Establishments(),
			pingers:        map[string]Pinger{"postgres": pg},
			close:          pg.Close,
		}, nil

	default:
		customers := memory.NewCustomerStore()
		s.logger.Info("store backend ready", zap.String("backend", "memory"))
		return &stores{
			queues:         memory.NewQueueStore(customers),
			customers:      customers,
			establishments: memory.NewEstablishmentStore(),
			pingers:        map[string]Pinger{},
			close:          func() {},
		}, nil
	}
}

// Run serves until ctx is cancelled, then drains connections and background work.
func (s *Server) Run(ctx context.Context) error {
	logger := s.logger

	// ----- Tracing -----
	shutdownTracing := telemetry.Setup(ctx, s.cfg.Tracing, serviceName, logger)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	// ----- Storage -----
	st, err := s.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	// ----- Redis (optional) -----
	var redisClient *redis.Client
	if s.cfg.RedisAddr != "" {
		redisClient, err = db.NewRedisClient(ctx, db.RedisConfig{
			Addresses: []string{s.cfg.RedisAddr},
			Password:  s.cfg.RedisPass,
			DB:        s.cfg.RedisDB,
			PoolSize:  10,
		})
		if err != nil {
			return err
		}
		defer redisClient.Close()
		st.pingers["redis"] = redisPinger{redisClient}
		logger.Info("redis connected", zap.String("addr", s.cfg.RedisAddr))
	} else {
		logger.Warn("REDIS_ADDR not set: sessions, rate limits and cross-instance fanout disabled")
	}

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}
	if jwtManager.Ephemeral {
		logger.Warn("JWT keys not found, using an ephemeral key; tokens will not survive a restart")
	}

	// ----- Services (Usecases) -----
	queueService := queueUsecase.NewService(st.queues, st.customers, logger)

	var (
		sessions    authUsecase.SessionStore
		limiter     authUsecase.LoginLimiter
		rateLimiter *session.RateLimiter
	)
	if redisClient != nil {
		sessions = session.NewManager(redisClient)
		rateLimiter = session.NewRateLimiter(redisClient)
		limiter = rateLimiter
	}
	authService := authUsecase.NewAuthService(st.establishments, jwtManager, sessions, limiter, logger)
	if err := authService.ConfigureSuperAdmin(s.cfg.SuperAdminPassword); err != nil {
		return err
	}

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(queueService, logger)
	queueWSHandler := wsHandlers.NewQueueHandler(queueService, hub, logger)
	if rateLimiter != nil {
		queueWSHandler.WithJoinLimit(rateLimiter, s.cfg.JoinLimitPerMinute)
	}
	hub.RegisterHandler(queueWSHandler)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer func() {
		stopHub()
		<-hub.Done()
	}()
	go hub.Run(hubCtx)

	// Peers re-read the store on each announcement, so the relay only makes
	// sense when that store is shared.
	if redisClient != nil && s.cfg.SharedStore() {
		relay := websocket.NewRelay(redisClient, hub, logger)
		go func() {
			if err := relay.Run(hubCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("room relay stopped", zap.Error(err))
			}
		}()
	} else if redisClient != nil {
		logger.Info("room relay disabled: memory backend is local to this instance")
	}

	// ----- Retention -----
	retention := queueUsecase.NewRetention(st.queues, s.cfg.RetentionSchedule, s.cfg.RetentionMaxAge, logger)
	if err := retention.Start(); err != nil {
		return err
	}
	defer retention.Stop()

	// ----- Handlers -----
	handlers := &Handlers{
		AuthHandler:          authHandler.NewAuthHandler(authService, logger),
		EstablishmentHandler: establishmentHandler.NewEstablishmentHandler(authService, queueService, logger),
		WSHandler: wsHandler.NewWebSocketHandler(hub, wsHandler.Options{
			AllowedOrigins:    s.cfg.AllowedOrigins,
			MessagesPerSecond: s.cfg.WSMessagesPerSecond,
			MessageBurst:      s.cfg.WSMessageBurst,
		}, logger),
		AuthMiddleware: middleware.NewAuthMiddleware(authService),
		Pingers:        st.pingers,
	}

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(s.cfg.AllowedOrigins),
	)
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(s.engine, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", s.cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	return nil
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
