package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"coffee-market/internal/config"
	"coffee-market/internal/database"
	"coffee-market/internal/metrics"
	custommiddleware "coffee-market/internal/middleware"
	"coffee-market/internal/repository"
	"coffee-market/internal/service"
	"coffee-market/internal/signature"
	"coffee-market/internal/token"
	"coffee-market/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config  *config.Config
	logger  *zap.Logger
	db      database.Service
	redis   *redis.Client
	metrics *metrics.Metrics
}

// NewServer wires repositories, services and handlers into one router.
// redisClient may be nil, in which case rate limiting stays in process.
func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) *Server {
	m := metrics.New()

	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.MetricsMiddleware(m))
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.IsDevelopment()))
	router.Use(custommiddleware.ValidationMiddleware(logger))

	router.Get("/health", healthHandler(db, redisClient))
	router.Method(http.MethodGet, "/metrics", m.Handler())

	// Initialize repositories
	sqlDB := db.DB()
	userRepo := repository.NewUserRepository(sqlDB)
	productRepo := repository.NewProductRepository(sqlDB)
	uow := repository.NewUnitOfWork(sqlDB)

	// Initialize services
	issuer := token.NewIssuer(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessExpiry)*time.Minute)
	authService := service.NewAuthService(
		userRepo,
		uow,
		signature.NewEthereumRecoverer(),
		issuer,
		service.NewNonceGenerator(cfg.Auth.NonceDigits),
		m,
		logger,
	)
	purchaseService := service.NewPurchaseService(uow, cfg.Purchase.MaxRetries, m, logger)
	catalogService := service.NewCatalogService(
		productRepo,
		repository.NewCategoryRepository(sqlDB),
		repository.NewCartRepository(sqlDB),
		repository.NewTransactionRepository(sqlDB),
		userRepo,
		logger,
	)

	// Anonymous auth calls are limited per host, authenticated calls per wallet.
	limit := rateLimiter(cfg, redisClient, logger)
	authenticate := custommiddleware.AuthMiddleware(authService, logger)
	protected := func(next http.Handler) http.Handler {
		return authenticate(limit(next))
	}

	// Register routes
	transport.NewAuthHandler(authService, logger).RegisterRoutes(router, limit)
	transport.NewProductHandler(catalogService, purchaseService, logger).RegisterRoutes(router, protected)
	transport.NewAccountHandler(catalogService, logger).RegisterRoutes(router, protected)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:  cfg,
		logger:  logger,
		db:      db,
		redis:   redisClient,
		metrics: m,
	}
}

func rateLimiter(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) func(http.Handler) http.Handler {
	if redisClient != nil {
		return custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
			KeyPrefix:         "coffee_market:ratelimit",
		}, logger)
	}
	return custommiddleware.NewLocalRateLimiter(float64(cfg.RateLimit.PerSecond), cfg.RateLimit.Burst).Middleware(logger)
}

func healthHandler(db database.Service, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]any{"status": "ok"}

		dbHealth := db.Health()
		body["database"] = dbHealth
		if dbHealth["status"] != "up" {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}

		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				body["redis"] = "down"
			} else {
				body["redis"] = "up"
			}
		}

		custommiddleware.RespondWithJSON(w, status, body)
	}
}

// NewRedisClient connects to the configured Redis, or returns nil when none is configured.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
