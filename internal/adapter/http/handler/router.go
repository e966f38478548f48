package handler

import (
	"net/http"

	"crypta-wallet/internal/adapter/http/middleware"
	redisStore "crypta-wallet/internal/adapter/storage/redis"
	"crypta-wallet/internal/core/ports"
	"crypta-wallet/internal/relay"
	"crypta-wallet/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	WalletSvc      ports.WalletService
	SettlementSvc  ports.SettlementService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Streamer       *relay.Streamer    // nil = websocket streams disabled
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler // nil = no /metrics endpoint
	CORSOrigins    []string     // nil = no CORS headers
	Mode           string       // gin mode; defaults to release
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	if len(deps.CORSOrigins) > 0 {
		r.Use(middleware.CORS(deps.CORSOrigins))
	}
	r.Use(middleware.RequestLogger(deps.Logger, deps.Metrics))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// Browser streams are public, like the exchange feeds they relay.
	if deps.Streamer != nil {
		ws := r.Group("/ws", rl("stream"))
		{
			ws.GET("/prices", deps.Streamer.Prices)
			ws.GET("/history", deps.Streamer.History)
		}
	}

	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.WalletSvc, deps.SettlementSvc)

	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("", rl("wallet"), walletHandler.GetWallet)
		wallet.GET("/transactions", rl("wallet"), walletHandler.ListTransactions)
		wallet.POST("/balance", rl("wallet"), walletHandler.SetBalance)
		wallet.POST("/buy", rl("trade"), walletHandler.Buy)
		wallet.POST("/sell", rl("trade"), walletHandler.Sell)
		wallet.POST("/swap", rl("trade"), walletHandler.Swap)
	}

	return r
}
