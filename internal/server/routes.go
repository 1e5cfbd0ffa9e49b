package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	// Set custom error handler for consistent JSON responses
	e.HTTPErrorHandler = NotFoundJSON()

	e.Use(SetNoCacheHeaders) // Prevent caching of API responses

	// Optional API key authentication; health and metrics stay open for probes
	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key", // Look for API key in X-API-Key header
			Skipper: func(c echo.Context) bool {
				p := c.Request().URL.Path
				return p == "/metrics" || p == "/v1/health"
			},
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil // Simple string comparison
			},
		}))
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := e.Group("/v1", SetJSONContentType)
	v1.GET("/health", h.Health)               // Dependency health
	v1.GET("/wallet", h.Wallet)               // Swap wallet info
	v1.GET("/tokens/resolve", h.ResolveToken) // Symbol/name/address lookup
	v1.GET("/balance", h.Balance)             // Token balance
	v1.GET("/swaps/recent", h.RecentSwaps)    // Recent execution attempts

	swapGroup := v1.Group("/swap")
	swapGroup.POST("/price", h.SwapPrice)
	swapGroup.POST("/quote", h.SwapQuote)
	// Executions move funds; keep them slow
	swapGroup.POST("/execute", h.SwapExecute, middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(0.5), // 1 request every 2 seconds
		Burst:     3,
		ExpiresIn: 2 * time.Minute,
	})))

	historyGroup := v1.Group("/history")
	historyGroup.POST("", h.HistoryCreate) // Idempotent by tx hash
	historyGroup.GET("", h.HistoryList)    // Newest first per user

	authGroup := v1.Group("/auth")
	authGroup.POST("/nonce", h.NonceIssue)
	authGroup.POST("/nonce/consume", h.NonceConsume)

	// AI endpoints with rate limiting
	aigroup := v1.Group("/ai")
	aigroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(0.2), // 1 request every 5 seconds
		Burst:     2,               // Allow burst of 2 requests
		ExpiresIn: 2 * time.Minute, // Rate limit window
	})))
	aigroup.POST("/chat", h.AIChat) // Tool-calling swap assistant
	aigroup.POST("/ask", h.AIAsk)   // Natural language to SQL endpoint

	// Catch-all route for 404 responses
	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
