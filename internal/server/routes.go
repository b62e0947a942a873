package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	// Set custom error handler for consistent JSON responses
	e.HTTPErrorHandler = NotFoundJSON()

	// Apply global middleware
	e.Use(SetJSONContentType) // Ensure all responses are JSON
	e.Use(SetNoCacheHeaders)  // Prevent caching of API responses

	// Optional API key authentication
	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key", // Look for API key in X-API-Key header
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/v1/health" // Probes stay unauthenticated
			},
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil // Simple string comparison
			},
		}))
	}

	// State-changing routes share one rate limiter per client
	limiter := middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(cfg.mutationRate()),
		Burst:     cfg.mutationBurst(),
		ExpiresIn: 3 * time.Minute,
	}))

	// API v1 routes
	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)              // Health check endpoint
	v1.GET("/fee-tiers", h.FeeTiers)         // Supported fee tiers
	v1.GET("/events/recent", h.RecentEvents) // Recent ledger events

	// Pools
	v1.GET("/pools", h.ListPools)
	v1.POST("/pools", h.CreatePool, limiter)
	v1.GET("/pools/lookup", h.LookupPool) // ?token0=&token1=&fee=
	v1.GET("/pools/:id", h.GetPool)
	v1.GET("/pools/:id/quote", h.Quote) // ?tokenIn=&amountIn=&slippageBps=
	v1.POST("/pools/:id/swap", h.Swap, limiter)
	v1.POST("/pools/:id/liquidity", h.AddLiquidity, limiter)

	// Positions
	v1.GET("/positions/:id", h.GetPosition)
	v1.POST("/positions/:id/withdraw", h.Withdraw, limiter)
	v1.POST("/positions/:id/claim", h.Claim, limiter)
	v1.POST("/positions/:id/transfer", h.Transfer, limiter)
	v1.DELETE("/positions/:id", h.Burn, limiter) // ?owner=
	v1.GET("/nft/:handle", h.GetPositionByHandle)
	v1.GET("/owners/:owner/positions", h.OwnerPositions)

	// Token symbol directory
	tokenGroup := v1.Group("/tokens")
	tokenGroup.GET("", h.TokensList)            // List all overrides
	tokenGroup.GET("/:mint", h.TokensGet)       // Get specific override
	tokenGroup.PUT("/:mint", h.TokensUpsert)    // Create or replace override
	tokenGroup.DELETE("/:mint", h.TokensDelete) // Delete override

	// Catch-all route for 404 responses
	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
