package httpserver

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medusa-storefront/internal/logging"
	"medusa-storefront/internal/metrics"
	"medusa-storefront/internal/proxy"
	"medusa-storefront/internal/session"
)

// Deps carries the services the HTTP layer dispatches to.
type Deps struct {
	Sessions      *session.Manager
	SessionTTL    time.Duration
	SecureCookies bool
	State         pinger

	Carts    cartService
	Checkout checkoutService
	Products productService
	Proxy    *proxy.Handler

	ProxyRateLimitRPS   float64
	ProxyRateLimitBurst int
	CORSOrigins         []string
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logging.Writer(logger)), gin.Recovery(), metrics.Middleware())

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.State))
	router.GET("/metrics", metrics.Handler())

	if deps.Proxy != nil {
		deps.Proxy.Register(router, proxy.RateLimit(deps.ProxyRateLimitRPS, deps.ProxyRateLimitBurst, logger))
	}

	h := &handlers{
		carts:    deps.Carts,
		checkout: deps.Checkout,
		products: deps.Products,
		logger:   logger,
	}

	api := router.Group("/api")
	if len(deps.CORSOrigins) > 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowOrigins = deps.CORSOrigins
		cfg.AllowCredentials = true
		cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
		api.Use(cors.New(cfg))
	}
	api.Use(sessionMiddleware(deps.Sessions, deps.SessionTTL, deps.SecureCookies))

	api.POST("/cart", h.createCart)
	api.GET("/cart", h.getCart)
	api.POST("/cart/line-items", h.addItem)
	api.POST("/cart/line-items/:id", h.updateItem)
	api.DELETE("/cart/line-items/:id", h.removeItem)
	api.POST("/cart/address", h.updateAddress)

	api.GET("/checkout", h.loadCheckout)
	api.POST("/checkout", h.submitCheckout)
	api.POST("/checkout/confirm", h.confirmCheckout)
	api.GET("/orders/:id", h.getOrder)

	api.GET("/products", h.listProducts)
	api.GET("/products/:handle", h.getProduct)

	return router
}
