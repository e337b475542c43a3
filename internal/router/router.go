package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/chairside/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine    *gin.Engine
	auth      *middleware.AuthMiddleware
	public    []Handler
	protected []Handler
}

type RouterConfig struct {
	RateLimit     middleware.RateLimiterConfig
	CORSConfig    middleware.CORSConfig
	Timeout       middleware.TimeoutConfig
	SizeLimit     middleware.SizeLimitConfig
	Security      middleware.SecurityConfig
	MetricsPrefix string
	// Registerer receives the HTTP metrics; nil means the default registry.
	Registerer prometheus.Registerer
}

// NewRouter builds the engine. public handlers are mounted under /api/v1
// without authentication, protected ones behind auth.
func NewRouter(auth *middleware.AuthMiddleware, public, protected []Handler, config RouterConfig) *Router {
	engine := gin.New()

	if config.Timeout.Duration <= 0 {
		config.Timeout.Duration = middleware.DefaultTimeoutConfig().Duration
	}
	if config.SizeLimit.MaxBodySize <= 0 {
		config.SizeLimit = middleware.DefaultSizeLimitConfig()
	}
	if config.RateLimit.Rate <= 0 {
		config.RateLimit.Rate = rate.Limit(20)
		config.RateLimit.Burst = 40
	}
	if config.MetricsPrefix == "" {
		config.MetricsPrefix = "chairside"
	}
	reg := config.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		middleware.NewHTTPMetrics(reg, config.MetricsPrefix).Middleware(),
		middleware.Timeout(config.Timeout),
		middleware.CORS(config.CORSConfig),
		middleware.SecurityHeaders(config.Security),
		middleware.SizeLimit(config.SizeLimit),
		middleware.NewRateLimiter(config.RateLimit).RateLimit(),
	)

	return &Router{
		engine:    engine,
		auth:      auth,
		public:    public,
		protected: protected,
	}
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	for _, h := range r.public {
		h.RegisterRoutes(api)
	}

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	for _, h := range r.protected {
		h.RegisterRoutes(protected)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
