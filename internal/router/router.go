package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
)

// Handler mounts authenticated routes.
type Handler interface {
	RegisterRoutes(r *gin.RouterGroup, guard handler.Guard)
}

// PublicHandler mounts routes that need no token.
type PublicHandler interface {
	RegisterPublicRoutes(r *gin.RouterGroup)
}

type HealthHandler interface {
	RegisterRoutes(r *gin.RouterGroup)
}

// Handlers lists every route group. Audited groups get an audit entry for
// each state-changing request.
type Handlers struct {
	Health HealthHandler
	Auth   interface {
		Handler
		PublicHandler
	}
	Users         Handler
	RBAC          Handler
	Doctors       Handler
	Patients      Handler
	Consultations Handler
	Audit         Handler
}

type Config struct {
	Mode           string
	RateLimit      rate.Limit
	RateBurst      int
	RateEnabled    bool
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	CORSConfig     middleware.CORSConfig
	MetricsPrefix  string
	// Registerer receives the request metrics. Nil uses the default registry.
	Registerer prometheus.Registerer
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	audit   *middleware.AuditMiddleware
	h       Handlers
	metrics *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

func NewRouter(auth *middleware.AuthMiddleware, audit *middleware.AuditMiddleware, h Handlers, config Config) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = middleware.DefaultTimeoutConfig().Duration
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	r := &Router{
		engine:  engine,
		auth:    auth,
		audit:   audit,
		h:       h,
		metrics: initRouterMetrics(config.MetricsPrefix, config.Registerer),
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
		middleware.SizeLimit(config.MaxBodyBytes),
	)

	if config.RateEnabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}

	r.setup()
	return r
}

func (r *Router) setup() {
	api := r.engine.Group("/api/v1")

	r.h.Health.RegisterRoutes(api)
	r.h.Auth.RegisterPublicRoutes(api)

	protected := api.Group("", r.auth.Authenticate())
	r.h.Auth.RegisterRoutes(protected, r.auth)
	r.h.Doctors.RegisterRoutes(protected.Group("", r.audit.AuditLog("doctor")), r.auth)
	r.h.Patients.RegisterRoutes(protected, r.auth)
	r.h.Consultations.RegisterRoutes(protected, r.auth)
	r.h.Users.RegisterRoutes(protected.Group("", r.audit.AuditLog("user")), r.auth)
	r.h.RBAC.RegisterRoutes(protected.Group("", r.audit.AuditLog("role")), r.auth)
	r.h.Audit.RegisterRoutes(protected, r.auth)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string, reg prometheus.Registerer) *routerMetrics {
	if prefix == "" {
		prefix = "clinic_api"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &routerMetrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}
	reg.MustRegister(m.requestDuration, m.requestTotal)
	return m
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
