package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/config"
	auditHandler "github.com/jwalitptl/clinic-api/internal/handler/audit"
	authHandler "github.com/jwalitptl/clinic-api/internal/handler/auth"
	consultationHandler "github.com/jwalitptl/clinic-api/internal/handler/consultation"
	doctorHandler "github.com/jwalitptl/clinic-api/internal/handler/doctor"
	healthHandler "github.com/jwalitptl/clinic-api/internal/handler/health"
	patientHandler "github.com/jwalitptl/clinic-api/internal/handler/patient"
	rbacHandler "github.com/jwalitptl/clinic-api/internal/handler/rbac"
	userHandler "github.com/jwalitptl/clinic-api/internal/handler/user"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/internal/router"
	auditService "github.com/jwalitptl/clinic-api/internal/service/audit"
	authService "github.com/jwalitptl/clinic-api/internal/service/auth"
	"github.com/jwalitptl/clinic-api/internal/service/authz"
	"github.com/jwalitptl/clinic-api/internal/service/availability"
	consultationService "github.com/jwalitptl/clinic-api/internal/service/consultation"
	doctorService "github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/internal/service/notification"
	patientService "github.com/jwalitptl/clinic-api/internal/service/patient"
	rbacService "github.com/jwalitptl/clinic-api/internal/service/rbac"
	userService "github.com/jwalitptl/clinic-api/internal/service/user"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Logger = logger.NewLogger(&logger.Config{
		Level:   logger.ParseLevel(cfg.Log.Level),
		Console: cfg.Log.Console,
	}).ZL

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	repos := postgres.NewRepositories(db)
	m := metrics.NewMetrics("clinic", "api")
	hasher := security.NewBcryptHasher(security.DefaultCost)
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTTL)

	rbacSvc := rbacService.NewService(repos.RBAC, repos.Users, cfg.Cache.PermissionTTL)
	if err := rbacSvc.Seed(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to seed roles and permissions")
	}
	auditSvc := auditService.NewService(repos.Audit)
	authzSvc := authz.NewService(repos.Assignments, auditSvc)
	gateway := notification.NewGateway(repos.Outbox, repos.Users, repos.Doctors)

	authSvc := authService.NewService(repos.Users, repos.Patients, repos.Tokens,
		notification.NewAccountNotifier(repos.Outbox), jwtSvc, hasher)
	userSvc := userService.NewService(repos.Users, repos.RBAC, hasher)
	doctorSvc := doctorService.NewService(repos.Doctors, repos.Specializations, hasher)
	availabilitySvc := availability.NewService(repos.Availability, repos.Consultations, repos.Doctors,
		availability.WithMaxRangeDays(cfg.Booking.MaxRangeDays),
		availability.WithMetrics(m),
	)
	patientSvc := patientService.NewService(repos.Patients, repos.Users, repos.Assignments, authzSvc)
	consultationSvc := consultationService.NewService(repos.Consultations, repos.Doctors, repos.Patients, repos.Users, gateway,
		consultationService.WithMetrics(m),
	)

	if err := middleware.RegisterValidators(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}

	mode := cfg.Server.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.CORS.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	if len(cfg.CORS.AllowedMethods) > 0 {
		corsConfig.AllowMethods = cfg.CORS.AllowedMethods
	}
	if len(cfg.CORS.AllowedHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.CORS.AllowedHeaders
	}

	r := router.NewRouter(
		middleware.NewAuthMiddleware(rbacSvc, jwtSvc),
		middleware.NewAuditMiddleware(auditSvc),
		router.Handlers{
			Health:        healthHandler.NewHandler(db, nil),
			Auth:          authHandler.NewHandler(authSvc),
			Users:         userHandler.NewHandler(userSvc, rbacSvc),
			RBAC:          rbacHandler.NewHandler(rbacSvc),
			Doctors:       doctorHandler.NewHandler(doctorSvc, availabilitySvc),
			Patients:      patientHandler.NewHandler(patientSvc),
			Consultations: consultationHandler.NewHandler(consultationSvc),
			Audit:         auditHandler.NewHandler(auditSvc),
		},
		router.Config{
			Mode:           mode,
			RateEnabled:    cfg.RateLimit.Enabled,
			RateLimit:      rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:      cfg.RateLimit.Burst,
			RequestTimeout: cfg.Server.RequestTimeout,
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
			CORSConfig:     corsConfig,
			MetricsPrefix:  "clinic_http",
		},
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}
