package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"site-cloner/internal/controller"
	"site-cloner/internal/middleware"
	"site-cloner/internal/security"
	"site-cloner/pkg/response"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateServer(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := middleware.InitMetrics()
	a, err := newApp(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer a.Close()

	healthController := controller.NewHealthController(a.health, metrics, Version)

	router := gin.New()
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("panic recovered", zap.Any("panic", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			response.InternalServerErrorResponse(middleware.GetCorrelationID(c)))
	}))
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(logger.Named("http")))
	router.Use(middleware.PrometheusMiddleware())

	router.GET("/health", healthController.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	if cfg.Security.EnableRateLimit {
		limiter := middleware.NewRateLimiter(ctx, middleware.RateLimiterConfig{
			RPM:             cfg.Security.RateLimitPerMinute,
			Burst:           cfg.Security.RateLimitBurst,
			CleanupInterval: 5 * time.Minute,
		})
		api.Use(limiter.RateLimit())
	}
	api.GET("/health", healthController.HealthCheck)

	sites := api.Group("/sites")
	if cfg.Security.EnableAuth {
		authMiddleware := security.NewAuthMiddleware(security.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.JWTExpiration))
		sites.Use(authMiddleware.RequireRole(cfg.Security.AdminRole))
	}
	if a.clones != nil {
		cloneController := controller.NewCloneController(a.clones, logger.Named("api"))
		sites.POST("/:id/clone", cloneController.CloneSite)
		sites.POST("/:id/rewrite", cloneController.RewriteSite)
	} else {
		logger.Warn("site endpoints disabled: the rds-data driver supports only the rewrite command")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
