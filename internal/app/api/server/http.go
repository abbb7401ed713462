package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/tenantmaster/docs"
	"github.com/fatflowers/tenantmaster/internal/app/api/handlers"
	mw "github.com/fatflowers/tenantmaster/internal/app/api/middleware"
	"github.com/fatflowers/tenantmaster/internal/app/service/activity"
	"github.com/fatflowers/tenantmaster/internal/app/service/catalog"
	"github.com/fatflowers/tenantmaster/internal/app/service/orchestrator"
	"github.com/fatflowers/tenantmaster/internal/app/service/provisioning"
	"github.com/fatflowers/tenantmaster/internal/app/service/statistics"
	cfgpkg "github.com/fatflowers/tenantmaster/pkg/config"
	"github.com/fatflowers/tenantmaster/pkg/metrics"
)

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

type routeParams struct {
	fx.In

	Lc         fx.Lifecycle
	Log        *zap.SugaredLogger
	Cfg        *cfgpkg.Config
	Engine     *gin.Engine
	DB         *gorm.DB
	Workspaces *orchestrator.Service
	Products   *catalog.Service
	Activity   *activity.Service
	Statistics *statistics.Service
	Databases  *provisioning.Service
}

func registerRoutes(p routeParams) {
	r, log := p.Engine, p.Log

	// Prometheus metrics
	if p.Cfg.MetricsAddr != "" {
		prom := metrics.NewPrometheus(metrics.NewPrometheusOptions{Logger: log})
		prom.SetListenAddress(p.Cfg.MetricsAddr)
		if srv := prom.Use(r); srv != nil {
			manage(p.Lc, log, "metrics", srv)
		}
	}

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	var pinger handlers.Pinger
	if sqlDB, err := p.DB.DB(); err == nil {
		pinger = sqlDB
	}
	handlers.RegisterHealthRoutes(pub, pinger)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))

	handlers.RegisterAdminRoutes(apiV1.Group("/admin"), &handlers.Admin{
		Workspaces: p.Workspaces,
		Products:   p.Products,
		Activity:   p.Activity,
		Statistics: p.Statistics,
		Databases:  p.Databases,
	})
}

// manage ties srv to the fx lifecycle.
func manage(lc fx.Lifecycle, log *zap.SugaredLogger, name string, srv *http.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "name", name, "addr", srv.Addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorw("server error", "name", name, "error", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server", "name", name)
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	manage(lc, log, "api", &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
