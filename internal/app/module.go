package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/tenantmaster/internal/app/api/server"
	"github.com/fatflowers/tenantmaster/internal/app/service/activity"
	"github.com/fatflowers/tenantmaster/internal/app/service/catalog"
	"github.com/fatflowers/tenantmaster/internal/app/service/jobs"
	"github.com/fatflowers/tenantmaster/internal/app/service/materializer"
	"github.com/fatflowers/tenantmaster/internal/app/service/orchestrator"
	"github.com/fatflowers/tenantmaster/internal/app/service/portalloc"
	"github.com/fatflowers/tenantmaster/internal/app/service/provisioning"
	"github.com/fatflowers/tenantmaster/internal/app/service/publisher"
	"github.com/fatflowers/tenantmaster/internal/app/service/statistics"
	"github.com/fatflowers/tenantmaster/internal/platform/command"
	"github.com/fatflowers/tenantmaster/internal/platform/db"
	"github.com/fatflowers/tenantmaster/internal/platform/fsys"
	"github.com/fatflowers/tenantmaster/internal/platform/hosting"
	"github.com/fatflowers/tenantmaster/internal/platform/pgadmin"
	"github.com/fatflowers/tenantmaster/pkg/config"
	"github.com/fatflowers/tenantmaster/pkg/logger"
	"github.com/fatflowers/tenantmaster/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// Core is everything but the HTTP server; the CLI runs on it.
var Core = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	pgadmin.Module,
	command.Module,
	fsys.Module,
	hosting.Module,
	metrics.Module,
	catalog.Module,
	portalloc.Module,
	provisioning.Module,
	materializer.Module,
	publisher.Module,
	activity.Module,
	jobs.Module,
	orchestrator.Module,
	statistics.Module,
)

var Module = fx.Options(
	Core,
	server.Module,
)
