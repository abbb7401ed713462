package orchestrator

import (
	"go.uber.org/fx"

	"github.com/fatflowers/tenantmaster/internal/app/service/activity"
	"github.com/fatflowers/tenantmaster/internal/app/service/catalog"
	"github.com/fatflowers/tenantmaster/internal/app/service/jobs"
	"github.com/fatflowers/tenantmaster/internal/app/service/materializer"
	"github.com/fatflowers/tenantmaster/internal/app/service/portalloc"
	"github.com/fatflowers/tenantmaster/internal/app/service/provisioning"
	"github.com/fatflowers/tenantmaster/internal/app/service/publisher"
	"github.com/fatflowers/tenantmaster/pkg/metrics"
)

type depsParams struct {
	fx.In

	Databases *provisioning.Service
	Ports     *portalloc.Allocator
	Code      *materializer.Service
	Repos     *publisher.Service
	Audit     *activity.Service
	Catalog   *catalog.Service
	Jobs      *jobs.Runner
	Metrics   *metrics.Lifecycle
}

func newDeps(p depsParams) Deps {
	return Deps{
		Databases: p.Databases,
		Ports:     p.Ports,
		Code:      p.Code,
		Repos:     p.Repos,
		Audit:     p.Audit,
		Catalog:   p.Catalog,
		Jobs:      p.Jobs,
		Metrics:   p.Metrics,
	}
}

var Module = fx.Options(
	fx.Provide(newDeps),
	fx.Provide(NewService),
)
