package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/tenantmaster/internal/models"
	"github.com/fatflowers/tenantmaster/pkg/logctx"
	"github.com/fatflowers/tenantmaster/pkg/types"
)

// metric kinds
const (
	kindProvision = "provision"
	kindDeploy    = "deploy"
	kindMigrate   = "migrate"
	kindDelete    = "delete"
	kindBackup    = "backup"
	kindRestore   = "restore"
)

// run collects the step outcomes of one multi-step operation.
type run struct {
	s      *Service
	kind   string
	report *types.ProvisionReport
	log    *zap.SugaredLogger
}

func (s *Service) newRun(ctx context.Context, kind string, ws *models.Workspace, topology types.Topology) *run {
	log := logctx.FromCtx(ctx, s.log).With("operation", kind)
	if ws != nil {
		product := ""
		if ws.Product != nil {
			product = ws.Product.Name
		}
		log = log.With("product", product, "subdomain", ws.Subdomain)
	}
	return &run{
		s:      s,
		kind:   kind,
		report: &types.ProvisionReport{Topology: topology},
		log:    log.With("topology", topology),
	}
}

// step times fn and appends its outcome to the report. fn may fill Detail
// and Skipped; OK and ElapsedMs are set here.
func (r *run) step(state types.ProvisionState, fn func(o *types.StepOutcome) error) error {
	began := time.Now()
	o := types.StepOutcome{Step: state}
	err := fn(&o)
	elapsed := time.Since(began)

	o.OK = err == nil
	o.ElapsedMs = elapsed.Milliseconds()
	if err != nil {
		o.Detail = err.Error()
	}
	r.report.Add(o)
	r.s.deps.Metrics.ObserveStep(r.kind, string(state), elapsed)

	if err != nil {
		r.log.Errorw("step failed", "step", state, "elapsed_ms", o.ElapsedMs, "error", err)
		return err
	}
	r.log.Infow("step finished", "step", state, "elapsed_ms", o.ElapsedMs, "detail", o.Detail, "skipped", o.Skipped)
	return nil
}

func (r *run) done(err error) {
	r.s.deps.Metrics.Done(r.kind, outcome(err))
}
