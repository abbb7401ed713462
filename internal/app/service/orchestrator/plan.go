package orchestrator

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/tenantmaster/internal/app/service/activity"
	"github.com/fatflowers/tenantmaster/internal/models"
	"github.com/fatflowers/tenantmaster/pkg/apperr"
	"github.com/fatflowers/tenantmaster/pkg/manifest"
	"github.com/fatflowers/tenantmaster/pkg/tool"
	"github.com/fatflowers/tenantmaster/pkg/types"
)

type ChangePlanRequest struct {
	WorkspaceID     string     `json:"-"`
	Plan            types.Plan `json:"plan" binding:"required"`
	Reason          string     `json:"reason"`
	SubscriptionEnd *time.Time `json:"subscription_end"`
	Actor           string     `json:"actor"`
	IPAddress       string     `json:"-"`
}

// ChangePlan moves a workspace to another plan, migrating it between shared
// and dedicated deployment when the topology changes. A PlanChange is
// recorded whether or not the migration succeeds; on a failed migration it
// is returned together with the error and the workspace keeps its old plan
// and topology.
func (s *Service) ChangePlan(ctx context.Context, req *ChangePlanRequest) (*models.PlanChange, error) {
	if req.Actor == "" {
		return nil, apperr.Validation("actor is required")
	}
	if !req.Plan.Valid() {
		return nil, apperr.Validation("unknown plan %q", req.Plan)
	}
	ctx, unlock := s.lock(ctx, req.WorkspaceID)
	defer unlock()

	ws, err := s.Get(ctx, req.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if ws.Plan == req.Plan {
		return nil, apperr.Validation("workspace is already on plan %s", req.Plan)
	}
	if ws.ProvisionState != types.ProvisionStateActive {
		return nil, apperr.Validation("workspace is %s, only provisioned workspaces change plan", ws.ProvisionState)
	}

	wsID := ws.ID
	pc := &models.PlanChange{
		ID:             tool.GenerateUUIDV7(),
		WorkspaceID:    &wsID,
		WorkspaceLabel: ws.Label(),
		OldPlan:        ws.Plan,
		NewPlan:        req.Plan,
		OldTopology:    ws.Topology,
		NewTopology:    req.Plan.Topology(),
		Reason:         req.Reason,
		ChangedBy:      req.Actor,
	}
	pc.MigrationRequired = pc.NewTopology != pc.OldTopology

	var migErr error
	switch {
	case !pc.MigrationRequired:
	case pc.NewTopology == types.TopologyDedicated:
		migErr = s.migrateToDedicated(ctx, ws)
	default:
		migErr = s.migrateToShared(ctx, ws)
	}
	// external resources may have moved; finish the bookkeeping regardless
	ctx = context.WithoutCancel(ctx)

	if migErr != nil {
		pc.MigrationNotes = migErr.Error()
	} else {
		pc.MigrationSuccess = true
		if pc.MigrationRequired {
			pc.MigrationNotes = fmt.Sprintf("migrated from %s to %s", pc.OldTopology, pc.NewTopology)
		}
		now := s.now()
		ws.PreviousPlan = pc.OldPlan
		ws.Plan = pc.NewPlan
		ws.PlanChangedAt = &now
		ws.PlanChangedBy = req.Actor
		switch {
		case !pc.NewPlan.IsSubscription():
			ws.SubscriptionEnd = nil
		case req.SubscriptionEnd != nil:
			ws.SubscriptionEnd = req.SubscriptionEnd
		}
		if err := s.save(ctx, ws); err != nil {
			pc.MigrationSuccess = false
			pc.MigrationNotes = err.Error()
			migErr = err
		}
	}

	if err := s.deps.Audit.RecordPlanChange(ctx, pc); err != nil {
		s.log.Errorw("failed to record plan change", "workspace_id", ws.ID, "error", err)
	}
	desc := fmt.Sprintf("plan changed from %s to %s", pc.OldPlan, pc.NewPlan)
	if migErr != nil {
		desc = fmt.Sprintf("plan change from %s to %s failed", pc.OldPlan, pc.NewPlan)
	}
	s.record(ctx, &activity.Entry{
		Workspace:   ws,
		Actor:       req.Actor,
		Action:      types.ActivityActionPlanChange,
		Description: desc,
		IPAddress:   req.IPAddress,
		Extra: map[string]any{
			"old_plan":           string(pc.OldPlan),
			"new_plan":           string(pc.NewPlan),
			"migration_required": pc.MigrationRequired,
			"migration_success":  pc.MigrationSuccess,
		},
	})
	if pc.MigrationRequired && pc.MigrationSuccess {
		s.record(ctx, &activity.Entry{
			Workspace:   ws,
			Actor:       req.Actor,
			Action:      types.ActivityActionMigrate,
			Description: pc.MigrationNotes,
			IPAddress:   req.IPAddress,
		})
	}
	return pc, migErr
}

// migrateToDedicated claims a port and deploys the workspace's own copy of
// the code. ws is only updated in memory; the caller persists it.
func (s *Service) migrateToDedicated(ctx context.Context, ws *models.Workspace) error {
	r := s.newRun(ctx, kindMigrate, ws, types.TopologyDedicated)
	port, err := s.deps.Ports.Claim(ctx, ws.Product, ws.Subdomain)
	if err != nil {
		r.done(err)
		return err
	}
	ctx = context.WithoutCancel(ctx)

	res := s.deploy(ctx, ws.Product, s.deployRequest(ws, port), r, nil)
	if !res.Success {
		if rerr := s.deps.Ports.Release(ctx, ws.ProductID, port); rerr != nil {
			r.log.Errorw("failed to release port after failed migration", "port", port, "error", rerr)
		}
		r.done(res.err)
		return res.err
	}

	_ = r.step(types.ProvisionStateActive, func(o *types.StepOutcome) error {
		now := s.now()
		ws.Topology = types.TopologyDedicated
		ws.DedicatedPort = &port
		ws.ContainerName = (&manifest.Spec{Product: ws.Product.Name, Subdomain: ws.Subdomain}).Name()
		ws.ContainerPort = port
		ws.ProjectPath = res.Path
		ws.ManifestPath = res.ManifestPath
		ws.RepoURL = res.RepoURL
		ws.DeployedAt = &now
		o.Detail = fmt.Sprintf("port %d", port)
		return nil
	})
	ws.ProvisionReport = datatypes.NewJSONType(r.report)
	r.done(nil)
	return nil
}

// migrateToShared releases the dedicated port and points the workspace back
// at the product's shared container. Code and repository stay where they
// are.
func (s *Service) migrateToShared(ctx context.Context, ws *models.Workspace) error {
	r := s.newRun(ctx, kindMigrate, ws, types.TopologyShared)
	err := r.step(types.ProvisionStateActive, func(o *types.StepOutcome) error {
		if ws.DedicatedPort != nil {
			port := *ws.DedicatedPort
			if err := s.deps.Ports.Release(ctx, ws.ProductID, port); err != nil {
				return apperr.Provisioning(err, "failed to release port %d", port)
			}
			o.Detail = fmt.Sprintf("port %d released", port)
		}
		ws.Topology = types.TopologyShared
		ws.DedicatedPort = nil
		ws.ManifestPath = ""
		ws.ContainerName = ws.Product.SharedContainerName
		ws.ContainerPort = ws.Product.SharedContainerPort
		return nil
	})
	if err == nil {
		ws.ProvisionReport = datatypes.NewJSONType(r.report)
	}
	r.done(err)
	return err
}
