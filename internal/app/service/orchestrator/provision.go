package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/tenantmaster/internal/app/service/activity"
	"github.com/fatflowers/tenantmaster/internal/app/service/catalog"
	"github.com/fatflowers/tenantmaster/internal/models"
	"github.com/fatflowers/tenantmaster/internal/platform/pgadmin"
	"github.com/fatflowers/tenantmaster/pkg/apperr"
	"github.com/fatflowers/tenantmaster/pkg/manifest"
	"github.com/fatflowers/tenantmaster/pkg/tool"
	"github.com/fatflowers/tenantmaster/pkg/types"
)

type ProvisionRequest struct {
	Product         string     `json:"product" binding:"required"`
	CompanyName     string     `json:"company_name" binding:"required"`
	Subdomain       string     `json:"subdomain" binding:"required"`
	Plan            types.Plan `json:"plan" binding:"required"`
	SubscriptionEnd *time.Time `json:"subscription_end"`
	AdminNotes      string     `json:"admin_notes"`
	Actor           string     `json:"actor"`
	IPAddress       string     `json:"-"`
}

// Provision registers a workspace and runs every provisioning step before
// returning. A failed run still returns the workspace, in failed state.
func (s *Service) Provision(ctx context.Context, req *ProvisionRequest) (*models.Workspace, error) {
	ws, err := s.register(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, ws.ID, req.Actor)
}

// ProvisionAsync registers the workspace and hands the run to the job
// runner. The returned record is in requested state.
func (s *Service) ProvisionAsync(ctx context.Context, req *ProvisionRequest) (*models.Workspace, error) {
	if s.deps.Jobs == nil {
		return nil, errors.New("job runner not configured")
	}
	ws, err := s.register(ctx, req)
	if err != nil {
		return nil, err
	}
	return ws, s.schedule(ctx, ws, req.Actor)
}

// RunAsync re-runs provisioning of a workspace that is not active yet on
// the job runner.
func (s *Service) RunAsync(ctx context.Context, id, actor string) (*models.Workspace, error) {
	if s.deps.Jobs == nil {
		return nil, errors.New("job runner not configured")
	}
	if actor == "" {
		return nil, apperr.Validation("actor is required")
	}
	ws, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws.ProvisionState == types.ProvisionStateActive {
		return ws, apperr.Validation("workspace %s is already provisioned", ws.Subdomain)
	}
	return ws, s.schedule(ctx, ws, actor)
}

func (s *Service) schedule(ctx context.Context, ws *models.Workspace, actor string) error {
	id := ws.ID
	err := s.deps.Jobs.Submit(ctx, "provision "+ws.Subdomain, func(ctx context.Context) error {
		_, err := s.Run(ctx, id, actor)
		return err
	})
	if err == nil {
		return nil
	}
	// nothing will pick the record up; fail it so it can be re-run
	ws.ProvisionState = types.ProvisionStateFailed
	ws.ProvisionError = fmt.Sprintf("not scheduled: %v", err)
	if serr := s.save(ctx, ws); serr != nil {
		s.log.Errorw("failed to mark unscheduled workspace", "workspace_id", id, "error", serr)
	}
	return fmt.Errorf("failed to schedule provisioning: %w", err)
}

// register validates req and persists the workspace in requested state.
// Nothing outside the metadata database is touched.
func (s *Service) register(ctx context.Context, req *ProvisionRequest) (*models.Workspace, error) {
	req.Subdomain = strings.ToLower(strings.TrimSpace(req.Subdomain))
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	switch {
	case req.Actor == "":
		return nil, apperr.Validation("actor is required")
	case req.CompanyName == "":
		return nil, apperr.Validation("company name is required")
	case !req.Plan.Valid():
		return nil, apperr.Validation("unknown plan %q", req.Plan)
	case !models.ValidSubdomain(req.Subdomain):
		return nil, apperr.Validation("invalid subdomain %q", req.Subdomain)
	}

	product, err := s.deps.Catalog.Get(ctx, req.Product)
	if errors.Is(err, catalog.ErrProductNotFound) {
		return nil, apperr.Validation("unknown product %q", req.Product)
	}
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, apperr.Validation("product %s is not active", product.Name)
	}

	dbName := DatabaseName(product.Name, req.Subdomain)
	dbUser := DatabaseUser(dbName)
	if !pgadmin.ValidIdent(dbName) || !pgadmin.ValidIdent(dbUser) {
		return nil, apperr.Validation("subdomain %q does not yield a valid database name", req.Subdomain)
	}

	tx := s.db.WithContext(ctx)
	var n int64
	if err := tx.Model(&models.Workspace{}).Where("product_id = ? AND subdomain = ?", product.ID, req.Subdomain).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("failed to check subdomain: %w", err)
	}
	if n > 0 {
		return nil, apperr.Validation("subdomain %q is already taken for %s", req.Subdomain, product.Name)
	}
	if err := tx.Model(&models.Workspace{}).Where("db_name = ?", dbName).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("failed to check database name: %w", err)
	}
	if n > 0 {
		return nil, apperr.Validation("database %s is already assigned", dbName)
	}

	topology := req.Plan.Topology()
	ws := &models.Workspace{
		ID:              tool.GenerateUUIDV7(),
		ProductID:       product.ID,
		CompanyName:     req.CompanyName,
		Subdomain:       req.Subdomain,
		Plan:            req.Plan,
		Topology:        topology,
		Status:          types.WorkspaceStatusActive,
		ProvisionState:  types.ProvisionStateRequested,
		ProvisionReport: datatypes.NewJSONType(&types.ProvisionReport{Topology: topology}),
		DBName:          dbName,
		DBUser:          dbUser,
		DBPassword:      tool.GeneratePassword(s.cfg.Provisioning.PasswordLength),
		DBHost:          s.cfg.Provisioning.TenantDBHost,
		DBPort:          s.cfg.Provisioning.TenantDBPort,
		AdminNotes:      req.AdminNotes,
		PlanChangedBy:   req.Actor,
	}
	if req.Plan.IsSubscription() {
		ws.SubscriptionEnd = req.SubscriptionEnd
	}
	if err := tx.Omit(clause.Associations).Create(ws).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Validation("workspace %s/%s already exists", product.Name, req.Subdomain)
		}
		return nil, fmt.Errorf("failed to register workspace: %w", err)
	}
	ws.Product = product

	s.record(ctx, &activity.Entry{
		Workspace:   ws,
		Actor:       req.Actor,
		Action:      types.ActivityActionCreate,
		Description: fmt.Sprintf("workspace registered on plan %s", req.Plan),
		IPAddress:   req.IPAddress,
		Extra:       map[string]any{"product": product.Name, "topology": string(topology)},
	})
	return ws, nil
}

// Run executes the provisioning steps of a registered workspace. Workspaces
// that are not yet active may be re-run; every step converges.
func (s *Service) Run(ctx context.Context, id, actor string) (*models.Workspace, error) {
	ctx, unlock := s.lock(ctx, id)
	defer unlock()

	ws, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws.ProvisionState == types.ProvisionStateActive {
		return ws, apperr.Validation("workspace %s is already provisioned", ws.Subdomain)
	}
	return ws, s.run(ctx, ws, actor)
}

func (s *Service) run(ctx context.Context, ws *models.Workspace, actor string) error {
	topology := ws.Plan.Topology()
	ws.Topology = topology
	ws.ProvisionError = ""
	r := s.newRun(ctx, kindProvision, ws, topology)

	var port int
	err := r.step(types.ProvisionStateDatabaseReady, func(o *types.StepOutcome) error {
		if topology == types.TopologyDedicated {
			p, err := s.deps.Ports.Claim(ctx, ws.Product, ws.Subdomain)
			if err != nil {
				return err
			}
			port = p
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		// DDL from here on: the run no longer follows the caller's cancellation
		ctx = context.WithoutCancel(ctx)
		if err := s.deps.Databases.CreateDatabase(ctx, ws.DBName, ws.DBUser, ws.DBPassword); err != nil {
			return err
		}
		o.Detail = "database " + ws.DBName
		if port != 0 {
			o.Detail += fmt.Sprintf(", port %d", port)
		}
		return nil
	})
	if err != nil {
		return s.failRun(ctx, r, ws, actor, types.ProvisionStateDatabaseReady, err, port)
	}
	ws.DBCreated = true
	if topology == types.TopologyShared {
		ws.ContainerName = ws.Product.SharedContainerName
		ws.ContainerPort = ws.Product.SharedContainerPort
	}
	if err := s.advance(ctx, r, ws, types.ProvisionStateDatabaseReady); err != nil {
		r.done(err)
		return err
	}

	var res *DeployResult
	if topology == types.TopologyDedicated {
		res = s.deploy(ctx, ws.Product, s.deployRequest(ws, port), r, func(state types.ProvisionState, res *DeployResult) error {
			if state == types.ProvisionStateCodeMaterialized {
				ws.ProjectPath = res.Path
			}
			return s.advance(ctx, r, ws, state)
		})
		if !res.Success {
			return s.failRun(ctx, r, ws, actor, types.ProvisionState(res.Step), res.err, port)
		}
	}

	_ = r.step(types.ProvisionStateActive, func(o *types.StepOutcome) error {
		now := s.now()
		ws.DeployedAt = &now
		if res != nil {
			ws.DedicatedPort = &port
			ws.ContainerName = (&manifest.Spec{Product: ws.Product.Name, Subdomain: ws.Subdomain}).Name()
			ws.ContainerPort = port
			ws.ManifestPath = res.ManifestPath
			ws.RepoURL = res.RepoURL
		}
		o.Detail = ws.URL(s.cfg.Provisioning.TenantDomain)
		return nil
	})
	if err := s.advance(ctx, r, ws, types.ProvisionStateActive); err != nil {
		r.done(err)
		return err
	}
	r.done(nil)
	s.record(ctx, &activity.Entry{
		Workspace:   ws,
		Actor:       actor,
		Action:      types.ActivityActionDeploy,
		Description: fmt.Sprintf("workspace provisioned (%s)", topology),
		Extra:       map[string]any{"url": ws.URL(s.cfg.Provisioning.TenantDomain), "container": ws.ContainerName, "port": ws.ContainerPort},
	})
	return nil
}

func (s *Service) deployRequest(ws *models.Workspace, port int) *DeployRequest {
	return &DeployRequest{
		Product:    ws.Product.Name,
		Subdomain:  ws.Subdomain,
		DBName:     ws.DBName,
		DBUser:     ws.DBUser,
		DBPassword: ws.DBPassword,
		Port:       port,
	}
}

// advance persists ws in state together with the report so far.
func (s *Service) advance(ctx context.Context, r *run, ws *models.Workspace, state types.ProvisionState) error {
	ws.ProvisionState = state
	ws.ProvisionReport = datatypes.NewJSONType(r.report)
	return s.save(ctx, ws)
}

// failRun records the failure on the workspace. The database is left in
// place; every port the workspace holds is released so a retry starts clean.
func (s *Service) failRun(ctx context.Context, r *run, ws *models.Workspace, actor string, state types.ProvisionState, err error, port int) error {
	ctx = context.WithoutCancel(ctx)
	err = stepError(err, state)
	r.done(err)

	if ws.Topology == types.TopologyDedicated {
		if _, rerr := s.deps.Ports.ReleaseOwner(ctx, ws.ProductID, ws.Subdomain); rerr != nil {
			r.log.Errorw("failed to release port after failed run", "port", port, "error", rerr)
		}
	}
	ws.ProvisionState = types.ProvisionStateFailed
	ws.ProvisionError = err.Error()
	ws.ProvisionReport = datatypes.NewJSONType(r.report)
	if serr := s.save(ctx, ws); serr != nil {
		r.log.Errorw("failed to persist failed state", "error", serr)
	}
	s.record(ctx, &activity.Entry{
		Workspace:   ws,
		Actor:       actor,
		Action:      types.ActivityActionDeploy,
		Description: fmt.Sprintf("provisioning failed at %s", state),
		Extra:       map[string]any{"step": string(state), "error": err.Error()},
	})
	return err
}
