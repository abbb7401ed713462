package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/fatflowers/tenantmaster/internal/app/service/activity"
	"github.com/fatflowers/tenantmaster/internal/models"
	"github.com/fatflowers/tenantmaster/pkg/apperr"
	"github.com/fatflowers/tenantmaster/pkg/logctx"
	"github.com/fatflowers/tenantmaster/pkg/types"
)

// Residual is an external resource deletion could not clean up.
type Residual struct {
	Step     string `json:"step"`
	Resource string `json:"resource"`
	Error    string `json:"error"`
}

// DeletionReport describes what DeleteWorkspace cleaned up and what it left
// behind for an operator.
type DeletionReport struct {
	WorkspaceID      string     `json:"workspace_id"`
	WorkspaceLabel   string     `json:"workspace_label"`
	DatabaseDropped  bool       `json:"database_dropped"`
	DirectoryRemoved bool       `json:"directory_removed"`
	PortReleased     bool       `json:"port_released"`
	Residuals        []Residual `json:"residuals"`

	errs error
}

func (r *DeletionReport) add(step, resource string, err error) {
	r.Residuals = append(r.Residuals, Residual{Step: step, Resource: resource, Error: err.Error()})
	r.errs = multierr.Append(r.errs, fmt.Errorf("%s %s: %w", step, resource, err))
}

// Err combines the residual failures; nil when cleanup was complete.
func (r *DeletionReport) Err() error {
	return r.errs
}

func (r *DeletionReport) Complete() bool {
	return len(r.Residuals) == 0
}

// DeleteWorkspace drops the database, removes the code directory, releases
// the port and deletes the record, in that order. Cleanup failures end up in
// the report; only the record deletion fails the call.
func (s *Service) DeleteWorkspace(ctx context.Context, id, actor, ip string) (*DeletionReport, error) {
	if actor == "" {
		return nil, apperr.Validation("actor is required")
	}
	ctx, unlock := s.lock(ctx, id)
	defer unlock()

	ws, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)
	log := logctx.FromCtx(ctx, s.log).With("subdomain", ws.Subdomain)
	report := &DeletionReport{WorkspaceID: ws.ID, WorkspaceLabel: ws.Label()}
	began := time.Now()

	if err := s.deps.Databases.DeleteDatabase(ctx, ws.DBName, ws.DBUser); err != nil {
		report.add("database", ws.DBName, err)
	} else {
		report.DatabaseDropped = true
	}
	if ws.ProjectPath != "" {
		if err := s.deps.Code.RemoveWorkspaceDir(ctx, ws.ProjectPath); err != nil {
			report.add("directory", ws.ProjectPath, err)
		} else {
			report.DirectoryRemoved = true
		}
	}
	// also frees claims of runs that never reached active
	if ports, err := s.deps.Ports.ReleaseOwner(ctx, ws.ProductID, ws.Subdomain); err != nil {
		resource := ws.Subdomain
		if ws.DedicatedPort != nil {
			resource = strconv.Itoa(*ws.DedicatedPort)
		}
		report.add("port", resource, err)
	} else {
		report.PortReleased = len(ports) > 0
	}
	s.deps.Metrics.ObserveStep(kindDelete, "cleanup", time.Since(began))
	if !report.Complete() {
		log.Warnw("workspace cleanup left residuals", "error", report.Err())
	}

	extra := map[string]any{"product": ws.Product.Name, "db_name": ws.DBName, "plan": string(ws.Plan)}
	if !report.DatabaseDropped {
		extra["residual_database"] = ws.DBName
	}
	if len(report.Residuals) > 0 {
		extra["residuals"] = report.Residuals
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.deps.Audit.RecordTx(tx, &activity.Entry{
			Workspace:   ws,
			Actor:       actor,
			Action:      types.ActivityActionDelete,
			Description: fmt.Sprintf("workspace %s deleted", ws.Label()),
			IPAddress:   ip,
			Extra:       extra,
		}); err != nil {
			return err
		}
		if err := s.deps.Audit.Tombstone(tx, ws.ID); err != nil {
			return err
		}
		if err := tx.Where("id = ?", ws.ID).Delete(&models.Workspace{}).Error; err != nil {
			return fmt.Errorf("failed to delete workspace %s: %w", ws.ID, err)
		}
		return nil
	})
	s.deps.Metrics.Done(kindDelete, outcome(err))
	if err != nil {
		return report, err
	}
	log.Infow("workspace deleted", "residuals", len(report.Residuals))
	return report, nil
}
