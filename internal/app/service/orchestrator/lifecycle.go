package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/tenantmaster/internal/app/service/activity"
	"github.com/fatflowers/tenantmaster/internal/app/service/catalog"
	"github.com/fatflowers/tenantmaster/internal/app/service/publisher"
	"github.com/fatflowers/tenantmaster/internal/models"
	"github.com/fatflowers/tenantmaster/pkg/apperr"
	"github.com/fatflowers/tenantmaster/pkg/tool"
	"github.com/fatflowers/tenantmaster/pkg/types"
)

type transition struct {
	from []types.WorkspaceStatus
	to   types.WorkspaceStatus
}

var transitions = map[types.ActivityAction]transition{
	types.ActivityActionPause: {
		from: []types.WorkspaceStatus{types.WorkspaceStatusActive},
		to:   types.WorkspaceStatusPaused,
	},
	types.ActivityActionResume: {
		from: []types.WorkspaceStatus{types.WorkspaceStatusPaused, types.WorkspaceStatusSuspended},
		to:   types.WorkspaceStatusActive,
	},
	types.ActivityActionSuspend: {
		from: []types.WorkspaceStatus{types.WorkspaceStatusActive, types.WorkspaceStatusPaused},
		to:   types.WorkspaceStatusSuspended,
	},
	types.ActivityActionCancel: {
		from: []types.WorkspaceStatus{types.WorkspaceStatusActive, types.WorkspaceStatusPaused, types.WorkspaceStatusSuspended},
		to:   types.WorkspaceStatusCancelled,
	},
}

func (s *Service) Pause(ctx context.Context, id, actor, ip string) (*models.Workspace, error) {
	return s.setStatus(ctx, id, actor, ip, types.ActivityActionPause)
}

func (s *Service) Resume(ctx context.Context, id, actor, ip string) (*models.Workspace, error) {
	return s.setStatus(ctx, id, actor, ip, types.ActivityActionResume)
}

func (s *Service) Suspend(ctx context.Context, id, actor, ip string) (*models.Workspace, error) {
	return s.setStatus(ctx, id, actor, ip, types.ActivityActionSuspend)
}

func (s *Service) Cancel(ctx context.Context, id, actor, ip string) (*models.Workspace, error) {
	return s.setStatus(ctx, id, actor, ip, types.ActivityActionCancel)
}

func (s *Service) setStatus(ctx context.Context, id, actor, ip string, action types.ActivityAction) (*models.Workspace, error) {
	t, ok := transitions[action]
	if !ok {
		return nil, fmt.Errorf("no status transition for %s", action)
	}
	if actor == "" {
		return nil, apperr.Validation("actor is required")
	}
	ctx, unlock := s.lock(ctx, id)
	defer unlock()

	ws, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lo.Contains(t.from, ws.Status) {
		return nil, apperr.Validation("cannot %s a %s workspace", action, ws.Status)
	}
	prev := ws.Status
	ws.Status = t.to
	switch t.to {
	case types.WorkspaceStatusPaused:
		now := s.now()
		ws.PausedAt = &now
	case types.WorkspaceStatusActive:
		ws.PausedAt = nil
	}
	if err := s.save(ctx, ws); err != nil {
		return nil, err
	}
	s.record(ctx, &activity.Entry{
		Workspace:   ws,
		Actor:       actor,
		Action:      action,
		Description: fmt.Sprintf("status changed from %s to %s", prev, t.to),
		IPAddress:   ip,
	})
	return ws, nil
}

type BackupRequest struct {
	Type      types.BackupType `json:"type"`
	Notes     string           `json:"notes"`
	Actor     string           `json:"actor"`
	IPAddress string           `json:"-"`
}

// BackupWorkspace dumps the workspace database and records the file.
func (s *Service) BackupWorkspace(ctx context.Context, id string, req *BackupRequest) (*models.DatabaseBackup, error) {
	if req.Actor == "" {
		return nil, apperr.Validation("actor is required")
	}
	if req.Type == "" {
		req.Type = types.BackupTypeManual
	}
	ctx, unlock := s.lock(ctx, id)
	defer unlock()

	ws, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ws.DBCreated {
		return nil, apperr.Validation("workspace %s has no database yet", ws.Subdomain)
	}
	began := time.Now()
	b, err := s.deps.Databases.BackupDatabase(ctx, ws.DBName, "")
	s.deps.Metrics.ObserveStep(kindBackup, "dump", time.Since(began))
	s.deps.Metrics.Done(kindBackup, outcome(err))
	if err != nil {
		return nil, err
	}

	wsID := ws.ID
	row := &models.DatabaseBackup{
		ID:          tool.GenerateUUIDV7(),
		WorkspaceID: &wsID,
		DBName:      ws.DBName,
		Filename:    b.Filename,
		FilePath:    b.Path,
		SizeMB:      b.SizeMB,
		BackupType:  req.Type,
		CreatedBy:   req.Actor,
		Notes:       req.Notes,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to record backup %s: %w", b.Path, err)
	}
	s.record(ctx, &activity.Entry{
		Workspace:   ws,
		Actor:       req.Actor,
		Action:      types.ActivityActionBackup,
		Description: fmt.Sprintf("backup %s created", b.Filename),
		IPAddress:   req.IPAddress,
		Extra:       map[string]any{"size_mb": b.SizeMB, "type": string(req.Type)},
	})
	return row, nil
}

type RestoreRequest struct {
	BackupID  string `json:"backup_id" binding:"required"`
	Actor     string `json:"actor"`
	IPAddress string `json:"-"`
}

// RestoreWorkspace loads one of the workspace's backups over its database.
// The workspace must not be active.
func (s *Service) RestoreWorkspace(ctx context.Context, id string, req *RestoreRequest) (*models.DatabaseBackup, error) {
	if req.Actor == "" {
		return nil, apperr.Validation("actor is required")
	}
	ctx, unlock := s.lock(ctx, id)
	defer unlock()

	ws, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws.Status == types.WorkspaceStatusActive {
		return nil, apperr.Validation("pause workspace %s before restoring", ws.Subdomain)
	}
	var b models.DatabaseBackup
	err = s.db.WithContext(ctx).Where("id = ? AND workspace_id = ?", req.BackupID, ws.ID).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Validation("backup %s does not belong to workspace %s", req.BackupID, ws.Subdomain)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load backup %s: %w", req.BackupID, err)
	}

	// pg_restore --clean is destructive; once started it runs to completion
	ctx = context.WithoutCancel(ctx)
	began := time.Now()
	err = s.deps.Databases.RestoreDatabase(ctx, ws.DBName, b.FilePath)
	s.deps.Metrics.ObserveStep(kindRestore, "restore", time.Since(began))
	s.deps.Metrics.Done(kindRestore, outcome(err))
	if err != nil {
		return nil, err
	}
	s.record(ctx, &activity.Entry{
		Workspace:   ws,
		Actor:       req.Actor,
		Action:      types.ActivityActionRestore,
		Description: fmt.Sprintf("database restored from %s", b.Filename),
		IPAddress:   req.IPAddress,
		Extra:       map[string]any{"backup_id": b.ID},
	})
	return &b, nil
}

// ListBackups returns the workspace's backups, newest first.
func (s *Service) ListBackups(ctx context.Context, id string) ([]*models.DatabaseBackup, error) {
	var rows []*models.DatabaseBackup
	err := s.db.WithContext(ctx).Where("workspace_id = ?", id).Order("created_at DESC, id DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	return rows, nil
}

// SyncDatabaseStats refreshes the stored database size.
func (s *Service) SyncDatabaseStats(ctx context.Context, id string) (*models.Workspace, error) {
	ws, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ws.DBCreated {
		return ws, nil
	}
	ws.DBSizeMB = s.deps.Databases.MeasureSize(ctx, ws.DBName)
	err = s.db.WithContext(ctx).Model(&models.Workspace{}).Where("id = ?", ws.ID).Update("db_size_mb", ws.DBSizeMB).Error
	if err != nil {
		return nil, fmt.Errorf("failed to store database size: %w", err)
	}
	return ws, nil
}

// SyncAllDatabaseStats refreshes the size of every created database and
// returns how many were updated.
func (s *Service) SyncAllDatabaseStats(ctx context.Context, actor string) (int, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Workspace{}).Where("db_created = ?", true).Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to list workspaces: %w", err)
	}
	n := 0
	for _, id := range ids {
		if _, err := s.SyncDatabaseStats(ctx, id); err != nil {
			s.log.Warnw("failed to sync database stats", "workspace_id", id, "error", err)
			continue
		}
		n++
	}
	s.record(ctx, &activity.Entry{
		Actor:       actor,
		Action:      types.ActivityActionSync,
		Description: fmt.Sprintf("database sizes synced for %d workspaces", n),
	})
	return n, nil
}

type InitRepoResult struct {
	Product string `json:"product"`
	Path    string `json:"path"`
	RepoURL string `json:"repo_url"`
	Skipped bool   `json:"skipped"`
}

// InitializeProductRepo bootstraps the product's base code directory and
// publishes it as {product}-system.
func (s *Service) InitializeProductRepo(ctx context.Context, name, actor string) (*InitRepoResult, error) {
	if actor == "" {
		return nil, apperr.Validation("actor is required")
	}
	p, err := s.deps.Catalog.Get(ctx, name)
	if errors.Is(err, catalog.ErrProductNotFound) {
		return nil, apperr.Validation("unknown product %q", name)
	}
	if err != nil {
		return nil, err
	}
	_, unlock := s.lock(ctx, "product:"+p.ID)
	defer unlock()

	dir, err := s.deps.Code.InitProductTemplate(ctx, p)
	if err != nil {
		return nil, err
	}
	out, err := s.deps.Repos.Publish(ctx, &publisher.Request{
		Dir:           dir,
		RepoName:      p.Name + "-system",
		Description:   fmt.Sprintf("%s base system", p.DisplayName),
		CommitMessage: "Initial commit - base repository",
	})
	if err != nil {
		return nil, err
	}
	res := &InitRepoResult{Product: p.Name, Path: dir, RepoURL: out.RepoURL, Skipped: out.Skipped}
	if out.RepoURL != "" {
		if err := s.deps.Catalog.SetRepoURL(ctx, p.ID, out.RepoURL); err != nil {
			return res, err
		}
	}
	s.record(ctx, &activity.Entry{
		Actor:       actor,
		Action:      types.ActivityActionDeploy,
		Description: fmt.Sprintf("product %s repository initialized", p.Name),
		Extra:       map[string]any{"path": dir, "repo_url": out.RepoURL},
	})
	return res, nil
}

// WorkspaceFilterFields are the columns List accepts filters and sorting on.
var WorkspaceFilterFields = []string{
	"plan", "topology", "status", "provision_state", "product_id",
	"subdomain", "company_name", "db_name", "created_at", "subscription_end",
}

type ListRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ListResult struct {
	Items []*models.Workspace `json:"items"`
	Total int64               `json:"total"`
}

// List pages through workspaces, newest first unless SortBy says otherwise.
func (s *Service) List(ctx context.Context, req *ListRequest) (*ListResult, error) {
	if req == nil {
		req = &ListRequest{}
	}
	if req.Size <= 0 || req.Size > 500 {
		req.Size = 20
	}
	if req.From < 0 {
		req.From = 0
	}
	for _, f := range req.Filters {
		if err := f.Validate(WorkspaceFilterFields); err != nil {
			return nil, apperr.Validation("%s", err.Error())
		}
	}
	if req.SortBy != "" && !lo.Contains(WorkspaceFilterFields, req.SortBy) {
		return nil, apperr.Validation("cannot sort by %q", req.SortBy)
	}

	tx := s.db.WithContext(ctx).Model(&models.Workspace{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{types.FiltersAnd(req.Filters)}})
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count workspaces: %w", err)
	}

	order := clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true}
	if req.SortBy != "" {
		order = clause.OrderByColumn{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}
	}
	var rows []*models.Workspace
	q := tx.Preload("Product").Order(clause.OrderBy{Columns: []clause.OrderByColumn{order}}).Limit(req.Size).Offset(req.From)
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	return &ListResult{Items: rows, Total: total}, nil
}
