// Package activity keeps the append-only audit trail: activity entries and
// plan changes.
package activity

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/tenantmaster/internal/models"
	"github.com/fatflowers/tenantmaster/pkg/logctx"
	"github.com/fatflowers/tenantmaster/pkg/tool"
	"github.com/fatflowers/tenantmaster/pkg/types"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type Entry struct {
	Workspace   *models.Workspace
	Actor       string
	Action      types.ActivityAction
	Description string
	IPAddress   string
	Extra       map[string]any
}

type Query struct {
	WorkspaceID string               `json:"workspace_id"`
	Action      types.ActivityAction `json:"action"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

func (q *Query) limit() int {
	switch {
	case q.Limit <= 0:
		return defaultLimit
	case q.Limit > maxLimit:
		return maxLimit
	}
	return q.Limit
}

type Service struct {
	log *zap.SugaredLogger
	db  *gorm.DB
}

func NewService(log *zap.SugaredLogger, db *gorm.DB) *Service {
	return &Service{log: log, db: db}
}

// Record appends an activity entry.
func (s *Service) Record(ctx context.Context, e *Entry) (*models.ActivityLog, error) {
	return s.RecordTx(s.db.WithContext(ctx), e)
}

// RecordTx appends an activity entry using tx.
func (s *Service) RecordTx(tx *gorm.DB, e *Entry) (*models.ActivityLog, error) {
	row := &models.ActivityLog{
		ID:          tool.GenerateUUIDV7(),
		Actor:       e.Actor,
		Action:      e.Action,
		Description: e.Description,
		IPAddress:   e.IPAddress,
	}
	if e.Workspace != nil {
		id := e.Workspace.ID
		row.WorkspaceID = &id
		row.WorkspaceLabel = e.Workspace.Label()
	}
	if len(e.Extra) > 0 {
		row.Extra = datatypes.JSONMap(e.Extra)
	}
	if err := tx.Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to record activity: %w", err)
	}
	logctx.FromCtx(tx.Statement.Context, s.log).Infow("activity recorded", "action", e.Action, "actor", e.Actor, "description", e.Description)
	return row, nil
}

// RecordPlanChange stores a plan transition. Rows are never updated.
func (s *Service) RecordPlanChange(ctx context.Context, pc *models.PlanChange) error {
	if pc.ID == "" {
		pc.ID = tool.GenerateUUIDV7()
	}
	if err := s.db.WithContext(ctx).Create(pc).Error; err != nil {
		return fmt.Errorf("failed to record plan change: %w", err)
	}
	return nil
}

// Tombstone detaches every audit row from workspaceID so they survive the
// workspace's deletion.
func (s *Service) Tombstone(tx *gorm.DB, workspaceID string) error {
	for _, m := range []any{&models.ActivityLog{}, &models.PlanChange{}, &models.DatabaseBackup{}} {
		if err := tx.Model(m).Where("workspace_id = ?", workspaceID).Update("workspace_id", nil).Error; err != nil {
			return fmt.Errorf("failed to tombstone audit rows: %w", err)
		}
	}
	return nil
}

// List returns entries newest first together with the total match count.
func (s *Service) List(ctx context.Context, q *Query) ([]*models.ActivityLog, int64, error) {
	if q == nil {
		q = &Query{}
	}
	tx := s.db.WithContext(ctx).Model(&models.ActivityLog{})
	if q.WorkspaceID != "" {
		tx = tx.Where("workspace_id = ?", q.WorkspaceID)
	}
	if q.Action != "" {
		tx = tx.Where("action = ?", q.Action)
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count activity: %w", err)
	}
	var rows []*models.ActivityLog
	if err := tx.Order("created_at DESC, id DESC").Limit(q.limit()).Offset(q.Offset).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list activity: %w", err)
	}
	return rows, total, nil
}

// ListPlanChanges returns plan changes newest first, optionally for one workspace.
func (s *Service) ListPlanChanges(ctx context.Context, workspaceID string, limit int) ([]*models.PlanChange, error) {
	q := &Query{Limit: limit}
	tx := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(q.limit())
	if workspaceID != "" {
		tx = tx.Where("workspace_id = ?", workspaceID)
	}
	var rows []*models.PlanChange
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list plan changes: %w", err)
	}
	return rows, nil
}

var Module = fx.Options(
	fx.Provide(NewService),
)
