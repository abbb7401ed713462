package models

import (
	"time"

	"github.com/fatflowers/tenantmaster/pkg/types"
)

// PlanChange is written once per plan transition and never updated.
// WorkspaceID is cleared when the workspace is deleted; WorkspaceLabel keeps
// the row readable afterwards.
type PlanChange struct {
	ID                string         `gorm:"column:id;type:uuid;primary_key" json:"id"`
	WorkspaceID       *string        `gorm:"column:workspace_id;type:uuid;index;default:null" json:"workspace_id"`
	WorkspaceLabel    string         `gorm:"column:workspace_label;type:varchar(300)" json:"workspace_label"`
	OldPlan           types.Plan     `gorm:"column:old_plan;type:varchar(20);not null" json:"old_plan"`
	NewPlan           types.Plan     `gorm:"column:new_plan;type:varchar(20);not null" json:"new_plan"`
	OldTopology       types.Topology `gorm:"column:old_topology;type:varchar(20);not null" json:"old_topology"`
	NewTopology       types.Topology `gorm:"column:new_topology;type:varchar(20);not null" json:"new_topology"`
	MigrationRequired bool           `gorm:"column:migration_required;not null" json:"migration_required"`
	MigrationSuccess  bool           `gorm:"column:migration_success;not null" json:"migration_success"`
	MigrationNotes    string         `gorm:"column:migration_notes;type:text" json:"migration_notes"`
	Reason            string         `gorm:"column:reason;type:text" json:"reason"`
	ChangedBy         string         `gorm:"column:changed_by;type:varchar(64)" json:"changed_by"`
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`
}

func (PlanChange) TableName() string {
	return "plan_change"
}

// IsUpgrade reports whether the change moved up the tier order.
func (p *PlanChange) IsUpgrade() bool {
	return p.OldPlan.IsUpgradeTo(p.NewPlan)
}
