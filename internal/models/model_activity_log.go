package models

import (
	"time"

	"github.com/fatflowers/tenantmaster/pkg/types"
	"gorm.io/datatypes"
)

// ActivityLog is append-only. Deleting a workspace nulls WorkspaceID instead
// of removing the entry.
type ActivityLog struct {
	ID             string               `gorm:"column:id;type:uuid;primary_key" json:"id"`
	WorkspaceID    *string              `gorm:"column:workspace_id;type:uuid;index;default:null" json:"workspace_id"`
	WorkspaceLabel string               `gorm:"column:workspace_label;type:varchar(300)" json:"workspace_label"`
	Actor          string               `gorm:"column:actor;type:varchar(64)" json:"actor"`
	Action         types.ActivityAction `gorm:"column:action;type:varchar(20);not null;index" json:"action"`
	Description    string               `gorm:"column:description;type:text" json:"description"`
	IPAddress      string               `gorm:"column:ip_address;type:varchar(64)" json:"ip_address"`
	Extra          datatypes.JSONMap    `gorm:"column:extra;type:jsonb" json:"extra"`
	CreatedAt      time.Time            `gorm:"index" json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "activity_log"
}
