package models

import (
	"time"

	"github.com/fatflowers/tenantmaster/pkg/types"
)

type DatabaseBackup struct {
	ID          string           `gorm:"column:id;type:uuid;primary_key" json:"id"`
	WorkspaceID *string          `gorm:"column:workspace_id;type:uuid;index;default:null" json:"workspace_id"`
	DBName      string           `gorm:"column:db_name;type:varchar(100);not null" json:"db_name"`
	Filename    string           `gorm:"column:filename;type:varchar(255);not null" json:"filename"`
	FilePath    string           `gorm:"column:file_path;type:varchar(500);not null" json:"file_path"`
	SizeMB      float64          `gorm:"column:size_mb;not null;default:0" json:"size_mb"`
	BackupType  types.BackupType `gorm:"column:backup_type;type:varchar(20);not null" json:"backup_type"`
	CreatedBy   string           `gorm:"column:created_by;type:varchar(64)" json:"created_by"`
	Notes       string           `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt   time.Time        `gorm:"index" json:"created_at"`
}

func (DatabaseBackup) TableName() string {
	return "database_backup"
}
