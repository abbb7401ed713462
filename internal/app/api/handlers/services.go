package handlers

import (
	"context"

	"github.com/fatflowers/tenantmaster/internal/app/service/activity"
	"github.com/fatflowers/tenantmaster/internal/app/service/orchestrator"
	"github.com/fatflowers/tenantmaster/internal/app/service/provisioning"
	"github.com/fatflowers/tenantmaster/internal/app/service/statistics"
	"github.com/fatflowers/tenantmaster/internal/models"
)

// WorkspaceManager is the part of the orchestrator the admin API drives.
type WorkspaceManager interface {
	ProvisionAsync(ctx context.Context, req *orchestrator.ProvisionRequest) (*models.Workspace, error)
	RunAsync(ctx context.Context, id, actor string) (*models.Workspace, error)
	Get(ctx context.Context, id string) (*models.Workspace, error)
	List(ctx context.Context, req *orchestrator.ListRequest) (*orchestrator.ListResult, error)
	ChangePlan(ctx context.Context, req *orchestrator.ChangePlanRequest) (*models.PlanChange, error)
	Pause(ctx context.Context, id, actor, ip string) (*models.Workspace, error)
	Resume(ctx context.Context, id, actor, ip string) (*models.Workspace, error)
	Suspend(ctx context.Context, id, actor, ip string) (*models.Workspace, error)
	Cancel(ctx context.Context, id, actor, ip string) (*models.Workspace, error)
	BackupWorkspace(ctx context.Context, id string, req *orchestrator.BackupRequest) (*models.DatabaseBackup, error)
	RestoreWorkspace(ctx context.Context, id string, req *orchestrator.RestoreRequest) (*models.DatabaseBackup, error)
	ListBackups(ctx context.Context, id string) ([]*models.DatabaseBackup, error)
	SyncDatabaseStats(ctx context.Context, id string) (*models.Workspace, error)
	DeleteWorkspace(ctx context.Context, id, actor, ip string) (*orchestrator.DeletionReport, error)
	InitializeProductRepo(ctx context.Context, name, actor string) (*orchestrator.InitRepoResult, error)
}

type ProductLister interface {
	List(ctx context.Context, activeOnly bool) ([]*models.Product, error)
}

type ActivityReader interface {
	List(ctx context.Context, q *activity.Query) ([]*models.ActivityLog, int64, error)
	ListPlanChanges(ctx context.Context, workspaceID string, limit int) ([]*models.PlanChange, error)
}

type DashboardStatistics interface {
	GetStatistic(ctx context.Context, req *statistics.Request) (*statistics.Response, error)
}

// DatabaseInspector reads live figures from the tenant database server.
type DatabaseInspector interface {
	ServerStatus(ctx context.Context) *provisioning.ServerStatus
	MeasureSize(ctx context.Context, name string) float64
	CountConnections(ctx context.Context, name string) int
	ListTables(ctx context.Context, name string) []string
}

// Admin bundles what the admin routes need.
type Admin struct {
	Workspaces WorkspaceManager
	Products   ProductLister
	Activity   ActivityReader
	Statistics DashboardStatistics
	Databases  DatabaseInspector
}
