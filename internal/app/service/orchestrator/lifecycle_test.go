package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/tenantmaster/internal/models"
	"github.com/fatflowers/tenantmaster/pkg/apperr"
	"github.com/fatflowers/tenantmaster/pkg/types"
)

func TestChangePlan_BusinessToEnterpriseMigrates(t *testing.T) {
	f := newFixture(t)
	ws := f.provision(t, "acme", types.PlanBusiness)

	pc, err := f.svc.ChangePlan(context.Background(), &ChangePlanRequest{WorkspaceID: ws.ID, Plan: types.PlanEnterprise, Actor: "admin", Reason: "growth"})
	require.NoError(t, err)
	require.True(t, pc.MigrationRequired)
	require.True(t, pc.MigrationSuccess)
	require.True(t, pc.IsUpgrade())
	require.Equal(t, types.TopologyShared, pc.OldTopology)
	require.Equal(t, types.TopologyDedicated, pc.NewTopology)

	got := f.reload(t, ws.ID)
	require.Equal(t, types.PlanEnterprise, got.Plan)
	require.Equal(t, types.PlanBusiness, got.PreviousPlan)
	require.Equal(t, types.TopologyDedicated, got.Topology)
	require.Equal(t, 8301, *got.DedicatedPort)
	require.Equal(t, "shop-acme", got.ContainerName)
	require.NotEmpty(t, got.ManifestPath)
	require.True(t, got.TopologyConsistent())

	var rows []*models.PlanChange
	require.NoError(t, f.db.Where("workspace_id = ?", ws.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	require.True(t, rows[0].MigrationSuccess)
}

func TestChangePlan_BusinessToStarterNeedsNoMigration(t *testing.T) {
	f := newFixture(t)
	ws := f.provision(t, "acme", types.PlanBusiness)

	pc, err := f.svc.ChangePlan(context.Background(), &ChangePlanRequest{WorkspaceID: ws.ID, Plan: types.PlanStarter, Actor: "admin"})
	require.NoError(t, err)
	require.False(t, pc.MigrationRequired)
	require.True(t, pc.MigrationSuccess)
	require.Empty(t, f.repos.calls)

	got := f.reload(t, ws.ID)
	require.Equal(t, types.PlanStarter, got.Plan)
	require.Equal(t, types.TopologyShared, got.Topology)
}

func TestChangePlan_SamePlanRejected(t *testing.T) {
	f := newFixture(t)
	ws := f.provision(t, "acme", types.PlanBusiness)

	_, err := f.svc.ChangePlan(context.Background(), &ChangePlanRequest{WorkspaceID: ws.ID, Plan: types.PlanBusiness, Actor: "admin"})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestChangePlan_DowngradeToSharedReleasesPort(t *testing.T) {
	f := newFixture(t)
	ws := f.provision(t, "acme", types.PlanEnterprise)
	require.Equal(t, 8301, *f.reload(t, ws.ID).DedicatedPort)

	pc, err := f.svc.ChangePlan(context.Background(), &ChangePlanRequest{WorkspaceID: ws.ID, Plan: types.PlanStarter, Actor: "admin"})
	require.NoError(t, err)
	require.True(t, pc.MigrationRequired)
	require.True(t, pc.MigrationSuccess)

	got := f.reload(t, ws.ID)
	require.Equal(t, types.TopologyShared, got.Topology)
	require.Nil(t, got.DedicatedPort)
	require.Empty(t, got.ManifestPath)
	require.Equal(t, "shop-shared", got.ContainerName)
	// code stays on disk for the operator
	require.Equal(t, "/opt/proyectos/shop-system-clients/acme", got.ProjectPath)
	ok, err := afero.DirExists(f.fs, got.ProjectPath)
	require.NoError(t, err)
	require.True(t, ok)

	held, err := f.ports.Held(context.Background(), f.shop.ID)
	require.NoError(t, err)
	require.Empty(t, held)
}

func TestChangePlan_FailedMigrationKeepsTopology(t *testing.T) {
	f := newFixture(t)
	ws := f.provision(t, "acme", types.PlanBusiness)
	f.repos.err = apperr.Repository(errors.New("503"), "hosting unavailable")

	pc, err := f.svc.ChangePlan(context.Background(), &ChangePlanRequest{WorkspaceID: ws.ID, Plan: types.PlanEnterprise, Actor: "admin"})
	require.ErrorIs(t, err, apperr.ErrRepository)
	require.NotNil(t, pc)
	require.True(t, pc.MigrationRequired)
	require.False(t, pc.MigrationSuccess)
	require.NotEmpty(t, pc.MigrationNotes)

	got := f.reload(t, ws.ID)
	require.Equal(t, types.PlanBusiness, got.Plan)
	require.Equal(t, types.TopologyShared, got.Topology)
	require.Nil(t, got.DedicatedPort)

	held, err := f.ports.Held(context.Background(), f.shop.ID)
	require.NoError(t, err)
	require.Empty(t, held)

	var n int64
	require.NoError(t, f.db.Model(&models.PlanChange{}).Where("workspace_id = ? AND migration_success = ?", ws.ID, false).Count(&n).Error)
	require.EqualValues(t, 1, n)
}

func TestDeleteWorkspace_DatabaseAlreadyDropped(t *testing.T) {
	f := newFixture(t)
	ws := f.provision(t, "acme", types.PlanBusiness)
	// dropped out of band; DROP ... IF EXISTS makes this a no-op
	delete(f.dbs.created, "shop_acme")

	report, err := f.svc.DeleteWorkspace(context.Background(), ws.ID, "admin", "10.0.0.1")
	require.NoError(t, err)
	require.True(t, report.Complete())
	require.True(t, report.DatabaseDropped)
	require.NoError(t, report.Err())

	_, err = f.svc.Get(context.Background(), ws.ID)
	require.ErrorIs(t, err, ErrWorkspaceNotFound)

	var logs []*models.ActivityLog
	require.NoError(t, f.db.Order("created_at").Find(&logs).Error)
	require.NotEmpty(t, logs)
	for _, l := range logs {
		require.Nil(t, l.WorkspaceID)
		require.Equal(t, "Acme acme (acme)", l.WorkspaceLabel)
	}
}

func TestDeleteWorkspace_ResidualsAreReported(t *testing.T) {
	f := newFixture(t)
	ws := f.provision(t, "acme", types.PlanEnterprise)
	f.dbs.deleteErr = errors.New("database is being accessed by other users")

	report, err := f.svc.DeleteWorkspace(context.Background(), ws.ID, "admin", "")
	require.NoError(t, err)
	require.False(t, report.Complete())
	require.False(t, report.DatabaseDropped)
	require.True(t, report.DirectoryRemoved)
	require.True(t, report.PortReleased)
	require.Len(t, report.Residuals, 1)
	require.Equal(t, "database", report.Residuals[0].Step)
	require.Equal(t, "shop_acme", report.Residuals[0].Resource)
	require.Error(t, report.Err())

	ok, err := afero.DirExists(f.fs, "/opt/proyectos/shop-system-clients/acme")
	require.NoError(t, err)
	require.False(t, ok)

	var entry models.ActivityLog
	require.NoError(t, f.db.Where("action = ?", types.ActivityActionDelete).Take(&entry).Error)
	require.Equal(t, "shop_acme", entry.Extra["residual_database"])

	_, err = f.svc.Get(context.Background(), ws.ID)
	require.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ws := f.provision(t, "acme", types.PlanStarter)

	_, err := f.svc.Resume(ctx, ws.ID, "admin", "")
	require.ErrorIs(t, err, apperr.ErrValidation)

	got, err := f.svc.Pause(ctx, ws.ID, "admin", "")
	require.NoError(t, err)
	require.Equal(t, types.WorkspaceStatusPaused, got.Status)
	require.NotNil(t, got.PausedAt)

	got, err = f.svc.Resume(ctx, ws.ID, "admin", "")
	require.NoError(t, err)
	require.Equal(t, types.WorkspaceStatusActive, got.Status)
	require.Nil(t, f.reload(t, ws.ID).PausedAt)

	_, err = f.svc.Suspend(ctx, ws.ID, "admin", "")
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, ws.ID, "admin", "")
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, ws.ID, "admin", "")
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Pause(ctx, ws.ID, "", "")
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestBackupAndRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ws := f.provision(t, "acme", types.PlanStarter)

	b, err := f.svc.BackupWorkspace(ctx, ws.ID, &BackupRequest{Actor: "admin", Notes: "before import"})
	require.NoError(t, err)
	require.Equal(t, types.BackupTypeManual, b.BackupType)
	require.Equal(t, "shop_acme", b.DBName)
	require.Equal(t, 1.5, b.SizeMB)

	backups, err := f.svc.ListBackups(ctx, ws.ID)
	require.NoError(t, err)
	require.Len(t, backups, 1)

	_, err = f.svc.RestoreWorkspace(ctx, ws.ID, &RestoreRequest{BackupID: b.ID, Actor: "admin"})
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.Empty(t, f.dbs.restored)

	_, err = f.svc.Pause(ctx, ws.ID, "admin", "")
	require.NoError(t, err)
	_, err = f.svc.RestoreWorkspace(ctx, ws.ID, &RestoreRequest{BackupID: "nope", Actor: "admin"})
	require.ErrorIs(t, err, apperr.ErrValidation)

	restored, err := f.svc.RestoreWorkspace(ctx, ws.ID, &RestoreRequest{BackupID: b.ID, Actor: "admin"})
	require.NoError(t, err)
	require.Equal(t, b.FilePath, restored.FilePath)
	require.Equal(t, []string{"shop_acme<" + b.FilePath}, f.dbs.restored)
}

func TestSyncDatabaseStats(t *testing.T) {
	f := newFixture(t)
	ws := f.provision(t, "acme", types.PlanStarter)

	n, err := f.svc.SyncAllDatabaseStats(context.Background(), "system")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 12.34, f.reload(t, ws.ID).DBSizeMB)
}

func TestInitializeProductRepo(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.InitializeProductRepo(context.Background(), "shop", "admin")
	require.NoError(t, err)
	require.Equal(t, "/opt/proyectos/shop-system", res.Path)
	require.Equal(t, "https://github.com/kritaar/shop-system.git", res.RepoURL)

	ok, err := afero.Exists(f.fs, "/opt/proyectos/shop-system/README.md")
	require.NoError(t, err)
	require.True(t, ok)

	var p models.Product
	require.NoError(t, f.db.Where("name = ?", "shop").Take(&p).Error)
	require.Equal(t, res.RepoURL, p.RepoURL)

	_, err = f.svc.InitializeProductRepo(context.Background(), "crm", "admin")
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestInterruptedRun_ClaimIsReusedAndFreedOnDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ws, err := f.svc.register(ctx, provisionReq("acme", types.PlanEnterprise))
	require.NoError(t, err)
	// the process died right after claiming
	port, err := f.ports.Claim(ctx, f.shop, "acme")
	require.NoError(t, err)
	require.Equal(t, 8301, port)

	got, err := f.svc.Run(ctx, ws.ID, "admin")
	require.NoError(t, err)
	require.Equal(t, 8301, *got.DedicatedPort)

	held, err := f.ports.Held(ctx, f.shop.ID)
	require.NoError(t, err)
	require.Equal(t, []int{8301}, held)

	report, err := f.svc.DeleteWorkspace(ctx, ws.ID, "admin", "")
	require.NoError(t, err)
	require.True(t, report.PortReleased)
	held, err = f.ports.Held(ctx, f.shop.ID)
	require.NoError(t, err)
	require.Empty(t, held)
}

func TestInterruptedRun_FailedRetryFreesClaim(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ws, err := f.svc.register(ctx, provisionReq("acme", types.PlanEnterprise))
	require.NoError(t, err)
	_, err = f.ports.Claim(ctx, f.shop, "acme")
	require.NoError(t, err)

	f.repos.err = apperr.Repository(errors.New("503"), "create repository")
	_, err = f.svc.Run(ctx, ws.ID, "admin")
	require.ErrorIs(t, err, apperr.ErrRepository)

	held, err := f.ports.Held(ctx, f.shop.ID)
	require.NoError(t, err)
	require.Empty(t, held)
	require.Equal(t, types.ProvisionStateFailed, f.reload(t, ws.ID).ProvisionState)
}

func TestDeleteWorkspace_SharedHoldsNoPort(t *testing.T) {
	f := newFixture(t)
	ws := f.provision(t, "acme", types.PlanBusiness)

	report, err := f.svc.DeleteWorkspace(context.Background(), ws.ID, "admin", "")
	require.NoError(t, err)
	require.False(t, report.PortReleased)
	require.True(t, report.Complete())
}
