package activity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/tenantmaster/internal/models"
	"github.com/fatflowers/tenantmaster/internal/platform/db/dbtest"
	"github.com/fatflowers/tenantmaster/pkg/types"
)

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)
	s := NewService(zap.NewNop().Sugar(), gdb)
	ws := &models.Workspace{ID: "ws-1", CompanyName: "Acme", Subdomain: "acme"}

	row, err := s.Record(ctx, &Entry{Workspace: ws, Actor: "admin", Action: types.ActivityActionCreate,
		Description: "workspace created", IPAddress: "10.0.0.1", Extra: map[string]any{"plan": "business"}})
	require.NoError(t, err)
	require.Equal(t, "Acme (acme)", row.WorkspaceLabel)

	_, err = s.Record(ctx, &Entry{Workspace: ws, Actor: "admin", Action: types.ActivityActionPause})
	require.NoError(t, err)
	_, err = s.Record(ctx, &Entry{Actor: "system", Action: types.ActivityActionSync})
	require.NoError(t, err)

	rows, total, err := s.List(ctx, &Query{WorkspaceID: "ws-1"})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, rows, 2)

	rows, total, err = s.List(ctx, &Query{Action: types.ActivityActionCreate})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "business", rows[0].Extra["plan"])

	rows, total, err = s.List(ctx, &Query{Limit: 1})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, rows, 1)
}

func TestTombstone(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)
	s := NewService(zap.NewNop().Sugar(), gdb)
	ws := &models.Workspace{ID: "ws-1", CompanyName: "Acme", Subdomain: "acme"}

	_, err := s.Record(ctx, &Entry{Workspace: ws, Action: types.ActivityActionCreate})
	require.NoError(t, err)
	wsID := ws.ID
	require.NoError(t, s.RecordPlanChange(ctx, &models.PlanChange{WorkspaceID: &wsID, WorkspaceLabel: ws.Label(),
		OldPlan: types.PlanBusiness, NewPlan: types.PlanStarter, OldTopology: types.TopologyShared, NewTopology: types.TopologyShared}))

	require.NoError(t, s.Tombstone(gdb.WithContext(ctx), ws.ID))

	rows, total, err := s.List(ctx, &Query{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Nil(t, rows[0].WorkspaceID)
	require.Equal(t, "Acme (acme)", rows[0].WorkspaceLabel)

	changes, err := s.ListPlanChanges(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Nil(t, changes[0].WorkspaceID)

	changes, err = s.ListPlanChanges(ctx, "ws-1", 0)
	require.NoError(t, err)
	require.Empty(t, changes)
}
