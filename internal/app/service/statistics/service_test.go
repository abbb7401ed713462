package statistics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fatflowers/tenantmaster/internal/models"
	"github.com/fatflowers/tenantmaster/internal/platform/db/dbtest"
	"github.com/fatflowers/tenantmaster/pkg/types"
)

func seed(t *testing.T, db *gorm.DB) {
	t.Helper()
	shop := &models.Product{ID: "p-shop", Name: "shop", SharedContainerName: "shop-shared", SharedContainerPort: 8300, DedicatedPortStart: 8301, DedicatedPortEnd: 8350, IsActive: true}
	erp := &models.Product{ID: "p-erp", Name: "erp", SharedContainerName: "erp-shared", SharedContainerPort: 8200, DedicatedPortStart: 8201, DedicatedPortEnd: 8250, IsActive: true}
	require.NoError(t, db.Create([]*models.Product{shop, erp}).Error)

	soon := time.Now().Add(48 * time.Hour)
	later := time.Now().Add(60 * 24 * time.Hour)
	rows := []struct {
		product string
		plan    types.Plan
		status  types.WorkspaceStatus
		size    float64
		end     *time.Time
	}{
		{"p-shop", types.PlanBusiness, types.WorkspaceStatusActive, 10.4, &soon},
		{"p-shop", types.PlanEnterprise, types.WorkspaceStatusActive, 20.2, &later},
		{"p-shop", types.PlanFree, types.WorkspaceStatusPaused, 1, nil},
		{"p-erp", types.PlanBusiness, types.WorkspaceStatusSuspended, 5, &soon},
	}
	for i, r := range rows {
		ws := &models.Workspace{
			ID: fmt.Sprintf("ws-%d", i), ProductID: r.product, CompanyName: "c", Subdomain: fmt.Sprintf("s%d", i),
			Plan: r.plan, Topology: r.plan.Topology(), Status: r.status, ProvisionState: types.ProvisionStateActive,
			DBName: fmt.Sprintf("db_%d", i), DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: 5432,
			DBSizeMB: r.size, SubscriptionEnd: r.end,
		}
		require.NoError(t, db.Create(ws).Error)
	}
	require.NoError(t, db.Create(&models.PlanChange{ID: "pc-1", OldPlan: types.PlanBusiness, NewPlan: types.PlanEnterprise, OldTopology: types.TopologyShared, NewTopology: types.TopologyDedicated}).Error)
}

func labels(items []ResponseDataItem) map[string]int64 {
	out := map[string]int64{}
	for _, it := range items {
		out[it.Label] = it.Value
	}
	return out
}

func TestGetStatistic_AllItems(t *testing.T) {
	db := dbtest.New(t)
	seed(t, db)

	res, err := New(db).GetStatistic(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.DataItems, len(AllStatisticTypes))

	require.Equal(t, map[string]int64{"business": 2, "enterprise": 1, "free": 1}, labels(res.DataItems[StatisticTypeWorkspacesByPlan]))
	require.Equal(t, map[string]int64{"shared": 3, "dedicated": 1}, labels(res.DataItems[StatisticTypeWorkspacesByTopology]))
	require.Equal(t, map[string]int64{"shop": 3, "erp": 1}, labels(res.DataItems[StatisticTypeWorkspacesByProduct]))
	require.Equal(t, map[string]int64{"active": 2, "paused": 1, "suspended": 1}, labels(res.DataItems[StatisticTypeWorkspacesByStatus]))
	require.EqualValues(t, 2, res.DataItems[StatisticTypeExpiringSoonCount][0].Value)
	require.EqualValues(t, 36, res.DataItems[StatisticTypeTotalDatabaseSizeMB][0].Value)
	require.Len(t, res.DataItems[StatisticTypeDailyPlanChangeCount], 1)
	require.NotEmpty(t, res.DataItems[StatisticTypeDailyNewWorkspaceCount][0].Date)
}

func TestGetStatistic_Filters(t *testing.T) {
	db := dbtest.New(t)
	seed(t, db)

	res, err := New(db).GetStatistic(context.Background(), &Request{
		Filters:   []*types.CommonFilter{{Field: "product_id", Operator: types.CommonFilterOperatorEq, Values: []any{"p-erp"}}},
		DataItems: []*DataItem{{ID: StatisticTypeWorkspacesByPlan}, {ID: StatisticTypeDailyPlanChangeCount}},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"business": 1}, labels(res.DataItems[StatisticTypeWorkspacesByPlan]))
	// plan changes ignore workspace filters
	require.Len(t, res.DataItems[StatisticTypeDailyPlanChangeCount], 1)

	_, err = New(db).GetStatistic(context.Background(), &Request{
		Filters: []*types.CommonFilter{{Field: "db_password", Operator: types.CommonFilterOperatorEq, Values: []any{"x"}}},
	})
	require.Error(t, err)

	_, err = New(db).GetStatistic(context.Background(), &Request{DataItems: []*DataItem{{ID: "gmv"}}})
	require.Error(t, err)
}
