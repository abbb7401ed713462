package models

import (
	"net/url"
	"testing"
	"time"

	"github.com/fatflowers/tenantmaster/pkg/types"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestTableNames(t *testing.T) {
	require.Equal(t, "product", Product{}.TableName())
	require.Equal(t, "workspace", Workspace{}.TableName())
	require.Equal(t, "plan_change", PlanChange{}.TableName())
	require.Equal(t, "activity_log", ActivityLog{}.TableName())
	require.Equal(t, "database_backup", DatabaseBackup{}.TableName())
	require.Equal(t, "dedicated_port_claim", PortClaim{}.TableName())
}

func TestProduct_Validate(t *testing.T) {
	p := &Product{Name: "shop", DedicatedPortStart: 8301, DedicatedPortEnd: 8350}
	require.NoError(t, p.Validate())
	require.Equal(t, 50, p.PortRangeSize())

	p.DedicatedPortEnd = 8301
	require.Error(t, p.Validate())

	p.DedicatedPortEnd = 70000
	require.Error(t, p.Validate())

	require.Error(t, (&Product{DedicatedPortStart: 1, DedicatedPortEnd: 2}).Validate())
}

func TestProduct_PortRangeOverlaps(t *testing.T) {
	a := &Product{DedicatedPortStart: 8101, DedicatedPortEnd: 8150}
	b := &Product{DedicatedPortStart: 8150, DedicatedPortEnd: 8200}
	c := &Product{DedicatedPortStart: 8201, DedicatedPortEnd: 8250}
	require.True(t, a.PortRangeOverlaps(b))
	require.True(t, b.PortRangeOverlaps(a))
	require.False(t, a.PortRangeOverlaps(c))
}

func TestProduct_ApplySeed(t *testing.T) {
	p := &Product{ID: "keep"}
	p.ApplySeed(&types.ProductSeed{Name: "erp", SharedContainerName: "erp-system", DedicatedPortStart: 8201, DedicatedPortEnd: 8250})
	require.Equal(t, "keep", p.ID)
	require.Equal(t, "erp", p.DisplayName)
	require.Equal(t, "erp", p.SubdomainPrefix)
	require.True(t, p.IsActive)
}

func TestValidSubdomain(t *testing.T) {
	for _, ok := range []string{"acme", "a", "acme-corp", "x1"} {
		require.True(t, ValidSubdomain(ok), ok)
	}
	for _, bad := range []string{"", "Acme", "-acme", "acme-", "ac_me", "a.b", "acme corp"} {
		require.False(t, ValidSubdomain(bad), bad)
	}
}

func TestWorkspace_Derived(t *testing.T) {
	w := &Workspace{
		Subdomain: "acme",
		Product:   &Product{SubdomainPrefix: "shop"},
		DBUser:    "acme_user", DBPassword: "pw", DBHost: "postgres16", DBPort: 5432, DBName: "shop_acme",
		Plan: types.PlanBusiness, Topology: types.TopologyShared,
	}
	require.Equal(t, "https://acme.shop.surgir.online", w.URL("surgir.online"))
	require.Equal(t, "postgresql://acme_user:pw@postgres16:5432/shop_acme", w.DatabaseURL())
	require.True(t, w.TopologyConsistent())
	require.False(t, w.IsDedicated())

	w.Plan = types.PlanEnterprise
	require.False(t, w.TopologyConsistent())
}

func TestWorkspace_DatabaseURLKeepsPassword(t *testing.T) {
	w := &Workspace{DBUser: "user_shop_acme", DBPassword: "aB3#x@9%Q$zz", DBHost: "postgres16", DBPort: 5432, DBName: "shop_acme"}
	u, err := url.Parse(w.DatabaseURL())
	require.NoError(t, err)
	pw, ok := u.User.Password()
	require.True(t, ok)
	require.Equal(t, "aB3#x@9%Q$zz", pw)
	require.Equal(t, "/shop_acme", u.Path)
}

func TestWorkspace_DaysRemaining(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w := &Workspace{Plan: types.PlanStarter}
	require.Nil(t, w.DaysRemaining(now))

	end := now.Add(72 * time.Hour)
	w.SubscriptionEnd = &end
	require.Equal(t, 3, *w.DaysRemaining(now))

	past := now.Add(-48 * time.Hour)
	w.SubscriptionEnd = &past
	require.Equal(t, 0, *w.DaysRemaining(now))

	w.Plan = types.PlanLifetime
	require.Nil(t, w.DaysRemaining(now))
}

func TestWorkspace_Report(t *testing.T) {
	w := &Workspace{Topology: types.TopologyDedicated}
	require.Equal(t, types.TopologyDedicated, w.Report().Topology)
	require.Empty(t, w.Report().Steps)

	r := &types.ProvisionReport{Topology: types.TopologyShared}
	r.Add(types.StepOutcome{Step: types.ProvisionStateDatabaseReady, OK: true})
	w.ProvisionReport = datatypes.NewJSONType(r)
	require.Len(t, w.Report().Steps, 1)
}

func TestPlanChange_IsUpgrade(t *testing.T) {
	require.True(t, (&PlanChange{OldPlan: types.PlanBusiness, NewPlan: types.PlanEnterprise}).IsUpgrade())
	require.False(t, (&PlanChange{OldPlan: types.PlanBusiness, NewPlan: types.PlanStarter}).IsUpgrade())
}
