package types

import (
	"fmt"

	"github.com/samber/lo"
)

// Plan is a subscription tier. Tiers are ordered, see PlanOrder.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanStarter    Plan = "starter"
	PlanBusiness   Plan = "business"
	PlanEnterprise Plan = "enterprise"
	PlanLifetime   Plan = "lifetime"
)

// PlanOrder lists plans from lowest to highest tier.
var PlanOrder = []Plan{PlanFree, PlanStarter, PlanBusiness, PlanEnterprise, PlanLifetime}

// Topology is the deployment shape of a workspace.
type Topology string

const (
	TopologyShared    Topology = "shared"
	TopologyDedicated Topology = "dedicated"
)

var dedicatedPlans = []Plan{PlanEnterprise, PlanLifetime}

// ParsePlan validates a raw plan name.
func ParsePlan(s string) (Plan, error) {
	p := Plan(s)
	if !lo.Contains(PlanOrder, p) {
		return "", fmt.Errorf("unknown plan: %q", s)
	}
	return p, nil
}

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	return lo.Contains(PlanOrder, p)
}

// Rank is the position of p in PlanOrder, -1 when unknown.
func (p Plan) Rank() int {
	return lo.IndexOf(PlanOrder, p)
}

// Topology returns dedicated for enterprise and lifetime plans, shared otherwise.
func (p Plan) Topology() Topology {
	if lo.Contains(dedicatedPlans, p) {
		return TopologyDedicated
	}
	return TopologyShared
}

// IsUpgradeTo reports whether moving from p to next goes up the tier order.
func (p Plan) IsUpgradeTo(next Plan) bool {
	return p.Valid() && next.Valid() && next.Rank() > p.Rank()
}

// IsSubscription is false for plans that never expire or never bill.
func (p Plan) IsSubscription() bool {
	return p != PlanFree && p != PlanLifetime
}

// RequiresMigration reports whether moving from p to next changes topology.
func (p Plan) RequiresMigration(next Plan) bool {
	return p.Topology() != next.Topology()
}

var upgrades = map[Plan][]Plan{
	PlanFree:       {PlanStarter, PlanBusiness, PlanEnterprise, PlanLifetime},
	PlanStarter:    {PlanBusiness, PlanEnterprise, PlanLifetime},
	PlanBusiness:   {PlanEnterprise, PlanLifetime},
	PlanEnterprise: {PlanLifetime},
	PlanLifetime:   {},
}

// lifetime is terminal: it can neither be downgraded nor upgraded.
var downgrades = map[Plan][]Plan{
	PlanEnterprise: {PlanBusiness, PlanStarter},
	PlanBusiness:   {PlanStarter},
	PlanStarter:    {PlanFree},
	PlanFree:       {},
	PlanLifetime:   {},
}

// Upgrades lists the plans p may move up to.
func (p Plan) Upgrades() []Plan { return upgrades[p] }

// Downgrades lists the plans p may move down to.
func (p Plan) Downgrades() []Plan { return downgrades[p] }

// PlanInfo is the catalog entry shown next to a plan.
type PlanInfo struct {
	Plan       Plan     `json:"plan"`
	Name       string   `json:"name"`
	Price      string   `json:"price"`
	Storage    string   `json:"storage"`
	Users      string   `json:"users"`
	Deployment Topology `json:"deployment"`
}

var planInfos = map[Plan]PlanInfo{
	PlanFree:       {Plan: PlanFree, Name: "Free", Price: "$0", Storage: "1 GB", Users: "5", Deployment: TopologyShared},
	PlanStarter:    {Plan: PlanStarter, Name: "Starter", Price: "$19/month", Storage: "10 GB", Users: "20", Deployment: TopologyShared},
	PlanBusiness:   {Plan: PlanBusiness, Name: "Business", Price: "$49/month", Storage: "50 GB", Users: "unlimited", Deployment: TopologyShared},
	PlanEnterprise: {Plan: PlanEnterprise, Name: "Enterprise", Price: "$199/month", Storage: "200 GB", Users: "unlimited", Deployment: TopologyDedicated},
	PlanLifetime:   {Plan: PlanLifetime, Name: "Lifetime", Price: "$999 once", Storage: "500 GB", Users: "unlimited", Deployment: TopologyDedicated},
}

// Info returns the catalog entry for p, falling back to the free plan.
func (p Plan) Info() PlanInfo {
	if info, ok := planInfos[p]; ok {
		return info
	}
	return planInfos[PlanFree]
}
