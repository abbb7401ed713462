package models

import (
	"fmt"
	"regexp"
	"time"

	"github.com/fatflowers/tenantmaster/pkg/manifest"
	"github.com/fatflowers/tenantmaster/pkg/types"
	"gorm.io/datatypes"
)

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ValidSubdomain reports whether s is a lowercase DNS label.
func ValidSubdomain(s string) bool {
	return subdomainPattern.MatchString(s)
}

// Workspace is one customer's provisioned instance of a Product.
type Workspace struct {
	ID          string   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ProductID   string   `gorm:"column:product_id;type:uuid;not null;uniqueIndex:unique_product_subdomain,priority:1" json:"product_id"`
	Product     *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	CompanyName string   `gorm:"column:company_name;type:varchar(200);not null" json:"company_name"`
	Subdomain   string   `gorm:"column:subdomain;type:varchar(100);not null;uniqueIndex:unique_product_subdomain,priority:2" json:"subdomain"`

	Plan          types.Plan            `gorm:"column:plan;type:varchar(20);not null;index" json:"plan"`
	PreviousPlan  types.Plan            `gorm:"column:previous_plan;type:varchar(20)" json:"previous_plan"`
	PlanChangedAt *time.Time            `gorm:"column:plan_changed_at;default:null" json:"plan_changed_at"`
	PlanChangedBy string                `gorm:"column:plan_changed_by;type:varchar(64)" json:"plan_changed_by"`
	Topology      types.Topology        `gorm:"column:topology;type:varchar(20);not null;index" json:"topology"`
	Status        types.WorkspaceStatus `gorm:"column:status;type:varchar(20);not null;index" json:"status"`

	ProvisionState  types.ProvisionState                       `gorm:"column:provision_state;type:varchar(32);not null;index" json:"provision_state"`
	ProvisionError  string                                     `gorm:"column:provision_error;type:text" json:"provision_error,omitempty"`
	ProvisionReport datatypes.JSONType[*types.ProvisionReport] `gorm:"column:provision_report;type:jsonb" json:"provision_report"`

	DBName     string  `gorm:"column:db_name;type:varchar(100);not null;uniqueIndex" json:"db_name"`
	DBUser     string  `gorm:"column:db_user;type:varchar(100);not null" json:"db_user"`
	DBPassword string  `gorm:"column:db_password;type:varchar(200);not null" json:"-"`
	DBHost     string  `gorm:"column:db_host;type:varchar(100);not null" json:"db_host"`
	DBPort     int     `gorm:"column:db_port;not null" json:"db_port"`
	DBCreated  bool    `gorm:"column:db_created;not null;default:false" json:"db_created"`
	DBSizeMB   float64 `gorm:"column:db_size_mb;not null;default:0" json:"db_size_mb"`

	// ContainerName/ContainerPort point at the serving instance: the product's
	// shared container, or the workspace's own service when dedicated.
	ContainerName string `gorm:"column:container_name;type:varchar(200)" json:"container_name"`
	ContainerPort int    `gorm:"column:container_port" json:"container_port"`
	// DedicatedPort mirrors the workspace's dedicated_port_claim row.
	DedicatedPort *int   `gorm:"column:dedicated_port;default:null" json:"dedicated_port"`
	ProjectPath   string `gorm:"column:project_path;type:varchar(500)" json:"project_path"`
	RepoURL       string `gorm:"column:repo_url;type:varchar(500)" json:"repo_url"`
	ManifestPath  string `gorm:"column:manifest_path;type:varchar(500)" json:"manifest_path"`

	AdminNotes string `gorm:"column:admin_notes;type:text" json:"admin_notes"`

	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	PausedAt        *time.Time `gorm:"column:paused_at;default:null" json:"paused_at"`
	SubscriptionEnd *time.Time `gorm:"column:subscription_end;default:null" json:"subscription_end"`
	DeployedAt      *time.Time `gorm:"column:deployed_at;default:null" json:"deployed_at"`
}

func (Workspace) TableName() string {
	return "workspace"
}

// Label identifies the workspace in audit rows that outlive it.
func (w *Workspace) Label() string {
	return fmt.Sprintf("%s (%s)", w.CompanyName, w.Subdomain)
}

// URL is the public address; it needs the product loaded for its prefix.
func (w *Workspace) URL(tenantDomain string) string {
	prefix := ""
	if w.Product != nil && w.Product.SubdomainPrefix != "" {
		prefix = w.Product.SubdomainPrefix + "."
	}
	return fmt.Sprintf("https://%s.%s%s", w.Subdomain, prefix, tenantDomain)
}

func (w *Workspace) DatabaseURL() string {
	return manifest.DatabaseURL(w.DBUser, w.DBPassword, w.DBHost, w.DBPort, w.DBName)
}

// DaysRemaining is nil for plans without an end date.
func (w *Workspace) DaysRemaining(now time.Time) *int {
	if w.Plan == types.PlanLifetime || w.SubscriptionEnd == nil {
		return nil
	}
	days := int(w.SubscriptionEnd.Sub(now).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &days
}

// IsDedicated reports the persisted topology, not the plan's.
func (w *Workspace) IsDedicated() bool {
	return w.Topology == types.TopologyDedicated
}

// TopologyConsistent is false while a plan change is mid-migration or after
// a failed migration left the previous topology in place.
func (w *Workspace) TopologyConsistent() bool {
	return w.Plan.Topology() == w.Topology
}

// Report returns the stored provisioning report, never nil.
func (w *Workspace) Report() *types.ProvisionReport {
	if r := w.ProvisionReport.Data(); r != nil {
		return r
	}
	return &types.ProvisionReport{Topology: w.Topology}
}
