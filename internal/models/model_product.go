package models

import (
	"fmt"
	"time"

	"github.com/fatflowers/tenantmaster/pkg/types"
)

// Product is a deployable application template.
type Product struct {
	ID              string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Name            string `gorm:"column:name;type:varchar(100);not null;uniqueIndex" json:"name"`
	DisplayName     string `gorm:"column:display_name;type:varchar(200)" json:"display_name"`
	SubdomainPrefix string `gorm:"column:subdomain_prefix;type:varchar(50)" json:"subdomain_prefix"`
	Description     string `gorm:"column:description;type:text" json:"description"`
	// TemplatePath overrides the default {projects_root}/{name}-system location.
	TemplatePath string `gorm:"column:template_path;type:varchar(500)" json:"template_path"`
	// RepoURL is the remote of the shared base code, set by repo initialization.
	RepoURL             string `gorm:"column:repo_url;type:varchar(500)" json:"repo_url"`
	SharedContainerName string `gorm:"column:shared_container_name;type:varchar(100);not null" json:"shared_container_name"`
	SharedContainerPort int    `gorm:"column:shared_container_port;not null" json:"shared_container_port"`
	// DedicatedPortStart and DedicatedPortEnd bound, inclusively, the host
	// ports handed to dedicated workspaces of this product.
	DedicatedPortStart int       `gorm:"column:dedicated_port_start;not null" json:"dedicated_port_start"`
	DedicatedPortEnd   int       `gorm:"column:dedicated_port_end;not null" json:"dedicated_port_end"`
	DockerImage        string    `gorm:"column:docker_image;type:varchar(200)" json:"docker_image"`
	Version            string    `gorm:"column:version;type:varchar(20)" json:"version"`
	IsActive           bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "product"
}

// Validate checks the port range invariant.
func (p *Product) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("product name is empty")
	}
	if p.DedicatedPortStart <= 0 || p.DedicatedPortEnd > 65535 {
		return fmt.Errorf("product %s: dedicated port range %d-%d out of bounds", p.Name, p.DedicatedPortStart, p.DedicatedPortEnd)
	}
	if p.DedicatedPortStart >= p.DedicatedPortEnd {
		return fmt.Errorf("product %s: dedicated_port_start %d must be below dedicated_port_end %d", p.Name, p.DedicatedPortStart, p.DedicatedPortEnd)
	}
	return nil
}

// PortRangeOverlaps reports whether p and other share any dedicated port.
func (p *Product) PortRangeOverlaps(other *Product) bool {
	return p.DedicatedPortStart <= other.DedicatedPortEnd && other.DedicatedPortStart <= p.DedicatedPortEnd
}

// PortRangeSize is the number of dedicated ports available to the product.
func (p *Product) PortRangeSize() int {
	return p.DedicatedPortEnd - p.DedicatedPortStart + 1
}

// ApplySeed copies seed values onto p, keeping identity and timestamps.
func (p *Product) ApplySeed(s *types.ProductSeed) {
	p.Name = s.Name
	p.DisplayName = s.DisplayName
	p.SubdomainPrefix = s.SubdomainPrefix
	p.Description = s.Description
	p.TemplatePath = s.TemplatePath
	p.SharedContainerName = s.SharedContainerName
	p.SharedContainerPort = s.SharedContainerPort
	p.DedicatedPortStart = s.DedicatedPortStart
	p.DedicatedPortEnd = s.DedicatedPortEnd
	p.DockerImage = s.DockerImage
	p.Version = s.Version
	if p.DisplayName == "" {
		p.DisplayName = s.Name
	}
	if p.SubdomainPrefix == "" {
		p.SubdomainPrefix = s.Name
	}
	p.IsActive = true
}
