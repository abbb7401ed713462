package types

// ProductSeed describes a product in configuration. Seeds are upserted by name
// on startup.
type ProductSeed struct {
	Name                string `json:"name" mapstructure:"name"`
	DisplayName         string `json:"display_name" mapstructure:"display_name"`
	SubdomainPrefix     string `json:"subdomain_prefix" mapstructure:"subdomain_prefix"`
	Description         string `json:"description" mapstructure:"description"`
	TemplatePath        string `json:"template_path" mapstructure:"template_path"`
	SharedContainerName string `json:"shared_container_name" mapstructure:"shared_container_name"`
	SharedContainerPort int    `json:"shared_container_port" mapstructure:"shared_container_port"`
	DedicatedPortStart  int    `json:"dedicated_port_start" mapstructure:"dedicated_port_start"`
	DedicatedPortEnd    int    `json:"dedicated_port_end" mapstructure:"dedicated_port_end"`
	DockerImage         string `json:"docker_image" mapstructure:"docker_image"`
	Version             string `json:"version" mapstructure:"version"`
}

// DefaultProductSeeds is used when the configuration lists no products.
var DefaultProductSeeds = []*ProductSeed{
	{
		Name: "inventario", DisplayName: "Inventory System", SubdomainPrefix: "inv",
		Description:         "Inventory management, stock control, inbound and outbound movements.",
		SharedContainerName: "inventario-system", SharedContainerPort: 8100,
		DedicatedPortStart: 8101, DedicatedPortEnd: 8150,
		DockerImage: "kitagli/inventario:latest", Version: "1.0.0",
	},
	{
		Name: "erp", DisplayName: "ERP System", SubdomainPrefix: "erp",
		Description:         "Sales, purchasing, accounting and reporting modules.",
		SharedContainerName: "erp-system", SharedContainerPort: 8200,
		DedicatedPortStart: 8201, DedicatedPortEnd: 8250,
		DockerImage: "kitagli/erp:latest", Version: "1.0.0",
	},
	{
		Name: "shop", DisplayName: "E-commerce Shop", SubdomainPrefix: "shop",
		Description:         "Storefront with cart, payments and catalog management.",
		SharedContainerName: "shop-system", SharedContainerPort: 8300,
		DedicatedPortStart: 8301, DedicatedPortEnd: 8350,
		DockerImage: "kitagli/shop:latest", Version: "1.0.0",
	},
	{
		Name: "landing", DisplayName: "Landing Page Builder", SubdomainPrefix: "web",
		Description:         "Drag and drop builder for landing pages.",
		SharedContainerName: "landing-builder", SharedContainerPort: 8400,
		DedicatedPortStart: 8401, DedicatedPortEnd: 8450,
		DockerImage: "kitagli/landing:latest", Version: "1.0.0",
	},
}
