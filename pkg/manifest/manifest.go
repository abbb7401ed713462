// Package manifest renders the deployment manifest of a dedicated workspace.
package manifest

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

type Format string

const (
	FormatCompose    Format = "compose"
	FormatKubernetes Format = "kubernetes"
)

// ParseFormat defaults an empty value to compose.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCompose:
		return FormatCompose, nil
	case FormatKubernetes:
		return FormatKubernetes, nil
	}
	return "", fmt.Errorf("unknown manifest format %q", s)
}

// FileName is where the manifest is written inside the workspace directory.
func (f Format) FileName() string {
	if f == FormatKubernetes {
		return "k8s.yaml"
	}
	return "docker-compose.yml"
}

// Spec carries everything a manifest needs about one dedicated workspace.
type Spec struct {
	Product   string
	Subdomain string
	// Image is used when set; compose builds from the checkout otherwise.
	Image string

	DBName     string
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     int

	HostPort     int
	InternalPort int

	BaseDomain   string
	Network      string
	EntryPoint   string
	CertResolver string

	Namespace    string
	IngressClass string
}

// Name identifies the workload: {product}-{subdomain}.
func (s *Spec) Name() string {
	return s.Product + "-" + s.Subdomain
}

func (s *Spec) Host() string {
	return s.Subdomain + "." + s.BaseDomain
}

func (s *Spec) DatabaseURL() string {
	return DatabaseURL(s.DBUser, s.DBPassword, s.DBHost, s.DBPort, s.DBName)
}

// DatabaseURL builds a postgresql:// URL with the credentials percent-encoded.
func DatabaseURL(user, password, host string, port int, database string) string {
	u := &url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(user, password),
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + database,
	}
	return u.String()
}

type EnvVar struct {
	Name  string
	Value string
	// Secret values go into a Secret object on kubernetes.
	Secret bool
}

// Env lists the variables injected into the application container.
func (s *Spec) Env() []EnvVar {
	return []EnvVar{
		{Name: "DATABASE_URL", Value: s.DatabaseURL(), Secret: true},
		{Name: "DB_NAME", Value: s.DBName},
		{Name: "DB_USER", Value: s.DBUser},
		{Name: "DB_PASSWORD", Value: s.DBPassword, Secret: true},
		{Name: "DB_HOST", Value: s.DBHost},
		{Name: "DB_PORT", Value: strconv.Itoa(s.DBPort)},
		{Name: "SUBDOMAIN", Value: s.Subdomain},
		{Name: "PORT", Value: strconv.Itoa(s.InternalPort)},
	}
}

func (s *Spec) validate() error {
	switch {
	case s.Product == "" || s.Subdomain == "":
		return fmt.Errorf("manifest: product and subdomain are required")
	case s.HostPort <= 0 || s.HostPort > 65535:
		return fmt.Errorf("manifest: invalid host port %d", s.HostPort)
	case s.InternalPort <= 0 || s.InternalPort > 65535:
		return fmt.Errorf("manifest: invalid internal port %d", s.InternalPort)
	case s.DBName == "" || s.DBUser == "":
		return fmt.Errorf("manifest: database identity is required")
	case s.BaseDomain == "":
		return fmt.Errorf("manifest: base domain is required")
	}
	return nil
}

// Render returns the manifest bytes for format.
func Render(format Format, s *Spec) ([]byte, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	switch format {
	case FormatCompose, "":
		return renderCompose(s)
	case FormatKubernetes:
		return renderKubernetes(s)
	}
	return nil, fmt.Errorf("unknown manifest format %q", format)
}
