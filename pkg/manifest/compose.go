package manifest

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type composeFile struct {
	Services map[string]*composeService `yaml:"services"`
	Networks map[string]*composeNetwork `yaml:"networks,omitempty"`
}

type composeService struct {
	Image         string   `yaml:"image,omitempty"`
	Build         string   `yaml:"build,omitempty"`
	ContainerName string   `yaml:"container_name"`
	Restart       string   `yaml:"restart"`
	Ports         []string `yaml:"ports"`
	Environment   []string `yaml:"environment"`
	Networks      []string `yaml:"networks,omitempty"`
	Labels        []string `yaml:"labels"`
}

type composeNetwork struct {
	External bool `yaml:"external"`
}

// traefikLabels route Host({subdomain}.{base_domain}) to the internal port;
// TLS terminates at the proxy.
func traefikLabels(s *Spec) []string {
	router := s.Subdomain
	labels := []string{
		"traefik.enable=true",
		fmt.Sprintf("traefik.http.routers.%s.rule=Host(`%s`)", router, s.Host()),
	}
	if s.EntryPoint != "" {
		labels = append(labels, fmt.Sprintf("traefik.http.routers.%s.entrypoints=%s", router, s.EntryPoint))
	}
	if s.CertResolver != "" {
		labels = append(labels, fmt.Sprintf("traefik.http.routers.%s.tls.certresolver=%s", router, s.CertResolver))
	}
	return append(labels, fmt.Sprintf("traefik.http.services.%s.loadbalancer.server.port=%d", router, s.InternalPort))
}

// composeEscape keeps compose from interpolating $ in literal values.
func composeEscape(v string) string {
	return strings.ReplaceAll(v, "$", "$$")
}

func renderCompose(s *Spec) ([]byte, error) {
	svc := &composeService{
		Image:         s.Image,
		ContainerName: s.Name(),
		Restart:       "unless-stopped",
		Ports:         []string{fmt.Sprintf("%d:%d", s.HostPort, s.InternalPort)},
		Labels:        traefikLabels(s),
	}
	if svc.Image == "" {
		svc.Build = "."
	}
	for _, e := range s.Env() {
		svc.Environment = append(svc.Environment, e.Name+"="+composeEscape(e.Value))
	}
	f := &composeFile{Services: map[string]*composeService{s.Subdomain: svc}}
	if s.Network != "" {
		svc.Networks = []string{s.Network}
		f.Networks = map[string]*composeNetwork{s.Network: {External: true}}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("failed to encode compose file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode compose file: %w", err)
	}
	return buf.Bytes(), nil
}
