// Package materializer lays out the code and deployment manifest of a
// dedicated workspace on disk.
package materializer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/tenantmaster/internal/models"
	"github.com/fatflowers/tenantmaster/pkg/apperr"
	"github.com/fatflowers/tenantmaster/pkg/config"
	"github.com/fatflowers/tenantmaster/pkg/logctx"
	"github.com/fatflowers/tenantmaster/pkg/manifest"
)

// Excluded holds base-name patterns never copied out of a template.
var Excluded = []string{".git", "__pycache__", "*.pyc", "venv", ".venv", "node_modules", "dist", "build"}

type Request struct {
	Product    *models.Product
	Subdomain  string
	DBName     string
	DBUser     string
	DBPassword string
	Port       int
}

type Result struct {
	Path         string
	ManifestPath string
}

type Service struct {
	cfg *config.Config
	log *zap.SugaredLogger
	fs  afero.Fs
}

func NewService(cfg *config.Config, log *zap.SugaredLogger, fs afero.Fs) *Service {
	return &Service{cfg: cfg, log: log, fs: fs}
}

// TemplateDir is the product's base code: template_path when set, else
// {projects_root}/{product}-system.
func (s *Service) TemplateDir(p *models.Product) string {
	if p.TemplatePath != "" {
		return p.TemplatePath
	}
	return filepath.Join(s.cfg.Provisioning.ProjectsRoot, p.Name+"-system")
}

// WorkspaceDir is {projects_root}/{product}-system-clients/{subdomain}.
func (s *Service) WorkspaceDir(product, subdomain string) string {
	return filepath.Join(s.cfg.Provisioning.ProjectsRoot, product+"-system-clients", subdomain)
}

// Materialize copies the template into a fresh workspace directory and
// writes the deployment manifest next to it.
func (s *Service) Materialize(ctx context.Context, req *Request) (*Result, error) {
	if req.Product == nil || req.Subdomain == "" {
		return nil, apperr.Validation("product and subdomain are required")
	}
	if !models.ValidSubdomain(req.Subdomain) {
		return nil, apperr.Validation("invalid subdomain %q", req.Subdomain)
	}
	format, err := manifest.ParseFormat(s.cfg.Manifest.Format)
	if err != nil {
		return nil, apperr.Materialization(err, "bad manifest configuration")
	}
	src := s.TemplateDir(req.Product)
	dst := s.WorkspaceDir(req.Product.Name, req.Subdomain)
	log := logctx.FromCtx(ctx, s.log).With("src", src, "dst", dst)

	if fi, err := s.fs.Stat(src); err != nil || !fi.IsDir() {
		return nil, apperr.Materialization(err, "template %s does not exist", src)
	}
	if err := s.fs.RemoveAll(dst); err != nil {
		return nil, apperr.Materialization(err, "failed to clear %s", dst)
	}
	if err := s.copyTree(ctx, src, dst); err != nil {
		return nil, apperr.Materialization(err, "failed to copy template")
	}
	log.Infow("template copied")

	spec := &manifest.Spec{
		Product:      req.Product.Name,
		Subdomain:    req.Subdomain,
		Image:        req.Product.DockerImage,
		DBName:       req.DBName,
		DBUser:       req.DBUser,
		DBPassword:   req.DBPassword,
		DBHost:       s.cfg.Provisioning.TenantDBHost,
		DBPort:       s.cfg.Provisioning.TenantDBPort,
		HostPort:     req.Port,
		InternalPort: s.cfg.Manifest.InternalPort,
		BaseDomain:   s.cfg.Provisioning.BaseDomain,
		Network:      s.cfg.Manifest.Network,
		EntryPoint:   s.cfg.Manifest.EntryPoint,
		CertResolver: s.cfg.Manifest.CertResolver,
		Namespace:    s.cfg.Manifest.Namespace,
		IngressClass: s.cfg.Manifest.IngressClass,
	}
	out, err := manifest.Render(format, spec)
	if err != nil {
		return nil, apperr.Materialization(err, "failed to render manifest")
	}
	manifestPath := filepath.Join(dst, format.FileName())
	// the manifest carries credentials
	if err := afero.WriteFile(s.fs, manifestPath, out, 0o600); err != nil {
		return nil, apperr.Materialization(err, "failed to write manifest")
	}
	log.Infow("manifest written", "manifest", manifestPath, "format", format)
	return &Result{Path: dst, ManifestPath: manifestPath}, nil
}

func excluded(name string) bool {
	for _, pattern := range Excluded {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (s *Service) copyTree(ctx context.Context, src, dst string) error {
	return afero.Walk(s.fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel != "." && excluded(info.Name()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)
		switch {
		case info.IsDir():
			return s.fs.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode().IsRegular():
			return s.copyFile(path, target, info.Mode().Perm())
		default:
			// symlinks and devices are not part of a template
			return nil
		}
	})
}

func (s *Service) copyFile(src, dst string, perm os.FileMode) error {
	in, err := s.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := s.fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// RemoveWorkspaceDir deletes the workspace directory; a missing one is fine.
func (s *Service) RemoveWorkspaceDir(ctx context.Context, path string) error {
	root := filepath.Clean(s.cfg.Provisioning.ProjectsRoot) + string(filepath.Separator)
	if path == "" || !strings.HasPrefix(filepath.Clean(path), root) {
		return fmt.Errorf("refusing to remove %q outside %s", path, root)
	}
	if err := s.fs.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	logctx.FromCtx(ctx, s.log).Infow("workspace directory removed", "path", path)
	return nil
}

// InitProductTemplate makes sure the product's base directory exists with a
// README and .gitignore. Existing files are left alone.
func (s *Service) InitProductTemplate(ctx context.Context, p *models.Product) (string, error) {
	dir := s.TemplateDir(p)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.Materialization(err, "failed to create %s", dir)
	}
	files := map[string]string{
		"README.md":  productReadme(p),
		".gitignore": manifest.Gitignore,
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if ok, _ := afero.Exists(s.fs, path); ok {
			continue
		}
		if err := afero.WriteFile(s.fs, path, []byte(content), 0o644); err != nil {
			return "", apperr.Materialization(err, "failed to write %s", path)
		}
	}
	logctx.FromCtx(ctx, s.log).Infow("product template initialized", "product", p.Name, "path", dir)
	return dir, nil
}

func productReadme(p *models.Product) string {
	return fmt.Sprintf(`# %s System

Shared base code for every %s workspace.

Add the application code here. Shared workspaces run this code directly,
dedicated workspaces get their own copy when they are provisioned.
`, strings.ToUpper(p.Name), p.Name)
}

var Module = fx.Options(
	fx.Provide(NewService),
)
