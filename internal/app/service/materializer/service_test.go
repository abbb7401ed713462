package materializer

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/tenantmaster/internal/models"
	"github.com/fatflowers/tenantmaster/pkg/apperr"
	"github.com/fatflowers/tenantmaster/pkg/config"
	"github.com/fatflowers/tenantmaster/pkg/manifest"
)

func testConfig(format string) *config.Config {
	return &config.Config{
		Provisioning: config.ProvisioningConfig{
			ProjectsRoot: "/opt/proyectos", BaseDomain: "surgir.online",
			TenantDBHost: "postgres16", TenantDBPort: 5432,
		},
		Manifest: config.ManifestConfig{
			Format: format, InternalPort: 8000, Network: "tenant-master-core_default",
			EntryPoint: "websecure", CertResolver: "letsencrypt", Namespace: "tenants",
		},
	}
}

func seedTemplate(t *testing.T, fs afero.Fs) {
	t.Helper()
	files := map[string]string{
		"/opt/proyectos/shop-system/manage.py":                  "print('hi')",
		"/opt/proyectos/shop-system/app/views.py":               "views",
		"/opt/proyectos/shop-system/app/views.pyc":              "bytecode",
		"/opt/proyectos/shop-system/app/__pycache__/x.pyc":      "bytecode",
		"/opt/proyectos/shop-system/.git/HEAD":                  "ref",
		"/opt/proyectos/shop-system/node_modules/left-pad/i.js": "js",
		"/opt/proyectos/shop-system/venv/bin/python":            "bin",
		"/opt/proyectos/shop-system/dist/bundle.js":             "js",
		"/opt/proyectos/shop-system/.env.example":               "X=1",
	}
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
}

func shop() *models.Product {
	return &models.Product{Name: "shop", DedicatedPortStart: 8301, DedicatedPortEnd: 8350}
}

func req() *Request {
	return &Request{Product: shop(), Subdomain: "acme", DBName: "shop_acme", DBUser: "user_shop_acme", DBPassword: "s3cret!", Port: 8301}
}

func TestMaterialize_CopiesAndWritesCompose(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedTemplate(t, fs)
	s := NewService(testConfig("compose"), zap.NewNop().Sugar(), fs)

	res, err := s.Materialize(context.Background(), req())
	require.NoError(t, err)
	require.Equal(t, "/opt/proyectos/shop-system-clients/acme", res.Path)
	require.Equal(t, "/opt/proyectos/shop-system-clients/acme/docker-compose.yml", res.ManifestPath)

	for _, kept := range []string{"manage.py", "app/views.py", ".env.example"} {
		ok, err := afero.Exists(fs, res.Path+"/"+kept)
		require.NoError(t, err)
		require.True(t, ok, kept)
	}
	for _, skipped := range []string{".git", "app/views.pyc", "app/__pycache__", "node_modules", "venv", "dist"} {
		ok, err := afero.Exists(fs, res.Path+"/"+skipped)
		require.NoError(t, err)
		require.False(t, ok, skipped)
	}

	out, err := afero.ReadFile(fs, res.ManifestPath)
	require.NoError(t, err)
	require.Contains(t, string(out), "8301:8000")
	require.Contains(t, string(out), "DB_PASSWORD=s3cret!")
	require.Contains(t, string(out), "acme.surgir.online")
}

func TestMaterialize_Kubernetes(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedTemplate(t, fs)
	s := NewService(testConfig("kubernetes"), zap.NewNop().Sugar(), fs)

	res, err := s.Materialize(context.Background(), req())
	require.NoError(t, err)
	require.Equal(t, "/opt/proyectos/shop-system-clients/acme/k8s.yaml", res.ManifestPath)
	out, err := afero.ReadFile(fs, res.ManifestPath)
	require.NoError(t, err)
	require.Contains(t, string(out), "kind: Deployment")
	require.Contains(t, string(out), "port: 8301")
}

func TestMaterialize_ReplacesStaleCopy(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedTemplate(t, fs)
	require.NoError(t, afero.WriteFile(fs, "/opt/proyectos/shop-system-clients/acme/stale.txt", []byte("old"), 0o644))
	s := NewService(testConfig(""), zap.NewNop().Sugar(), fs)

	res, err := s.Materialize(context.Background(), req())
	require.NoError(t, err)
	ok, _ := afero.Exists(fs, res.Path+"/stale.txt")
	require.False(t, ok)
}

func TestMaterialize_MissingTemplate(t *testing.T) {
	s := NewService(testConfig("compose"), zap.NewNop().Sugar(), afero.NewMemMapFs())
	_, err := s.Materialize(context.Background(), req())
	require.ErrorIs(t, err, apperr.ErrMaterialization)
}

func TestMaterialize_TemplatePathOverride(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/srv/templates/shop/app.py", []byte("x"), 0o644))
	s := NewService(testConfig("compose"), zap.NewNop().Sugar(), fs)
	r := req()
	r.Product.TemplatePath = "/srv/templates/shop"

	res, err := s.Materialize(context.Background(), r)
	require.NoError(t, err)
	ok, _ := afero.Exists(fs, res.Path+"/app.py")
	require.True(t, ok)
}

func TestRemoveWorkspaceDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/opt/proyectos/shop-system-clients/acme/a.txt", []byte("x"), 0o644))
	s := NewService(testConfig("compose"), zap.NewNop().Sugar(), fs)

	require.NoError(t, s.RemoveWorkspaceDir(context.Background(), "/opt/proyectos/shop-system-clients/acme"))
	ok, _ := afero.DirExists(fs, "/opt/proyectos/shop-system-clients/acme")
	require.False(t, ok)
	// already gone
	require.NoError(t, s.RemoveWorkspaceDir(context.Background(), "/opt/proyectos/shop-system-clients/acme"))

	require.Error(t, s.RemoveWorkspaceDir(context.Background(), "/etc"))
	require.Error(t, s.RemoveWorkspaceDir(context.Background(), ""))
}

func TestInitProductTemplate(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewService(testConfig("compose"), zap.NewNop().Sugar(), fs)
	require.NoError(t, afero.WriteFile(fs, "/opt/proyectos/shop-system/README.md", []byte("custom"), 0o644))

	dir, err := s.InitProductTemplate(context.Background(), shop())
	require.NoError(t, err)
	require.Equal(t, "/opt/proyectos/shop-system", dir)

	readme, err := afero.ReadFile(fs, dir+"/README.md")
	require.NoError(t, err)
	require.Equal(t, "custom", string(readme))
	gi, err := afero.ReadFile(fs, dir+"/.gitignore")
	require.NoError(t, err)
	require.Equal(t, manifest.Gitignore, string(gi))
}
