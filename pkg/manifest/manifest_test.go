package manifest

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	sigsyaml "sigs.k8s.io/yaml"
)

func testSpec() *Spec {
	return &Spec{
		Product: "shop", Subdomain: "acme",
		DBName: "shop_acme", DBUser: "user_shop_acme", DBPassword: "p@ss!word", DBHost: "postgres16", DBPort: 5432,
		HostPort: 8301, InternalPort: 8000,
		BaseDomain: "surgir.online", Network: "tenant-master-core_default",
		EntryPoint: "websecure", CertResolver: "letsencrypt",
		Namespace: "tenants", IngressClass: "traefik",
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatCompose, f)
	require.Equal(t, "docker-compose.yml", f.FileName())

	f, err = ParseFormat("kubernetes")
	require.NoError(t, err)
	require.Equal(t, "k8s.yaml", f.FileName())

	_, err = ParseFormat("nomad")
	require.Error(t, err)
}

func TestRenderCompose(t *testing.T) {
	out, err := Render(FormatCompose, testSpec())
	require.NoError(t, err)

	var f composeFile
	require.NoError(t, yaml.Unmarshal(out, &f))
	svc := f.Services["acme"]
	require.NotNil(t, svc)
	require.Equal(t, "shop-acme", svc.ContainerName)
	require.Equal(t, ".", svc.Build)
	require.Equal(t, []string{"8301:8000"}, svc.Ports)
	require.Contains(t, svc.Environment, "DB_PASSWORD=p@ss!word")
	require.Contains(t, svc.Environment, "DATABASE_URL="+testSpec().DatabaseURL())
	require.Contains(t, svc.Environment, "PORT=8000")
	require.Contains(t, svc.Labels, "traefik.http.routers.acme.rule=Host(`acme.surgir.online`)")
	require.Contains(t, svc.Labels, "traefik.http.routers.acme.tls.certresolver=letsencrypt")
	require.Contains(t, svc.Labels, "traefik.http.services.acme.loadbalancer.server.port=8000")
	require.True(t, f.Networks["tenant-master-core_default"].External)
}

func TestRenderCompose_Image(t *testing.T) {
	s := testSpec()
	s.Image = "kitagli/shop:latest"
	s.Network = ""
	out, err := Render(FormatCompose, s)
	require.NoError(t, err)

	var f composeFile
	require.NoError(t, yaml.Unmarshal(out, &f))
	require.Equal(t, "kitagli/shop:latest", f.Services["acme"].Image)
	require.Empty(t, f.Services["acme"].Build)
	require.Empty(t, f.Networks)
}

func TestRenderKubernetes(t *testing.T) {
	out, err := Render(FormatKubernetes, testSpec())
	require.NoError(t, err)

	docs := strings.Split(string(out), "---\n")
	require.Len(t, docs, 4)

	var secret corev1.Secret
	require.NoError(t, sigsyaml.Unmarshal([]byte(docs[0]), &secret))
	require.Equal(t, "p@ss!word", secret.StringData["DB_PASSWORD"])

	var dep appsv1.Deployment
	require.NoError(t, sigsyaml.Unmarshal([]byte(docs[1]), &dep))
	require.Equal(t, "shop-acme", dep.Name)
	require.Equal(t, "tenants", dep.Namespace)
	c := dep.Spec.Template.Spec.Containers[0]
	require.Equal(t, int32(8000), c.Ports[0].ContainerPort)
	for _, e := range c.Env {
		if e.Name == "DB_PASSWORD" {
			require.Empty(t, e.Value)
			require.Equal(t, "shop-acme", e.ValueFrom.SecretKeyRef.Name)
		}
	}

	var svc corev1.Service
	require.NoError(t, sigsyaml.Unmarshal([]byte(docs[2]), &svc))
	require.Equal(t, int32(8301), svc.Spec.Ports[0].Port)
	require.Equal(t, 8000, svc.Spec.Ports[0].TargetPort.IntValue())

	var ing networkingv1.Ingress
	require.NoError(t, sigsyaml.Unmarshal([]byte(docs[3]), &ing))
	require.Equal(t, "acme.surgir.online", ing.Spec.Rules[0].Host)
	require.Equal(t, "traefik", *ing.Spec.IngressClassName)
	require.Equal(t, "letsencrypt", ing.Annotations["traefik.ingress.kubernetes.io/router.tls.certresolver"])
}

func TestRender_Invalid(t *testing.T) {
	s := testSpec()
	s.HostPort = 0
	_, err := Render(FormatCompose, s)
	require.Error(t, err)

	s = testSpec()
	s.BaseDomain = ""
	_, err = Render(FormatKubernetes, s)
	require.Error(t, err)

	_, err = Render("nomad", testSpec())
	require.Error(t, err)
}

func TestDatabaseURL_EscapesCredentials(t *testing.T) {
	for _, pw := range []string{"aB3#x@9%Q$zz", "!@#$%^&*", "plain", "a:b/c?d"} {
		s := testSpec()
		s.DBPassword = pw
		u, err := url.Parse(s.DatabaseURL())
		require.NoError(t, err, pw)
		got, ok := u.User.Password()
		require.True(t, ok)
		require.Equal(t, pw, got)
		require.Equal(t, "user_shop_acme", u.User.Username())
		require.Equal(t, "postgres16:5432", u.Host)
		require.Equal(t, "/shop_acme", u.Path)
	}
}

func TestRenderCompose_EscapesInterpolation(t *testing.T) {
	s := testSpec()
	s.DBPassword = "aB3#x@9%Q$zz"
	out, err := Render(FormatCompose, s)
	require.NoError(t, err)

	var f composeFile
	require.NoError(t, yaml.Unmarshal(out, &f))
	env := map[string]string{}
	for _, kv := range f.Services["acme"].Environment {
		k, v, _ := strings.Cut(kv, "=")
		env[k] = strings.ReplaceAll(v, "$$", "$")
	}
	require.Equal(t, "aB3#x@9%Q$zz", env["DB_PASSWORD"])
	u, err := url.Parse(env["DATABASE_URL"])
	require.NoError(t, err)
	pw, _ := u.User.Password()
	require.Equal(t, "aB3#x@9%Q$zz", pw)
}
