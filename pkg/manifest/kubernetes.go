package manifest

import (
	"bytes"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"sigs.k8s.io/yaml"
)

const managedBy = "tenantmaster"

func resourceLabels(s *Spec) map[string]string {
	return map[string]string{
		"app":                          s.Name(),
		"app.kubernetes.io/name":       s.Product,
		"app.kubernetes.io/instance":   s.Subdomain,
		"app.kubernetes.io/managed-by": managedBy,
	}
}

func objectMeta(s *Spec) metav1.ObjectMeta {
	return metav1.ObjectMeta{Name: s.Name(), Namespace: s.Namespace, Labels: resourceLabels(s)}
}

func kubeSecret(s *Spec) *corev1.Secret {
	data := map[string]string{}
	for _, e := range s.Env() {
		if e.Secret {
			data[e.Name] = e.Value
		}
	}
	return &corev1.Secret{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
		ObjectMeta: objectMeta(s),
		Type:       corev1.SecretTypeOpaque,
		StringData: data,
	}
}

func kubeDeployment(s *Spec) *appsv1.Deployment {
	replicas := int32(1)
	var env []corev1.EnvVar
	for _, e := range s.Env() {
		if e.Secret {
			env = append(env, corev1.EnvVar{Name: e.Name, ValueFrom: &corev1.EnvVarSource{
				SecretKeyRef: &corev1.SecretKeySelector{
					LocalObjectReference: corev1.LocalObjectReference{Name: s.Name()},
					Key:                  e.Name,
				},
			}})
			continue
		}
		env = append(env, corev1.EnvVar{Name: e.Name, Value: e.Value})
	}
	image := s.Image
	if image == "" {
		image = s.Name() + ":latest"
	}
	return &appsv1.Deployment{
		TypeMeta:   metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: objectMeta(s),
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: map[string]string{"app": s.Name()}},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: resourceLabels(s)},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{
						Name:  "app",
						Image: image,
						Ports: []corev1.ContainerPort{{
							ContainerPort: int32(s.InternalPort),
							Protocol:      corev1.ProtocolTCP,
						}},
						Env: env,
					}},
				},
			},
		},
	}
}

func kubeService(s *Spec) *corev1.Service {
	return &corev1.Service{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: objectMeta(s),
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{"app": s.Name()},
			Ports: []corev1.ServicePort{{
				Name:       "http",
				Port:       int32(s.HostPort),
				TargetPort: intstr.FromInt32(int32(s.InternalPort)),
				Protocol:   corev1.ProtocolTCP,
			}},
			Type: corev1.ServiceTypeClusterIP,
		},
	}
}

func kubeIngress(s *Spec) *networkingv1.Ingress {
	pathType := networkingv1.PathTypePrefix
	annotations := map[string]string{"traefik.ingress.kubernetes.io/router.tls": "true"}
	if s.EntryPoint != "" {
		annotations["traefik.ingress.kubernetes.io/router.entrypoints"] = s.EntryPoint
	}
	if s.CertResolver != "" {
		annotations["traefik.ingress.kubernetes.io/router.tls.certresolver"] = s.CertResolver
	}
	meta := objectMeta(s)
	meta.Annotations = annotations

	ing := &networkingv1.Ingress{
		TypeMeta:   metav1.TypeMeta{APIVersion: "networking.k8s.io/v1", Kind: "Ingress"},
		ObjectMeta: meta,
		Spec: networkingv1.IngressSpec{
			TLS: []networkingv1.IngressTLS{{Hosts: []string{s.Host()}}},
			Rules: []networkingv1.IngressRule{{
				Host: s.Host(),
				IngressRuleValue: networkingv1.IngressRuleValue{
					HTTP: &networkingv1.HTTPIngressRuleValue{
						Paths: []networkingv1.HTTPIngressPath{{
							Path:     "/",
							PathType: &pathType,
							Backend: networkingv1.IngressBackend{
								Service: &networkingv1.IngressServiceBackend{
									Name: s.Name(),
									Port: networkingv1.ServiceBackendPort{Number: int32(s.HostPort)},
								},
							},
						}},
					},
				},
			}},
		},
	}
	if s.IngressClass != "" {
		class := s.IngressClass
		ing.Spec.IngressClassName = &class
	}
	return ing
}

// renderKubernetes emits Secret, Deployment, Service and Ingress as one
// multi-document YAML stream.
func renderKubernetes(s *Spec) ([]byte, error) {
	objects := []any{kubeSecret(s), kubeDeployment(s), kubeService(s), kubeIngress(s)}
	var buf bytes.Buffer
	for i, obj := range objects {
		out, err := yaml.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("failed to encode kubernetes object: %w", err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(out)
	}
	return buf.Bytes(), nil
}
