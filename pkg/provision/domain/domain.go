// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/cloud-agnost/provisioner/pkg/applier"
	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
	"github.com/cloud-agnost/provisioner/pkg/manifest"
	"github.com/cloud-agnost/provisioner/pkg/provision"
)

const (
	AnnotationSSLRedirect      = "nginx.ingress.kubernetes.io/ssl-redirect"
	AnnotationForceSSLRedirect = "nginx.ingress.kubernetes.io/force-ssl-redirect"
	AnnotationIssuer           = "cert-manager.io/issuer"

	// DigitalOcean load balancers with proxy protocol enabled carry the
	// attached domain as their hostname.
	AnnotationDOProxyProtocol = "service.beta.kubernetes.io/do-loadbalancer-enable-proxy-protocol"
	AnnotationDOHostname      = "service.beta.kubernetes.io/do-loadbalancer-hostname"

	// TLSSecret receives the certificate cert-manager issues for the domain.
	TLSSecret = "ingress-tls"

	// DefaultLoadBalancerNamespace is where the ingress controller's
	// load balancer service runs.
	DefaultLoadBalancerNamespace = "ingress-nginx"
)

// DefaultIngresses are the application ingresses that serve a custom domain.
var DefaultIngresses = []string{
	"engine-realtime-ingress",
	"platform-core-ingress",
	"platform-sync-ingress",
	"studio-ingress",
}

// Result is returned by Attach and Detach.
type Result struct {
	DomainName string `json:"domainName"`
}

// Domains attaches and detaches a custom TLS domain on the platform ingresses.
type Domains struct {
	rt *provision.Runtime

	// Ingresses lists the ingress names to update, in order.
	Ingresses []string
	// LoadBalancerNamespace holds the ingress controller's services.
	LoadBalancerNamespace string
}

// New returns a Domains orchestrator over the default ingress set.
func New(rt *provision.Runtime) *Domains {
	return &Domains{
		rt:                    rt,
		Ingresses:             append([]string(nil), DefaultIngresses...),
		LoadBalancerNamespace: DefaultLoadBalancerNamespace,
	}
}

// ValidateDomain checks name is a lowercase DNS subdomain with at least two labels.
func ValidateDomain(name string) error {
	if msgs := validation.IsDNS1123Subdomain(name); len(msgs) > 0 {
		return cerrors.NewWithContext(cerrors.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid domainName %q", name),
			map[string]any{"field": "domainName", "reasons": msgs})
	}
	if !strings.Contains(name, ".") {
		return cerrors.New(cerrors.ErrCodeInvalidRequest, fmt.Sprintf("domainName %q is not fully qualified", name))
	}
	return nil
}

// Attach creates the certificate issuer, points every ingress at domainName
// with TLS, and sets the load balancer hostname where required. The first
// failing step aborts; ingresses already updated keep the new domain.
func (d *Domains) Attach(ctx context.Context, domainName string) (*Result, error) {
	if err := ValidateDomain(domainName); err != nil {
		return nil, err
	}
	lc := provision.Begin(provision.FamilyDomain, provision.OpAttach, domainName)

	issuer, err := d.issuer()
	if err != nil {
		return nil, lc.Fail(err)
	}
	if _, err := d.rt.Applier.Apply(ctx, issuer, applier.OpCreate); err != nil {
		if !cerrors.IsCode(err, cerrors.ErrCodeConflict) {
			return nil, lc.Fail(err)
		}
		slog.Info("issuer already exists", "issuer", issuer.Name(), "namespace", issuer.Namespace())
	}

	for _, name := range d.Ingresses {
		err := d.updateIngress(ctx, name, func(ing *networkingv1.Ingress) {
			attachIngress(ing, domainName, issuer.Name())
		})
		if err != nil {
			return nil, lc.Fail(err)
		}
	}

	if err := d.updateLoadBalancers(ctx, func(svc *corev1.Service) {
		svc.Annotations[AnnotationDOHostname] = domainName
	}); err != nil {
		return nil, lc.Fail(err)
	}
	return &Result{DomainName: domainName}, lc.Succeed()
}

// Detach strips the domain, TLS and issuer annotations from every ingress,
// clears the load balancer hostname and deletes the issuer. A missing
// issuer is not an error.
func (d *Domains) Detach(ctx context.Context, domainName string) (*Result, error) {
	if err := ValidateDomain(domainName); err != nil {
		return nil, err
	}
	lc := provision.Begin(provision.FamilyDomain, provision.OpDetach, domainName)

	for _, name := range d.Ingresses {
		if err := d.updateIngress(ctx, name, detachIngress); err != nil {
			return nil, lc.Fail(err)
		}
	}

	if err := d.updateLoadBalancers(ctx, func(svc *corev1.Service) {
		delete(svc.Annotations, AnnotationDOHostname)
	}); err != nil {
		return nil, lc.Fail(err)
	}

	issuer, err := d.issuer()
	if err != nil {
		return nil, lc.Fail(err)
	}
	if _, err := d.rt.Applier.Apply(ctx, issuer, applier.OpDelete); err != nil {
		return nil, lc.Fail(err)
	}
	return &Result{DomainName: domainName}, lc.Succeed()
}

func attachIngress(ing *networkingv1.Ingress, domainName, issuer string) {
	if ing.Annotations == nil {
		ing.Annotations = map[string]string{}
	}
	ing.Annotations[AnnotationSSLRedirect] = "true"
	ing.Annotations[AnnotationForceSSLRedirect] = "true"
	ing.Annotations[AnnotationIssuer] = issuer

	if len(ing.Spec.Rules) == 0 {
		ing.Spec.Rules = []networkingv1.IngressRule{{}}
	}
	ing.Spec.Rules[0].Host = domainName
	ing.Spec.TLS = []networkingv1.IngressTLS{{Hosts: []string{domainName}, SecretName: TLSSecret}}
}

func detachIngress(ing *networkingv1.Ingress) {
	delete(ing.Annotations, AnnotationSSLRedirect)
	delete(ing.Annotations, AnnotationForceSSLRedirect)
	delete(ing.Annotations, AnnotationIssuer)

	if len(ing.Spec.Rules) > 0 {
		ing.Spec.Rules[0].Host = ""
	}
	ing.Spec.TLS = nil
}

func (d *Domains) updateIngress(ctx context.Context, name string, mutate func(*networkingv1.Ingress)) error {
	ns := d.rt.Config.Namespace
	ingresses := d.rt.Typed.NetworkingV1().Ingresses(ns)

	ing, err := ingresses.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return cerrors.FromAPIStatus(fmt.Sprintf("failed to read Ingress %s", name), err)
	}
	mutate(ing)
	if _, err := ingresses.Update(ctx, ing, metav1.UpdateOptions{}); err != nil {
		return cerrors.FromAPIStatus(fmt.Sprintf("failed to update Ingress %s", name), err)
	}
	slog.Info("ingress updated", "ingress", name, "namespace", ns)
	return nil
}

// updateLoadBalancers applies mutate to every proxy-protocol load balancer
// service in the ingress controller namespace.
func (d *Domains) updateLoadBalancers(ctx context.Context, mutate func(*corev1.Service)) error {
	services := d.rt.Typed.CoreV1().Services(d.LoadBalancerNamespace)

	list, err := services.List(ctx, metav1.ListOptions{})
	if err != nil {
		return cerrors.FromAPIStatus("failed to list load balancer services", err)
	}
	for i := range list.Items {
		svc := &list.Items[i]
		if svc.Annotations[AnnotationDOProxyProtocol] != "true" {
			continue
		}
		mutate(svc)
		if _, err := services.Update(ctx, svc, metav1.UpdateOptions{}); err != nil {
			return cerrors.FromAPIStatus(fmt.Sprintf("failed to update Service %s", svc.Name), err)
		}
		slog.Info("load balancer service updated", "service", svc.Name, "namespace", d.LoadBalancerNamespace)
	}
	return nil
}

func (d *Domains) issuer() (*manifest.Descriptor, error) {
	descs, err := d.rt.Loader.Load(manifest.TemplateIssuer)
	if err != nil {
		return nil, err
	}
	issuer := manifest.Find(descs, manifest.KindCertificateIssuer)
	if issuer == nil {
		return nil, cerrors.New(cerrors.ErrCodeTemplateMalformed, "certificate-issuer template has no issuer")
	}
	issuer.SetNamespace(d.rt.Config.Namespace)
	return issuer, nil
}
