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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	k8stesting "k8s.io/client-go/testing"

	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
	"github.com/cloud-agnost/provisioner/pkg/k8s/client/clienttest"
	"github.com/cloud-agnost/provisioner/pkg/provision"
)

const ns = "ns"

func ingress(name string) *networkingv1.Ingress {
	return &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: ns},
		Spec: networkingv1.IngressSpec{
			Rules: []networkingv1.IngressRule{{Host: "old.example.org"}},
		},
	}
}

func service(name string, proxy bool) *corev1.Service {
	svc := &corev1.Service{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: DefaultLoadBalancerNamespace, Annotations: map[string]string{}}}
	if proxy {
		svc.Annotations[AnnotationDOProxyProtocol] = "true"
	}
	return svc
}

func newDomains(t *testing.T, objs ...runtime.Object) (*Domains, *clienttest.Fake) {
	t.Helper()
	f := clienttest.New(objs)
	rt := provision.NewRuntime(f.Clients, provision.Config{Namespace: ns, PollInterval: time.Millisecond, PollTimeout: time.Second})
	d := New(rt)
	d.Ingresses = []string{"platform-core-ingress", "studio-ingress"}
	return d, f
}

func getIngress(t *testing.T, f *clienttest.Fake, name string) *networkingv1.Ingress {
	t.Helper()
	ing, err := f.Typed.NetworkingV1().Ingresses(ns).Get(context.Background(), name, metav1.GetOptions{})
	require.NoError(t, err)
	return ing
}

func TestAttach(t *testing.T) {
	d, f := newDomains(t,
		ingress("platform-core-ingress"), ingress("studio-ingress"),
		service("ingress-nginx-controller", true), service("metrics", false),
	)
	rec := f.Record()

	res, err := d.Attach(context.Background(), "app.example.com")
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", res.DomainName)

	assert.Equal(t, []clienttest.Call{
		{Verb: "create", Resource: "issuers", Name: "letsencrypt-issuer-prod"},
		{Verb: "update", Resource: "ingresses", Name: "platform-core-ingress"},
		{Verb: "update", Resource: "ingresses", Name: "studio-ingress"},
		{Verb: "update", Resource: "services", Name: "ingress-nginx-controller"},
	}, rec.Calls(""))

	ing := getIngress(t, f, "studio-ingress")
	assert.Equal(t, map[string]string{
		AnnotationSSLRedirect:      "true",
		AnnotationForceSSLRedirect: "true",
		AnnotationIssuer:           "letsencrypt-issuer-prod",
	}, ing.Annotations)
	assert.Equal(t, "app.example.com", ing.Spec.Rules[0].Host)
	assert.Equal(t, []networkingv1.IngressTLS{{Hosts: []string{"app.example.com"}, SecretName: TLSSecret}}, ing.Spec.TLS)

	svc, err := f.Typed.CoreV1().Services(DefaultLoadBalancerNamespace).Get(context.Background(), "ingress-nginx-controller", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", svc.Annotations[AnnotationDOHostname])

	issuer, err := f.Dynamic.Resource(clienttest.IssuerGVR).Namespace(ns).Get(context.Background(), "letsencrypt-issuer-prod", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, ns, issuer.GetNamespace())
}

func TestAttachToleratesExistingIssuer(t *testing.T) {
	d, f := newDomains(t, ingress("platform-core-ingress"), ingress("studio-ingress"))
	f.Dynamic.PrependReactor("create", "issuers", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewAlreadyExists(clienttest.IssuerGVR.GroupResource(), "letsencrypt-issuer-prod")
	})

	_, err := d.Attach(context.Background(), "app.example.com")
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", getIngress(t, f, "platform-core-ingress").Spec.Rules[0].Host)
}

func TestAttachAbortsOnIngressFailure(t *testing.T) {
	d, f := newDomains(t, ingress("platform-core-ingress"), ingress("studio-ingress"))
	f.Typed.PrependReactor("update", "ingresses", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewInternalError(errors.New("admission webhook denied"))
	})
	rec := f.Record()

	_, err := d.Attach(context.Background(), "app.example.com")
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeApplyFailed))
	assert.Equal(t, []string{"ingresses"}, rec.Resources("update"), "later ingresses are not attempted")
}

func TestAttachMissingIngress(t *testing.T) {
	d, _ := newDomains(t, ingress("platform-core-ingress"))

	_, err := d.Attach(context.Background(), "app.example.com")
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeNotFound))
}

func TestDetach(t *testing.T) {
	d, f := newDomains(t,
		ingress("platform-core-ingress"), ingress("studio-ingress"),
		service("ingress-nginx-controller", true),
	)
	_, err := d.Attach(context.Background(), "app.example.com")
	require.NoError(t, err)
	rec := f.Record()

	res, err := d.Detach(context.Background(), "app.example.com")
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", res.DomainName)

	ing := getIngress(t, f, "platform-core-ingress")
	assert.Empty(t, ing.Annotations)
	assert.Empty(t, ing.Spec.Rules[0].Host)
	assert.Nil(t, ing.Spec.TLS)

	svc, err := f.Typed.CoreV1().Services(DefaultLoadBalancerNamespace).Get(context.Background(), "ingress-nginx-controller", metav1.GetOptions{})
	require.NoError(t, err)
	assert.NotContains(t, svc.Annotations, AnnotationDOHostname)
	assert.Equal(t, "true", svc.Annotations[AnnotationDOProxyProtocol])

	assert.Equal(t, []clienttest.Call{{Verb: "delete", Resource: "issuers", Name: "letsencrypt-issuer-prod"}}, rec.Calls("delete"))
}

func TestDetachToleratesMissingIssuer(t *testing.T) {
	d, _ := newDomains(t, ingress("platform-core-ingress"), ingress("studio-ingress"))

	_, err := d.Detach(context.Background(), "app.example.com")
	require.NoError(t, err)
}

func TestAttachIngressWithoutRules(t *testing.T) {
	ing := &networkingv1.Ingress{}
	attachIngress(ing, "app.example.com", "issuer")
	require.Len(t, ing.Spec.Rules, 1)
	assert.Equal(t, "app.example.com", ing.Spec.Rules[0].Host)

	detachIngress(ing)
	assert.Empty(t, ing.Spec.Rules[0].Host)
}

func TestValidateDomain(t *testing.T) {
	for _, ok := range []string{"app.example.com", "a.b"} {
		assert.NoError(t, ValidateDomain(ok), ok)
	}
	for _, bad := range []string{"", "localhost", "App.Example.com", "bad_domain.com", "-x.example.com"} {
		err := ValidateDomain(bad)
		require.Error(t, err, bad)
		assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeInvalidRequest), bad)
	}
}
