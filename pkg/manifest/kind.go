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

package manifest

import "k8s.io/apimachinery/pkg/runtime/schema"

// Kind is the closed set of descriptor kinds the applier knows how to apply.
// Anything else parses to KindUnsupported and is skipped at apply time.
type Kind string

const (
	KindUnsupported                    Kind = "Unsupported"
	KindDeployment                     Kind = "Deployment"
	KindStatefulSet                    Kind = "StatefulSet"
	KindService                        Kind = "Service"
	KindServiceAccount                 Kind = "ServiceAccount"
	KindSecret                         Kind = "Secret"
	KindConfigMap                      Kind = "ConfigMap"
	KindClusterRole                    Kind = "ClusterRole"
	KindClusterRoleBinding             Kind = "ClusterRoleBinding"
	KindRole                           Kind = "Role"
	KindRoleBinding                    Kind = "RoleBinding"
	KindMutatingWebhookConfiguration   Kind = "MutatingWebhookConfiguration"
	KindValidatingWebhookConfiguration Kind = "ValidatingWebhookConfiguration"
	KindCustomResourceDefinition       Kind = "CustomResourceDefinition"

	KindDatabaseCluster   Kind = "DatabaseCluster"
	KindBrokerCluster     Kind = "BrokerCluster"
	KindBrokerUser        Kind = "BrokerUser"
	KindBrokerPermission  Kind = "BrokerPermission"
	KindCertificateIssuer Kind = "CertificateIssuer"
)

var builtinKinds = map[schema.GroupKind]Kind{
	{Group: "apps", Kind: "Deployment"}:                                             KindDeployment,
	{Group: "apps", Kind: "StatefulSet"}:                                            KindStatefulSet,
	{Group: "", Kind: "Service"}:                                                    KindService,
	{Group: "", Kind: "ServiceAccount"}:                                             KindServiceAccount,
	{Group: "", Kind: "Secret"}:                                                     KindSecret,
	{Group: "", Kind: "ConfigMap"}:                                                  KindConfigMap,
	{Group: "rbac.authorization.k8s.io", Kind: "ClusterRole"}:                       KindClusterRole,
	{Group: "rbac.authorization.k8s.io", Kind: "ClusterRoleBinding"}:                KindClusterRoleBinding,
	{Group: "rbac.authorization.k8s.io", Kind: "Role"}:                              KindRole,
	{Group: "rbac.authorization.k8s.io", Kind: "RoleBinding"}:                       KindRoleBinding,
	{Group: "admissionregistration.k8s.io", Kind: "MutatingWebhookConfiguration"}:   KindMutatingWebhookConfiguration,
	{Group: "admissionregistration.k8s.io", Kind: "ValidatingWebhookConfiguration"}: KindValidatingWebhookConfiguration,
	{Group: "apiextensions.k8s.io", Kind: "CustomResourceDefinition"}:               KindCustomResourceDefinition,
}

type customKind struct {
	kind     Kind
	resource string
}

// Operator custom resources, keyed by group and kind, with their plural resource.
var customKinds = map[schema.GroupKind]customKind{
	{Group: "acid.zalan.do", Kind: "postgresql"}:                       {KindDatabaseCluster, "postgresqls"},
	{Group: "mysql.oracle.com", Kind: "InnoDBCluster"}:                 {KindDatabaseCluster, "innodbclusters"},
	{Group: "mariadb.mmontes.io", Kind: "MariaDB"}:                     {KindDatabaseCluster, "mariadbs"},
	{Group: "mongodbcommunity.mongodb.com", Kind: "MongoDBCommunity"}: {KindDatabaseCluster, "mongodbcommunity"},
	{Group: "rabbitmq.com", Kind: "RabbitmqCluster"}:                   {KindBrokerCluster, "rabbitmqclusters"},
	{Group: "rabbitmq.com", Kind: "User"}:                              {KindBrokerUser, "users"},
	{Group: "rabbitmq.com", Kind: "Permission"}:                        {KindBrokerPermission, "permissions"},
	{Group: "cert-manager.io", Kind: "Issuer"}:                         {KindCertificateIssuer, "issuers"},
}

// ParseKind maps an object's group and kind onto the supported set.
func ParseKind(gk schema.GroupKind) Kind {
	if k, ok := builtinKinds[gk]; ok {
		return k
	}
	if c, ok := customKinds[gk]; ok {
		return c.kind
	}
	return KindUnsupported
}

// IsCustom reports whether k is an operator custom resource served by the dynamic client.
func (k Kind) IsCustom() bool {
	switch k {
	case KindDatabaseCluster, KindBrokerCluster, KindBrokerUser, KindBrokerPermission, KindCertificateIssuer:
		return true
	default:
		return false
	}
}

// IsClusterScoped reports whether objects of kind k live outside any namespace.
func (k Kind) IsClusterScoped() bool {
	switch k {
	case KindClusterRole, KindClusterRoleBinding, KindMutatingWebhookConfiguration,
		KindValidatingWebhookConfiguration, KindCustomResourceDefinition:
		return true
	default:
		return false
	}
}

// IsCritical reports whether a failure applying kind k must abort a degrading batch.
func (k Kind) IsCritical() bool {
	return k == KindDatabaseCluster || k == KindBrokerCluster
}
