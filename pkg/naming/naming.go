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

package naming

import "fmt"

const (
	postgresCredentialSuffix = "credentials.postgresql.acid.zalan.do"
	clusterDomain            = "svc.cluster.local"
)

// PostgresCredentialSecret returns the name of the secret the Postgres
// operator generates for the superuser of server.
func PostgresCredentialSecret(server string) string {
	return fmt.Sprintf("postgres.%s.%s", server, postgresCredentialSuffix)
}

// PostgresHost returns the primary service FQDN of server.
func PostgresHost(server, namespace string) string {
	return fmt.Sprintf("%s.%s.%s", server, namespace, clusterDomain)
}

// PostgresReplicaHost returns the read-replica service FQDN of server.
func PostgresReplicaHost(server, namespace string) string {
	return fmt.Sprintf("%s-repl.%s.%s", server, namespace, clusterDomain)
}

// MySQLServiceAccount returns the service account name of a MySQL cluster.
func MySQLServiceAccount(cluster string) string {
	return cluster + "-sa"
}

// MySQLSecret returns the root credential secret name of a MySQL cluster.
func MySQLSecret(cluster string) string {
	return cluster + "-cluster-secret"
}

// MySQLDataVolumeMarker is the substring shared by the data PVCs of a MySQL cluster.
func MySQLDataVolumeMarker(cluster string) string {
	return "datadir-" + cluster
}

// MySQLHost returns the service FQDN of a MySQL cluster.
func MySQLHost(cluster, namespace string) string {
	return fmt.Sprintf("%s.%s.%s", cluster, namespace, clusterDomain)
}

// MariaDBSecret returns the secret holding the user and root passwords of a MariaDB server.
func MariaDBSecret(server string) string {
	return server + "-credentials"
}

// MariaDBHost returns the service FQDN of a MariaDB server.
func MariaDBHost(server, namespace string) string {
	return fmt.Sprintf("%s.%s.%s", server, namespace, clusterDomain)
}

// MongoDBUserSecret returns the password secret of a MongoDB replica set's
// user. The operator's SCRAM credential secret shares the name.
func MongoDBUserSecret(cluster string) string {
	return cluster + "-user"
}

// MongoDBService returns the headless service the MongoDB operator creates.
// It doubles as the pod selector label value.
func MongoDBService(cluster string) string {
	return cluster + "-svc"
}

// MongoDBHost returns the service FQDN of a MongoDB replica set.
func MongoDBHost(cluster, namespace string) string {
	return fmt.Sprintf("%s.%s.%s", MongoDBService(cluster), namespace, clusterDomain)
}

// RedisPasswordSecret returns the password secret of a Redis deployment.
func RedisPasswordSecret(cluster string) string {
	return cluster + "-redis-password"
}

// RedisServiceAccount returns the service account of a Redis deployment.
func RedisServiceAccount(cluster string) string {
	return cluster + "-svc-acc"
}

// RedisConfigMap returns the config map of a Redis deployment for purpose,
// one of configuration, health or scripts.
func RedisConfigMap(cluster, purpose string) string {
	return cluster + "-redis-" + purpose
}

// RedisHeadless returns the headless service governing the Redis pods.
func RedisHeadless(cluster string) string {
	return cluster + "-headless"
}

// RedisMaster returns the master service and StatefulSet name.
func RedisMaster(cluster string) string {
	return cluster + "-master"
}

// RedisReplicas returns the read replica service and StatefulSet name.
func RedisReplicas(cluster string) string {
	return cluster + "-replicas"
}

// RedisMasterHost returns the master service FQDN.
func RedisMasterHost(cluster, namespace string) string {
	return fmt.Sprintf("%s.%s.%s", RedisMaster(cluster), namespace, clusterDomain)
}

// RedisReplicaHost returns the read replica service FQDN.
func RedisReplicaHost(cluster, namespace string) string {
	return fmt.Sprintf("%s.%s.%s", RedisReplicas(cluster), namespace, clusterDomain)
}

// RedisMasterPodHost returns the stable address of the first master pod,
// which replicas follow.
func RedisMasterPodHost(cluster, namespace string) string {
	return fmt.Sprintf("%s-0.%s.%s.%s", RedisMaster(cluster), RedisHeadless(cluster), namespace, clusterDomain)
}

// BrokerUser returns the broker User resource name for (cluster, user).
func BrokerUser(cluster, user string) string {
	return cluster + "-" + user
}

// BrokerCredentialSecret returns the credential secret name for (cluster, user).
func BrokerCredentialSecret(cluster, user string) string {
	return BrokerUser(cluster, user) + "-credentials"
}

// BrokerPermission returns the broker Permission resource name for (cluster, user).
func BrokerPermission(cluster, user string) string {
	return BrokerUser(cluster, user) + "-permission"
}

// BrokerHost returns the in-cluster service address of a broker cluster.
func BrokerHost(cluster, namespace string) string {
	return fmt.Sprintf("%s.%s.svc", cluster, namespace)
}

// BrokerImage returns the management image for a broker version.
func BrokerImage(version string) string {
	return "rabbitmq:" + version + "-management"
}

// QueueName returns the name of the i-th resource management queue.
// Indices start at 1.
func QueueName(index int, suffix string) string {
	return fmt.Sprintf("manage-resource-%d%s", index, suffix)
}
