package naming

import "fmt"

// Naming functions for cluster resources.

func VPC(cluster string) string {
	return cluster
}

func Subnet(cluster, zone string) string {
	return fmt.Sprintf("%s-%s", cluster, zone)
}

func InternetGateway(cluster string) string {
	return fmt.Sprintf("%s-igw", cluster)
}

func SecurityGroup(cluster string) string {
	return fmt.Sprintf("%s-sg", cluster)
}

func Instance(cluster, alias string) string {
	return fmt.Sprintf("%s-%s", cluster, alias)
}

// InstanceRole is the IAM role assumed by every host of the cluster.
func InstanceRole(cluster string) string {
	return fmt.Sprintf("dblab-%s-instance", cluster)
}

// InstanceProfile wraps InstanceRole for EC2.
func InstanceProfile(cluster string) string {
	return InstanceRole(cluster)
}

// BucketPolicy is the inline policy granting hosts access to the cluster bucket.
func BucketPolicy(cluster string) string {
	return fmt.Sprintf("dblab-%s-bucket", cluster)
}

func EMRCluster(cluster string) string {
	return fmt.Sprintf("dblab-%s", cluster)
}

// ClientToken is the RunInstances idempotency token for one host. At most 64 characters.
func ClientToken(clusterID, alias string) string {
	token := fmt.Sprintf("%s-%s", clusterID, alias)
	if len(token) > 64 {
		token = token[len(token)-64:]
	}
	return token
}

// ReplacementToken is the client token for the launch that replaces the
// terminated instance terminatedID. It keeps the trailing 64 characters, so
// the instance ID always survives truncation.
func ReplacementToken(clusterID, alias, terminatedID string) string {
	return ClientToken(clusterID, alias+"-"+terminatedID)
}

// CheckpointKey is the object key of the mirrored checkpoint in the cluster bucket.
const CheckpointKey = "dblab/state.yaml"
