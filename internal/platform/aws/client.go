package aws

import (
	"context"
	"errors"
	"time"

	"github.com/imamik/dblab/internal/config"
)

// ErrMainRouteTableNotFound is returned when a VPC reports no main route table.
var ErrMainRouteTableNotFound = errors.New("main route table not found")

// VPC is a virtual network.
type VPC struct {
	ID   string
	CIDR string
}

// Subnet is a zonal subnet inside a VPC.
type Subnet struct {
	ID          string
	Zone        string
	CIDR        string
	MapPublicIP bool
}

// InternetGateway is an internet gateway and the VPC it is attached to, if any.
type InternetGateway struct {
	ID          string
	AttachedVPC string
}

// Route is a single route table entry.
type Route struct {
	Destination string
	GatewayID   string
}

// RouteTable is a VPC route table.
type RouteTable struct {
	ID     string
	Routes []Route
}

// IngressRule is one security group ingress permission for a single source range.
type IngressRule struct {
	Protocol    string
	FromPort    int32
	ToPort      int32
	CIDR        string
	Description string
}

// Matches reports whether two rules grant the same access.
func (r IngressRule) Matches(o IngressRule) bool {
	return r.Protocol == o.Protocol && r.FromPort == o.FromPort && r.ToPort == o.ToPort && r.CIDR == o.CIDR
}

// SecurityGroup is a VPC security group with its ingress rules flattened.
type SecurityGroup struct {
	ID    string
	Name  string
	VPCID string
	Rules []IngressRule
}

// Image is a machine image.
type Image struct {
	ID             string
	Name           string
	Architecture   string
	RootDeviceName string
	CreationDate   time.Time
}

// Instance is a compute instance.
type Instance struct {
	ID               string
	State            string
	PublicIP         string
	PrivateIP        string
	AvailabilityZone string
	Tags             map[string]string
}

// InstanceCreateOpts holds all parameters for launching one instance.
type InstanceCreateOpts struct {
	ImageID             string
	RootDeviceName      string
	InstanceType        string
	SubnetID            string
	SecurityGroupID     string
	KeyName             string
	InstanceProfileName string
	// ClientToken makes the launch idempotent across retries and re-runs.
	ClientToken string
	Storage     config.StorageSpec
	Tags        map[string]string
}

// InstanceRole is an IAM role and the instance profile carrying it.
type InstanceRole struct {
	RoleName    string
	RoleARN     string
	ProfileName string
	ProfileARN  string
}

// ServiceStatus is the provider-reported state of a managed service.
type ServiceStatus struct {
	ID        string
	Name      string
	State     string
	Endpoints []string
	Tags      map[string]string
}

// EMRClusterOpts holds the parameters for launching an EMR cluster.
type EMRClusterOpts struct {
	Name                string
	ReleaseLabel        string
	InstanceType        string
	InstanceCount       int32
	Applications        []string
	ServiceRole         string
	InstanceProfileName string
	SubnetID            string
	SecurityGroupID     string
	KeyName             string
	LogURI              string
	Tags                map[string]string
}

// OpenSearchDomainOpts holds the parameters for creating an OpenSearch domain.
type OpenSearchDomainOpts struct {
	Name          string
	EngineVersion string
	InstanceType  string
	InstanceCount int32
	VolumeSizeGB  int32
	// AccessPolicy is the resource policy document; empty leaves the domain closed.
	AccessPolicy string
	Tags         map[string]string
}

// NetworkManager defines the interface for managing VPC networking.
type NetworkManager interface {
	EnsureVPC(ctx context.Context, name, cidr string, tags map[string]string) (*VPC, error)
	EnsureSubnet(ctx context.Context, vpcID, name, zone, cidr string, tags map[string]string) (*Subnet, error)
	// EnsureInternetGateway ensures a gateway named name exists and is attached to vpcID.
	EnsureInternetGateway(ctx context.Context, vpcID, name string, tags map[string]string) (*InternetGateway, error)
	// MainRouteTable returns ErrMainRouteTableNotFound when the VPC reports none.
	MainRouteTable(ctx context.Context, vpcID string) (*RouteTable, error)
	EnsureDefaultRoute(ctx context.Context, table *RouteTable, gatewayID string) error
}

// SecurityGroupManager defines the interface for managing security groups.
type SecurityGroupManager interface {
	EnsureSecurityGroup(ctx context.Context, vpcID, name, description string, tags map[string]string) (*SecurityGroup, error)
	// EnsureIngressRules authorizes the rules missing from the group and
	// returns how many were created.
	EnsureIngressRules(ctx context.Context, groupID string, rules []IngressRule) (int, error)
}

// ImageManager defines the interface for looking up machine images.
type ImageManager interface {
	// GetImage returns nil when the image does not exist.
	GetImage(ctx context.Context, id string) (*Image, error)
	ListImages(ctx context.Context, namePattern string, owners []string) ([]Image, error)
}

// InstanceManager defines the interface for launching and listing instances.
type InstanceManager interface {
	RunInstance(ctx context.Context, opts InstanceCreateOpts) (*Instance, error)
	// DescribeInstances lists instances carrying every given tag in one of the given states.
	DescribeInstances(ctx context.Context, tags map[string]string, states []string) ([]Instance, error)
	// GetInstance returns nil when the instance does not exist.
	GetInstance(ctx context.Context, id string) (*Instance, error)
}

// IdentityManager defines the interface for the cluster's IAM identity.
type IdentityManager interface {
	EnsureInstanceRole(ctx context.Context, roleName, profileName, policyName, policyDocument string, tags map[string]string) (*InstanceRole, error)
	CallerAccount(ctx context.Context) (string, error)
}

// BucketManager defines the interface for the cluster's S3 bucket.
type BucketManager interface {
	EnsureBucket(ctx context.Context, name string, tags map[string]string) error
	PutObject(ctx context.Context, bucket, key string, body []byte) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// ManagedServiceManager defines the interface for EMR and OpenSearch.
type ManagedServiceManager interface {
	// FindEMRCluster returns the active cluster named name tagged with clusterID, or nil.
	FindEMRCluster(ctx context.Context, name, clusterID string) (*ServiceStatus, error)
	DescribeEMRCluster(ctx context.Context, id string) (*ServiceStatus, error)
	CreateEMRCluster(ctx context.Context, opts EMRClusterOpts) (*ServiceStatus, error)
	// GetOpenSearchDomain returns nil when the domain does not exist. Tags
	// are filled from the domain's tag list.
	GetOpenSearchDomain(ctx context.Context, name string) (*ServiceStatus, error)
	CreateOpenSearchDomain(ctx context.Context, opts OpenSearchDomainOpts) (*ServiceStatus, error)
}

// InfrastructureManager combines all infrastructure management interfaces.
type InfrastructureManager interface {
	NetworkManager
	SecurityGroupManager
	ImageManager
	InstanceManager
	IdentityManager
	BucketManager
	ManagedServiceManager
	GetPublicIP(ctx context.Context) (string, error)
}
