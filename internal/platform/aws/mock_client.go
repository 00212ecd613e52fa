package aws

import (
	"context"
)

// MockClient is a mock implementation of InfrastructureManager.
// Unset funcs return canned success values.
type MockClient struct {
	// Network
	EnsureVPCFunc             func(ctx context.Context, name, cidr string, tags map[string]string) (*VPC, error)
	EnsureSubnetFunc          func(ctx context.Context, vpcID, name, zone, cidr string, tags map[string]string) (*Subnet, error)
	EnsureInternetGatewayFunc func(ctx context.Context, vpcID, name string, tags map[string]string) (*InternetGateway, error)
	MainRouteTableFunc        func(ctx context.Context, vpcID string) (*RouteTable, error)
	EnsureDefaultRouteFunc    func(ctx context.Context, table *RouteTable, gatewayID string) error

	// Security group
	EnsureSecurityGroupFunc func(ctx context.Context, vpcID, name, description string, tags map[string]string) (*SecurityGroup, error)
	EnsureIngressRulesFunc  func(ctx context.Context, groupID string, rules []IngressRule) (int, error)

	// Image
	GetImageFunc   func(ctx context.Context, id string) (*Image, error)
	ListImagesFunc func(ctx context.Context, namePattern string, owners []string) ([]Image, error)

	// Instance
	RunInstanceFunc       func(ctx context.Context, opts InstanceCreateOpts) (*Instance, error)
	DescribeInstancesFunc func(ctx context.Context, tags map[string]string, states []string) ([]Instance, error)
	GetInstanceFunc       func(ctx context.Context, id string) (*Instance, error)

	// Identity
	EnsureInstanceRoleFunc func(ctx context.Context, roleName, profileName, policyName, policyDocument string, tags map[string]string) (*InstanceRole, error)
	CallerAccountFunc      func(ctx context.Context) (string, error)

	// Bucket
	EnsureBucketFunc func(ctx context.Context, name string, tags map[string]string) error
	PutObjectFunc    func(ctx context.Context, bucket, key string, body []byte) error
	GetObjectFunc    func(ctx context.Context, bucket, key string) ([]byte, error)

	// Managed services
	FindEMRClusterFunc         func(ctx context.Context, name, clusterID string) (*ServiceStatus, error)
	DescribeEMRClusterFunc     func(ctx context.Context, id string) (*ServiceStatus, error)
	CreateEMRClusterFunc       func(ctx context.Context, opts EMRClusterOpts) (*ServiceStatus, error)
	GetOpenSearchDomainFunc    func(ctx context.Context, name string) (*ServiceStatus, error)
	CreateOpenSearchDomainFunc func(ctx context.Context, opts OpenSearchDomainOpts) (*ServiceStatus, error)

	// IP
	GetPublicIPFunc func(ctx context.Context) (string, error)
}

// Ensure interface compliance
var _ InfrastructureManager = (*MockClient)(nil)

// EnsureVPC mocks VPC creation.
func (m *MockClient) EnsureVPC(ctx context.Context, name, cidr string, tags map[string]string) (*VPC, error) {
	if m.EnsureVPCFunc != nil {
		return m.EnsureVPCFunc(ctx, name, cidr, tags)
	}
	return &VPC{ID: "vpc-mock", CIDR: cidr}, nil
}

// EnsureSubnet mocks subnet creation.
func (m *MockClient) EnsureSubnet(ctx context.Context, vpcID, name, zone, cidr string, tags map[string]string) (*Subnet, error) {
	if m.EnsureSubnetFunc != nil {
		return m.EnsureSubnetFunc(ctx, vpcID, name, zone, cidr, tags)
	}
	return &Subnet{ID: "subnet-" + zone, Zone: zone, CIDR: cidr, MapPublicIP: true}, nil
}

// EnsureInternetGateway mocks gateway creation.
func (m *MockClient) EnsureInternetGateway(ctx context.Context, vpcID, name string, tags map[string]string) (*InternetGateway, error) {
	if m.EnsureInternetGatewayFunc != nil {
		return m.EnsureInternetGatewayFunc(ctx, vpcID, name, tags)
	}
	return &InternetGateway{ID: "igw-mock", AttachedVPC: vpcID}, nil
}

// MainRouteTable mocks the main route table lookup.
func (m *MockClient) MainRouteTable(ctx context.Context, vpcID string) (*RouteTable, error) {
	if m.MainRouteTableFunc != nil {
		return m.MainRouteTableFunc(ctx, vpcID)
	}
	return &RouteTable{ID: "rtb-mock"}, nil
}

// EnsureDefaultRoute mocks route creation.
func (m *MockClient) EnsureDefaultRoute(ctx context.Context, table *RouteTable, gatewayID string) error {
	if m.EnsureDefaultRouteFunc != nil {
		return m.EnsureDefaultRouteFunc(ctx, table, gatewayID)
	}
	return nil
}

// EnsureSecurityGroup mocks security group creation.
func (m *MockClient) EnsureSecurityGroup(ctx context.Context, vpcID, name, description string, tags map[string]string) (*SecurityGroup, error) {
	if m.EnsureSecurityGroupFunc != nil {
		return m.EnsureSecurityGroupFunc(ctx, vpcID, name, description, tags)
	}
	return &SecurityGroup{ID: "sg-mock", Name: name, VPCID: vpcID}, nil
}

// EnsureIngressRules mocks rule authorization.
func (m *MockClient) EnsureIngressRules(ctx context.Context, groupID string, rules []IngressRule) (int, error) {
	if m.EnsureIngressRulesFunc != nil {
		return m.EnsureIngressRulesFunc(ctx, groupID, rules)
	}
	return len(rules), nil
}

// GetImage mocks image lookup.
func (m *MockClient) GetImage(ctx context.Context, id string) (*Image, error) {
	if m.GetImageFunc != nil {
		return m.GetImageFunc(ctx, id)
	}
	return &Image{ID: id, Architecture: "x86_64"}, nil
}

// ListImages mocks image listing.
func (m *MockClient) ListImages(ctx context.Context, namePattern string, owners []string) ([]Image, error) {
	if m.ListImagesFunc != nil {
		return m.ListImagesFunc(ctx, namePattern, owners)
	}
	return nil, nil
}

// RunInstance mocks instance launch.
func (m *MockClient) RunInstance(ctx context.Context, opts InstanceCreateOpts) (*Instance, error) {
	if m.RunInstanceFunc != nil {
		return m.RunInstanceFunc(ctx, opts)
	}
	return &Instance{ID: "i-mock", State: "running", Tags: opts.Tags}, nil
}

// DescribeInstances mocks instance listing.
func (m *MockClient) DescribeInstances(ctx context.Context, tags map[string]string, states []string) ([]Instance, error) {
	if m.DescribeInstancesFunc != nil {
		return m.DescribeInstancesFunc(ctx, tags, states)
	}
	return nil, nil
}

// GetInstance mocks instance lookup.
func (m *MockClient) GetInstance(ctx context.Context, id string) (*Instance, error) {
	if m.GetInstanceFunc != nil {
		return m.GetInstanceFunc(ctx, id)
	}
	return &Instance{ID: id, State: "running"}, nil
}

// EnsureInstanceRole mocks IAM role creation.
func (m *MockClient) EnsureInstanceRole(ctx context.Context, roleName, profileName, policyName, policyDocument string, tags map[string]string) (*InstanceRole, error) {
	if m.EnsureInstanceRoleFunc != nil {
		return m.EnsureInstanceRoleFunc(ctx, roleName, profileName, policyName, policyDocument, tags)
	}
	return &InstanceRole{RoleName: roleName, ProfileName: profileName}, nil
}

// CallerAccount mocks the caller identity lookup.
func (m *MockClient) CallerAccount(ctx context.Context) (string, error) {
	if m.CallerAccountFunc != nil {
		return m.CallerAccountFunc(ctx)
	}
	return "123456789012", nil
}

// EnsureBucket mocks bucket creation.
func (m *MockClient) EnsureBucket(ctx context.Context, name string, tags map[string]string) error {
	if m.EnsureBucketFunc != nil {
		return m.EnsureBucketFunc(ctx, name, tags)
	}
	return nil
}

// PutObject mocks object upload.
func (m *MockClient) PutObject(ctx context.Context, bucket, key string, body []byte) error {
	if m.PutObjectFunc != nil {
		return m.PutObjectFunc(ctx, bucket, key, body)
	}
	return nil
}

// GetObject mocks object download.
func (m *MockClient) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if m.GetObjectFunc != nil {
		return m.GetObjectFunc(ctx, bucket, key)
	}
	return nil, nil
}

// FindEMRCluster mocks EMR lookup.
func (m *MockClient) FindEMRCluster(ctx context.Context, name, clusterID string) (*ServiceStatus, error) {
	if m.FindEMRClusterFunc != nil {
		return m.FindEMRClusterFunc(ctx, name, clusterID)
	}
	return nil, nil
}

// DescribeEMRCluster mocks EMR describe.
func (m *MockClient) DescribeEMRCluster(ctx context.Context, id string) (*ServiceStatus, error) {
	if m.DescribeEMRClusterFunc != nil {
		return m.DescribeEMRClusterFunc(ctx, id)
	}
	return &ServiceStatus{ID: id, State: "WAITING"}, nil
}

// CreateEMRCluster mocks EMR launch.
func (m *MockClient) CreateEMRCluster(ctx context.Context, opts EMRClusterOpts) (*ServiceStatus, error) {
	if m.CreateEMRClusterFunc != nil {
		return m.CreateEMRClusterFunc(ctx, opts)
	}
	return &ServiceStatus{ID: "j-mock", Name: opts.Name, State: "STARTING"}, nil
}

// GetOpenSearchDomain mocks domain lookup.
func (m *MockClient) GetOpenSearchDomain(ctx context.Context, name string) (*ServiceStatus, error) {
	if m.GetOpenSearchDomainFunc != nil {
		return m.GetOpenSearchDomainFunc(ctx, name)
	}
	return nil, nil
}

// CreateOpenSearchDomain mocks domain creation.
func (m *MockClient) CreateOpenSearchDomain(ctx context.Context, opts OpenSearchDomainOpts) (*ServiceStatus, error) {
	if m.CreateOpenSearchDomainFunc != nil {
		return m.CreateOpenSearchDomainFunc(ctx, opts)
	}
	return &ServiceStatus{ID: "mock/" + opts.Name, Name: opts.Name, State: DomainStateCreating}, nil
}

// GetPublicIP mocks public IP detection.
func (m *MockClient) GetPublicIP(ctx context.Context) (string, error) {
	if m.GetPublicIPFunc != nil {
		return m.GetPublicIPFunc(ctx)
	}
	return "203.0.113.10", nil
}
