package fakes

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/emr"
	emrtypes "github.com/aws/aws-sdk-go-v2/service/emr/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/opensearch"
	ostypes "github.com/aws/aws-sdk-go-v2/service/opensearch/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/imamik/dblab/pkg/cloud"
)

const fakeAccount = "123456789012"

// FakeIAM simulates IAM roles and instance profiles.
type FakeIAM struct {
	recorder
	Roles    map[string]iamtypes.Role
	Profiles map[string]iamtypes.InstanceProfile
	Policies map[string]string // role/policy -> document
}

// NewFakeIAM returns an empty fake.
func NewFakeIAM() *FakeIAM {
	return &FakeIAM{
		recorder: newRecorder(),
		Roles:    map[string]iamtypes.Role{},
		Profiles: map[string]iamtypes.InstanceProfile{},
		Policies: map[string]string{},
	}
}

func (f *FakeIAM) GetRole(_ context.Context, in *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("GetRole"); err != nil {
		return nil, err
	}
	r, ok := f.Roles[aws.ToString(in.RoleName)]
	if !ok {
		return nil, &iamtypes.NoSuchEntityException{Message: aws.String("role not found")}
	}
	return &iam.GetRoleOutput{Role: &r}, nil
}

func (f *FakeIAM) CreateRole(_ context.Context, in *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateRole"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.RoleName)
	if _, ok := f.Roles[name]; ok {
		return nil, &iamtypes.EntityAlreadyExistsException{Message: aws.String("role exists")}
	}
	r := iamtypes.Role{
		RoleName:                 in.RoleName,
		Arn:                      aws.String(fmt.Sprintf("arn:aws:iam::%s:role/%s", fakeAccount, name)),
		AssumeRolePolicyDocument: in.AssumeRolePolicyDocument,
		Tags:                     in.Tags,
		CreateDate:               aws.Time(time.Now()),
	}
	f.Roles[name] = r
	return &iam.CreateRoleOutput{Role: &r}, nil
}

func (f *FakeIAM) PutRolePolicy(_ context.Context, in *iam.PutRolePolicyInput, _ ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("PutRolePolicy"); err != nil {
		return nil, err
	}
	if _, ok := f.Roles[aws.ToString(in.RoleName)]; !ok {
		return nil, &iamtypes.NoSuchEntityException{Message: aws.String("role not found")}
	}
	f.Policies[aws.ToString(in.RoleName)+"/"+aws.ToString(in.PolicyName)] = aws.ToString(in.PolicyDocument)
	return &iam.PutRolePolicyOutput{}, nil
}

func (f *FakeIAM) GetInstanceProfile(_ context.Context, in *iam.GetInstanceProfileInput, _ ...func(*iam.Options)) (*iam.GetInstanceProfileOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("GetInstanceProfile"); err != nil {
		return nil, err
	}
	p, ok := f.Profiles[aws.ToString(in.InstanceProfileName)]
	if !ok {
		return nil, &iamtypes.NoSuchEntityException{Message: aws.String("instance profile not found")}
	}
	return &iam.GetInstanceProfileOutput{InstanceProfile: &p}, nil
}

func (f *FakeIAM) CreateInstanceProfile(_ context.Context, in *iam.CreateInstanceProfileInput, _ ...func(*iam.Options)) (*iam.CreateInstanceProfileOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateInstanceProfile"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.InstanceProfileName)
	if _, ok := f.Profiles[name]; ok {
		return nil, &iamtypes.EntityAlreadyExistsException{Message: aws.String("instance profile exists")}
	}
	p := iamtypes.InstanceProfile{
		InstanceProfileName: in.InstanceProfileName,
		Arn:                 aws.String(fmt.Sprintf("arn:aws:iam::%s:instance-profile/%s", fakeAccount, name)),
		Tags:                in.Tags,
		CreateDate:          aws.Time(time.Now()),
	}
	f.Profiles[name] = p
	return &iam.CreateInstanceProfileOutput{InstanceProfile: &p}, nil
}

func (f *FakeIAM) AddRoleToInstanceProfile(_ context.Context, in *iam.AddRoleToInstanceProfileInput, _ ...func(*iam.Options)) (*iam.AddRoleToInstanceProfileOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("AddRoleToInstanceProfile"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.InstanceProfileName)
	p, ok := f.Profiles[name]
	if !ok {
		return nil, &iamtypes.NoSuchEntityException{Message: aws.String("instance profile not found")}
	}
	r, ok := f.Roles[aws.ToString(in.RoleName)]
	if !ok {
		return nil, &iamtypes.NoSuchEntityException{Message: aws.String("role not found")}
	}
	if len(p.Roles) > 0 {
		return nil, &iamtypes.LimitExceededException{Message: aws.String("Cannot exceed quota for InstanceSessionsPerInstanceProfile: 1")}
	}
	p.Roles = append(p.Roles, r)
	f.Profiles[name] = p
	return &iam.AddRoleToInstanceProfileOutput{}, nil
}

// FakeS3 simulates buckets and objects.
type FakeS3 struct {
	recorder
	Buckets map[string][]s3types.Tag
	Objects map[string][]byte // bucket/key -> body
}

// NewFakeS3 returns an empty fake.
func NewFakeS3() *FakeS3 {
	return &FakeS3{recorder: newRecorder(), Buckets: map[string][]s3types.Tag{}, Objects: map[string][]byte{}}
}

func (f *FakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("HeadBucket"); err != nil {
		return nil, err
	}
	if _, ok := f.Buckets[aws.ToString(in.Bucket)]; !ok {
		return nil, &s3types.NotFound{Message: aws.String("Not Found")}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *FakeS3) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateBucket"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.Bucket)
	if _, ok := f.Buckets[name]; ok {
		return nil, &s3types.BucketAlreadyOwnedByYou{Message: aws.String("bucket exists")}
	}
	f.Buckets[name] = nil
	return &s3.CreateBucketOutput{Location: aws.String("/" + name)}, nil
}

func (f *FakeS3) PutBucketTagging(_ context.Context, in *s3.PutBucketTaggingInput, _ ...func(*s3.Options)) (*s3.PutBucketTaggingOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("PutBucketTagging"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.Bucket)
	if _, ok := f.Buckets[name]; !ok {
		return nil, &s3types.NoSuchBucket{Message: aws.String("no such bucket")}
	}
	if in.Tagging != nil {
		f.Buckets[name] = in.Tagging.TagSet
	}
	return &s3.PutBucketTaggingOutput{}, nil
}

func (f *FakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("PutObject"); err != nil {
		return nil, err
	}
	if _, ok := f.Buckets[aws.ToString(in.Bucket)]; !ok {
		return nil, &s3types.NoSuchBucket{Message: aws.String("no such bucket")}
	}
	var body []byte
	if in.Body != nil {
		b, err := io.ReadAll(in.Body)
		if err != nil {
			return nil, err
		}
		body = b
	}
	f.Objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *FakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("GetObject"); err != nil {
		return nil, err
	}
	body, ok := f.Objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("no such key")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

// FakeEMR simulates EMR clusters.
type FakeEMR struct {
	recorder
	Clusters []emrtypes.Cluster
	// LaunchState is the state new clusters report; defaults to STARTING.
	LaunchState emrtypes.ClusterState
	nextID      int
}

// NewFakeEMR returns an empty fake.
func NewFakeEMR() *FakeEMR {
	return &FakeEMR{recorder: newRecorder(), nextID: 1}
}

func (f *FakeEMR) ListClusters(_ context.Context, in *emr.ListClustersInput, _ ...func(*emr.Options)) (*emr.ListClustersOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("ListClusters"); err != nil {
		return nil, err
	}
	out := &emr.ListClustersOutput{}
	for _, c := range f.Clusters {
		if len(in.ClusterStates) > 0 && !slices.Contains(in.ClusterStates, c.Status.State) {
			continue
		}
		out.Clusters = append(out.Clusters, emrtypes.ClusterSummary{Id: c.Id, Name: c.Name, Status: c.Status})
	}
	return out, nil
}

func (f *FakeEMR) DescribeCluster(_ context.Context, in *emr.DescribeClusterInput, _ ...func(*emr.Options)) (*emr.DescribeClusterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DescribeCluster"); err != nil {
		return nil, err
	}
	for _, c := range f.Clusters {
		if aws.ToString(c.Id) == aws.ToString(in.ClusterId) {
			return &emr.DescribeClusterOutput{Cluster: &c}, nil
		}
	}
	return nil, &emrtypes.InvalidRequestException{Message: aws.String("cluster not found")}
}

func (f *FakeEMR) RunJobFlow(_ context.Context, in *emr.RunJobFlowInput, _ ...func(*emr.Options)) (*emr.RunJobFlowOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("RunJobFlow"); err != nil {
		return nil, err
	}
	state := f.LaunchState
	if state == "" {
		state = emrtypes.ClusterStateStarting
	}
	id := fmt.Sprintf("j-%013d", f.nextID)
	f.nextID++
	c := emrtypes.Cluster{
		Id:     aws.String(id),
		Name:   in.Name,
		Status: &emrtypes.ClusterStatus{State: state},
		Tags:   in.Tags,
	}
	if state == emrtypes.ClusterStateWaiting || state == emrtypes.ClusterStateRunning {
		c.MasterPublicDnsName = aws.String("ec2-54-1-1-1.compute.amazonaws.com")
	}
	f.Clusters = append(f.Clusters, c)
	return &emr.RunJobFlowOutput{JobFlowId: aws.String(id)}, nil
}

// FakeOpenSearch simulates OpenSearch domains.
type FakeOpenSearch struct {
	recorder
	Domains map[string]ostypes.DomainStatus
	// Tags holds each domain's tag list keyed by ARN.
	Tags map[string][]ostypes.Tag
	// Endpoint, when set, is reported for newly created domains.
	Endpoint string
}

// NewFakeOpenSearch returns an empty fake.
func NewFakeOpenSearch() *FakeOpenSearch {
	return &FakeOpenSearch{
		recorder: newRecorder(),
		Domains:  map[string]ostypes.DomainStatus{},
		Tags:     map[string][]ostypes.Tag{},
	}
}

func (f *FakeOpenSearch) DescribeDomain(_ context.Context, in *opensearch.DescribeDomainInput, _ ...func(*opensearch.Options)) (*opensearch.DescribeDomainOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DescribeDomain"); err != nil {
		return nil, err
	}
	d, ok := f.Domains[aws.ToString(in.DomainName)]
	if !ok {
		return nil, &ostypes.ResourceNotFoundException{Message: aws.String("domain not found")}
	}
	return &opensearch.DescribeDomainOutput{DomainStatus: &d}, nil
}

func (f *FakeOpenSearch) CreateDomain(_ context.Context, in *opensearch.CreateDomainInput, _ ...func(*opensearch.Options)) (*opensearch.CreateDomainOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateDomain"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.DomainName)
	if _, ok := f.Domains[name]; ok {
		return nil, &ostypes.ResourceAlreadyExistsException{Message: aws.String("domain exists")}
	}
	d := ostypes.DomainStatus{
		ARN:           aws.String(fmt.Sprintf("arn:aws:es:us-west-2:%s:domain/%s", fakeAccount, name)),
		DomainId:      aws.String(fakeAccount + "/" + name),
		DomainName:    in.DomainName,
		EngineVersion: in.EngineVersion,
		ClusterConfig: in.ClusterConfig,
		Created:       aws.Bool(true),
		Deleted:       aws.Bool(false),
		Processing:    aws.Bool(f.Endpoint == ""),
	}
	if f.Endpoint != "" {
		d.Endpoint = aws.String(f.Endpoint)
	}
	f.Domains[name] = d
	f.Tags[aws.ToString(d.ARN)] = append([]ostypes.Tag(nil), in.TagList...)
	return &opensearch.CreateDomainOutput{DomainStatus: &d}, nil
}

func (f *FakeOpenSearch) ListTags(_ context.Context, in *opensearch.ListTagsInput, _ ...func(*opensearch.Options)) (*opensearch.ListTagsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("ListTags"); err != nil {
		return nil, err
	}
	tags, ok := f.Tags[aws.ToString(in.ARN)]
	if !ok {
		return nil, &ostypes.ResourceNotFoundException{Message: aws.String("domain not found")}
	}
	return &opensearch.ListTagsOutput{TagList: tags}, nil
}

// FakeSTS returns a fixed caller identity.
type FakeSTS struct {
	recorder
	Account string
}

// NewFakeSTS returns a fake for the default test account.
func NewFakeSTS() *FakeSTS {
	return &FakeSTS{recorder: newRecorder(), Account: fakeAccount}
}

func (f *FakeSTS) GetCallerIdentity(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("GetCallerIdentity"); err != nil {
		return nil, err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String(f.Account),
		Arn:     aws.String(fmt.Sprintf("arn:aws:iam::%s:user/lab", f.Account)),
		UserId:  aws.String("AIDAEXAMPLE"),
	}, nil
}

var (
	_ cloud.EC2API        = (*FakeEC2)(nil)
	_ cloud.IAMAPI        = (*FakeIAM)(nil)
	_ cloud.S3API         = (*FakeS3)(nil)
	_ cloud.EMRAPI        = (*FakeEMR)(nil)
	_ cloud.OpenSearchAPI = (*FakeOpenSearch)(nil)
	_ cloud.STSAPI        = (*FakeSTS)(nil)
)
