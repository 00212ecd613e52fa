package config

import (
	"maps"
	"slices"
	"strings"
)

// Arch is the CPU architecture requested for every instance.
type Arch string

const (
	ArchAMD64 Arch = "amd64"
	ArchARM64 Arch = "arm64"
)

// Default values applied by ApplyDefaults.
const (
	DefaultVPCCIDR          = "10.0.0.0/16"
	DefaultImageNamePattern = "rustyrazorblade/images/easy-db-lab-cassandra-{arch}-*"
	DefaultStorageType      = "gp3"
	DefaultStorageSizeGB    = 256
	DefaultEMRRelease       = "emr-7.2.0"
	DefaultEMRInstanceType  = "m5.xlarge"
	DefaultEMRInstanceCount = 3
	DefaultEMRServiceRole   = "EMR_DefaultRole"
	DefaultOpenSearchEngine = "OpenSearch_2.13"
	DefaultOpenSearchType   = "t3.small.search"
	DefaultOpenSearchVolume = 10
)

// Topology is the declarative description of a lab cluster.
// It carries both yaml tags (topology file) and json tags (checkpoint snapshot).
type Topology struct {
	Name       string            `yaml:"name" json:"name" validate:"required,max=40,hostname_rfc1123"`
	Region     string            `yaml:"region" json:"region" validate:"required"`
	Arch       Arch              `yaml:"arch" json:"arch" validate:"required,oneof=amd64 arm64"`
	Zones      []string          `yaml:"zones" json:"zones" validate:"required,min=1,unique,dive,required"`
	VPCCIDR    string            `yaml:"vpc_cidr" json:"vpc_cidr" validate:"required,cidrv4"`
	KeyName    string            `yaml:"key_name,omitempty" json:"key_name,omitempty"`
	Image      ImageSpec         `yaml:"image" json:"image"`
	Roles      map[Role]RoleSpec `yaml:"roles" json:"roles" validate:"required,dive"`
	Storage    StorageSpec       `yaml:"storage" json:"storage"`
	Tags       map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
	SSHCIDRs   []string          `yaml:"ssh_cidrs,omitempty" json:"ssh_cidrs,omitempty" validate:"dive,cidrv4"`
	EMR        EMRSpec           `yaml:"emr" json:"emr"`
	OpenSearch OpenSearchSpec    `yaml:"opensearch" json:"opensearch"`
}

// ImageSpec selects the machine image.
type ImageSpec struct {
	ID          string   `yaml:"id,omitempty" json:"id,omitempty"`
	NamePattern string   `yaml:"name_pattern" json:"name_pattern"`
	Owners      []string `yaml:"owners,omitempty" json:"owners,omitempty"`
}

// RoleSpec is the desired count and instance type of one role.
type RoleSpec struct {
	Count        int    `yaml:"count" json:"count" validate:"min=0"`
	InstanceType string `yaml:"instance_type" json:"instance_type" validate:"required_unless=Count 0"`
}

// StorageSpec describes the root EBS volume of every instance.
type StorageSpec struct {
	Type       string `yaml:"type" json:"type" validate:"omitempty,oneof=gp2 gp3 io1 io2"`
	SizeGB     int    `yaml:"size_gb" json:"size_gb" validate:"min=0"`
	IOPS       int    `yaml:"iops,omitempty" json:"iops,omitempty" validate:"min=0"`
	Throughput int    `yaml:"throughput,omitempty" json:"throughput,omitempty" validate:"min=0"`
}

// EMRSpec enables and sizes the managed big-data cluster.
type EMRSpec struct {
	Enabled       bool     `yaml:"enabled" json:"enabled"`
	ReleaseLabel  string   `yaml:"release_label,omitempty" json:"release_label,omitempty"`
	InstanceType  string   `yaml:"instance_type,omitempty" json:"instance_type,omitempty"`
	InstanceCount int      `yaml:"instance_count,omitempty" json:"instance_count,omitempty" validate:"min=0"`
	Applications  []string `yaml:"applications,omitempty" json:"applications,omitempty"`
	ServiceRole   string   `yaml:"service_role,omitempty" json:"service_role,omitempty"`
}

// OpenSearchSpec enables and sizes the managed search domain.
type OpenSearchSpec struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	EngineVersion string `yaml:"engine_version,omitempty" json:"engine_version,omitempty"`
	InstanceType  string `yaml:"instance_type,omitempty" json:"instance_type,omitempty"`
	InstanceCount int    `yaml:"instance_count,omitempty" json:"instance_count,omitempty" validate:"min=0"`
	VolumeSizeGB  int    `yaml:"volume_size_gb,omitempty" json:"volume_size_gb,omitempty" validate:"min=0"`
}

// ApplyDefaults fills unset optional fields.
func (t *Topology) ApplyDefaults() {
	if t.Arch == "" {
		t.Arch = ArchAMD64
	}
	if t.VPCCIDR == "" {
		t.VPCCIDR = DefaultVPCCIDR
	}
	if t.Image.NamePattern == "" {
		t.Image.NamePattern = DefaultImageNamePattern
	}
	if len(t.Image.Owners) == 0 {
		t.Image.Owners = []string{"self"}
	}
	if t.Storage.Type == "" {
		t.Storage.Type = DefaultStorageType
	}
	if t.Storage.SizeGB == 0 {
		t.Storage.SizeGB = DefaultStorageSizeGB
	}
	if t.EMR.Enabled {
		if t.EMR.ReleaseLabel == "" {
			t.EMR.ReleaseLabel = DefaultEMRRelease
		}
		if t.EMR.InstanceType == "" {
			t.EMR.InstanceType = DefaultEMRInstanceType
		}
		if t.EMR.InstanceCount == 0 {
			t.EMR.InstanceCount = DefaultEMRInstanceCount
		}
		if len(t.EMR.Applications) == 0 {
			t.EMR.Applications = []string{"Spark"}
		}
		if t.EMR.ServiceRole == "" {
			t.EMR.ServiceRole = DefaultEMRServiceRole
		}
	}
	if t.OpenSearch.Enabled {
		if t.OpenSearch.EngineVersion == "" {
			t.OpenSearch.EngineVersion = DefaultOpenSearchEngine
		}
		if t.OpenSearch.InstanceType == "" {
			t.OpenSearch.InstanceType = DefaultOpenSearchType
		}
		if t.OpenSearch.InstanceCount == 0 {
			t.OpenSearch.InstanceCount = 1
		}
		if t.OpenSearch.VolumeSizeGB == 0 {
			t.OpenSearch.VolumeSizeGB = DefaultOpenSearchVolume
		}
	}
}

// Count returns the desired instance count for a role.
func (t *Topology) Count(role Role) int {
	return t.Roles[role].Count
}

// ZoneNames returns fully qualified availability zone names. Single-letter
// suffixes are prefixed with the region ("a" -> "us-west-2a").
func (t *Topology) ZoneNames() []string {
	out := make([]string, len(t.Zones))
	for i, z := range t.Zones {
		if strings.HasPrefix(z, t.Region) {
			out[i] = z
		} else {
			out[i] = t.Region + z
		}
	}
	return out
}

// ImageNamePattern returns the image name filter with the architecture substituted.
func (t *Topology) ImageNamePattern() string {
	return strings.ReplaceAll(t.Image.NamePattern, "{arch}", string(t.Arch))
}

// Clone returns a deep copy suitable for mutation.
func (t *Topology) Clone() *Topology {
	c := *t
	c.Zones = slices.Clone(t.Zones)
	c.Image.Owners = slices.Clone(t.Image.Owners)
	c.SSHCIDRs = slices.Clone(t.SSHCIDRs)
	c.EMR.Applications = slices.Clone(t.EMR.Applications)
	c.Roles = maps.Clone(t.Roles)
	c.Tags = maps.Clone(t.Tags)
	return &c
}
