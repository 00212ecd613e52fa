package config

import (
	"fmt"
	"net"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// Report field names as they appear in dblab.yaml.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// maxSubnetBits is the prefix extension used to carve one subnet per zone.
const maxSubnetBits = 8

// Validate checks the topology for structural and semantic errors.
// ApplyDefaults should be called first.
func (t *Topology) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid topology: %w", err)
	}

	if err := t.validateRoles(); err != nil {
		return fmt.Errorf("role validation failed: %w", err)
	}

	if err := t.validateNetwork(); err != nil {
		return fmt.Errorf("network validation failed: %w", err)
	}

	if err := t.validateServices(); err != nil {
		return fmt.Errorf("managed service validation failed: %w", err)
	}

	return nil
}

func (t *Topology) validateRoles() error {
	total := 0
	for role, spec := range t.Roles {
		if !role.Known() || ParseRole(string(role)) != role {
			return fmt.Errorf("unknown role %q: must be one of %v", role, Roles)
		}
		total += spec.Count
	}
	if total == 0 {
		return fmt.Errorf("at least one role must request instances")
	}
	return nil
}

func (t *Topology) validateNetwork() error {
	_, network, err := net.ParseCIDR(t.VPCCIDR)
	if err != nil {
		return fmt.Errorf("invalid vpc_cidr %q: %w", t.VPCCIDR, err)
	}
	ones, bits := network.Mask.Size()
	if ones+maxSubnetBits > bits-4 {
		return fmt.Errorf("vpc_cidr %s is too small to carve /%d subnets", t.VPCCIDR, ones+maxSubnetBits)
	}
	if len(t.Zones) > 1<<maxSubnetBits {
		return fmt.Errorf("too many zones: %d", len(t.Zones))
	}
	for _, z := range t.Zones {
		if len(z) > 1 && !strings.HasPrefix(z, t.Region) {
			return fmt.Errorf("zone %q is not in region %s", z, t.Region)
		}
	}
	return nil
}

func (t *Topology) validateServices() error {
	if t.EMR.Enabled && t.EMR.InstanceCount < 1 {
		return fmt.Errorf("emr.instance_count must be at least 1")
	}
	if t.OpenSearch.Enabled {
		if t.OpenSearch.InstanceCount < 1 {
			return fmt.Errorf("opensearch.instance_count must be at least 1")
		}
		if len(OpenSearchDomainName(t.Name)) < 3 {
			return fmt.Errorf("cluster name %q yields an invalid opensearch domain name", t.Name)
		}
	}
	return nil
}

// OpenSearchDomainName derives the domain name for a cluster. Domain names
// are limited to 28 lowercase characters.
func OpenSearchDomainName(clusterName string) string {
	name := strings.ToLower("dblab-" + clusterName)
	if len(name) > 28 {
		name = name[:28]
	}
	return strings.TrimRight(name, "-")
}
