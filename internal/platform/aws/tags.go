package aws

import (
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	emrtypes "github.com/aws/aws-sdk-go-v2/service/emr/types"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	ostypes "github.com/aws/aws-sdk-go-v2/service/opensearch/types"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/samber/lo"
)

// sortedKeys keeps request payloads deterministic.
func sortedKeys(tags map[string]string) []string {
	keys := lo.Keys(tags)
	sort.Strings(keys)
	return keys
}

func ec2Tags(tags map[string]string) []ec2types.Tag {
	return lo.Map(sortedKeys(tags), func(k string, _ int) ec2types.Tag {
		return ec2types.Tag{Key: aws.String(k), Value: aws.String(tags[k])}
	})
}

func tagSpecs(rt ec2types.ResourceType, tags map[string]string) []ec2types.TagSpecification {
	if len(tags) == 0 {
		return nil
	}
	return []ec2types.TagSpecification{{ResourceType: rt, Tags: ec2Tags(tags)}}
}

func fromEC2Tags(tags []ec2types.Tag) map[string]string {
	return lo.SliceToMap(tags, func(t ec2types.Tag) (string, string) {
		return aws.ToString(t.Key), aws.ToString(t.Value)
	})
}

// tagFilters turns tags into "tag:<key>" filters.
func tagFilters(tags map[string]string) []ec2types.Filter {
	return lo.Map(sortedKeys(tags), func(k string, _ int) ec2types.Filter {
		return filter("tag:"+k, tags[k])
	})
}

func filter(name string, values ...string) ec2types.Filter {
	return ec2types.Filter{Name: aws.String(name), Values: values}
}

func iamTags(tags map[string]string) []iamtypes.Tag {
	return lo.Map(sortedKeys(tags), func(k string, _ int) iamtypes.Tag {
		return iamtypes.Tag{Key: aws.String(k), Value: aws.String(tags[k])}
	})
}

func s3Tags(tags map[string]string) []s3types.Tag {
	return lo.Map(sortedKeys(tags), func(k string, _ int) s3types.Tag {
		return s3types.Tag{Key: aws.String(k), Value: aws.String(tags[k])}
	})
}

func emrTags(tags map[string]string) []emrtypes.Tag {
	return lo.Map(sortedKeys(tags), func(k string, _ int) emrtypes.Tag {
		return emrtypes.Tag{Key: aws.String(k), Value: aws.String(tags[k])}
	})
}

func openSearchTags(tags map[string]string) []ostypes.Tag {
	return lo.Map(sortedKeys(tags), func(k string, _ int) ostypes.Tag {
		return ostypes.Tag{Key: aws.String(k), Value: aws.String(tags[k])}
	})
}
