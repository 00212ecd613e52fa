package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLabelBuilder(t *testing.T) {
	t.Parallel()
	tags := NewLabelBuilder("3f1c-uuid", "my-lab").Build()

	assert.Equal(t, "3f1c-uuid", tags[KeyClusterID])
	assert.Equal(t, "my-lab", tags[KeyClusterName])
	assert.Equal(t, ManagedByDBLab, tags[KeyManagedBy])
	assert.NotContains(t, tags, KeyRole)
}

func TestLabelBuilder_InstanceTags(t *testing.T) {
	t.Parallel()
	tags := NewLabelBuilder("id", "lab").
		WithName("lab-db0").
		WithRole("db").
		WithAlias("db0").
		Build()

	assert.Equal(t, "lab-db0", tags[KeyName])
	assert.Equal(t, "db", tags[KeyRole])
	assert.Equal(t, "db0", tags[KeyAlias])
}

func TestLabelBuilder_MergeNeverOverridesReserved(t *testing.T) {
	t.Parallel()
	tags := NewLabelBuilder("id", "lab").
		WithName("lab-db0").
		Merge(map[string]string{
			"owner":        "perf-team",
			KeyClusterID:   "spoofed",
			KeyRole:        "control",
			KeyName:        "renamed",
			"dblab:custom": "x",
		}).
		Build()

	assert.Equal(t, "perf-team", tags["owner"])
	assert.Equal(t, "id", tags[KeyClusterID])
	assert.Equal(t, "lab-db0", tags[KeyName])
	assert.NotContains(t, tags, KeyRole)
	assert.NotContains(t, tags, "dblab:custom")
}

func TestLabelBuilder_BuildReturnsCopy(t *testing.T) {
	t.Parallel()
	lb := NewLabelBuilder("id", "lab")
	tags := lb.Build()
	tags[KeyClusterID] = "mutated"

	assert.Equal(t, "id", lb.Build()[KeyClusterID])
}

func TestSelectorForCluster(t *testing.T) {
	t.Parallel()
	assert.Equal(t, map[string]string{KeyClusterID: "abc"}, SelectorForCluster("abc"))
}
