package compute

import (
	"slices"
)

// Place returns the zone index for the instance at lifetime position
// instanceIndex within its role.
func Place(instanceIndex, zoneCount int) int {
	if zoneCount <= 0 {
		return 0
	}
	return instanceIndex % zoneCount
}

// ZoneFor returns the zone assigned to the instance at index.
func ZoneFor(index int, zones []string) string {
	if len(zones) == 0 {
		return ""
	}
	return zones[Place(index, len(zones))]
}

// NextIndices returns the n smallest ordinals not in used. For a contiguous
// used set [0, M) this is [M, M+n), so added instances continue the sequence.
func NextIndices(used []int, n int) []int {
	if n <= 0 {
		return nil
	}
	taken := make(map[int]bool, len(used))
	for _, u := range used {
		taken[u] = true
	}
	out := make([]int, 0, n)
	for i := 0; len(out) < n; i++ {
		if !taken[i] {
			out = append(out, i)
		}
	}
	return out
}

// Assignment is the placement of one new instance.
type Assignment struct {
	Index int
	Zone  string
}

// Plan places n new instances after the used ordinals.
func Plan(used []int, n int, zones []string) []Assignment {
	indices := NextIndices(used, n)
	out := make([]Assignment, len(indices))
	for i, idx := range indices {
		out[i] = Assignment{Index: idx, Zone: ZoneFor(idx, zones)}
	}
	return slices.Clip(out)
}
