package features

import (
	"sort"

	"echelon/pkg/governance"
)

// Privilege-intelligence features: alignment between what a user is entitled
// to and what they actually touch. Assigned and actively-used counts are
// user-level constants validated upstream, so they are read from the first
// event.

// privilegeUsageGap is assigned minus actively-used resource count: the
// number of unused entitlements.
func privilegeUsageGap(events []governance.AccessEvent) float64 {
	e := events[0]
	return float64(e.AssignedResourceCount - e.ActivelyUsedResourceCount)
}

// privilegeUsageRatio is the percentage of assigned resources actually used.
// An assigned count of 0 is substituted with 1 before dividing.
func privilegeUsageRatio(events []governance.AccessEvent) float64 {
	e := events[0]
	assigned := e.AssignedResourceCount
	if assigned == 0 {
		assigned = 1
	}
	return float64(e.ActivelyUsedResourceCount) / float64(assigned) * 100
}

// resourceAccessConcentration is the coefficient of variation (std/mean) of
// the user's per-resource event counts. A user touching a single resource
// type has zero spread, so concentration flattens to 0 for the narrowest
// access patterns.
func resourceAccessConcentration(events []governance.AccessEvent) float64 {
	perResource := make(map[string]float64)
	for _, e := range events {
		perResource[e.ResourceType]++
	}
	resources := make([]string, 0, len(perResource))
	for r := range perResource {
		resources = append(resources, r)
	}
	sort.Strings(resources)
	counts := make([]float64, 0, len(resources))
	for _, r := range resources {
		counts = append(counts, perResource[r])
	}
	mean := governance.Mean(counts)
	if mean == 0 {
		return 0
	}
	return governance.SampleStd(counts) / mean
}
