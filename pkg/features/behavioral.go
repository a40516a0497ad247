package features

import (
	"sort"

	"echelon/pkg/governance"
)

// Behavioral features: scope and intensity of a user's access behavior.

// avgDailyAccess is the mean of per-calendar-day access_volume sums, averaged
// over the days the user was active. Idle days do not contribute data points.
// Days are summed in date order so reruns are bit-identical.
func avgDailyAccess(events []governance.AccessEvent) float64 {
	perDay := make(map[string]float64)
	for _, e := range events {
		perDay[e.Date()] += float64(e.AccessVolume)
	}
	days := make([]string, 0, len(perDay))
	for d := range perDay {
		days = append(days, d)
	}
	sort.Strings(days)
	totals := make([]float64, 0, len(days))
	for _, d := range days {
		totals = append(totals, perDay[d])
	}
	return governance.Mean(totals)
}

// exportRatio is the percentage of the user's events with action=export.
// A user with no exports gets 0.
func exportRatio(events []governance.AccessEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	exports := 0
	for _, e := range events {
		if e.Action == governance.ActionExport {
			exports++
		}
	}
	return float64(exports) / float64(len(events)) * 100
}

// uniqueResources counts distinct resource types the user touched.
func uniqueResources(events []governance.AccessEvent) float64 {
	seen := make(map[string]bool)
	for _, e := range events {
		seen[e.ResourceType] = true
	}
	return float64(len(seen))
}

// avgSessionDuration is the mean session length in minutes.
func avgSessionDuration(events []governance.AccessEvent) float64 {
	durations := make([]float64, len(events))
	for i, e := range events {
		durations[i] = e.SessionDuration
	}
	return governance.Mean(durations)
}
