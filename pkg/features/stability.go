package features

import (
	"sort"

	"echelon/pkg/governance"
)

// Stability features: week-over-week drift and abnormal bursts.

// weeklyAccessChange aggregates access_volume per ISO week, takes first
// differences across the weeks the user was active (gaps are not backfilled
// with zero), and returns the sample standard deviation of those differences.
// Fewer than two differences (at most two active weeks) yields 0.
func weeklyAccessChange(events []governance.AccessEvent) float64 {
	type weekKey struct{ year, week int }
	perWeek := make(map[weekKey]float64)
	for _, e := range events {
		y, w := e.ISOWeek()
		perWeek[weekKey{y, w}] += float64(e.AccessVolume)
	}

	keys := make([]weekKey, 0, len(perWeek))
	for k := range perWeek {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].week < keys[j].week
	})

	totals := make([]float64, len(keys))
	for i, k := range keys {
		totals[i] = perWeek[k]
	}
	return governance.SampleStd(governance.Diffs(totals))
}

// accessSpikeScore is the percentage of events whose access_volume strictly
// exceeds the user's personal baseline of mean + 2*std. For a roughly normal
// volume distribution this lands in the low single digits; near-zero variance
// makes the baseline collapse to the mean, which is why the comparison is
// strict.
func accessSpikeScore(events []governance.AccessEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	volumes := make([]float64, len(events))
	for i, e := range events {
		volumes[i] = float64(e.AccessVolume)
	}
	threshold := governance.Mean(volumes) + 2*governance.SampleStd(volumes)

	spikes := 0
	for _, v := range volumes {
		if v > threshold {
			spikes++
		}
	}
	return float64(spikes) / float64(len(volumes)) * 100
}
