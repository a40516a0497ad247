package features

import "echelon/pkg/governance"

// Temporal features: unusual timing of access.

// nightAccessPct is the percentage of events in the 22:00-06:00 window.
// Hours 22 and 6 both count as night.
func nightAccessPct(events []governance.AccessEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	night := 0
	for _, e := range events {
		if e.IsNight() {
			night++
		}
	}
	return float64(night) / float64(len(events)) * 100
}

// weekendActivityRatio is the percentage of events on Saturday or Sunday.
func weekendActivityRatio(events []governance.AccessEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	weekend := 0
	for _, e := range events {
		if e.IsWeekend() {
			weekend++
		}
	}
	return float64(weekend) / float64(len(events)) * 100
}

// accessTimeVariance is the sample variance of event hours. A user with a
// single event has undefined variance and gets 0.
func accessTimeVariance(events []governance.AccessEvent) float64 {
	hours := make([]float64, len(events))
	for i, e := range events {
		hours[i] = float64(e.Hour())
	}
	return governance.SampleVar(hours)
}
