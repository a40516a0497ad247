// Package features reduces a cleaned access-event log to 12 per-user
// behavioral metrics in four families: behavioral, temporal, stability and
// privilege intelligence. Every feature is a pure function of a single user's
// events; features are independent of each other and order-insensitive.
package features

import (
	"fmt"

	"echelon/pkg/governance"
)

// Canonical feature names, in the order they appear in the output contract.
const (
	AvgDailyAccess              = "avg_daily_access"
	ExportRatio                 = "export_ratio"
	UniqueResources             = "unique_resources"
	AvgSessionDuration          = "avg_session_duration"
	NightAccessPct              = "night_access_pct"
	WeekendActivityRatio        = "weekend_activity_ratio"
	AccessTimeVariance          = "access_time_variance"
	WeeklyAccessChange          = "weekly_access_change"
	AccessSpikeScore            = "access_spike_score"
	PrivilegeUsageGap           = "privilege_usage_gap"
	PrivilegeUsageRatio         = "privilege_usage_ratio"
	ResourceAccessConcentration = "resource_access_concentration"
)

// Names lists all 12 feature names in canonical order.
var Names = []string{
	AvgDailyAccess,
	ExportRatio,
	UniqueResources,
	AvgSessionDuration,
	NightAccessPct,
	WeekendActivityRatio,
	AccessTimeVariance,
	WeeklyAccessChange,
	AccessSpikeScore,
	PrivilegeUsageGap,
	PrivilegeUsageRatio,
	ResourceAccessConcentration,
}

// UserFeatures is the feature vector for a single user, computed once per
// pipeline run from that user's full event set.
type UserFeatures struct {
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	EventCount int    `json:"event_count"`

	AvgDailyAccess              float64 `json:"avg_daily_access"`
	ExportRatio                 float64 `json:"export_ratio"`
	UniqueResources             float64 `json:"unique_resources"`
	AvgSessionDuration          float64 `json:"avg_session_duration"`
	NightAccessPct              float64 `json:"night_access_pct"`
	WeekendActivityRatio        float64 `json:"weekend_activity_ratio"`
	AccessTimeVariance          float64 `json:"access_time_variance"`
	WeeklyAccessChange          float64 `json:"weekly_access_change"`
	AccessSpikeScore            float64 `json:"access_spike_score"`
	PrivilegeUsageGap           float64 `json:"privilege_usage_gap"`
	PrivilegeUsageRatio         float64 `json:"privilege_usage_ratio"`
	ResourceAccessConcentration float64 `json:"resource_access_concentration"`
}

// Value returns a feature by canonical name.
func (f *UserFeatures) Value(name string) (float64, error) {
	switch name {
	case AvgDailyAccess:
		return f.AvgDailyAccess, nil
	case ExportRatio:
		return f.ExportRatio, nil
	case UniqueResources:
		return f.UniqueResources, nil
	case AvgSessionDuration:
		return f.AvgSessionDuration, nil
	case NightAccessPct:
		return f.NightAccessPct, nil
	case WeekendActivityRatio:
		return f.WeekendActivityRatio, nil
	case AccessTimeVariance:
		return f.AccessTimeVariance, nil
	case WeeklyAccessChange:
		return f.WeeklyAccessChange, nil
	case AccessSpikeScore:
		return f.AccessSpikeScore, nil
	case PrivilegeUsageGap:
		return f.PrivilegeUsageGap, nil
	case PrivilegeUsageRatio:
		return f.PrivilegeUsageRatio, nil
	case ResourceAccessConcentration:
		return f.ResourceAccessConcentration, nil
	default:
		return 0, fmt.Errorf("unknown feature: %s", name)
	}
}

// Vector returns the features keyed by canonical name.
func (f *UserFeatures) Vector() map[string]float64 {
	out := make(map[string]float64, len(Names))
	for _, name := range Names {
		v, _ := f.Value(name)
		out[name] = v
	}
	return out
}

// Extractor builds per-user feature vectors from an event set.
type Extractor struct{}

// NewExtractor creates a feature extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract computes all 12 features for every user in the event set. The input
// must already be validated; Extract never fails on degenerate statistics
// (single events, single weeks, single resources) — those fall back to 0.
func (ex *Extractor) Extract(events []governance.AccessEvent) (map[string]*UserFeatures, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("no events to extract features from")
	}

	byUser := governance.GroupByUser(events)
	out := make(map[string]*UserFeatures, len(byUser))

	for userID, userEvents := range byUser {
		f := &UserFeatures{
			UserID:     userID,
			Role:       userEvents[0].Role,
			EventCount: len(userEvents),
		}

		// Behavioral
		f.AvgDailyAccess = avgDailyAccess(userEvents)
		f.ExportRatio = exportRatio(userEvents)
		f.UniqueResources = uniqueResources(userEvents)
		f.AvgSessionDuration = avgSessionDuration(userEvents)

		// Temporal
		f.NightAccessPct = nightAccessPct(userEvents)
		f.WeekendActivityRatio = weekendActivityRatio(userEvents)
		f.AccessTimeVariance = accessTimeVariance(userEvents)

		// Stability / drift
		f.WeeklyAccessChange = weeklyAccessChange(userEvents)
		f.AccessSpikeScore = accessSpikeScore(userEvents)

		// Privilege intelligence
		f.PrivilegeUsageGap = privilegeUsageGap(userEvents)
		f.PrivilegeUsageRatio = privilegeUsageRatio(userEvents)
		f.ResourceAccessConcentration = resourceAccessConcentration(userEvents)

		out[userID] = f
	}

	return out, nil
}
