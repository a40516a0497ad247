package pipeline

import (
	"fmt"
	"time"

	"echelon/pkg/governance"
)

// ScoredRow is one row of the flat output contract: the original event
// columns, the derived time parts, and the user's features, z-scores and
// scores broadcast onto every event row of that user.
type ScoredRow struct {
	governance.AccessEvent

	Hour      int    `json:"hour"`
	DayOfWeek int    `json:"day_of_week"`
	Week      int    `json:"week"`
	Month     int    `json:"month"`
	Date      string `json:"date"`

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

	AvgDailyAccessZScore              float64 `json:"avg_daily_access_zscore"`
	ExportRatioZScore                 float64 `json:"export_ratio_zscore"`
	UniqueResourcesZScore             float64 `json:"unique_resources_zscore"`
	AvgSessionDurationZScore          float64 `json:"avg_session_duration_zscore"`
	NightAccessPctZScore              float64 `json:"night_access_pct_zscore"`
	WeekendActivityRatioZScore        float64 `json:"weekend_activity_ratio_zscore"`
	AccessTimeVarianceZScore          float64 `json:"access_time_variance_zscore"`
	WeeklyAccessChangeZScore          float64 `json:"weekly_access_change_zscore"`
	AccessSpikeScoreZScore            float64 `json:"access_spike_score_zscore"`
	PrivilegeUsageGapZScore           float64 `json:"privilege_usage_gap_zscore"`
	PrivilegeUsageRatioZScore         float64 `json:"privilege_usage_ratio_zscore"`
	ResourceAccessConcentrationZScore float64 `json:"resource_access_concentration_zscore"`

	RawRiskScore        float64 `json:"raw_risk_score"`
	GovernanceRiskScore float64 `json:"governance_risk_score"`
	RiskCategory        string  `json:"risk_category"`
}

// Rows joins each event to its user's profile and materializes the flat
// output rows in input event order.
func (r *Result) Rows() ([]ScoredRow, error) {
	rows := make([]ScoredRow, 0, len(r.Events))
	for _, e := range r.Events {
		p, ok := r.Profiles[e.UserID]
		if !ok {
			return nil, fmt.Errorf("no profile for user %s", e.UserID)
		}
		f := p.Features
		z := p.ZScores
		_, week := e.ISOWeek()

		rows = append(rows, ScoredRow{
			AccessEvent: e,

			Hour:      e.Hour(),
			DayOfWeek: e.DayOfWeek(),
			Week:      week,
			Month:     e.Month(),
			Date:      e.Date(),

			AvgDailyAccess:              f.AvgDailyAccess,
			ExportRatio:                 f.ExportRatio,
			UniqueResources:             f.UniqueResources,
			AvgSessionDuration:          f.AvgSessionDuration,
			NightAccessPct:              f.NightAccessPct,
			WeekendActivityRatio:        f.WeekendActivityRatio,
			AccessTimeVariance:          f.AccessTimeVariance,
			WeeklyAccessChange:          f.WeeklyAccessChange,
			AccessSpikeScore:            f.AccessSpikeScore,
			PrivilegeUsageGap:           f.PrivilegeUsageGap,
			PrivilegeUsageRatio:         f.PrivilegeUsageRatio,
			ResourceAccessConcentration: f.ResourceAccessConcentration,

			AvgDailyAccessZScore:              z["avg_daily_access"],
			ExportRatioZScore:                 z["export_ratio"],
			UniqueResourcesZScore:             z["unique_resources"],
			AvgSessionDurationZScore:          z["avg_session_duration"],
			NightAccessPctZScore:              z["night_access_pct"],
			WeekendActivityRatioZScore:        z["weekend_activity_ratio"],
			AccessTimeVarianceZScore:          z["access_time_variance"],
			WeeklyAccessChangeZScore:          z["weekly_access_change"],
			AccessSpikeScoreZScore:            z["access_spike_score"],
			PrivilegeUsageGapZScore:           z["privilege_usage_gap"],
			PrivilegeUsageRatioZScore:         z["privilege_usage_ratio"],
			ResourceAccessConcentrationZScore: z["resource_access_concentration"],

			RawRiskScore:        p.RawRiskScore,
			GovernanceRiskScore: p.GovernanceRiskScore,
			RiskCategory:        p.RiskCategory,
		})
	}
	return rows, nil
}

// RunMeta is the lightweight identity of a run for persistence and lookup.
type RunMeta struct {
	RunID      string                    `json:"run_id"`
	ComputedAt time.Time                 `json:"computed_at"`
	Summary    governance.DatasetSummary `json:"summary"`
}

// Meta returns the run's identity.
func (r *Result) Meta() RunMeta {
	return RunMeta{RunID: r.RunID, ComputedAt: r.ComputedAt, Summary: r.Summary}
}
