package features

import (
	"math"
	"testing"
	"time"

	"echelon/pkg/governance"
)

func ev(user string, ts time.Time, resource string, action governance.Action, volume int) governance.AccessEvent {
	return governance.AccessEvent{
		UserID:                    user,
		Role:                      "DB_Admin",
		ResourceType:              resource,
		Action:                    action,
		Timestamp:                 ts,
		SessionDuration:           30,
		AccessVolume:              volume,
		SuccessFlag:               true,
		AssignedResourceCount:     10,
		ActivelyUsedResourceCount: 7,
	}
}

func at(day, hour int) time.Time {
	return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAvgDailyAccess_ActiveDaysOnly(t *testing.T) {
	// Day 1: 5+7=12, day 3: 6. The idle day between them contributes nothing.
	events := []governance.AccessEvent{
		ev("u1", at(1, 9), "db_cluster", governance.ActionRead, 5),
		ev("u1", at(1, 14), "db_cluster", governance.ActionRead, 7),
		ev("u1", at(3, 9), "db_cluster", governance.ActionRead, 6),
	}
	if got := avgDailyAccess(events); !almostEqual(got, 9) {
		t.Errorf("avgDailyAccess = %v, want 9", got)
	}
}

func TestExportRatio(t *testing.T) {
	events := []governance.AccessEvent{
		ev("u1", at(1, 9), "db_cluster", governance.ActionRead, 5),
		ev("u1", at(1, 10), "db_cluster", governance.ActionWrite, 5),
		ev("u1", at(1, 11), "db_cluster", governance.ActionExport, 5),
		ev("u1", at(1, 12), "db_cluster", governance.ActionRead, 5),
	}
	if got := exportRatio(events); !almostEqual(got, 25) {
		t.Errorf("exportRatio = %v, want 25", got)
	}

	noExports := events[:2]
	if got := exportRatio(noExports); got != 0 {
		t.Errorf("exportRatio without exports = %v, want 0", got)
	}
}

func TestUniqueResourcesAndSessionDuration(t *testing.T) {
	events := []governance.AccessEvent{
		ev("u1", at(1, 9), "db_cluster", governance.ActionRead, 5),
		ev("u1", at(1, 10), "s3_bucket", governance.ActionRead, 5),
		ev("u1", at(1, 11), "db_cluster", governance.ActionRead, 5),
	}
	if got := uniqueResources(events); got != 2 {
		t.Errorf("uniqueResources = %v, want 2", got)
	}

	events[0].SessionDuration = 30
	events[1].SessionDuration = 60
	events[2].SessionDuration = 45
	if got := avgSessionDuration(events); !almostEqual(got, 45) {
		t.Errorf("avgSessionDuration = %v, want 45", got)
	}
}

func TestNightAccessPct_WindowBoundaries(t *testing.T) {
	// 22:00 and 06:00 are night; 21:00 and 07:00 are not.
	events := []governance.AccessEvent{
		ev("u1", at(1, 22), "db_cluster", governance.ActionRead, 5),
		ev("u1", at(2, 6), "db_cluster", governance.ActionRead, 5),
		ev("u1", at(3, 21), "db_cluster", governance.ActionRead, 5),
		ev("u1", at(4, 7), "db_cluster", governance.ActionRead, 5),
	}
	if got := nightAccessPct(events); !almostEqual(got, 50) {
		t.Errorf("nightAccessPct = %v, want 50", got)
	}
}

func TestWeekendActivityRatio(t *testing.T) {
	// 2024-01-06 is a Saturday, 2024-01-07 a Sunday.
	events := []governance.AccessEvent{
		ev("u1", at(6, 10), "db_cluster", governance.ActionRead, 5),
		ev("u1", at(7, 10), "db_cluster", governance.ActionRead, 5),
		ev("u1", at(1, 10), "db_cluster", governance.ActionRead, 5),
		ev("u1", at(2, 10), "db_cluster", governance.ActionRead, 5),
	}
	if got := weekendActivityRatio(events); !almostEqual(got, 50) {
		t.Errorf("weekendActivityRatio = %v, want 50", got)
	}
}

func TestAccessTimeVariance(t *testing.T) {
	events := []governance.AccessEvent{
		ev("u1", at(1, 9), "db_cluster", governance.ActionRead, 5),
		ev("u1", at(2, 11), "db_cluster", governance.ActionRead, 5),
	}
	if got := accessTimeVariance(events); !almostEqual(got, 2) {
		t.Errorf("accessTimeVariance = %v, want 2", got)
	}

	single := events[:1]
	if got := accessTimeVariance(single); got != 0 {
		t.Errorf("accessTimeVariance for a single event = %v, want 0", got)
	}
}

func TestWeeklyAccessChange(t *testing.T) {
	// Single active week: no differences at all.
	oneWeek := []governance.AccessEvent{
		ev("u1", at(1, 9), "db_cluster", governance.ActionRead, 10),
		ev("u1", at(2, 9), "db_cluster", governance.ActionRead, 20),
	}
	if got := weeklyAccessChange(oneWeek); got != 0 {
		t.Errorf("weeklyAccessChange for one week = %v, want 0", got)
	}

	// Two active weeks: one difference, spread undefined, falls back to 0.
	twoWeeks := append(oneWeek[:2:2],
		ev("u1", at(8, 9), "db_cluster", governance.ActionRead, 25))
	if got := weeklyAccessChange(twoWeeks); got != 0 {
		t.Errorf("weeklyAccessChange for two weeks = %v, want 0", got)
	}

	// Weekly totals 10, 30, 20 -> diffs [20, -10] -> sample std sqrt(450).
	threeWeeks := []governance.AccessEvent{
		ev("u1", at(1, 9), "db_cluster", governance.ActionRead, 10),
		ev("u1", at(8, 9), "db_cluster", governance.ActionRead, 30),
		ev("u1", at(15, 9), "db_cluster", governance.ActionRead, 20),
	}
	want := math.Sqrt(450)
	if got := weeklyAccessChange(threeWeeks); !almostEqual(got, want) {
		t.Errorf("weeklyAccessChange = %v, want %v", got, want)
	}
}

func TestAccessSpikeScore(t *testing.T) {
	// Nine events at volume 10 and one at 100: mean=19, std=sqrt(810),
	// threshold ~75.9, exactly one event above it.
	var events []governance.AccessEvent
	for i := 0; i < 9; i++ {
		events = append(events, ev("u1", at(1+i, 9), "db_cluster", governance.ActionRead, 10))
	}
	events = append(events, ev("u1", at(10, 9), "db_cluster", governance.ActionRead, 100))
	if got := accessSpikeScore(events); !almostEqual(got, 10) {
		t.Errorf("accessSpikeScore = %v, want 10", got)
	}

	// Constant volume collapses the threshold to the mean; the strict
	// comparison keeps the score at zero.
	flat := events[:9]
	if got := accessSpikeScore(flat); got != 0 {
		t.Errorf("accessSpikeScore for constant volume = %v, want 0", got)
	}

	single := events[:1]
	if got := accessSpikeScore(single); got != 0 {
		t.Errorf("accessSpikeScore for a single event = %v, want 0", got)
	}
}

func TestPrivilegeFeatures(t *testing.T) {
	e := ev("u1", at(1, 9), "db_cluster", governance.ActionRead, 5)
	e.AssignedResourceCount = 10
	e.ActivelyUsedResourceCount = 2
	events := []governance.AccessEvent{e}

	if got := privilegeUsageGap(events); !almostEqual(got, 8) {
		t.Errorf("privilegeUsageGap = %v, want 8", got)
	}
	if got := privilegeUsageRatio(events); !almostEqual(got, 20) {
		t.Errorf("privilegeUsageRatio = %v, want 20", got)
	}

	// Zero assigned resources must not divide by zero.
	e.AssignedResourceCount = 0
	e.ActivelyUsedResourceCount = 0
	if got := privilegeUsageRatio([]governance.AccessEvent{e}); got != 0 {
		t.Errorf("privilegeUsageRatio with zero assigned = %v, want 0", got)
	}
}

func TestResourceAccessConcentration(t *testing.T) {
	// Single resource type: zero spread.
	uniform := []governance.AccessEvent{
		ev("u1", at(1, 9), "db_cluster", governance.ActionRead, 5),
		ev("u1", at(1, 10), "db_cluster", governance.ActionRead, 5),
	}
	if got := resourceAccessConcentration(uniform); got != 0 {
		t.Errorf("resourceAccessConcentration for one resource = %v, want 0", got)
	}

	// Counts 3 and 1: mean 2, sample std sqrt(2), cv sqrt(2)/2.
	skewed := []governance.AccessEvent{
		ev("u1", at(1, 9), "db_cluster", governance.ActionRead, 5),
		ev("u1", at(1, 10), "db_cluster", governance.ActionRead, 5),
		ev("u1", at(1, 11), "db_cluster", governance.ActionRead, 5),
		ev("u1", at(1, 12), "s3_bucket", governance.ActionRead, 5),
	}
	want := math.Sqrt2 / 2
	if got := resourceAccessConcentration(skewed); !almostEqual(got, want) {
		t.Errorf("resourceAccessConcentration = %v, want %v", got, want)
	}
}

func TestExtract(t *testing.T) {
	events := []governance.AccessEvent{
		ev("u1", at(1, 9), "db_cluster", governance.ActionRead, 5),
		ev("u1", at(2, 10), "db_cluster", governance.ActionExport, 5),
		ev("u2", at(1, 23), "s3_bucket", governance.ActionRead, 8),
	}
	feats, err := NewExtractor().Extract(events)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(feats) != 2 {
		t.Fatalf("expected 2 users, got %d", len(feats))
	}

	u1 := feats["u1"]
	if u1.Role != "DB_Admin" || u1.EventCount != 2 {
		t.Errorf("unexpected u1 identity: %+v", u1)
	}
	if !almostEqual(u1.ExportRatio, 50) {
		t.Errorf("u1 ExportRatio = %v, want 50", u1.ExportRatio)
	}

	u2 := feats["u2"]
	if !almostEqual(u2.NightAccessPct, 100) {
		t.Errorf("u2 NightAccessPct = %v, want 100", u2.NightAccessPct)
	}
	// Single-event fallbacks across the vector.
	if u2.AccessTimeVariance != 0 || u2.WeeklyAccessChange != 0 ||
		u2.AccessSpikeScore != 0 || u2.ResourceAccessConcentration != 0 {
		t.Errorf("single-event user should hit zero fallbacks: %+v", u2)
	}

	vec := u1.Vector()
	if len(vec) != len(Names) {
		t.Errorf("Vector has %d entries, want %d", len(vec), len(Names))
	}

	if _, err := NewExtractor().Extract(nil); err == nil {
		t.Error("expected error for empty event set")
	}
}

func TestValueUnknownFeature(t *testing.T) {
	f := &UserFeatures{}
	if _, err := f.Value("nonexistent"); err == nil {
		t.Error("expected error for unknown feature name")
	}
}
