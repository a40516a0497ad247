package governance

import (
	"fmt"
	"time"
)

// Action is the operation recorded on an access event. The cleaning stage
// guarantees values are lowercased and constrained to this set.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
	ActionExport Action = "export"
)

// ValidActions holds the closed action domain accepted from the cleaning stage.
var ValidActions = map[Action]bool{
	ActionRead:   true,
	ActionWrite:  true,
	ActionDelete: true,
	ActionExport: true,
}

// RequiredColumns is the exact column set the cleaning stage must deliver.
// A dataset missing any of these is fatal; the pipeline refuses to run.
var RequiredColumns = []string{
	"user_id",
	"role",
	"resource_type",
	"action",
	"timestamp",
	"session_duration",
	"access_volume",
	"success_flag",
	"assigned_resource_count",
	"actively_used_resource_count",
}

// AccessEvent is one row of the cleaned privileged-access log.
type AccessEvent struct {
	UserID                    string    `json:"user_id"`
	Role                      string    `json:"role"`
	ResourceType              string    `json:"resource_type"`
	Action                    Action    `json:"action"`
	Timestamp                 time.Time `json:"timestamp"`
	SessionDuration           float64   `json:"session_duration"` // minutes
	AccessVolume              int       `json:"access_volume"`
	SuccessFlag               bool      `json:"success_flag"`
	AssignedResourceCount     int       `json:"assigned_resource_count"`
	ActivelyUsedResourceCount int       `json:"actively_used_resource_count"`
}

// Hour returns the event hour (0-23).
func (e AccessEvent) Hour() int {
	return e.Timestamp.Hour()
}

// DayOfWeek returns the day of week with Monday=0 .. Sunday=6.
func (e AccessEvent) DayOfWeek() int {
	return (int(e.Timestamp.Weekday()) + 6) % 7
}

// ISOWeek returns the ISO 8601 year and week number of the event.
func (e AccessEvent) ISOWeek() (year, week int) {
	return e.Timestamp.ISOWeek()
}

// Month returns the calendar month (1-12).
func (e AccessEvent) Month() int {
	return int(e.Timestamp.Month())
}

// Date returns the calendar day as YYYY-MM-DD.
func (e AccessEvent) Date() string {
	return e.Timestamp.Format("2006-01-02")
}

// IsNight reports whether the event falls in the 22:00-06:00 night window.
// Both boundary hours count as night; the window is intentionally 9 hours.
func (e AccessEvent) IsNight() bool {
	h := e.Hour()
	return h >= 22 || h <= 6
}

// IsWeekend reports whether the event falls on Saturday or Sunday.
func (e AccessEvent) IsWeekend() bool {
	return e.DayOfWeek() >= 5
}

// ValidateColumns checks a delivered column set against RequiredColumns.
// Extra columns are ignored; any missing required column is fatal.
func ValidateColumns(present []string) error {
	seen := make(map[string]bool, len(present))
	for _, c := range present {
		seen[c] = true
	}
	var missing []string
	for _, c := range RequiredColumns {
		if !seen[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("dataset missing required columns: %v", missing)
	}
	return nil
}

// ValidateEvents verifies the post-cleaning invariants the pipeline depends
// on. Any violation is fatal: cross-user statistics make partial output
// semantically invalid, so nothing downstream may run on a bad dataset.
func ValidateEvents(events []AccessEvent) error {
	if len(events) == 0 {
		return fmt.Errorf("empty dataset: no access events to score")
	}

	type userConstants struct {
		role     string
		assigned int
		used     int
	}
	users := make(map[string]userConstants)

	for i, e := range events {
		if e.UserID == "" {
			return fmt.Errorf("event %d: empty user_id", i)
		}
		if e.Role == "" {
			return fmt.Errorf("event %d (user %s): empty role", i, e.UserID)
		}
		if !ValidActions[e.Action] {
			return fmt.Errorf("event %d (user %s): unknown action %q", i, e.UserID, e.Action)
		}
		if e.Timestamp.IsZero() {
			return fmt.Errorf("event %d (user %s): zero timestamp", i, e.UserID)
		}
		if e.SessionDuration <= 0 {
			return fmt.Errorf("event %d (user %s): non-positive session_duration %v", i, e.UserID, e.SessionDuration)
		}
		if e.AccessVolume <= 0 {
			return fmt.Errorf("event %d (user %s): non-positive access_volume %d", i, e.UserID, e.AccessVolume)
		}
		if e.AssignedResourceCount < 0 {
			return fmt.Errorf("event %d (user %s): negative assigned_resource_count", i, e.UserID)
		}
		if e.ActivelyUsedResourceCount < 0 {
			return fmt.Errorf("event %d (user %s): negative actively_used_resource_count", i, e.UserID)
		}
		if e.ActivelyUsedResourceCount > e.AssignedResourceCount {
			return fmt.Errorf("event %d (user %s): actively_used_resource_count %d exceeds assigned_resource_count %d",
				i, e.UserID, e.ActivelyUsedResourceCount, e.AssignedResourceCount)
		}

		uc, seen := users[e.UserID]
		if !seen {
			users[e.UserID] = userConstants{role: e.Role, assigned: e.AssignedResourceCount, used: e.ActivelyUsedResourceCount}
			continue
		}
		if uc.role != e.Role {
			return fmt.Errorf("user %s: role changes across events (%q vs %q)", e.UserID, uc.role, e.Role)
		}
		if uc.assigned != e.AssignedResourceCount {
			return fmt.Errorf("user %s: assigned_resource_count not constant (%d vs %d)", e.UserID, uc.assigned, e.AssignedResourceCount)
		}
		if uc.used != e.ActivelyUsedResourceCount {
			return fmt.Errorf("user %s: actively_used_resource_count not constant (%d vs %d)", e.UserID, uc.used, e.ActivelyUsedResourceCount)
		}
	}

	return nil
}

// GroupByUser partitions events per user, preserving input order within each
// user. Grouping is deterministic and order-independent for every statistic
// computed downstream.
func GroupByUser(events []AccessEvent) map[string][]AccessEvent {
	byUser := make(map[string][]AccessEvent)
	for _, e := range events {
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}
	return byUser
}

// DatasetSummary describes the population a score run was computed against.
// Governance scores are dataset-relative: the same user scored against a
// different population gets a different score, so consumers need the
// population identity alongside the scores.
type DatasetSummary struct {
	Events    int       `json:"events"`
	Users     int       `json:"users"`
	Roles     int       `json:"roles"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Summarize computes the dataset summary for a validated event set.
func Summarize(events []AccessEvent) DatasetSummary {
	users := make(map[string]bool)
	roles := make(map[string]bool)
	s := DatasetSummary{Events: len(events)}
	for _, e := range events {
		users[e.UserID] = true
		roles[e.Role] = true
		if s.FirstSeen.IsZero() || e.Timestamp.Before(s.FirstSeen) {
			s.FirstSeen = e.Timestamp
		}
		if e.Timestamp.After(s.LastSeen) {
			s.LastSeen = e.Timestamp
		}
	}
	s.Users = len(users)
	s.Roles = len(roles)
	return s
}
