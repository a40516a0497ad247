package main

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"echelon/pkg/database"
	"echelon/pkg/features"
	"echelon/pkg/governance"
	"echelon/pkg/pipeline"
	"echelon/pkg/riskscore"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store persists the cleaned event log and scored output in Postgres.
type Store struct {
	db *database.Database
}

// NewStore connects, migrates the schema, and verifies the event table
// carries every column the pipeline requires. A missing required column is
// fatal here, before any scoring is attempted.
func NewStore(dbURL string) (*Store, error) {
	db, err := database.Open(database.Config{URL: dbURL})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	mm, err := database.NewMigrationManager(db, migrationFiles, "migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration setup failed: %w", err)
	}
	if err := mm.Up(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureColumns(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// ensureColumns checks the live access_events schema against the pipeline's
// required column set.
func (s *Store) ensureColumns(ctx context.Context) error {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT column_name FROM information_schema.columns WHERE table_name = 'access_events'`)
	if err != nil {
		return fmt.Errorf("failed to inspect access_events schema: %w", err)
	}
	defer rows.Close()

	var present []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return fmt.Errorf("failed to scan column name: %w", err)
		}
		present = append(present, col)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read access_events schema: %w", err)
	}
	return governance.ValidateColumns(present)
}

// SaveEvents bulk-loads cleaned events via COPY.
func (s *Store) SaveEvents(ctx context.Context, events []governance.AccessEvent) error {
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("access_events",
			"user_id", "role", "resource_type", "action", "timestamp",
			"session_duration", "access_volume", "success_flag",
			"assigned_resource_count", "actively_used_resource_count"))
		if err != nil {
			return fmt.Errorf("failed to prepare copy: %w", err)
		}

		for _, e := range events {
			if _, err := stmt.ExecContext(ctx,
				e.UserID, e.Role, e.ResourceType, string(e.Action), e.Timestamp,
				e.SessionDuration, e.AccessVolume, e.SuccessFlag,
				e.AssignedResourceCount, e.ActivelyUsedResourceCount); err != nil {
				stmt.Close()
				return fmt.Errorf("failed to copy event: %w", err)
			}
		}

		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to flush copy: %w", err)
		}
		return stmt.Close()
	})
}

// LoadEvents reads the full cleaned event log, ordered by timestamp.
func (s *Store) LoadEvents(ctx context.Context) ([]governance.AccessEvent, error) {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT user_id, role, resource_type, action, timestamp,
		       session_duration, access_volume, success_flag,
		       assigned_resource_count, actively_used_resource_count
		FROM access_events
		ORDER BY timestamp, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	defer rows.Close()

	var events []governance.AccessEvent
	for rows.Next() {
		var e governance.AccessEvent
		var action string
		if err := rows.Scan(&e.UserID, &e.Role, &e.ResourceType, &action, &e.Timestamp,
			&e.SessionDuration, &e.AccessVolume, &e.SuccessFlag,
			&e.AssignedResourceCount, &e.ActivelyUsedResourceCount); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Action = governance.Action(action)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}

// SaveResult persists a completed run and all scored user profiles in one
// transaction. A run is stored whole or not at all.
func (s *Store) SaveResult(ctx context.Context, res *pipeline.Result) error {
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO score_runs (run_id, computed_at, event_count, user_count, role_count, first_seen, last_seen)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			res.RunID, res.ComputedAt, res.Summary.Events, res.Summary.Users,
			res.Summary.Roles, res.Summary.FirstSeen, res.Summary.LastSeen); err != nil {
			return fmt.Errorf("failed to insert score run: %w", err)
		}

		for _, p := range res.Profiles {
			featJSON, err := json.Marshal(p.Features)
			if err != nil {
				return fmt.Errorf("failed to marshal features for user %s: %w", p.UserID, err)
			}
			zJSON, err := json.Marshal(p.ZScores)
			if err != nil {
				return fmt.Errorf("failed to marshal zscores for user %s: %w", p.UserID, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO user_risk_profiles
				(run_id, user_id, role, event_count, features, zscores, raw_risk_score, governance_risk_score, risk_category)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				res.RunID, p.UserID, p.Role, p.EventCount, featJSON, zJSON,
				p.RawRiskScore, p.GovernanceRiskScore, p.RiskCategory); err != nil {
				return fmt.Errorf("failed to insert profile for user %s: %w", p.UserID, err)
			}
		}
		return nil
	})
}

// LoadProfiles reads all scored profiles for a run.
func (s *Store) LoadProfiles(ctx context.Context, runID string) (map[string]*riskscore.UserRiskProfile, error) {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT user_id, role, event_count, features, zscores,
		       raw_risk_score, governance_risk_score, risk_category
		FROM user_risk_profiles WHERE run_id = $1`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	defer rows.Close()

	profiles := make(map[string]*riskscore.UserRiskProfile)
	for rows.Next() {
		p := &riskscore.UserRiskProfile{}
		var featJSON, zJSON []byte
		if err := rows.Scan(&p.UserID, &p.Role, &p.EventCount, &featJSON, &zJSON,
			&p.RawRiskScore, &p.GovernanceRiskScore, &p.RiskCategory); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		p.Features = &features.UserFeatures{}
		if err := json.Unmarshal(featJSON, p.Features); err != nil {
			return nil, fmt.Errorf("failed to unmarshal features for user %s: %w", p.UserID, err)
		}
		if err := json.Unmarshal(zJSON, &p.ZScores); err != nil {
			return nil, fmt.Errorf("failed to unmarshal zscores for user %s: %w", p.UserID, err)
		}
		profiles[p.UserID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no profiles for run %s", runID)
	}
	return profiles, nil
}

// LoadRun reads a run's metadata.
func (s *Store) LoadRun(ctx context.Context, runID string) (*pipeline.RunMeta, error) {
	meta := &pipeline.RunMeta{}
	var firstSeen, lastSeen sql.NullTime
	err := s.db.DB.QueryRowContext(ctx, `
		SELECT run_id, computed_at, event_count, user_count, role_count, first_seen, last_seen
		FROM score_runs WHERE run_id = $1`, runID).
		Scan(&meta.RunID, &meta.ComputedAt, &meta.Summary.Events, &meta.Summary.Users,
			&meta.Summary.Roles, &firstSeen, &lastSeen)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	if firstSeen.Valid {
		meta.Summary.FirstSeen = firstSeen.Time
	}
	if lastSeen.Valid {
		meta.Summary.LastSeen = lastSeen.Time
	}
	return meta, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
