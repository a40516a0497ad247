package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"echelon/pkg/governance"
	"echelon/pkg/pipeline"
)

// API over the batch pipeline. POST /governance/score runs a full scoring
// batch; profiles of finished runs are readable by run ID.

type api struct {
	pipeline *pipeline.Pipeline
	store    *Store        // nil when DISABLE_DB=true
	cache    *ProfileCache // nil-safe
}

type scoreRequest struct {
	// Events to score directly. When empty the full event log is loaded
	// from the store.
	Events []governance.AccessEvent `json:"events"`
	// Persist posted events into the store before scoring.
	SaveEvents bool `json:"save_events"`
}

type scoreResponse struct {
	RunID        string                    `json:"run_id"`
	ComputedAt   string                    `json:"computed_at"`
	Summary      governance.DatasetSummary `json:"summary"`
	Distribution map[string]int            `json:"risk_distribution"`
}

func (a *api) handleScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req scoreRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()
	events := req.Events
	if len(events) == 0 {
		if a.store == nil {
			http.Error(w, "No events posted and no store configured", http.StatusBadRequest)
			return
		}
		var err error
		events, err = a.store.LoadEvents(ctx)
		if err != nil {
			log.Printf("Failed to load events: %v", err)
			http.Error(w, "Failed to load events", http.StatusInternalServerError)
			return
		}
	} else {
		// Reject bad batches before they can reach the store: a single
		// invalid batch would fail every store-loaded run after it.
		if err := governance.ValidateEvents(events); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		if req.SaveEvents && a.store != nil {
			if err := a.store.SaveEvents(ctx, events); err != nil {
				log.Printf("Failed to save events: %v", err)
				http.Error(w, "Failed to save events", http.StatusInternalServerError)
				return
			}
		}
	}

	res, err := a.pipeline.Run(ctx, events)
	if err != nil {
		log.Printf("Scoring run failed: %v", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if a.store != nil {
		if err := a.store.SaveResult(ctx, res); err != nil {
			log.Printf("Failed to persist run %s: %v", res.RunID, err)
			http.Error(w, "Failed to persist scores", http.StatusInternalServerError)
			return
		}
	}
	if err := a.cache.Put(ctx, res.RunID, res.Profiles); err != nil {
		// Cache failures are not fatal; the store remains authoritative.
		log.Printf("Failed to cache run %s: %v", res.RunID, err)
	}

	writeJSON(w, scoreResponse{
		RunID:        res.RunID,
		ComputedAt:   res.ComputedAt.Format("2006-01-02T15:04:05Z07:00"),
		Summary:      res.Summary,
		Distribution: res.CategoryDistribution(),
	})
}

func (a *api) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := strings.TrimPrefix(r.URL.Path, "/governance/profiles/")
	if runID == "" || strings.Contains(runID, "/") {
		http.Error(w, "Missing run ID", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	profiles, err := a.cache.Get(ctx, runID)
	if err != nil {
		log.Printf("Cache read failed for run %s: %v", runID, err)
	}
	if profiles == nil {
		if a.store == nil {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		profiles, err = a.store.LoadProfiles(ctx, runID)
		if err != nil {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		if err := a.cache.Put(ctx, runID, profiles); err != nil {
			log.Printf("Failed to cache run %s: %v", runID, err)
		}
	}

	writeJSON(w, map[string]interface{}{
		"run_id":   runID,
		"profiles": profiles,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
