package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"echelon/pkg/governance"
	"echelon/pkg/pipeline"
	"echelon/pkg/riskscore"
)

func testAPI(t *testing.T) *api {
	t.Helper()
	p, err := pipeline.New(riskscore.DefaultWeights())
	if err != nil {
		t.Fatalf("pipeline init failed: %v", err)
	}
	// No store, no cache: the memory-only mode.
	return &api{pipeline: p}
}

func postEvents(t *testing.T, a *api, events []governance.AccessEvent) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(scoreRequest{Events: events})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/governance/score", bytes.NewReader(body))
	w := httptest.NewRecorder()
	a.handleScore(w, req)
	return w
}

func sampleEvents() []governance.AccessEvent {
	var events []governance.AccessEvent
	for i, user := range []string{"u1", "u2", "u3"} {
		for d := 1; d <= 2; d++ {
			events = append(events, governance.AccessEvent{
				UserID:                    user,
				Role:                      "DB_Admin",
				ResourceType:              "db_cluster",
				Action:                    governance.ActionRead,
				Timestamp:                 time.Date(2024, 1, d, 9, 0, 0, 0, time.UTC),
				SessionDuration:           30,
				AccessVolume:              5,
				SuccessFlag:               true,
				AssignedResourceCount:     10,
				ActivelyUsedResourceCount: 3 * (i + 1),
			})
		}
	}
	return events
}

func TestHandleScore(t *testing.T) {
	w := postEvents(t, testAPI(t), sampleEvents())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	var resp scoreResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.RunID == "" {
		t.Error("missing run_id")
	}
	if resp.Summary.Users != 3 || resp.Summary.Events != 6 {
		t.Errorf("unexpected summary: %+v", resp.Summary)
	}
	total := 0
	for _, n := range resp.Distribution {
		total += n
	}
	if total != 3 {
		t.Errorf("distribution covers %d users, want 3", total)
	}
}

func TestHandleScore_InvalidDataset(t *testing.T) {
	events := sampleEvents()
	events[0].Action = "browse"
	w := postEvents(t, testAPI(t), events)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestHandleScore_RejectsBadBatchBeforeSaving(t *testing.T) {
	// An invalid batch must be refused up front, before the save path can
	// run; once stored, it would fail every store-loaded run after it.
	events := sampleEvents()
	events[0].ActivelyUsedResourceCount = events[0].AssignedResourceCount + 1

	body, err := json.Marshal(scoreRequest{Events: events, SaveEvents: true})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/governance/score", bytes.NewReader(body))
	w := httptest.NewRecorder()
	testAPI(t).handleScore(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestHandleScore_NoEventsNoStore(t *testing.T) {
	w := postEvents(t, testAPI(t), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleScore_BadJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/governance/score", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	testAPI(t).handleScore(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleScore_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/governance/score", nil)
	w := httptest.NewRecorder()
	testAPI(t).handleScore(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestHandleProfiles_UnknownRun(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/governance/profiles/does-not-exist", nil)
	w := httptest.NewRecorder()
	testAPI(t).handleProfiles(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHandleProfiles_MissingRunID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/governance/profiles/", nil)
	w := httptest.NewRecorder()
	testAPI(t).handleProfiles(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
