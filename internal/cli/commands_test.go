package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fieldrover/wayfarer/internal/db"
	"github.com/fieldrover/wayfarer/internal/introspect"
	"github.com/fieldrover/wayfarer/internal/models"
	"github.com/fieldrover/wayfarer/internal/pose"
)

// execute runs the CLI with its own config file so tests never pick up a
// config from the environment.
func execute(t *testing.T, configBody string, args ...string) (string, error) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "wayfarer.yaml")
	if err := os.WriteFile(path, []byte(configBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append([]string{"--config", path}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

func writePlanFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	return path
}

func TestValidateCommand(t *testing.T) {
	plan := writePlanFile(t, `
name: site_survey
missions:
  - name: leg_one
    waypoints:
      - {name: wp_1, x_m: 0, y_m: 0, yaw_rad: 0}
      - {name: wp_2, x_m: 2, y_m: 0, yaw_rad: 0}
  - name: sweep
    exploration: true
    on_aborted: leg_one
    waypoints:
      - {name: probe_1, x_m: 4, y_m: 0, yaw_rad: 0}
`)

	out, err := execute(t, "", "validate", plan)
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, out)
	}

	for _, want := range []string{
		"leg_one",
		"sweep",
		"yes", // the sweep mission is exploration
		"site_survey: 2 mission(s), 3 waypoint(s), plan is valid",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestValidateCommandRejectsBadPlan(t *testing.T) {
	plan := writePlanFile(t, `
name: twins
missions:
  - name: leg
    waypoints: [{name: wp_1, x_m: 0, y_m: 0, yaw_rad: 0}]
  - name: leg
    waypoints: [{name: wp_1, x_m: 1, y_m: 0, yaw_rad: 0}]
`)

	if _, err := execute(t, "", "validate", plan); err == nil {
		t.Fatal("expected error for duplicate mission names")
	}
}

func TestValidateCommandWithoutPlan(t *testing.T) {
	if _, err := execute(t, "", "validate"); err == nil {
		t.Fatal("expected error when no plan is configured")
	}
}

func TestHistoryCommand(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := database.MigrateUp(ctx); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}

	eventRepo := db.NewEventRepository(database)
	if err := eventRepo.Create(ctx, &models.Event{
		RunID:      "run-7",
		Type:       models.EventTypeWaypointReached,
		EntityType: models.EntityTypeWaypoint,
		EntityID:   "wp_1",
	}); err != nil {
		t.Fatalf("create event: %v", err)
	}

	attemptRepo := db.NewAttemptRepository(database)
	if err := attemptRepo.Create(ctx, &models.Attempt{
		RunID:    "run-7",
		Mission:  "leg_one",
		Waypoint: "wp_1",
		Outcome:  models.AttemptReached,
		Elapsed:  3 * time.Second,
	}); err != nil {
		t.Fatalf("create attempt: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out, err := execute(t, "database: "+dbPath+"\n", "history")
	if err != nil {
		t.Fatalf("history: %v\n%s", err, out)
	}

	for _, want := range []string{"Run run-7", "leg_one", "3s", "waypoint.reached"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestHistoryCommandWithoutRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	if _, err := execute(t, "database: "+dbPath+"\n", "history"); err == nil {
		t.Fatal("expected error for a database without runs")
	}
}

func TestStatusCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(introspect.Status{
			Plan:        "site_survey",
			RunID:       "run-9",
			State:       "leg_one",
			Waypoint:    "wp_2",
			Cursor:      1,
			Waypoints:   3,
			Uptime:      "12s",
			Subscribers: 1,
			Feed:        pose.FeedHealth{State: pose.FeedLive, Updates: 3},
			Pose:        pose.Estimate{X: 0.5, Y: 1, Valid: true},
		})
	}))
	defer srv.Close()

	out, err := execute(t, "", "status", "--addr", srv.URL)
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}

	for _, want := range []string{"site_survey", "run-9", "leg_one", "wp_2 (2/3)", "live", "x 0.50"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStatusCommandJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(introspect.Status{Plan: "site_survey"})
	}))
	defer srv.Close()

	out, err := execute(t, "", "status", "--addr", srv.URL, "--json")
	if err != nil {
		t.Fatalf("status --json: %v\n%s", err, out)
	}

	var status introspect.Status
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if status.Plan != "site_survey" {
		t.Errorf("plan = %q", status.Plan)
	}
}

func TestStatusCommandUnreachable(t *testing.T) {
	if _, err := execute(t, "", "status", "--addr", "127.0.0.1:1"); err == nil {
		t.Fatal("expected error for unreachable daemon")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "wayfarer") {
		t.Errorf("output missing program name: %q", out)
	}
}
