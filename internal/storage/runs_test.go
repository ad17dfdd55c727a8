package storage

import (
	"errors"
	"testing"
	"time"
)

func TestRunLifecycle(t *testing.T) {
	s := NewRunStore(newTestDB(t))

	run, err := s.Begin("designs/box.scad")
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if run.ID == "" || run.Status != RunRunning {
		t.Fatalf("Unexpected run %+v", run)
	}

	parts := []*PartRecord{
		{Name: "Lid", Exported: true, Color: "red", Size: 120, Duration: 1500 * time.Millisecond, Location: "out/Lid.stl", Warnings: []string{"WARNING: x"}},
		{Name: "Base", Exported: true, Cached: true, Size: 80},
	}
	if err := s.Finish(run, parts, nil); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if run.Status != RunCompleted {
		t.Errorf("Expected completed, got %s", run.Status)
	}

	got, err := s.Get(run.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("run not found")
	}
	if got.Status != RunCompleted || got.FinishedAt == nil {
		t.Errorf("Unexpected stored run %+v", got)
	}
	if len(got.Parts) != 2 {
		t.Fatalf("Expected 2 parts, got %d", len(got.Parts))
	}
	lid := got.Parts[0]
	if lid.Name != "Lid" || lid.Color != "red" || lid.Duration != 1500*time.Millisecond || lid.Location != "out/Lid.stl" {
		t.Errorf("Unexpected part %+v", lid)
	}
	if len(lid.Warnings) != 1 {
		t.Errorf("Expected warnings to round trip, got %v", lid.Warnings)
	}
	if !got.Parts[1].Cached {
		t.Error("cached flag lost")
	}
}

func TestRunStatus(t *testing.T) {
	tests := []struct {
		name   string
		parts  []*PartRecord
		runErr error
		want   RunStatus
	}{
		{"all ok", []*PartRecord{{Name: "a"}}, nil, RunCompleted},
		{"some failed", []*PartRecord{{Name: "a"}, {Name: "b", ErrorCode: "ENGINE_FAILED"}}, nil, RunPartial},
		{"all failed", []*PartRecord{{Name: "a", ErrorCode: "ENGINE_FAILED"}}, nil, RunFailed},
		{"run error", nil, errors.New("duplicate"), RunFailed},
		{"nothing to render", nil, nil, RunCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveStatus(tt.parts, tt.runErr); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestRecentOrdering(t *testing.T) {
	s := NewRunStore(newTestDB(t))
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		offset := time.Duration(i) * time.Second
		s.now = func() time.Time { return base.Add(offset) }
		if _, err := s.Begin("s.scad"); err != nil {
			t.Fatalf("Begin failed: %v", err)
		}
	}

	runs, err := s.Recent(2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Errorf("Expected newest first, got %v then %v", runs[0].StartedAt, runs[1].StartedAt)
	}
}

func TestRunPrune(t *testing.T) {
	s := NewRunStore(newTestDB(t))
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return base }
	old, err := s.Begin("old.scad")
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := s.Finish(old, []*PartRecord{{Name: "a"}}, nil); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	s.now = func() time.Time { return base.Add(48 * time.Hour) }
	if _, err := s.Begin("new.scad"); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	n, err := s.Prune(base.Add(24 * time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 pruned run, got %d", n)
	}
	if got, _ := s.Get(old.ID); got != nil {
		t.Error("old run should be gone")
	}
}

func TestGetUnknownRun(t *testing.T) {
	s := NewRunStore(newTestDB(t))
	got, err := s.Get("missing")
	if err != nil || got != nil {
		t.Errorf("Expected nil, nil for an unknown run, got %v, %v", got, err)
	}
}
