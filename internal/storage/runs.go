package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeLayout is fixed-width so stored timestamps sort chronologically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RunStatus is the lifecycle state of a render run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// Run is one RenderScript invocation
type Run struct {
	ID         string        `json:"id"`
	Script     string        `json:"script"`
	Status     RunStatus     `json:"status"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt *time.Time    `json:"finishedAt,omitempty"`
	Error      string        `json:"error,omitempty"`
	Parts      []*PartRecord `json:"parts,omitempty"`
}

// PartRecord is the stored outcome of one part of a run
type PartRecord struct {
	Name         string        `json:"name"`
	Exported     bool          `json:"exported"`
	Color        string        `json:"color,omitempty"`
	Cached       bool          `json:"cached"`
	Size         int           `json:"size"`
	Duration     time.Duration `json:"duration"`
	Location     string        `json:"location,omitempty"`
	ErrorCode    string        `json:"errorCode,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
}

// RunStore records render runs
type RunStore struct {
	db  *DB
	now func() time.Time
}

// NewRunStore creates a run store on db
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db, now: time.Now}
}

// Begin inserts a running run for script
func (s *RunStore) Begin(script string) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		Script:    script,
		Status:    RunRunning,
		StartedAt: s.now().UTC(),
	}

	_, err := s.db.Exec(`
		INSERT INTO render_runs (id, script, status, started_at)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.Script, string(run.Status), run.StartedAt.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	return run, nil
}

// Finish stores the part outcomes and derives the final status: completed
// when every part succeeded, failed when all failed or runErr is set,
// partial otherwise.
func (s *RunStore) Finish(run *Run, parts []*PartRecord, runErr error) error {
	finished := s.now().UTC()
	run.FinishedAt = &finished
	run.Parts = parts
	run.Status = deriveStatus(parts, runErr)
	if runErr != nil {
		run.Error = runErr.Error()
	}

	return s.db.WithTx(func(tx *sql.Tx) error {
		for _, p := range parts {
			var warnings interface{}
			if len(p.Warnings) > 0 {
				data, err := json.Marshal(p.Warnings)
				if err != nil {
					return err
				}
				warnings = string(data)
			}
			_, err := tx.Exec(`
				INSERT OR REPLACE INTO render_parts
					(run_id, name, exported, color, cached, size, duration_ms, location, error_code, error_message, warnings_json)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, run.ID, p.Name, p.Exported, p.Color, p.Cached, p.Size, p.Duration.Milliseconds(),
				p.Location, p.ErrorCode, p.ErrorMessage, warnings)
			if err != nil {
				return fmt.Errorf("failed to record part %s: %w", p.Name, err)
			}
		}

		_, err := tx.Exec(`
			UPDATE render_runs SET status = ?, finished_at = ?, error = ? WHERE id = ?
		`, string(run.Status), finished.Format(timeLayout), run.Error, run.ID)
		if err != nil {
			return fmt.Errorf("failed to finish run: %w", err)
		}
		return nil
	})
}

func deriveStatus(parts []*PartRecord, runErr error) RunStatus {
	if runErr != nil {
		return RunFailed
	}
	failed := 0
	for _, p := range parts {
		if p.ErrorCode != "" {
			failed++
		}
	}
	switch {
	case failed == 0:
		return RunCompleted
	case failed == len(parts):
		return RunFailed
	default:
		return RunPartial
	}
}

// Get loads one run with its parts. Returns nil when it does not exist.
func (s *RunStore) Get(id string) (*Run, error) {
	rows, err := s.db.Query(`
		SELECT id, script, status, started_at, finished_at, error
		FROM render_runs WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	runs, err := s.scanRuns(rows)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return runs[0], nil
}

// Recent returns the newest runs first, at most limit
func (s *RunStore) Recent(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, script, status, started_at, finished_at, error
		FROM render_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return s.scanRuns(rows)
}

func (s *RunStore) scanRuns(rows *sql.Rows) ([]*Run, error) {
	var runs []*Run
	for rows.Next() {
		var run Run
		var status, started string
		var finished, runErr sql.NullString
		if err := rows.Scan(&run.ID, &run.Script, &status, &started, &finished, &runErr); err != nil {
			_ = rows.Close()
			return nil, err
		}
		run.Status = RunStatus(status)
		run.StartedAt, _ = time.Parse(timeLayout, started)
		if finished.Valid {
			t, _ := time.Parse(timeLayout, finished.String)
			run.FinishedAt = &t
		}
		run.Error = runErr.String
		runs = append(runs, &run)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, run := range runs {
		parts, err := s.loadParts(run.ID)
		if err != nil {
			return nil, err
		}
		run.Parts = parts
	}
	return runs, nil
}

func (s *RunStore) loadParts(runID string) ([]*PartRecord, error) {
	rows, err := s.db.Query(`
		SELECT name, exported, color, cached, size, duration_ms, location, error_code, error_message, warnings_json
		FROM render_parts WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load parts: %w", err)
	}
	defer rows.Close()

	var parts []*PartRecord
	for rows.Next() {
		var p PartRecord
		var durationMs int64
		var color, location, code, msg, warnings sql.NullString
		if err := rows.Scan(&p.Name, &p.Exported, &color, &p.Cached, &p.Size, &durationMs,
			&location, &code, &msg, &warnings); err != nil {
			return nil, err
		}
		p.Color = color.String
		p.Location = location.String
		p.ErrorCode = code.String
		p.ErrorMessage = msg.String
		p.Duration = time.Duration(durationMs) * time.Millisecond
		if warnings.Valid && warnings.String != "" {
			_ = json.Unmarshal([]byte(warnings.String), &p.Warnings)
		}
		parts = append(parts, &p)
	}
	return parts, rows.Err()
}

// Prune deletes runs started before cutoff; their parts cascade
func (s *RunStore) Prune(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM render_runs WHERE started_at < ?", cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}
