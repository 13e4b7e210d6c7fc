package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylfro/instasweep/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    status           TEXT NOT NULL DEFAULT 'pending',
    target_type      TEXT NOT NULL DEFAULT 'like',
    speed            INTEGER NOT NULL DEFAULT 5,
    total_to_process INTEGER NOT NULL DEFAULT 0,
    total_unliked    INTEGER NOT NULL DEFAULT 0,
    total_skipped    INTEGER NOT NULL DEFAULT 0,
    total_errors     INTEGER NOT NULL DEFAULT 0,
    logs             TEXT NOT NULL DEFAULT '[]',
    created_at       DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Repository implements domain.JobRepository and domain.SettingStore using
// SQLite.
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository, initializing the schema if needed.
func New(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Create inserts a new pending job.
func (r *Repository) Create(ctx context.Context, target domain.TargetType, speed int) (*domain.Job, error) {
	now := time.Now()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO jobs (status, target_type, speed, created_at) VALUES (?, ?, ?, ?)`,
		domain.StatusPending, target, speed, now,
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &domain.Job{
		ID:         id,
		Status:     domain.StatusPending,
		TargetType: target,
		Speed:      speed,
		Logs:       []string{},
		CreatedAt:  now,
	}, nil
}

// Get retrieves a job by id.
func (r *Repository) Get(ctx context.Context, id int64) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, status, target_type, speed, total_to_process, total_unliked,
		        total_skipped, total_errors, logs, created_at
		 FROM jobs WHERE id = ?`, id,
	)
	return scanJob(row)
}

// Update applies a partial update and returns the stored job.
func (r *Repository) Update(ctx context.Context, id int64, upd domain.JobUpdate) (*domain.Job, error) {
	var sets []string
	var args []any

	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *upd.Status)
	}
	if upd.TotalToProcess != nil {
		sets = append(sets, "total_to_process = ?")
		args = append(args, *upd.TotalToProcess)
	}
	if upd.TotalUnliked != nil {
		sets = append(sets, "total_unliked = ?")
		args = append(args, *upd.TotalUnliked)
	}
	if upd.TotalErrors != nil {
		sets = append(sets, "total_errors = ?")
		args = append(args, *upd.TotalErrors)
	}
	if upd.Logs != nil {
		encoded, err := json.Marshal(upd.Logs)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "logs = ?")
		args = append(args, string(encoded))
	}

	if len(sets) > 0 {
		args = append(args, id)
		result, err := r.db.ExecContext(ctx,
			`UPDATE jobs SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...,
		)
		if err != nil {
			return nil, err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, domain.ErrJobNotFound
		}
	}

	return r.Get(ctx, id)
}

// GetSetting returns the value stored under key, or "" if unset.
func (r *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetSetting stores value under key, replacing any previous value.
func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.Job, error) {
	var job domain.Job
	var status, target, logs string
	err := row.Scan(&job.ID, &status, &target, &job.Speed, &job.TotalToProcess,
		&job.TotalUnliked, &job.TotalSkipped, &job.TotalErrors, &logs, &job.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	job.TargetType = domain.TargetType(target)
	if err := json.Unmarshal([]byte(logs), &job.Logs); err != nil {
		return nil, err
	}
	return &job, nil
}
