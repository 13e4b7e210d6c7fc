package domain

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of an automation job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusStopped   JobStatus = "stopped"
)

// Terminal returns true if the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusStopped
}

// TargetType selects which mutating action a job performs.
type TargetType string

const (
	TargetLike    TargetType = "like"
	TargetComment TargetType = "comment"
)

const (
	// MaxLogs bounds the per-job log ring; oldest entries are evicted first.
	MaxLogs = 50

	// MinSpeed and MaxSpeed bound the concurrency fan-out a user may request.
	MinSpeed = 1
	MaxSpeed = 200

	// DefaultSpeed is used when a job is created without an explicit speed.
	DefaultSpeed = 5
)

// Job represents one automation run and its observable state.
type Job struct {
	ID             int64
	Status         JobStatus
	TargetType     TargetType
	Speed          int
	TotalToProcess int
	TotalUnliked   int
	TotalSkipped   int
	TotalErrors    int
	Logs           []string
	CreatedAt      time.Time
}

// AppendLog returns logs with a timestamped entry appended, trimmed to the
// most recent MaxLogs entries.
func AppendLog(logs []string, msg string) []string {
	logs = append(logs, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg))
	if len(logs) > MaxLogs {
		logs = logs[len(logs)-MaxLogs:]
	}
	return logs
}

// JobUpdate is a partial update applied to a stored job. Nil fields are
// left untouched; Logs replaces the whole ring when non-nil.
type JobUpdate struct {
	Status         *JobStatus
	TotalToProcess *int
	TotalUnliked   *int
	TotalErrors    *int
	Logs           []string
}
