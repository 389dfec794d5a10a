package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRecord is returned for a PoseRecord outside its allowed ranges.
var ErrInvalidRecord = errors.New("invalid pose record")

// PoseRecord is the result of one completed or skipped pose attempt.
type PoseRecord struct {
	PoseID          string    `json:"poseId"`
	PoseName        string    `json:"poseName"`
	Accuracy        int       `json:"accuracy"`
	DurationSeconds int       `json:"duration"`
	Feedback        []string  `json:"feedback"`
	Timestamp       time.Time `json:"timestamp"`
}

// Validate checks that the record names a pose, its accuracy is within
// [0,100] and its duration is not negative.
func (r PoseRecord) Validate() error {
	switch {
	case r.PoseID == "":
		return fmt.Errorf("%w: missing pose id", ErrInvalidRecord)
	case r.Accuracy < 0 || r.Accuracy > 100:
		return fmt.Errorf("%w: accuracy %d for %q is outside [0,100]", ErrInvalidRecord, r.Accuracy, r.PoseID)
	case r.DurationSeconds < 0:
		return fmt.Errorf("%w: negative duration %d for %q", ErrInvalidRecord, r.DurationSeconds, r.PoseID)
	}
	return nil
}

// SessionSummary is derived from a list of PoseRecords and never edited in place.
type SessionSummary struct {
	Completed          bool        `json:"completed"`
	AverageAccuracy    float64     `json:"averageAccuracy"`
	CompletedPoseCount int         `json:"completedPoses"`
	WeakestPose        *PoseRecord `json:"weakestPose,omitempty"`
	Feedback           []string    `json:"feedback"`
}

// Outcome tells how a practice session ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeExited    Outcome = "exited"
	OutcomeExpired   Outcome = "expired"
)

// SessionResult is what the persistence boundary receives when a practice
// session ends.
type SessionResult struct {
	SessionID  string         `json:"sessionId"`
	UserID     string         `json:"userId,omitempty"`
	SequenceID string         `json:"sequenceId"`
	Outcome    Outcome        `json:"outcome"`
	Records    []PoseRecord   `json:"poseRecords"`
	Summary    SessionSummary `json:"summary"`
	Persisted  bool           `json:"persisted"`
	StartedAt  time.Time      `json:"startedAt"`
	EndedAt    time.Time      `json:"endedAt"`
}
