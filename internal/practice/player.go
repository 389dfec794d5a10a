// Package practice drives a user through a timed pose sequence.
package practice

import (
	"errors"
	"fmt"

	"github.com/Freedomtukun/free-yoga/internal/metrics"
	"github.com/Freedomtukun/free-yoga/internal/models"
	"github.com/Freedomtukun/free-yoga/internal/timeutil"
)

// State is the play state of a Player.
type State string

const (
	StateIdle      State = "idle"
	StateShowing   State = "showing"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateExited    State = "exited"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateExited
}

// Direction selects the neighbouring entry for Skip.
type Direction string

const (
	DirectionNext     Direction = "next"
	DirectionPrevious Direction = "previous"
)

var (
	// ErrInvalidTransition is returned when an operation is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvalidDirection is returned by Skip for an unknown direction.
	ErrInvalidDirection = errors.New("invalid skip direction")
)

// TickResult is the latest score and feedback shown for the current entry.
type TickResult struct {
	Cursor   int      `json:"cursor"`
	PoseID   string   `json:"poseId"`
	Accuracy int      `json:"accuracy"`
	Feedback []string `json:"feedback"`
	Detected bool     `json:"detected"`
	Hint     string   `json:"hint,omitempty"`
}

// Snapshot is the player's state as seen by a rendering layer.
type Snapshot struct {
	State          State             `json:"state"`
	Cursor         int               `json:"cursor"`
	TotalPoses     int               `json:"totalPoses"`
	Countdown      int               `json:"countdown"`
	PoseID         string            `json:"poseId,omitempty"`
	PoseName       string            `json:"poseName,omitempty"`
	TransitionHint string            `json:"transitionHint,omitempty"`
	Tips           []string          `json:"tips,omitempty"`
	NextPose       *metrics.NextPose `json:"nextPose,omitempty"`
	Latest         *TickResult       `json:"latest,omitempty"`
	RecordCount    int               `json:"recordCount"`
}

// Player is the sequence state machine. It is not safe for concurrent use;
// Session serializes access to it.
type Player struct {
	seq   *models.Sequence
	cmp   metrics.Comparator
	clock timeutil.Clock

	state     State
	cursor    int
	countdown int
	latest    *TickResult
	missed    bool
	records   []models.PoseRecord
}

// NewPlayer validates seq and returns an idle player over a sorted copy of it.
func NewPlayer(seq *models.Sequence, cmp metrics.Comparator, clock timeutil.Clock) (*Player, error) {
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Player{
		seq:   seq.Sorted(),
		cmp:   cmp,
		clock: clock,
		state: StateIdle,
	}, nil
}

func (p *Player) State() State               { return p.state }
func (p *Player) Cursor() int                { return p.cursor }
func (p *Player) Countdown() int             { return p.countdown }
func (p *Player) Sequence() *models.Sequence { return p.seq }

// Start loads the first entry and starts the countdown.
func (p *Player) Start() error {
	if p.state != StateIdle {
		return p.transitionError("start")
	}
	p.state = StateShowing
	p.load(0)
	return nil
}

// Observe scores one detection against the current entry. A nil set, or one
// with no confident joint, means nobody was detected: the last result stays visible, flagged as not
// detected. Observe never touches the countdown.
func (p *Player) Observe(kp *models.KeypointSet) (TickResult, error) {
	if p.state != StateShowing {
		return TickResult{}, p.transitionError("observe")
	}

	if kp == nil || kp.ObservedCount(p.cmp.MinConfidence) == 0 {
		p.missed = true
		res := TickResult{
			Cursor: p.cursor,
			PoseID: p.current().Pose.ID,
			Hint:   metrics.NotDetectedMessage,
		}
		if p.latest != nil {
			res.Accuracy = p.latest.Accuracy
			res.Feedback = append([]string(nil), p.latest.Feedback...)
		} else {
			res.Feedback = []string{metrics.NotDetectedMessage}
		}
		return res, nil
	}

	analysis, err := p.cmp.AnalyzeSequencePose(kp, p.seq, p.cursor)
	if err != nil {
		return TickResult{}, err
	}
	res := TickResult{
		Cursor:   p.cursor,
		PoseID:   analysis.PoseID,
		Accuracy: analysis.Accuracy,
		Feedback: analysis.Feedback,
		Detected: true,
	}
	p.latest = &res
	p.missed = false
	return res, nil
}

// ElapseSecond decrements the countdown. When it reaches zero the current
// entry is recorded with its full duration and the player advances, or
// completes after the last entry.
func (p *Player) ElapseSecond() (*models.PoseRecord, error) {
	if p.state != StateShowing {
		return nil, p.transitionError("tick")
	}
	if p.countdown > 0 {
		p.countdown--
	}
	if p.countdown > 0 {
		return nil, nil
	}

	rec := p.record(p.current().TargetDurationSeconds)
	if p.cursor == len(p.seq.Entries)-1 {
		p.cursor = len(p.seq.Entries)
		p.countdown = 0
		p.latest = nil
		p.state = StateCompleted
		return &rec, nil
	}
	p.load(p.cursor + 1)
	return &rec, nil
}

// Pause freezes the countdown.
func (p *Player) Pause() error {
	if p.state != StateShowing {
		return p.transitionError("pause")
	}
	p.state = StatePaused
	return nil
}

// Resume continues the countdown from the paused value.
func (p *Player) Resume() error {
	if p.state != StatePaused {
		return p.transitionError("resume")
	}
	p.state = StateShowing
	return nil
}

// Skip records the entry being left with the time spent on it and moves to
// the neighbouring entry, keeping the play state. Skipping forward from the
// last entry or back from the first is a no-op and returns a nil record.
func (p *Player) Skip(dir Direction) (*models.PoseRecord, error) {
	if p.state != StateShowing && p.state != StatePaused {
		return nil, p.transitionError("skip")
	}

	target := p.cursor
	switch dir {
	case DirectionNext:
		target++
	case DirectionPrevious:
		target--
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDirection, dir)
	}
	if target < 0 || target >= len(p.seq.Entries) {
		return nil, nil
	}

	rec := p.record(p.current().TargetDurationSeconds - p.countdown)
	p.load(target)
	return &rec, nil
}

// Exit ends the session and discards the entry in progress. Exiting a
// finished player is a no-op.
func (p *Player) Exit() error {
	if p.state.Terminal() {
		return nil
	}
	p.state = StateExited
	p.latest = nil
	p.countdown = 0
	return nil
}

// Records returns a copy of the pose records emitted so far.
func (p *Player) Records() []models.PoseRecord {
	out := make([]models.PoseRecord, len(p.records))
	copy(out, p.records)
	return out
}

// Summary aggregates the records emitted so far.
func (p *Player) Summary() models.SessionSummary {
	return metrics.Summarize(p.records)
}

// Snapshot describes the current state for presentation.
func (p *Player) Snapshot() Snapshot {
	s := Snapshot{
		State:       p.state,
		Cursor:      p.cursor,
		TotalPoses:  len(p.seq.Entries),
		Countdown:   p.countdown,
		RecordCount: len(p.records),
	}
	if p.state == StateIdle || p.state.Terminal() {
		return s
	}

	entry := p.current()
	s.PoseID = entry.Pose.ID
	s.PoseName = entry.Pose.DisplayName
	s.TransitionHint = entry.TransitionHint
	s.Tips = entry.Pose.Tips
	if p.cursor+1 < len(p.seq.Entries) {
		next := p.seq.Entries[p.cursor+1]
		s.NextPose = &metrics.NextPose{Name: next.Pose.DisplayName, TransitionHint: next.TransitionHint}
	}
	if p.latest != nil {
		latest := *p.latest
		latest.Detected = !p.missed
		if p.missed {
			latest.Hint = metrics.NotDetectedMessage
		}
		s.Latest = &latest
	}
	return s
}

func (p *Player) current() models.SequenceEntry {
	return p.seq.Entries[p.cursor]
}

func (p *Player) load(index int) {
	p.cursor = index
	p.countdown = p.seq.Entries[index].TargetDurationSeconds
	p.latest = nil
	p.missed = false
}

func (p *Player) record(duration int) models.PoseRecord {
	entry := p.current()
	rec := models.PoseRecord{
		PoseID:          entry.Pose.ID,
		PoseName:        entry.Pose.DisplayName,
		DurationSeconds: duration,
		Timestamp:       p.clock.Now(),
	}
	if p.latest != nil {
		rec.Accuracy = p.latest.Accuracy
		rec.Feedback = append([]string(nil), p.latest.Feedback...)
	} else {
		rec.Feedback = []string{metrics.NotDetectedMessage}
	}
	p.records = append(p.records, rec)
	return rec
}

func (p *Player) transitionError(op string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, op, p.state)
}
