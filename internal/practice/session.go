package practice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Freedomtukun/free-yoga/internal/models"
	"github.com/Freedomtukun/free-yoga/internal/timeutil"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound = errors.New("practice session not found")
	ErrSessionClosed   = errors.New("practice session closed")
	// ErrSessionExpired is the cancellation cause for sessions reaped for inactivity.
	ErrSessionExpired = errors.New("practice session expired")
)

// Recorder persists finished sessions.
type Recorder interface {
	SaveSession(ctx context.Context, result *models.SessionResult) error
}

type commandKind int

const (
	cmdPause commandKind = iota
	cmdResume
	cmdSkip
	cmdExit
)

type command struct {
	kind  commandKind
	dir   Direction
	reply chan commandReply
}

type commandReply struct {
	record *models.PoseRecord
	err    error
}

// Session is one live practice run. A single goroutine owns the Player;
// detections, commands and clock seconds all pass through it.
type Session struct {
	id         uuid.UUID
	userID     string
	sequenceID string

	player         *Player
	clock          timeutil.Clock
	log            *zap.Logger
	publisher      Publisher
	recorder       Recorder
	persistTimeout time.Duration

	detections chan *models.KeypointSet
	commands   chan command
	done       chan struct{}
	cancel     context.CancelCauseFunc

	mu         sync.RWMutex
	snapshot   Snapshot
	result     *models.SessionResult
	startedAt  time.Time
	lastActive time.Time
}

func (s *Session) ID() uuid.UUID      { return s.id }
func (s *Session) UserID() string     { return s.userID }
func (s *Session) SequenceID() string { return s.sequenceID }

// Done is closed once the session has finished and its result is available.
func (s *Session) Done() <-chan struct{} { return s.done }

// start begins playback. The ticker exists before start returns so that a
// mock clock advanced right afterwards is observed by the loop.
func (s *Session) start(ctx context.Context) error {
	if err := s.player.Start(); err != nil {
		return err
	}
	now := s.clock.Now()
	s.mu.Lock()
	s.startedAt = now
	s.lastActive = now
	s.snapshot = s.player.Snapshot()
	s.mu.Unlock()

	ctx, cancel := context.WithCancelCause(ctx)
	s.cancel = cancel
	ticker := s.clock.NewTicker(time.Second)
	s.publish(Event{Type: EventState, Snapshot: s.snapshotPtr()})
	go s.run(ctx, ticker)
	return nil
}

func (s *Session) run(ctx context.Context, ticker timeutil.Ticker) {
	defer close(s.done)
	defer s.cancel(nil)

	for {
		select {
		case <-ctx.Done():
			outcome := models.OutcomeExited
			if errors.Is(context.Cause(ctx), ErrSessionExpired) {
				outcome = models.OutcomeExpired
			}
			s.finish(ticker, outcome)
			return

		case <-ticker.C():
			if s.onSecond(ticker) {
				return
			}

		case kp := <-s.detections:
			s.onDetection(kp)

		case cmd := <-s.commands:
			reply, finished := s.handle(cmd, ticker)
			cmd.reply <- reply
			if finished {
				return
			}
		}
	}
}

func (s *Session) onSecond(ticker timeutil.Ticker) bool {
	rec, err := s.player.ElapseSecond()
	if err != nil {
		// A tick buffered just before a pause.
		return false
	}
	if rec != nil {
		s.publish(Event{Type: EventRecord, Record: rec})
	}
	if s.player.State() == StateCompleted {
		s.finish(ticker, models.OutcomeCompleted)
		return true
	}
	s.storeSnapshot()
	s.publish(Event{Type: EventState, Snapshot: s.snapshotPtr()})
	return false
}

func (s *Session) onDetection(kp *models.KeypointSet) {
	res, err := s.player.Observe(kp)
	if err != nil {
		s.log.Debug("Dropping detection", zap.String("session", s.id.String()), zap.Error(err))
		return
	}
	s.storeSnapshot()
	s.publish(Event{Type: EventTick, Tick: &res})
}

func (s *Session) handle(cmd command, ticker timeutil.Ticker) (commandReply, bool) {
	s.touch()

	var reply commandReply
	switch cmd.kind {
	case cmdPause:
		if reply.err = s.player.Pause(); reply.err == nil {
			ticker.Stop()
			drain(ticker)
		}
	case cmdResume:
		if reply.err = s.player.Resume(); reply.err == nil {
			ticker.Reset(time.Second)
		}
	case cmdSkip:
		reply.record, reply.err = s.player.Skip(cmd.dir)
		if reply.record != nil {
			if s.player.State() == StateShowing {
				ticker.Reset(time.Second)
			}
			s.publish(Event{Type: EventRecord, Record: reply.record})
		}
	case cmdExit:
		s.finish(ticker, models.OutcomeExited)
		return reply, true
	}

	if reply.err == nil {
		s.storeSnapshot()
		s.publish(Event{Type: EventState, Snapshot: s.snapshotPtr()})
	}
	return reply, false
}

func (s *Session) finish(ticker timeutil.Ticker, outcome models.Outcome) {
	ticker.Stop()
	_ = s.player.Exit()

	s.mu.RLock()
	startedAt := s.startedAt
	s.mu.RUnlock()

	result := &models.SessionResult{
		SessionID:  s.id.String(),
		UserID:     s.userID,
		SequenceID: s.sequenceID,
		Outcome:    outcome,
		Records:    s.player.Records(),
		Summary:    s.player.Summary(),
		StartedAt:  startedAt,
		EndedAt:    s.clock.Now(),
	}

	if s.recorder != nil && s.userID != "" && len(result.Records) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
		err := s.recorder.SaveSession(ctx, result)
		cancel()
		if err != nil {
			s.log.Error("Failed to persist practice session", zap.String("session", s.id.String()), zap.Error(err))
		} else {
			result.Persisted = true
		}
	}

	s.mu.Lock()
	s.result = result
	s.snapshot = s.player.Snapshot()
	s.mu.Unlock()

	s.publish(Event{Type: EventFinished, Snapshot: s.snapshotPtr(), Result: result})
	s.log.Info("Practice session finished",
		zap.String("session", s.id.String()),
		zap.String("outcome", string(outcome)),
		zap.Int("records", len(result.Records)),
		zap.Float64("average_accuracy", result.Summary.AverageAccuracy),
		zap.Bool("persisted", result.Persisted),
	)
}

// Observe hands a detection to the session. It returns false without error
// when the detection was dropped: another one is still pending, or the
// player is not showing a pose.
func (s *Session) Observe(kp *models.KeypointSet) (bool, error) {
	select {
	case <-s.done:
		return false, ErrSessionClosed
	default:
	}
	s.touch()

	if s.Snapshot().State != StateShowing {
		return false, nil
	}
	select {
	case s.detections <- kp:
		return true, nil
	default:
		return false, nil
	}
}

func (s *Session) Pause() error {
	return s.do(command{kind: cmdPause}).err
}

func (s *Session) Resume() error {
	return s.do(command{kind: cmdResume}).err
}

// Skip moves to the neighbouring pose. The record of the pose left behind is
// nil when skipping past either end of the sequence.
func (s *Session) Skip(dir Direction) (*models.PoseRecord, error) {
	r := s.do(command{kind: cmdSkip, dir: dir})
	return r.record, r.err
}

// Exit ends the session and returns its result. Exiting a finished session
// returns the result it finished with.
func (s *Session) Exit() (*models.SessionResult, error) {
	if r := s.do(command{kind: cmdExit}); r.err != nil && !errors.Is(r.err, ErrSessionClosed) {
		return nil, r.err
	}
	<-s.done
	result, _ := s.Result()
	return result, nil
}

// Snapshot returns the most recently committed player state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Result returns the final result once the session has finished.
func (s *Session) Result() (*models.SessionResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.result != nil
}

// LastActive is the last time a detection or command reached the session.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

func (s *Session) do(cmd command) commandReply {
	cmd.reply = make(chan commandReply, 1)
	select {
	case s.commands <- cmd:
	case <-s.done:
		return commandReply{err: ErrSessionClosed}
	}
	return <-cmd.reply
}

func (s *Session) touch() {
	now := s.clock.Now()
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

func (s *Session) storeSnapshot() {
	snap := s.player.Snapshot()
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}

func (s *Session) snapshotPtr() *Snapshot {
	snap := s.Snapshot()
	return &snap
}

func (s *Session) publish(ev Event) {
	ev.SessionID = s.id
	ev.Time = s.clock.Now()
	s.publisher.Publish(ev)
}

func drain(t timeutil.Ticker) {
	select {
	case <-t.C():
	default:
	}
}
