package practice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Freedomtukun/free-yoga/internal/metrics"
	"github.com/Freedomtukun/free-yoga/internal/models"
	"github.com/Freedomtukun/free-yoga/internal/timeutil"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ManagerConfig struct {
	MinConfidence  float64
	IdleTimeout    time.Duration
	Retention      time.Duration
	PersistTimeout time.Duration
}

// Manager owns every live practice session of this process.
type Manager struct {
	log       *zap.Logger
	clock     timeutil.Clock
	publisher Publisher
	recorder  Recorder
	cfg       ManagerConfig
	cmp       metrics.Comparator

	ctx  context.Context
	stop context.CancelFunc

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewManager creates a Manager. publisher and recorder may be nil; without a
// recorder sessions only return their summaries.
func NewManager(log *zap.Logger, clock timeutil.Clock, publisher Publisher, recorder Recorder, cfg ManagerConfig) *Manager {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = models.DefaultMinConfidence
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 5 * time.Second
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Manager{
		log:       log.With(zap.String("component", "practice")),
		clock:     clock,
		publisher: publisher,
		recorder:  recorder,
		cfg:       cfg,
		cmp:       metrics.Comparator{MinConfidence: cfg.MinConfidence},
		ctx:       ctx,
		stop:      stop,
		sessions:  make(map[uuid.UUID]*Session),
	}
}

// Create starts a practice session over seq for userID, which may be empty.
func (m *Manager) Create(seq *models.Sequence, userID string) (*Session, error) {
	if err := m.ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: manager is shut down", ErrSessionClosed)
	}
	player, err := NewPlayer(seq, m.cmp, m.clock)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:             uuid.New(),
		userID:         userID,
		sequenceID:     seq.ID,
		player:         player,
		clock:          m.clock,
		log:            m.log,
		publisher:      m.publisher,
		recorder:       m.recorder,
		persistTimeout: m.cfg.PersistTimeout,
		detections:     make(chan *models.KeypointSet, 1),
		commands:       make(chan command),
		done:           make(chan struct{}),
	}
	if err := s.start(m.ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.log.Info("Practice session started",
		zap.String("session", s.id.String()),
		zap.String("sequence", seq.ID),
		zap.String("user", userID),
	)
	return s, nil
}

// Get returns a session that is live or still retained after finishing.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Observe routes a detection to the session with the given id.
func (m *Manager) Observe(id uuid.UUID, kp *models.KeypointSet) (bool, error) {
	s, err := m.Get(id)
	if err != nil {
		return false, err
	}
	return s.Observe(kp)
}

// Active counts sessions that have not finished.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sessions {
		select {
		case <-s.done:
		default:
			n++
		}
	}
	return n
}

// Sweep expires sessions idle for longer than IdleTimeout and forgets
// finished sessions older than Retention.
func (m *Manager) Sweep() (expired, removed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		select {
		case <-s.done:
			result, _ := s.Result()
			if m.clock.Since(result.EndedAt) >= m.cfg.Retention {
				delete(m.sessions, id)
				removed++
			}
		default:
			if m.cfg.IdleTimeout > 0 && m.clock.Since(s.LastActive()) >= m.cfg.IdleTimeout {
				s.cancel(ErrSessionExpired)
				expired++
			}
		}
	}
	return expired, removed
}

// Shutdown ends every live session and waits for them to finish, or for ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stop()

	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		select {
		case <-s.done:
		case <-ctx.Done():
			return fmt.Errorf("waiting for practice sessions: %w", ctx.Err())
		}
	}
	m.log.Info("Practice sessions stopped", zap.Int("count", len(sessions)))
	return nil
}
