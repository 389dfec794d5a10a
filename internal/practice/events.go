package practice

import (
	"sync"
	"time"

	"github.com/Freedomtukun/free-yoga/internal/models"
	"github.com/google/uuid"
)

type EventType string

const (
	EventState    EventType = "state"
	EventTick     EventType = "tick"
	EventRecord   EventType = "record"
	EventFinished EventType = "finished"
)

// Event is what the presentation layer receives from a running session.
type Event struct {
	Type      EventType             `json:"type"`
	SessionID uuid.UUID             `json:"sessionId"`
	Time      time.Time             `json:"time"`
	Snapshot  *Snapshot             `json:"snapshot,omitempty"`
	Tick      *TickResult           `json:"tick,omitempty"`
	Record    *models.PoseRecord    `json:"record,omitempty"`
	Result    *models.SessionResult `json:"result,omitempty"`
}

// Publisher receives session events. Publish is called from the session loop
// and must not block.
type Publisher interface {
	Publish(ev Event)
}

// MultiPublisher fans an event out to several publishers in order.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ev Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(ev)
		}
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

const subscriberBuffer = 32

// Broker delivers events to in-process subscribers of a session, such as
// Server-Sent Events streams. Slow subscribers lose events rather than stall
// the session.
type Broker struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[chan Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[uuid.UUID]map[chan Event]struct{})}
}

// Subscribe returns a channel of events for sessionID and a function that
// cancels the subscription and closes the channel.
func (b *Broker) Subscribe(sessionID uuid.UUID) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan Event]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[sessionID], ch)
			if len(b.subs[sessionID]) == 0 {
				delete(b.subs, sessionID)
			}
			close(ch)
		})
	}
}

func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers reports how many subscriptions sessionID has.
func (b *Broker) Subscribers(sessionID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}
