package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/Freedomtukun/free-yoga/internal/detector"
	"github.com/Freedomtukun/free-yoga/internal/practice"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// currentPracticeKey remembers the caller's latest practice session in the
// cookie session.
const currentPracticeKey = "practice_id"

type PracticeHandler struct {
	log     *zap.Logger
	content ContentStore
	manager *practice.Manager
	broker  *practice.Broker
}

func NewPracticeHandler(log *zap.Logger, content ContentStore, manager *practice.Manager, broker *practice.Broker) *PracticeHandler {
	return &PracticeHandler{log: log, content: content, manager: manager, broker: broker}
}

type sessionView struct {
	SessionID  uuid.UUID         `json:"sessionId"`
	SequenceID string            `json:"sequenceId"`
	Snapshot   practice.Snapshot `json:"snapshot"`
	Result     any               `json:"result,omitempty"`
}

func viewOf(s *practice.Session) sessionView {
	v := sessionView{SessionID: s.ID(), SequenceID: s.SequenceID(), Snapshot: s.Snapshot()}
	if result, ok := s.Result(); ok {
		v.Result = result
	}
	return v
}

func (h *PracticeHandler) session(c *gin.Context) (*practice.Session, bool) {
	id, err := uuid.Parse(c.Param("sid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": practice.ErrSessionNotFound.Error()})
		return nil, false
	}
	return h.lookup(c, id)
}

// lookup finds a session the caller may see. A session started by a signed-in
// user is reported as missing to everyone else.
func (h *PracticeHandler) lookup(c *gin.Context, id uuid.UUID) (*practice.Session, bool) {
	s, err := h.manager.Get(id)
	if err == nil {
		if owner := s.UserID(); owner != "" && owner != currentUser(c) {
			err = fmt.Errorf("%w: %s", practice.ErrSessionNotFound, id)
		}
	}
	if err != nil {
		respondError(c, h.log, err, "Failed to get practice session")
		return nil, false
	}
	return s, true
}

// Start begins a live practice session over a sequence.
func (h *PracticeHandler) Start(c *gin.Context) {
	user := currentUser(c)
	seq, err := h.content.GetSequence(c.Request.Context(), c.Param("id"), user)
	if err != nil {
		respondError(c, h.log, err, "Failed to get sequence")
		return
	}
	s, err := h.manager.Create(seq, user)
	if err != nil {
		respondError(c, h.log, err, "Failed to start practice session")
		return
	}

	session := sessions.Default(c)
	session.Set(currentPracticeKey, s.ID().String())
	if err := session.Save(); err != nil {
		h.log.Warn("Failed to remember practice session", zap.Error(err))
	}
	c.JSON(http.StatusCreated, viewOf(s))
}

// Current returns the practice session last started from this browser.
func (h *PracticeHandler) Current(c *gin.Context) {
	raw, _ := sessions.Default(c).Get(currentPracticeKey).(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no current practice session"})
		return
	}
	if s, ok := h.lookup(c, id); ok {
		c.JSON(http.StatusOK, viewOf(s))
	}
}

func (h *PracticeHandler) Get(c *gin.Context) {
	if s, ok := h.session(c); ok {
		c.JSON(http.StatusOK, viewOf(s))
	}
}

// Keypoints hands one detector frame to the session. A frame that arrives
// while the previous one is still being scored is dropped.
func (h *PracticeHandler) Keypoints(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data"})
		return
	}
	kp, err := detector.Decode(body)
	if err != nil {
		respondError(c, h.log, err, "Failed to decode keypoints")
		return
	}
	accepted, err := s.Observe(kp)
	if err != nil {
		respondError(c, h.log, err, "Failed to observe keypoints")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": accepted})
}

func (h *PracticeHandler) Pause(c *gin.Context) {
	h.command(c, (*practice.Session).Pause)
}

func (h *PracticeHandler) Resume(c *gin.Context) {
	h.command(c, (*practice.Session).Resume)
}

func (h *PracticeHandler) command(c *gin.Context, fn func(*practice.Session) error) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := fn(s); err != nil {
		respondError(c, h.log, err, "Failed to update practice session")
		return
	}
	c.JSON(http.StatusOK, viewOf(s))
}

func (h *PracticeHandler) Skip(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	dir := practice.Direction(c.DefaultQuery("direction", string(practice.DirectionNext)))
	rec, err := s.Skip(dir)
	if err != nil {
		respondError(c, h.log, err, "Failed to skip pose")
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec, "session": viewOf(s)})
}

func (h *PracticeHandler) Exit(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	result, err := s.Exit()
	if err != nil {
		respondError(c, h.log, err, "Failed to exit practice session")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Summary returns the result of a finished session.
func (h *PracticeHandler) Summary(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	result, done := s.Result()
	if !done {
		c.JSON(http.StatusConflict, gin.H{"error": "practice session is still running", "snapshot": s.Snapshot()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Events streams session events as Server-Sent Events until the session
// finishes or the client goes away.
func (h *PracticeHandler) Events(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	events, cancel := h.broker.Subscribe(s.ID())
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	if result, done := s.Result(); done {
		c.SSEvent(string(practice.EventFinished), practice.Event{Type: practice.EventFinished, SessionID: s.ID(), Result: result})
		return
	}
	snap := s.Snapshot()
	c.SSEvent(string(practice.EventState), practice.Event{Type: practice.EventState, SessionID: s.ID(), Snapshot: &snap})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-events:
			if !open {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return ev.Type != practice.EventFinished
		case <-s.Done():
			h.flushFinished(c, s, events)
			return false
		case <-ctx.Done():
			return false
		}
	})
}

// flushFinished writes whatever the subscription still buffers, then the
// finished event if a slow reader lost it.
func (h *PracticeHandler) flushFinished(c *gin.Context, s *practice.Session, events <-chan practice.Event) {
	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			c.SSEvent(string(ev.Type), ev)
			if ev.Type == practice.EventFinished {
				return
			}
		default:
			result, _ := s.Result()
			c.SSEvent(string(practice.EventFinished), practice.Event{Type: practice.EventFinished, SessionID: s.ID(), Result: result})
			return
		}
	}
}
