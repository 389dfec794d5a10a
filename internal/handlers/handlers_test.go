package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Freedomtukun/free-yoga/internal/metrics"
	"github.com/Freedomtukun/free-yoga/internal/models"
	"github.com/Freedomtukun/free-yoga/internal/practice"
	"github.com/Freedomtukun/free-yoga/internal/repository"
	"github.com/Freedomtukun/free-yoga/internal/timeutil"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func referenceSet() models.KeypointSet {
	return models.KeypointSet{
		models.LeftShoulder:  {X: 0.40, Y: 0.30, Confidence: 1},
		models.RightShoulder: {X: 0.60, Y: 0.30, Confidence: 1},
		models.LeftHip:       {X: 0.45, Y: 0.60, Confidence: 1},
		models.RightHip:      {X: 0.55, Y: 0.60, Confidence: 1},
		models.LeftKnee:      {X: 0.45, Y: 0.78, Confidence: 1},
		models.RightKnee:     {X: 0.55, Y: 0.78, Confidence: 1},
	}
}

func testPose(id, name string) models.ReferencePose {
	return models.ReferencePose{
		ID:          id,
		DisplayName: name,
		Category:    "standing",
		Difficulty:  models.Beginner,
		Keypoints:   referenceSet(),
		Tips:        []string{"Breathe."},
	}
}

type fakeContent struct {
	poses     map[string]models.ReferencePose
	sequences map[string]models.Sequence
}

func newFakeContent() *fakeContent {
	mountain, tree := testPose("mountain", "Tadasana"), testPose("tree", "Vrksasana")
	return &fakeContent{
		poses: map[string]models.ReferencePose{"mountain": mountain, "tree": tree},
		sequences: map[string]models.Sequence{
			"morning": {
				ID: "morning", Name: "Morning Flow", Public: true,
				Entries: []models.SequenceEntry{
					{Pose: mountain, TargetDurationSeconds: 30, Order: 0},
					{Pose: tree, TargetDurationSeconds: 45, Order: 1, TransitionHint: "Shift your weight."},
				},
			},
			"secret": {
				ID: "secret", Name: "Secret Flow", CreatedBy: "alice",
				Entries: []models.SequenceEntry{{Pose: tree, TargetDurationSeconds: 10}},
			},
		},
	}
}

func (f *fakeContent) GetPose(_ context.Context, id string) (*models.ReferencePose, error) {
	p, ok := f.poses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (f *fakeContent) ListPoses(_ context.Context, filter repository.Filter) ([]models.ReferencePose, error) {
	var out []models.ReferencePose
	for _, p := range f.poses {
		if filter.Category == "" || filter.Category == p.Category {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeContent) GetSequence(_ context.Context, id, userID string) (*models.Sequence, error) {
	s, ok := f.sequences[id]
	if !ok || (!s.Public && s.CreatedBy != userID) {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (f *fakeContent) ListSequences(_ context.Context, _ repository.Filter, userID string) ([]models.Sequence, error) {
	var out []models.Sequence
	for _, s := range f.sequences {
		if s.Public || s.CreatedBy == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeRecords struct {
	mu       sync.Mutex
	attempts []models.PoseAttempt
	sessions []*models.SessionResult
	fail     error
}

func (f *fakeRecords) SaveAttempt(_ context.Context, userID, sequenceID string, rec models.PoseRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.attempts = append(f.attempts, models.NewPoseAttempt(userID, sequenceID, rec))
	return nil
}

func (f *fakeRecords) SaveSession(_ context.Context, result *models.SessionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sessions = append(f.sessions, result)
	return nil
}

func (f *fakeRecords) ListAttempts(_ context.Context, userID string, limit int) ([]models.PoseAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PoseAttempt
	for _, a := range f.attempts {
		if a.UserID == userID && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, f.fail
}

func (f *fakeRecords) ListResults(context.Context, string, int) ([]models.PracticeResult, error) {
	return nil, f.fail
}

func (f *fakeRecords) AccuracyTimeline(_ context.Context, userID, poseID string) ([]repository.TimelineDataPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.TimelineDataPoint
	for _, a := range f.attempts {
		if a.UserID == userID && a.PoseID == poseID {
			out = append(out, repository.TimelineDataPoint{Date: a.RecordedAt, Value: float64(a.Accuracy)})
		}
	}
	return out, f.fail
}

func (f *fakeRecords) GetPracticedPoses(_ context.Context, userID string) ([]repository.PracticedPose, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]*repository.PracticedPose{}
	var out []repository.PracticedPose
	for _, a := range f.attempts {
		if a.UserID != userID {
			continue
		}
		if p, ok := counts[a.PoseID]; ok {
			p.Attempts++
			continue
		}
		counts[a.PoseID] = &repository.PracticedPose{PoseID: a.PoseID, PoseName: a.PoseName, Attempts: 1}
	}
	for _, p := range counts {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Attempts > out[j].Attempts })
	return out, f.fail
}

type testServer struct {
	engine  *gin.Engine
	content *fakeContent
	records *fakeRecords
	clock   *timeutil.MockClock
	manager *practice.Manager
	broker  *practice.Broker
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		content: newFakeContent(),
		records: &fakeRecords{},
		clock:   timeutil.NewMockClock(time.Date(2026, 5, 1, 7, 0, 0, 0, time.UTC)),
		broker:  practice.NewBroker(),
	}
	ts.manager = practice.NewManager(zap.NewNop(), ts.clock, ts.broker, ts.records, practice.ManagerConfig{})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = ts.manager.Shutdown(ctx)
	})

	log := zap.NewNop()
	content := NewContentHandler(log, ts.content, ts.records, metrics.DefaultComparator)
	play := NewPracticeHandler(log, ts.content, ts.manager, ts.broker)
	history := NewHistoryHandler(log, ts.records)

	r := gin.New()
	r.Use(sessions.Sessions("test", cookie.NewStore([]byte("test-secret"))))
	r.Use(func(c *gin.Context) {
		if user := c.GetHeader("X-User-ID"); user != "" {
			c.Set(UserKey, user)
		}
	})

	r.GET("/api/poses", content.ListPoses)
	r.GET("/api/poses/:id", content.GetPose)
	r.POST("/api/poses/:id/analyze", content.AnalyzePose)
	r.GET("/api/sequences", content.ListSequences)
	r.GET("/api/sequences/:id", content.GetSequence)
	r.POST("/api/sequences/:id/analyze", content.AnalyzeSequencePose)
	r.POST("/api/sequences/:id/complete", content.CompleteSequence)
	r.POST("/api/sequences/:id/practice", play.Start)
	r.GET("/api/practice/current", play.Current)
	r.GET("/api/practice/:sid", play.Get)
	r.POST("/api/practice/:sid/keypoints", play.Keypoints)
	r.POST("/api/practice/:sid/pause", play.Pause)
	r.POST("/api/practice/:sid/resume", play.Resume)
	r.POST("/api/practice/:sid/skip", play.Skip)
	r.POST("/api/practice/:sid/exit", play.Exit)
	r.GET("/api/practice/:sid/summary", play.Summary)
	r.GET("/api/practice/:sid/events", play.Events)
	r.GET("/api/history", history.Attempts)
	r.GET("/api/history/results", history.Results)
	r.GET("/api/history/poses", history.Poses)
	r.GET("/api/history/chart", history.Chart)

	ts.engine = r
	return ts
}

type request struct {
	method, path, user string
	body               any
	cookies            []*http.Cookie
}

func (ts *testServer) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	switch b := req.body.(type) {
	case nil:
	case string:
		body.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&body).Encode(b))
	}
	r := httptest.NewRequest(req.method, req.path, &body)
	r.Header.Set("Content-Type", "application/json")
	if req.user != "" {
		r.Header.Set("X-User-ID", req.user)
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

var errStore = errors.New("store unavailable")
