package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/Freedomtukun/free-yoga/internal/models"
	"github.com/Freedomtukun/free-yoga/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAttempts(ts *testServer) {
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	for i, acc := range []int{55, 70, 85} {
		ts.records.attempts = append(ts.records.attempts, models.NewPoseAttempt("alice", "morning", models.PoseRecord{
			PoseID: "tree", PoseName: "Vrksasana", Accuracy: acc, DurationSeconds: 45,
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
		}))
	}
	ts.records.attempts = append(ts.records.attempts, models.NewPoseAttempt("bob", "", models.PoseRecord{
		PoseID: "mountain", PoseName: "Tadasana", Accuracy: 40, Timestamp: base,
	}))
}

func TestHistoryAttempts(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	seedAttempts(ts)

	type response struct {
		Attempts []struct {
			SequenceID string
			Record     models.PoseRecord
		}
	}
	w := ts.do(t, request{method: http.MethodGet, path: "/api/history?limit=2", user: "alice"})
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[response](t, w)
	require.Len(t, got.Attempts, 2)
	assert.Equal(t, "morning", got.Attempts[0].SequenceID)
	assert.Equal(t, 55, got.Attempts[0].Record.Accuracy)

	w = ts.do(t, request{method: http.MethodGet, path: "/api/history/poses", user: "alice"})
	require.Equal(t, http.StatusOK, w.Code)
	poses := decode[struct{ Poses []repository.PracticedPose }](t, w).Poses
	require.Len(t, poses, 1)
	assert.Equal(t, 3, poses[0].Attempts)

	ts.records.fail = errStore
	w = ts.do(t, request{method: http.MethodGet, path: "/api/history", user: "alice"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), errStore.Error())
}

func TestHistoryChart(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	seedAttempts(ts)

	w := ts.do(t, request{method: http.MethodGet, path: "/api/history/chart", user: "alice"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Accuracy Over Time")
	assert.Contains(t, w.Body.String(), "Vrksasana")

	w = ts.do(t, request{method: http.MethodGet, path: "/api/history/chart", user: "carol"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, request{method: http.MethodGet, path: "/api/history/chart?pose=mountain", user: "bob"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mountain accuracy")
}

func TestLimitFromQuery(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	for i := 0; i < 3; i++ {
		seedAttempts(ts)
	}
	cases := map[string]int{"": 9, "abc": 9, "-1": 9, "4": 4}
	for query, want := range cases {
		w := ts.do(t, request{method: http.MethodGet, path: "/api/history?limit=" + query, user: "alice"})
		require.Equal(t, http.StatusOK, w.Code)
		got := decode[struct{ Attempts []any }](t, w)
		assert.Len(t, got.Attempts, want, query)
	}
}
