package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Freedomtukun/free-yoga/internal/config"
	"github.com/Freedomtukun/free-yoga/internal/database"
	"github.com/Freedomtukun/free-yoga/internal/handlers"
	"github.com/Freedomtukun/free-yoga/internal/metrics"
	"github.com/Freedomtukun/free-yoga/internal/models"
	"github.com/Freedomtukun/free-yoga/internal/practice"
	"github.com/Freedomtukun/free-yoga/internal/repository"
	"github.com/Freedomtukun/free-yoga/internal/timeutil"
	"github.com/Freedomtukun/free-yoga/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, rateLimit uint) *gin.Engine {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "yoga.db")), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	content := repository.NewContentRepository(db)
	records := repository.NewRecordRepository(db)
	private := false
	require.NoError(t, content.SyncCatalog(context.Background(), &models.Catalog{
		Poses: []models.ReferencePose{{
			ID: "mountain", DisplayName: "Tadasana", Difficulty: models.Beginner,
			Keypoints: models.KeypointSet{
				models.LeftShoulder:  {X: 0.4, Y: 0.3, Confidence: 1},
				models.RightShoulder: {X: 0.6, Y: 0.3, Confidence: 1},
			},
		}},
		Sequences: []models.CatalogSequence{
			{ID: "morning", Name: "Morning", Steps: []models.CatalogStep{{PoseID: "mountain", Duration: 5}}},
			{ID: "mine", Name: "Mine", Public: &private, CreatedBy: "alice",
				Steps: []models.CatalogStep{{PoseID: "mountain", Duration: 5}}},
		},
	}))

	broker := practice.NewBroker()
	manager := practice.NewManager(zap.NewNop(), timeutil.NewMockClock(time.Now()), broker, records, practice.ManagerConfig{})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return Setup(zap.NewNop(), config.ServerConfig{
		SessionSecret: "router-test-secret",
		UserHeader:    "X-User-ID",
		RateLimit:     rateLimit,
	}, Deps{
		Content:    content,
		Records:    records,
		Manager:    manager,
		Broker:     broker,
		Comparator: metrics.DefaultComparator,
	})
}

func serve(r *gin.Engine, method, path, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSetup(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, 10)

	t.Run("security headers", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/healthz", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	})

	t.Run("identity header selects visible sequences", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/api/sequences/mine", "").Code)
		assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/api/sequences/mine", "bob").Code)
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/sequences/mine", "alice").Code)
	})

	t.Run("history requires a user", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/history", "").Code)
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/history", "alice").Code)
	})

	t.Run("unknown routes answer JSON", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/api/nothing", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"not found"}`, w.Body.String())
	})
}

func TestPracticeStartIsRateLimited(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, 2)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/api/sequences/morning/practice", "").Code)
	}
	w := serve(r, http.MethodPost, "/api/sequences/morning/practice", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/sequences/morning", "").Code)
}

func TestIdentity(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":             "",
		"  alice  ":    "alice",
		"alice smith":  "",
		strings.Repeat("a", utils.MaxUserIDLength+1): "",
	}
	for header, want := range cases {
		r := gin.New()
		r.Use(Identity("X-User-ID"))
		var got string
		r.GET("/", func(c *gin.Context) { got = c.GetString(handlers.UserKey) })

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User-ID", header)
		r.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, want, got)
	}
}
