// Package handlers implements the JSON API on top of the practice core.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Freedomtukun/free-yoga/internal/detector"
	"github.com/Freedomtukun/free-yoga/internal/metrics"
	"github.com/Freedomtukun/free-yoga/internal/models"
	"github.com/Freedomtukun/free-yoga/internal/practice"
	"github.com/Freedomtukun/free-yoga/internal/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserKey is the gin context key holding the caller's user id. Anonymous
// requests leave it unset.
const UserKey = "userID"

// ContentStore looks up reference poses and sequences.
type ContentStore interface {
	GetPose(ctx context.Context, id string) (*models.ReferencePose, error)
	ListPoses(ctx context.Context, f repository.Filter) ([]models.ReferencePose, error)
	GetSequence(ctx context.Context, id, userID string) (*models.Sequence, error)
	ListSequences(ctx context.Context, f repository.Filter, userID string) ([]models.Sequence, error)
}

// RecordStore persists and reads back practice history.
type RecordStore interface {
	SaveAttempt(ctx context.Context, userID, sequenceID string, rec models.PoseRecord) error
	SaveSession(ctx context.Context, result *models.SessionResult) error
	ListAttempts(ctx context.Context, userID string, limit int) ([]models.PoseAttempt, error)
	ListResults(ctx context.Context, userID string, limit int) ([]models.PracticeResult, error)
	AccuracyTimeline(ctx context.Context, userID, poseID string) ([]repository.TimelineDataPoint, error)
	GetPracticedPoses(ctx context.Context, userID string) ([]repository.PracticedPose, error)
}

func currentUser(c *gin.Context) string {
	return c.GetString(UserKey)
}

func filterFromQuery(c *gin.Context) repository.Filter {
	return repository.Filter{
		Difficulty: c.Query("difficulty"),
		Category:   c.Query("category"),
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, practice.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, metrics.ErrInvalidPoseIndex),
		errors.Is(err, detector.ErrInvalidPayload),
		errors.Is(err, practice.ErrInvalidDirection),
		errors.Is(err, models.ErrInvalidSequence),
		errors.Is(err, models.ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, practice.ErrInvalidTransition),
		errors.Is(err, practice.ErrSessionClosed):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError maps err to a status code. Server errors are logged with msg
// and hidden from the client.
func respondError(c *gin.Context, log *zap.Logger, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error(msg, zap.Error(err), zap.String("path", c.Request.URL.Path))
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
