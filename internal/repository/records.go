package repository

import (
	"context"
	"fmt"

	"github.com/Freedomtukun/free-yoga/internal/models"
	"gorm.io/gorm"
)

// RecordRepository stores practice results for signed-in users.
type RecordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// SaveAttempt stores a single pose analysis outside of any session.
func (r *RecordRepository) SaveAttempt(ctx context.Context, userID, sequenceID string, rec models.PoseRecord) error {
	row := models.NewPoseAttempt(userID, sequenceID, rec)
	return r.db.WithContext(ctx).Create(&row).Error
}

// SaveSession stores the summary and every pose record of a session in a
// single transaction.
func (r *RecordRepository) SaveSession(ctx context.Context, result *models.SessionResult) error {
	row := models.PracticeResult{
		ID:              result.SessionID,
		UserID:          result.UserID,
		SequenceID:      result.SequenceID,
		Outcome:         string(result.Outcome),
		AverageAccuracy: result.Summary.AverageAccuracy,
		CompletedPoses:  result.Summary.CompletedPoseCount,
		Feedback:        result.Summary.Feedback,
		StartedAt:       result.StartedAt,
		EndedAt:         result.EndedAt,
	}
	if result.Summary.WeakestPose != nil {
		row.WeakestPoseID = result.Summary.WeakestPose.PoseID
	}
	for _, rec := range result.Records {
		row.Attempts = append(row.Attempts, models.NewPoseAttempt(result.UserID, result.SequenceID, rec))
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("saving practice result %s: %w", result.SessionID, err)
	}
	return nil
}

// ListAttempts returns a user's most recent pose attempts, newest first.
func (r *RecordRepository) ListAttempts(ctx context.Context, userID string, limit int) ([]models.PoseAttempt, error) {
	var rows []models.PoseAttempt
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListResults returns a user's most recent practice sessions, newest first.
func (r *RecordRepository) ListResults(ctx context.Context, userID string, limit int) ([]models.PracticeResult, error) {
	var rows []models.PracticeResult
	err := r.db.WithContext(ctx).
		Preload("Attempts", func(db *gorm.DB) *gorm.DB { return db.Order("recorded_at") }).
		Where("user_id = ?", userID).
		Order("ended_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *RecordRepository) GetResult(ctx context.Context, id, userID string) (*models.PracticeResult, error) {
	var row models.PracticeResult
	err := r.db.WithContext(ctx).
		Preload("Attempts", func(db *gorm.DB) *gorm.DB { return db.Order("recorded_at") }).
		First(&row, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		return nil, notFound(err, "practice result %q", id)
	}
	return &row, nil
}
