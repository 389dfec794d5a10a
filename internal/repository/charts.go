package repository

import (
	"context"
	"time"

	"github.com/Freedomtukun/free-yoga/internal/models"
)

type TimelineDataPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// AccuracyTimeline returns the accuracy of every attempt a user made at a pose,
// oldest first.
func (r *RecordRepository) AccuracyTimeline(ctx context.Context, userID, poseID string) ([]TimelineDataPoint, error) {
	var data []TimelineDataPoint
	err := r.db.WithContext(ctx).
		Model(&models.PoseAttempt{}).
		Select("recorded_at AS date, accuracy AS value").
		Where("user_id = ? AND pose_id = ?", userID, poseID).
		Order("recorded_at").
		Scan(&data).Error
	return data, err
}

// PracticedPose is a pose a user has attempted, with its attempt count.
type PracticedPose struct {
	PoseID   string `json:"poseId"`
	PoseName string `json:"poseName"`
	Attempts int    `json:"attempts"`
}

// GetPracticedPoses lists the poses a user has attempted, most practiced first.
func (r *RecordRepository) GetPracticedPoses(ctx context.Context, userID string) ([]PracticedPose, error) {
	var poses []PracticedPose
	err := r.db.WithContext(ctx).
		Model(&models.PoseAttempt{}).
		Select("pose_id, MAX(pose_name) AS pose_name, COUNT(*) AS attempts").
		Where("user_id = ?", userID).
		Group("pose_id").
		Order("attempts DESC, pose_id").
		Scan(&poses).Error
	return poses, err
}
