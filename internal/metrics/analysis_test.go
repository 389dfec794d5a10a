package metrics

import (
	"testing"

	"github.com/Freedomtukun/free-yoga/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSequence() *models.Sequence {
	pose := func(id, name string) models.ReferencePose {
		return models.ReferencePose{ID: id, DisplayName: name, Keypoints: standingPose(), Tips: []string{"breathe"}}
	}
	return &models.Sequence{
		ID:   "morning",
		Name: "Morning Flow",
		Entries: []models.SequenceEntry{
			{Pose: pose("mountain", "Mountain Pose"), TargetDurationSeconds: 30, Order: 0},
			{Pose: pose("tree", "Tree Pose"), TargetDurationSeconds: 45, Order: 1, TransitionHint: "shift weight to the left foot"},
		},
	}
}

func TestAnalyzeSequencePose(t *testing.T) {
	t.Parallel()

	t.Run("first entry points at the next", func(t *testing.T) {
		t.Parallel()
		detected := standingPose()
		got, err := DefaultComparator.AnalyzeSequencePose(&detected, testSequence(), 0)
		require.NoError(t, err)

		assert.Equal(t, "mountain", got.PoseID)
		assert.Equal(t, 100, got.Accuracy)
		assert.True(t, got.Detected)
		assert.Equal(t, 2, got.TotalPoses)
		assert.Equal(t, 30, got.Duration)
		assert.False(t, got.IsLastPose)
		require.NotNil(t, got.NextPose)
		assert.Equal(t, "Tree Pose", got.NextPose.Name)
		assert.Equal(t, "shift weight to the left foot", got.NextPose.TransitionHint)
		assert.Equal(t, []string{"breathe"}, got.Tips)
	})

	t.Run("last entry has no next pose", func(t *testing.T) {
		t.Parallel()
		detected := standingPose()
		got, err := DefaultComparator.AnalyzeSequencePose(&detected, testSequence(), 1)
		require.NoError(t, err)
		assert.True(t, got.IsLastPose)
		assert.Nil(t, got.NextPose)
	})

	t.Run("out of range index", func(t *testing.T) {
		t.Parallel()
		detected := standingPose()
		for _, idx := range []int{-1, 2, 10} {
			_, err := DefaultComparator.AnalyzeSequencePose(&detected, testSequence(), idx)
			assert.ErrorIs(t, err, ErrInvalidPoseIndex)
		}
		_, err := DefaultComparator.AnalyzeSequencePose(&detected, nil, 0)
		assert.ErrorIs(t, err, ErrInvalidPoseIndex)
	})

	t.Run("no detection is a zero score, not an error", func(t *testing.T) {
		t.Parallel()
		got, err := DefaultComparator.AnalyzeSequencePose(nil, testSequence(), 0)
		require.NoError(t, err)
		assert.False(t, got.Detected)
		assert.Equal(t, 0, got.Accuracy)
		assert.Equal(t, []string{NotDetectedMessage}, got.Feedback)
	})

	t.Run("a set without confident joints counts as no detection", func(t *testing.T) {
		t.Parallel()
		faint := models.KeypointSet{
			models.LeftShoulder:  {X: 0.4, Y: 0.3, Confidence: 0.1},
			models.RightShoulder: {X: 0.6, Y: 0.3, Confidence: 0.2},
		}
		got, err := DefaultComparator.AnalyzeSequencePose(&faint, testSequence(), 0)
		require.NoError(t, err)
		assert.False(t, got.Detected)
		assert.Equal(t, []string{NotDetectedMessage}, got.Feedback)

		got, err = DefaultComparator.AnalyzeSequencePose(&models.KeypointSet{}, testSequence(), 0)
		require.NoError(t, err)
		assert.False(t, got.Detected)
	})
}
