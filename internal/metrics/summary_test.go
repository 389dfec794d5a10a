package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/Freedomtukun/free-yoga/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id, name string, accuracy int) models.PoseRecord {
	return models.PoseRecord{
		PoseID:          id,
		PoseName:        name,
		Accuracy:        accuracy,
		DurationSeconds: 30,
		Feedback:        []string{"hold"},
		Timestamp:       time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		got := Summarize(nil)
		want := models.SessionSummary{
			Completed:          false,
			AverageAccuracy:    0,
			CompletedPoseCount: 0,
			Feedback:           []string{NoPosesMessage},
		}
		assert.Empty(t, cmp.Diff(want, got))
		assert.Nil(t, got.WeakestPose)
	})

	t.Run("targets the weakest pose", func(t *testing.T) {
		t.Parallel()
		records := []models.PoseRecord{
			record("mountain", "Mountain Pose", 90),
			record("tree", "Tree Pose", 95),
			record("warrior-2", "Warrior II", 60),
		}
		got := Summarize(records)

		assert.True(t, got.Completed)
		assert.Equal(t, 3, got.CompletedPoseCount)
		assert.InDelta(t, 81.6666666, got.AverageAccuracy, 1e-6)
		require.NotNil(t, got.WeakestPose)
		assert.Equal(t, 60, got.WeakestPose.Accuracy)
		assert.Equal(t, []string{
			GoodMessage,
			fmt.Sprintf(weakestPoseTemplate, "Warrior II"),
		}, got.Feedback)
	})

	t.Run("tiers", func(t *testing.T) {
		t.Parallel()
		cases := []struct {
			accuracies []int
			want       string
		}{
			{[]int{85, 85}, ExcellentMessage},
			{[]int{100, 90}, ExcellentMessage},
			{[]int{70, 70}, GoodMessage},
			{[]int{84, 85}, GoodMessage},
			{[]int{69, 70}, PersistenceMessage},
			{[]int{0}, PersistenceMessage},
		}
		for _, tc := range cases {
			var records []models.PoseRecord
			for i, a := range tc.accuracies {
				records = append(records, record(fmt.Sprint(i), fmt.Sprint("pose ", i), a))
			}
			got := Summarize(records)
			require.NotEmpty(t, got.Feedback)
			assert.Equal(t, tc.want, got.Feedback[0], "accuracies %v", tc.accuracies)
		}
	})

	t.Run("single low record gets no targeted message", func(t *testing.T) {
		t.Parallel()
		got := Summarize([]models.PoseRecord{record("tree", "Tree Pose", 40)})
		assert.Equal(t, []string{PersistenceMessage}, got.Feedback)
		require.NotNil(t, got.WeakestPose)
		assert.Equal(t, "tree", got.WeakestPose.PoseID)
	})

	t.Run("first minimum wins ties", func(t *testing.T) {
		t.Parallel()
		got := Summarize([]models.PoseRecord{
			record("a", "A", 80),
			record("b", "B", 50),
			record("c", "C", 50),
		})
		require.NotNil(t, got.WeakestPose)
		assert.Equal(t, "b", got.WeakestPose.PoseID)
	})

	t.Run("falls back to pose id when unnamed", func(t *testing.T) {
		t.Parallel()
		got := Summarize([]models.PoseRecord{record("a", "", 90), record("b", "", 10)})
		assert.Contains(t, got.Feedback[1], `"b"`)
	})

	t.Run("idempotent and does not alias input", func(t *testing.T) {
		t.Parallel()
		records := []models.PoseRecord{
			record("mountain", "Mountain Pose", 90),
			record("warrior-2", "Warrior II", 60),
		}
		first := Summarize(records)
		second := Summarize(records)
		assert.Empty(t, cmp.Diff(first, second))

		first.WeakestPose.Feedback[0] = "changed"
		assert.Equal(t, "hold", records[1].Feedback[0])
	})
}
