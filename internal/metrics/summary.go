package metrics

import (
	"fmt"

	"github.com/Freedomtukun/free-yoga/internal/models"
	"gonum.org/v1/gonum/stat"
)

const (
	NoPosesMessage      = "No poses completed yet."
	ExcellentMessage    = "Excellent work! You have mastered most of the poses in this sequence."
	GoodMessage         = "Nice effort! Keep practicing to improve your accuracy."
	PersistenceMessage  = "Keep practicing; you will see improvement over time."
	excellentTier       = 85
	goodTier            = 70
	weakestPoseTemplate = "You may want to practice %q more; it was your most challenging pose."
)

// Summarize builds a SessionSummary from records. It has no side effects and
// returns equal values for equal input.
func Summarize(records []models.PoseRecord) models.SessionSummary {
	if len(records) == 0 {
		return models.SessionSummary{
			Feedback: []string{NoPosesMessage},
		}
	}

	accuracies := make([]float64, len(records))
	weakest := 0
	for i, r := range records {
		accuracies[i] = float64(r.Accuracy)
		if r.Accuracy < records[weakest].Accuracy {
			weakest = i
		}
	}
	average := stat.Mean(accuracies, nil)

	var feedback []string
	switch {
	case average >= excellentTier:
		feedback = append(feedback, ExcellentMessage)
	case average >= goodTier:
		feedback = append(feedback, GoodMessage)
	default:
		feedback = append(feedback, PersistenceMessage)
	}

	worst := clonePoseRecord(records[weakest])
	if len(records) > 1 && worst.Accuracy < goodTier {
		name := worst.PoseName
		if name == "" {
			name = worst.PoseID
		}
		feedback = append(feedback, fmt.Sprintf(weakestPoseTemplate, name))
	}

	return models.SessionSummary{
		Completed:          true,
		AverageAccuracy:    average,
		CompletedPoseCount: len(records),
		WeakestPose:        &worst,
		Feedback:           feedback,
	}
}

func clonePoseRecord(r models.PoseRecord) models.PoseRecord {
	if r.Feedback != nil {
		fb := make([]string, len(r.Feedback))
		copy(fb, r.Feedback)
		r.Feedback = fb
	}
	return r
}
