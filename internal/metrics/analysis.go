package metrics

import (
	"errors"
	"fmt"

	"github.com/Freedomtukun/free-yoga/internal/models"
)

// ErrInvalidPoseIndex is returned when a pose index falls outside a sequence.
var ErrInvalidPoseIndex = errors.New("invalid pose index")

// PoseAnalysis is the score and feedback for one detected pose.
type PoseAnalysis struct {
	PoseID   string   `json:"poseId"`
	PoseName string   `json:"poseName"`
	Detected bool     `json:"detected"`
	Accuracy int      `json:"accuracy"`
	Feedback []string `json:"feedback"`
	Tips     []string `json:"tips,omitempty"`
}

// NextPose describes what comes after the current sequence entry.
type NextPose struct {
	Name           string `json:"name"`
	TransitionHint string `json:"transitionHint,omitempty"`
}

// SequenceAnalysis places a PoseAnalysis within its sequence.
type SequenceAnalysis struct {
	PoseAnalysis
	CurrentIndex int       `json:"currentIndex"`
	TotalPoses   int       `json:"totalPoses"`
	Duration     int       `json:"duration"`
	IsLastPose   bool      `json:"isLastPose"`
	NextPose     *NextPose `json:"nextPose"`
}

// AnalyzePose scores detected against pose. A nil detected set, or one with no
// joint at MinConfidence, means nobody is in frame: accuracy 0 with the
// not-detected hint.
func (c Comparator) AnalyzePose(detected *models.KeypointSet, pose models.ReferencePose) PoseAnalysis {
	a := PoseAnalysis{
		PoseID:   pose.ID,
		PoseName: pose.DisplayName,
		Tips:     pose.Tips,
	}
	if detected == nil || detected.ObservedCount(c.MinConfidence) == 0 {
		a.Feedback = []string{NotDetectedMessage}
		return a
	}

	a.Detected = true
	a.Accuracy = c.Score(*detected, pose.Keypoints)
	a.Feedback = c.Feedback(*detected, pose.Keypoints, pose.DisplayName)
	return a
}

// AnalyzeSequencePose scores detected against the entry at index of seq,
// which must already be sorted.
func (c Comparator) AnalyzeSequencePose(detected *models.KeypointSet, seq *models.Sequence, index int) (*SequenceAnalysis, error) {
	if seq == nil || index < 0 || index >= len(seq.Entries) {
		total := 0
		if seq != nil {
			total = len(seq.Entries)
		}
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidPoseIndex, index, total)
	}

	entry := seq.Entries[index]
	result := &SequenceAnalysis{
		PoseAnalysis: c.AnalyzePose(detected, entry.Pose),
		CurrentIndex: index,
		TotalPoses:   len(seq.Entries),
		Duration:     entry.TargetDurationSeconds,
		IsLastPose:   index == len(seq.Entries)-1,
	}
	if !result.IsLastPose {
		next := seq.Entries[index+1]
		result.NextPose = &NextPose{
			Name:           next.Pose.DisplayName,
			TransitionHint: next.TransitionHint,
		}
	}
	return result, nil
}
