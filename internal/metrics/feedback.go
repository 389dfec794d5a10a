package metrics

import (
	"fmt"
	"math"

	"github.com/Freedomtukun/free-yoga/internal/models"
)

// FeedbackThreshold is the region sub-score under which a corrective hint is given.
const FeedbackThreshold = 70

type Region string

const (
	RegionShoulders Region = "shoulders"
	RegionArms      Region = "arms"
	RegionHips      Region = "hips"
	RegionLegs      Region = "legs"
)

type regionRule struct {
	Region  Region
	Joints  []models.Joint
	Message string
}

// Evaluated in this order; feedback keeps it.
var regionRules = []regionRule{
	{
		Region:  RegionShoulders,
		Joints:  []models.Joint{models.LeftShoulder, models.RightShoulder},
		Message: "Adjust your shoulder placement; keep your shoulders relaxed and down.",
	},
	{
		Region:  RegionArms,
		Joints:  []models.Joint{models.LeftElbow, models.RightElbow, models.LeftWrist, models.RightWrist},
		Message: "Watch the extension and angle of your arms and try to line them up.",
	},
	{
		Region:  RegionHips,
		Joints:  []models.Joint{models.LeftHip, models.RightHip},
		Message: "Check the rotation and position of your hips; keep your pelvis aligned.",
	},
	{
		Region:  RegionLegs,
		Joints:  []models.Joint{models.LeftKnee, models.RightKnee, models.LeftAnkle, models.RightAnkle},
		Message: "Adjust your legs; mind the alignment of your knees and ankles.",
	},
}

// NotDetectedMessage is shown when no body could be found in the frame.
const NotDetectedMessage = "No pose detected. Make sure your whole body is in the frame."

// RegionScore is the distance-based sub-score of one body region.
type RegionScore struct {
	Region Region  `json:"region"`
	Score  float64 `json:"score"`
	Joints int     `json:"joints"`
}

// RegionScores is DefaultComparator.RegionScores.
func RegionScores(detected, reference models.KeypointSet) []RegionScore {
	return DefaultComparator.RegionScores(detected, reference)
}

// RegionScores returns one sub-score per region in canonical order. A region
// with no joint observed on both sides scores 0.
func (c Comparator) RegionScores(detected, reference models.KeypointSet) []RegionScore {
	scores := make([]RegionScore, 0, len(regionRules))
	for _, rule := range regionRules {
		var total float64
		valid := 0
		for _, j := range rule.Joints {
			d, ok1 := detected.Lookup(j, c.MinConfidence)
			r, ok2 := reference.Lookup(j, c.MinConfidence)
			if !ok1 || !ok2 {
				continue
			}
			dist := math.Hypot(d.X-r.X, d.Y-r.Y)
			total += 1 - math.Min(dist, 1)
			valid++
		}

		rs := RegionScore{Region: rule.Region, Joints: valid}
		if valid > 0 {
			rs.Score = total / float64(valid) * 100
		}
		scores = append(scores, rs)
	}
	return scores
}

// Feedback is DefaultComparator.Feedback.
func Feedback(detected, reference models.KeypointSet, poseName string) []string {
	return DefaultComparator.Feedback(detected, reference, poseName)
}

// Feedback returns one corrective hint per region scoring under
// FeedbackThreshold, or a single encouragement naming the pose.
func (c Comparator) Feedback(detected, reference models.KeypointSet, poseName string) []string {
	var feedback []string
	for i, rs := range c.RegionScores(detected, reference) {
		if rs.Score < FeedbackThreshold {
			feedback = append(feedback, regionRules[i].Message)
		}
	}

	if len(feedback) == 0 {
		feedback = append(feedback, fmt.Sprintf("Your %s looks good. Keep holding it!", poseName))
	}
	return feedback
}
