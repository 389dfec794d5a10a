package metrics

import (
	"math"

	"github.com/Freedomtukun/free-yoga/internal/models"
)

// jointPair is a left/right pair whose connecting line is compared by angle.
type jointPair struct {
	Left, Right models.Joint
}

var bilateralPairs = []jointPair{
	{models.LeftShoulder, models.RightShoulder},
	{models.LeftElbow, models.RightElbow},
	{models.LeftWrist, models.RightWrist},
	{models.LeftHip, models.RightHip},
	{models.LeftKnee, models.RightKnee},
	{models.LeftAnkle, models.RightAnkle},
}

// Comparator scores detected keypoints against a reference. Joints below
// MinConfidence on either side are left out of every comparison.
type Comparator struct {
	MinConfidence float64
}

// DefaultComparator uses models.DefaultMinConfidence.
var DefaultComparator = Comparator{MinConfidence: models.DefaultMinConfidence}

// Score is DefaultComparator.Score.
func Score(detected, reference models.KeypointSet) int {
	return DefaultComparator.Score(detected, reference)
}

// Score returns a 0-100 accuracy from the angles of the bilateral joint-pair
// lines. Pairs missing on either side are excluded; with no usable pair the
// score is 0.
func (c Comparator) Score(detected, reference models.KeypointSet) int {
	var total float64
	valid := 0

	for _, pair := range bilateralPairs {
		dl, ok1 := detected.Lookup(pair.Left, c.MinConfidence)
		dr, ok2 := detected.Lookup(pair.Right, c.MinConfidence)
		rl, ok3 := reference.Lookup(pair.Left, c.MinConfidence)
		rr, ok4 := reference.Lookup(pair.Right, c.MinConfidence)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}

		diff := angleDifference(lineAngle(dl, dr), lineAngle(rl, rr))
		total += 1 - diff/180
		valid++
	}

	if valid == 0 {
		return 0
	}
	return clampScore(int(math.Round(total / float64(valid) * 100)))
}

// lineAngle is the direction of the line from a to b in degrees, in [0, 360).
func lineAngle(a, b models.Point) float64 {
	degrees := math.Atan2(b.Y-a.Y, b.X-a.X) * 180 / math.Pi
	return math.Mod(degrees+360, 360)
}

// angleDifference folds the gap between two directions onto [0, 180].
func angleDifference(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > 180 {
		d = 360 - d
	}
	return d
}

func clampScore(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
