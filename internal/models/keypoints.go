package models

import (
	"encoding/json"
	"fmt"
)

// Joint identifies one body landmark from the fixed vocabulary.
type Joint string

const (
	Nose          Joint = "nose"
	LeftShoulder  Joint = "leftShoulder"
	RightShoulder Joint = "rightShoulder"
	LeftElbow     Joint = "leftElbow"
	RightElbow    Joint = "rightElbow"
	LeftWrist     Joint = "leftWrist"
	RightWrist    Joint = "rightWrist"
	LeftHip       Joint = "leftHip"
	RightHip      Joint = "rightHip"
	LeftKnee      Joint = "leftKnee"
	RightKnee     Joint = "rightKnee"
	LeftAnkle     Joint = "leftAnkle"
	RightAnkle    Joint = "rightAnkle"
)

// DefaultMinConfidence is the confidence below which a joint counts as not observed.
const DefaultMinConfidence = 0.5

var joints = []Joint{
	Nose,
	LeftShoulder, RightShoulder,
	LeftElbow, RightElbow,
	LeftWrist, RightWrist,
	LeftHip, RightHip,
	LeftKnee, RightKnee,
	LeftAnkle, RightAnkle,
}

// Joints returns the joint vocabulary in canonical order.
func Joints() []Joint {
	out := make([]Joint, len(joints))
	copy(out, joints)
	return out
}

// Valid reports whether j belongs to the vocabulary.
func (j Joint) Valid() bool {
	for _, known := range joints {
		if j == known {
			return true
		}
	}
	return false
}

// Point is a normalized image coordinate with the detector's confidence.
type Point struct {
	X          float64 `json:"x" yaml:"x"`
	Y          float64 `json:"y" yaml:"y"`
	Z          float64 `json:"z,omitempty" yaml:"z,omitempty"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// UnmarshalJSON accepts the confidence under "confidence", "score" (TF.js
// pose-detection) or "visibility" (MediaPipe). A point without any of them
// is treated as fully confident, which is how reference templates are authored.
func (p *Point) UnmarshalJSON(data []byte) error {
	var aux struct {
		X          float64  `json:"x"`
		Y          float64  `json:"y"`
		Z          float64  `json:"z"`
		Confidence *float64 `json:"confidence"`
		Score      *float64 `json:"score"`
		Visibility *float64 `json:"visibility"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	p.X, p.Y, p.Z = aux.X, aux.Y, aux.Z
	switch {
	case aux.Confidence != nil:
		p.Confidence = *aux.Confidence
	case aux.Score != nil:
		p.Confidence = *aux.Score
	case aux.Visibility != nil:
		p.Confidence = *aux.Visibility
	default:
		p.Confidence = 1
	}
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for catalog files.
func (p *Point) UnmarshalYAML(unmarshal func(any) error) error {
	var aux struct {
		X          float64  `yaml:"x"`
		Y          float64  `yaml:"y"`
		Z          float64  `yaml:"z"`
		Confidence *float64 `yaml:"confidence"`
	}
	if err := unmarshal(&aux); err != nil {
		return err
	}
	p.X, p.Y, p.Z = aux.X, aux.Y, aux.Z
	p.Confidence = 1
	if aux.Confidence != nil {
		p.Confidence = *aux.Confidence
	}
	return nil
}

// KeypointSet is one body pose snapshot keyed by joint.
type KeypointSet map[Joint]Point

// UnmarshalJSON rejects joint names outside the vocabulary.
func (k *KeypointSet) UnmarshalJSON(data []byte) error {
	var raw map[string]Point
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*k = nil
		return nil
	}

	set := make(KeypointSet, len(raw))
	for name, pt := range raw {
		j := Joint(name)
		if !j.Valid() {
			return fmt.Errorf("unknown joint %q", name)
		}
		set[j] = pt
	}
	*k = set
	return nil
}

// Lookup returns the point for j when it is present with at least minConfidence.
func (k KeypointSet) Lookup(j Joint, minConfidence float64) (Point, bool) {
	p, ok := k[j]
	if !ok || p.Confidence < minConfidence {
		return Point{}, false
	}
	return p, true
}

// ObservedCount counts the joints usable at minConfidence.
func (k KeypointSet) ObservedCount(minConfidence float64) int {
	n := 0
	for _, j := range joints {
		if _, ok := k.Lookup(j, minConfidence); ok {
			n++
		}
	}
	return n
}

// Clone returns an independent copy.
func (k KeypointSet) Clone() KeypointSet {
	if k == nil {
		return nil
	}
	out := make(KeypointSet, len(k))
	for j, p := range k {
		out[j] = p
	}
	return out
}

// BlazePose landmark indices for the joints we track.
var landmarkIndex = map[int]Joint{
	0:  Nose,
	11: LeftShoulder,
	12: RightShoulder,
	13: LeftElbow,
	14: RightElbow,
	15: LeftWrist,
	16: RightWrist,
	23: LeftHip,
	24: RightHip,
	25: LeftKnee,
	26: RightKnee,
	27: LeftAnkle,
	28: RightAnkle,
}

// FromLandmarks converts a MediaPipe BlazePose landmark array into a KeypointSet.
// Indices that are not part of the vocabulary are ignored; a short array simply
// yields fewer joints.
func FromLandmarks(landmarks []Point) KeypointSet {
	set := make(KeypointSet, len(landmarkIndex))
	for i, p := range landmarks {
		if j, ok := landmarkIndex[i]; ok {
			set[j] = p
		}
	}
	return set
}
