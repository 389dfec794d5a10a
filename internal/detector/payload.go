// Package detector is the boundary to the external pose estimator. It turns
// the estimator's JSON output into keypoint sets.
package detector

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/Freedomtukun/free-yoga/internal/models"
)

var ErrInvalidPayload = errors.New("invalid keypoint payload")

// Frame is one detector output. Exactly one of Keypoints and Landmarks is
// normally set; neither means nobody was detected.
type Frame struct {
	// Keypoints is either a map keyed by joint name or a TF.js style array of
	// {name, x, y, score} objects.
	Keypoints json.RawMessage `json:"keypoints,omitempty"`
	// Landmarks is a MediaPipe BlazePose landmark array.
	Landmarks []models.Point `json:"landmarks,omitempty"`
}

type namedPoint struct {
	Name string `json:"name"`
	models.Point
}

func (n *namedPoint) UnmarshalJSON(data []byte) error {
	var name struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	n.Name = name.Name
	return n.Point.UnmarshalJSON(data)
}

// KeypointSet returns the detected pose, or nil when nobody was detected.
func (f Frame) KeypointSet() (*models.KeypointSet, error) {
	if len(f.Landmarks) > 0 {
		set := models.FromLandmarks(f.Landmarks)
		return &set, nil
	}

	raw := bytes.TrimSpace(f.Keypoints)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var set models.KeypointSet
	if raw[0] == '[' {
		var points []namedPoint
		if err := json.Unmarshal(raw, &points); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		set = make(models.KeypointSet, len(points))
		for _, p := range points {
			j := models.Joint(camelCase(p.Name))
			// TF.js models report eyes and ears too.
			if j.Valid() {
				set[j] = p.Point
			}
		}
	} else if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if len(set) == 0 {
		return nil, nil
	}
	return &set, nil
}

// Decode parses a raw detector message. An empty body means nobody was detected.
func Decode(data []byte) (*models.KeypointSet, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return f.KeypointSet()
}

// camelCase turns "left_shoulder" into "leftShoulder".
func camelCase(name string) string {
	if !strings.Contains(name, "_") {
		return name
	}
	var b strings.Builder
	upper := false
	for _, r := range name {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
