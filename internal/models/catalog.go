// catalog.go
package models

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrInvalidSequence is returned when a sequence cannot be played.
var ErrInvalidSequence = errors.New("invalid sequence")

type Difficulty string

const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
)

// ReferencePose is the template posture a user tries to match.
type ReferencePose struct {
	ID          string      `yaml:"id" json:"id"`
	DisplayName string      `yaml:"name" json:"name"`
	EnglishName string      `yaml:"english_name" json:"englishName,omitempty"`
	Description string      `yaml:"description" json:"description,omitempty"`
	Category    string      `yaml:"category" json:"category"`
	Difficulty  Difficulty  `yaml:"difficulty" json:"difficulty"`
	Keypoints   KeypointSet `yaml:"keypoints" json:"keypoints"`
	Tips        []string    `yaml:"tips" json:"tips,omitempty"`
	ImageURL    string      `yaml:"image_url" json:"imageUrl,omitempty"`
}

// SequenceEntry is one timed pose within a sequence.
type SequenceEntry struct {
	Pose                  ReferencePose `json:"pose"`
	TargetDurationSeconds int           `json:"duration"`
	Order                 int           `json:"order"`
	TransitionHint        string        `json:"transitionHint,omitempty"`
}

// Sequence is an ordered, timed list of poses.
type Sequence struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Difficulty  Difficulty      `json:"difficulty"`
	Category    string          `json:"category"`
	Public      bool            `json:"isPublic"`
	CreatedBy   string          `json:"createdBy,omitempty"`
	Entries     []SequenceEntry `json:"poses"`
}

// Validate checks that the sequence is non-empty, every duration is positive
// and no two entries share an order value.
func (s *Sequence) Validate() error {
	if s == nil || len(s.Entries) == 0 {
		return fmt.Errorf("%w: no poses", ErrInvalidSequence)
	}
	seen := make(map[int]bool, len(s.Entries))
	for i, e := range s.Entries {
		if e.TargetDurationSeconds <= 0 {
			return fmt.Errorf("%w: entry %d has non-positive duration %d", ErrInvalidSequence, i, e.TargetDurationSeconds)
		}
		if seen[e.Order] {
			return fmt.Errorf("%w: duplicate order %d", ErrInvalidSequence, e.Order)
		}
		seen[e.Order] = true
	}
	return nil
}

// Sorted returns a copy of the sequence with entries ordered by Order.
func (s *Sequence) Sorted() *Sequence {
	out := *s
	out.Entries = make([]SequenceEntry, len(s.Entries))
	copy(out.Entries, s.Entries)
	sort.SliceStable(out.Entries, func(i, j int) bool {
		return out.Entries[i].Order < out.Entries[j].Order
	})
	return &out
}

// Entry returns the first entry showing poseID.
func (s *Sequence) Entry(poseID string) (SequenceEntry, bool) {
	for _, e := range s.Entries {
		if e.Pose.ID == poseID {
			return e, true
		}
	}
	return SequenceEntry{}, false
}

// TotalDuration is the sum of all target durations, in seconds.
func (s *Sequence) TotalDuration() int {
	total := 0
	for _, e := range s.Entries {
		total += e.TargetDurationSeconds
	}
	return total
}

// CatalogStep references a pose by id inside a catalog sequence.
type CatalogStep struct {
	PoseID         string `yaml:"pose"`
	Duration       int    `yaml:"duration"`
	TransitionHint string `yaml:"transition_hint"`
}

// CatalogSequence is the YAML form of a sequence.
type CatalogSequence struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Difficulty  Difficulty    `yaml:"difficulty"`
	Category    string        `yaml:"category"`
	Public      *bool         `yaml:"public"`
	CreatedBy   string        `yaml:"created_by"`
	Steps       []CatalogStep `yaml:"steps"`
}

// Catalog holds all reference content loaded at startup.
type Catalog struct {
	Poses     []ReferencePose   `yaml:"poses"`
	Sequences []CatalogSequence `yaml:"sequences"`
}

// LoadCatalog reads and parses the pose catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog YAML: %w", err)
	}

	for _, p := range catalog.Poses {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog pose %q has no id", p.DisplayName)
		}
		for j := range p.Keypoints {
			if !j.Valid() {
				return nil, fmt.Errorf("catalog pose %q: unknown joint %q", p.ID, j)
			}
		}
	}
	return &catalog, nil
}

// Resolve turns the catalog's sequences into playable sequences, with steps
// ordered as listed.
func (c *Catalog) Resolve() ([]Sequence, error) {
	poses := make(map[string]ReferencePose, len(c.Poses))
	for _, p := range c.Poses {
		poses[p.ID] = p
	}

	sequences := make([]Sequence, 0, len(c.Sequences))
	for _, cs := range c.Sequences {
		seq := Sequence{
			ID:          cs.ID,
			Name:        cs.Name,
			Description: cs.Description,
			Difficulty:  cs.Difficulty,
			Category:    cs.Category,
			Public:      cs.Public == nil || *cs.Public,
			CreatedBy:   cs.CreatedBy,
		}
		for i, step := range cs.Steps {
			pose, ok := poses[step.PoseID]
			if !ok {
				return nil, fmt.Errorf("sequence %q references unknown pose %q", cs.ID, step.PoseID)
			}
			seq.Entries = append(seq.Entries, SequenceEntry{
				Pose:                  pose,
				TargetDurationSeconds: step.Duration,
				Order:                 i,
				TransitionHint:        step.TransitionHint,
			})
		}
		if err := seq.Validate(); err != nil {
			return nil, fmt.Errorf("sequence %q: %w", cs.ID, err)
		}
		sequences = append(sequences, seq)
	}
	return sequences, nil
}
