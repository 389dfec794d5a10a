package models

import (
	"time"

	"gorm.io/datatypes"
)

// PoseTemplate is the stored form of a ReferencePose.
type PoseTemplate struct {
	ID          string `gorm:"primaryKey"`
	Name        string
	EnglishName string
	Description string
	Category    string `gorm:"index"`
	Difficulty  string `gorm:"index"`
	Keypoints   datatypes.JSONType[KeypointSet]
	Tips        datatypes.JSONSlice[string]
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewPoseTemplate(p ReferencePose) PoseTemplate {
	return PoseTemplate{
		ID:          p.ID,
		Name:        p.DisplayName,
		EnglishName: p.EnglishName,
		Description: p.Description,
		Category:    p.Category,
		Difficulty:  string(p.Difficulty),
		Keypoints:   datatypes.NewJSONType(p.Keypoints),
		Tips:        datatypes.NewJSONSlice(p.Tips),
		ImageURL:    p.ImageURL,
	}
}

func (t PoseTemplate) ToReferencePose() ReferencePose {
	return ReferencePose{
		ID:          t.ID,
		DisplayName: t.Name,
		EnglishName: t.EnglishName,
		Description: t.Description,
		Category:    t.Category,
		Difficulty:  Difficulty(t.Difficulty),
		Keypoints:   t.Keypoints.Data(),
		Tips:        []string(t.Tips),
		ImageURL:    t.ImageURL,
	}
}

// PoseSequence is the stored form of a Sequence.
type PoseSequence struct {
	ID            string `gorm:"primaryKey"`
	Name          string
	Description   string
	Difficulty    string `gorm:"index"`
	Category      string `gorm:"index"`
	TotalDuration int
	IsPublic      bool
	CreatedBy     string
	Steps         []PoseSequenceStep `gorm:"foreignKey:SequenceID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PoseSequenceStep is one row of a stored sequence.
type PoseSequenceStep struct {
	ID             uint   `gorm:"primaryKey"`
	SequenceID     string `gorm:"index"`
	PoseID         string
	Pose           PoseTemplate `gorm:"foreignKey:PoseID"`
	Duration       int
	Position       int
	TransitionHint string
}

func NewPoseSequence(s Sequence) PoseSequence {
	row := PoseSequence{
		ID:            s.ID,
		Name:          s.Name,
		Description:   s.Description,
		Difficulty:    string(s.Difficulty),
		Category:      s.Category,
		TotalDuration: s.TotalDuration(),
		IsPublic:      s.Public,
		CreatedBy:     s.CreatedBy,
	}
	for _, e := range s.Entries {
		row.Steps = append(row.Steps, PoseSequenceStep{
			SequenceID:     s.ID,
			PoseID:         e.Pose.ID,
			Duration:       e.TargetDurationSeconds,
			Position:       e.Order,
			TransitionHint: e.TransitionHint,
		})
	}
	return row
}

// ToSequence expects Steps and their Pose to be preloaded.
func (s PoseSequence) ToSequence() *Sequence {
	seq := &Sequence{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Difficulty:  Difficulty(s.Difficulty),
		Category:    s.Category,
		Public:      s.IsPublic,
		CreatedBy:   s.CreatedBy,
	}
	for _, step := range s.Steps {
		seq.Entries = append(seq.Entries, SequenceEntry{
			Pose:                  step.Pose.ToReferencePose(),
			TargetDurationSeconds: step.Duration,
			Order:                 step.Position,
			TransitionHint:        step.TransitionHint,
		})
	}
	return seq.Sorted()
}

// PracticeResult holds one finished practice session.
type PracticeResult struct {
	ID              string `gorm:"primaryKey"`
	UserID          string `gorm:"index"`
	SequenceID      string `gorm:"index"`
	Outcome         string
	AverageAccuracy float64
	CompletedPoses  int
	WeakestPoseID   string
	Feedback        datatypes.JSONSlice[string]
	Attempts        []PoseAttempt `gorm:"foreignKey:ResultID"`
	StartedAt       time.Time
	EndedAt         time.Time
	CreatedAt       time.Time
}

// PoseAttempt is the stored form of a PoseRecord.
type PoseAttempt struct {
	ID         uint    `gorm:"primaryKey"`
	ResultID   *string `gorm:"index"`
	UserID     string  `gorm:"index:idx_attempts_user_pose"`
	PoseID     string  `gorm:"index:idx_attempts_user_pose"`
	PoseName   string
	SequenceID string
	Accuracy   int
	Duration   int
	Feedback   datatypes.JSONSlice[string]
	RecordedAt time.Time
	CreatedAt  time.Time
}

func NewPoseAttempt(userID, sequenceID string, rec PoseRecord) PoseAttempt {
	return PoseAttempt{
		UserID:     userID,
		PoseID:     rec.PoseID,
		PoseName:   rec.PoseName,
		SequenceID: sequenceID,
		Accuracy:   rec.Accuracy,
		Duration:   rec.DurationSeconds,
		Feedback:   datatypes.NewJSONSlice(rec.Feedback),
		RecordedAt: rec.Timestamp,
	}
}

func (a PoseAttempt) ToRecord() PoseRecord {
	return PoseRecord{
		PoseID:          a.PoseID,
		PoseName:        a.PoseName,
		Accuracy:        a.Accuracy,
		DurationSeconds: a.Duration,
		Feedback:        []string(a.Feedback),
		Timestamp:       a.RecordedAt,
	}
}
