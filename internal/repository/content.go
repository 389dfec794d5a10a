package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freedomtukun/free-yoga/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a pose, sequence or result does not exist or
// is not visible to the caller.
var ErrNotFound = errors.New("not found")

// Filter narrows pose and sequence listings. Empty fields match everything.
type Filter struct {
	Difficulty string
	Category   string
}

func (f Filter) apply(db *gorm.DB) *gorm.DB {
	if f.Difficulty != "" {
		db = db.Where("difficulty = ?", f.Difficulty)
	}
	if f.Category != "" {
		db = db.Where("category = ?", f.Category)
	}
	return db
}

// ContentRepository serves reference poses and sequences.
type ContentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) GetPose(ctx context.Context, id string) (*models.ReferencePose, error) {
	var row models.PoseTemplate
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "pose %q", id)
	}
	pose := row.ToReferencePose()
	return &pose, nil
}

func (r *ContentRepository) ListPoses(ctx context.Context, f Filter) ([]models.ReferencePose, error) {
	var rows []models.PoseTemplate
	if err := f.apply(r.db.WithContext(ctx)).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	poses := make([]models.ReferencePose, len(rows))
	for i, row := range rows {
		poses[i] = row.ToReferencePose()
	}
	return poses, nil
}

// GetSequence returns the sequence with entries in play order. Private
// sequences are only visible to their creator.
func (r *ContentRepository) GetSequence(ctx context.Context, id, userID string) (*models.Sequence, error) {
	var row models.PoseSequence
	err := r.withSteps(r.db.WithContext(ctx)).
		Scopes(visibleTo(userID)).
		First(&row, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "sequence %q", id)
	}
	return row.ToSequence(), nil
}

func (r *ContentRepository) ListSequences(ctx context.Context, f Filter, userID string) ([]models.Sequence, error) {
	var rows []models.PoseSequence
	err := f.apply(r.withSteps(r.db.WithContext(ctx))).
		Scopes(visibleTo(userID)).
		Order("name").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	sequences := make([]models.Sequence, len(rows))
	for i, row := range rows {
		sequences[i] = *row.ToSequence()
	}
	return sequences, nil
}

// SyncCatalog upserts every pose and sequence of the catalog. Sequence steps
// are replaced wholesale.
func (r *ContentRepository) SyncCatalog(ctx context.Context, catalog *models.Catalog) error {
	sequences, err := catalog.Resolve()
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range catalog.Poses {
			row := models.NewPoseTemplate(p)
			if err := upsert(tx, &row); err != nil {
				return fmt.Errorf("saving pose %q: %w", p.ID, err)
			}
		}

		for _, s := range sequences {
			row := models.NewPoseSequence(s)
			steps := row.Steps
			row.Steps = nil
			if err := upsert(tx, &row); err != nil {
				return fmt.Errorf("saving sequence %q: %w", s.ID, err)
			}
			if err := tx.Where("sequence_id = ?", s.ID).Delete(&models.PoseSequenceStep{}).Error; err != nil {
				return err
			}
			if err := tx.Omit("Pose").Create(&steps).Error; err != nil {
				return fmt.Errorf("saving steps of %q: %w", s.ID, err)
			}
		}
		return nil
	})
}

func (r *ContentRepository) withSteps(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Steps.Pose")
}

func visibleTo(userID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if userID == "" {
			return db.Where("is_public = ?", true)
		}
		return db.Where("is_public = ? OR created_by = ?", true, userID)
	}
}

func upsert(tx *gorm.DB, row any) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(row).Error
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
	}
	return err
}
