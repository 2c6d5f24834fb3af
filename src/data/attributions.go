package data

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stake-plus/forum-triage/src/triage"
)

// AttributionStore persists thread attributions in the thread_attributions table.
type AttributionStore struct {
	db *gorm.DB
}

var _ triage.AttributionStore = (*AttributionStore)(nil)

// NewAttributionStore wraps db.
func NewAttributionStore(db *gorm.DB) *AttributionStore {
	return &AttributionStore{db: db}
}

// RecordAttribution inserts or replaces the record for a.ThreadID.
func (s *AttributionStore) RecordAttribution(ctx context.Context, a triage.Attribution) error {
	row := ThreadAttribution{
		ThreadID:        a.ThreadID,
		SubmitterID:     a.SubmitterID,
		SubmitterHandle: a.SubmitterHandle,
		Question:        a.Question,
		CreatedAt:       a.CreatedAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "thread_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"submitter_id", "submitter_handle", "question", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("attributions: save thread %s: %w", a.ThreadID, err)
	}
	return nil
}

// LookupAttribution returns the record for threadID, if any.
func (s *AttributionStore) LookupAttribution(ctx context.Context, threadID string) (triage.Attribution, bool, error) {
	var row ThreadAttribution
	err := s.db.WithContext(ctx).Where("thread_id = ?", threadID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return triage.Attribution{}, false, nil
	}
	if err != nil {
		return triage.Attribution{}, false, fmt.Errorf("attributions: load thread %s: %w", threadID, err)
	}
	return triage.Attribution{
		ThreadID:        row.ThreadID,
		SubmitterID:     row.SubmitterID,
		SubmitterHandle: row.SubmitterHandle,
		Question:        row.Question,
		CreatedAt:       row.CreatedAt,
	}, true, nil
}

// Count returns how many attributions are stored.
func (s *AttributionStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&ThreadAttribution{}).Count(&n).Error
	return n, err
}
