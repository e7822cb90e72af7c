package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/learnware/session-gateway/internal/models"
)

var ErrRecordNotFound = errors.New("attempt record not found")

// AttemptRecord is the local read model of a graded attempt. The platform
// remains the system of record; this table exists so result views and
// exports work without a platform round trip.
type AttemptRecord struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	AttemptID       uint   `gorm:"uniqueIndex;not null" json:"attempt_id"`
	LearnerID       string `gorm:"index;not null;size:255" json:"learner_id"`
	AssessmentID    uint   `gorm:"index;not null" json:"assessment_id"`
	AssessmentTitle string `gorm:"size:255" json:"assessment_title"`

	Score          float64        `json:"score"`
	MaxScore       int            `json:"max_score"`
	Percentage     float64        `json:"percentage"`
	Passed         bool           `json:"passed"`
	ElapsedSeconds int            `json:"elapsed_seconds"`
	Breakdown      datatypes.JSON `json:"breakdown"`

	GradedAt  time.Time `json:"graded_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (AttemptRecord) TableName() string {
	return "attempt_records"
}

// Result rebuilds the result shape from the stored record.
func (r *AttemptRecord) Result() (*models.Result, error) {
	var breakdown []models.QuestionResult
	if len(r.Breakdown) > 0 {
		if err := json.Unmarshal(r.Breakdown, &breakdown); err != nil {
			return nil, fmt.Errorf("decode breakdown: %w", err)
		}
	}
	return &models.Result{
		AttemptID:      r.AttemptID,
		AssessmentID:   r.AssessmentID,
		Score:          r.Score,
		MaxScore:       r.MaxScore,
		Percentage:     r.Percentage,
		Passed:         r.Passed,
		ElapsedSeconds: r.ElapsedSeconds,
		Breakdown:      breakdown,
		GradedAt:       r.GradedAt,
	}, nil
}

// Service persists graded results and serves the learner's attempt history.
// It satisfies the engine's ResultRecorder.
type Service interface {
	RecordResult(ctx context.Context, learnerID string, assessment *models.Assessment, result *models.Result) error
	GetByAttemptID(ctx context.Context, learnerID string, attemptID uint) (*AttemptRecord, error)
	ListByLearner(ctx context.Context, learnerID string, limit, offset int) ([]*AttemptRecord, int64, error)
	ExportXLSX(ctx context.Context, learnerID string) ([]byte, error)
}

type service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) Service {
	return &service{db: db, logger: logger}
}

// Migrate creates the history table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&AttemptRecord{})
}

func (s *service) RecordResult(ctx context.Context, learnerID string, assessment *models.Assessment, result *models.Result) error {
	breakdown, err := json.Marshal(result.Breakdown)
	if err != nil {
		return fmt.Errorf("encode breakdown: %w", err)
	}

	record := &AttemptRecord{
		AttemptID:      result.AttemptID,
		LearnerID:      learnerID,
		AssessmentID:   result.AssessmentID,
		Score:          result.Score,
		MaxScore:       result.MaxScore,
		Percentage:     result.Percentage,
		Passed:         result.Passed,
		ElapsedSeconds: result.ElapsedSeconds,
		Breakdown:      breakdown,
		GradedAt:       result.GradedAt,
	}
	if assessment != nil {
		record.AssessmentTitle = assessment.Title
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to record attempt result: %w", err)
	}

	s.logger.Info("Recorded attempt result",
		"learner_id", learnerID,
		"attempt_id", result.AttemptID,
		"percentage", result.Percentage)
	return nil
}

func (s *service) GetByAttemptID(ctx context.Context, learnerID string, attemptID uint) (*AttemptRecord, error) {
	var record AttemptRecord
	err := s.db.WithContext(ctx).
		Where("learner_id = ? AND attempt_id = ?", learnerID, attemptID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get attempt record: %w", err)
	}
	return &record, nil
}

func (s *service) ListByLearner(ctx context.Context, learnerID string, limit, offset int) ([]*AttemptRecord, int64, error) {
	var records []*AttemptRecord
	var total int64

	query := s.db.WithContext(ctx).Model(&AttemptRecord{}).Where("learner_id = ?", learnerID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count attempt records: %w", err)
	}

	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Order("graded_at DESC").Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list attempt records: %w", err)
	}

	return records, total, nil
}
