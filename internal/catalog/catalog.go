package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/learnware/session-gateway/internal/cache"
	"github.com/learnware/session-gateway/internal/models"
	"github.com/learnware/session-gateway/internal/platform"
)

// Service is the read-only catalog: what a learner can take and what they
// have taken. Listings come from the platform and are cached per learner,
// since learners poll the catalog between sessions.
type Service interface {
	ListAssessments(ctx context.Context, learnerID string, filters platform.ListFilters) (*AssessmentListResponse, error)
	ListAttempts(ctx context.Context, learnerID string, filters platform.ListFilters) (*AttemptListResponse, error)
	InvalidateLearner(ctx context.Context, learnerID string)
}

type AssessmentListResponse struct {
	Total int64                       `json:"total"`
	Data  []*models.AssessmentSummary `json:"data"`
}

type AttemptListResponse struct {
	Total int64                    `json:"total"`
	Data  []*models.AttemptSummary `json:"data"`
}

type service struct {
	client platform.Client
	caches *cache.CacheManager
	logger *slog.Logger
}

func NewService(client platform.Client, caches *cache.CacheManager, logger *slog.Logger) Service {
	return &service{
		client: client,
		caches: caches,
		logger: logger,
	}
}

func (s *service) ListAssessments(ctx context.Context, learnerID string, filters platform.ListFilters) (*AssessmentListResponse, error) {
	var resp AssessmentListResponse
	key := listKey(learnerID, filters)

	err := s.caches.Catalog.CacheOrExecute(ctx, key, &resp, cache.CatalogCacheConfig.TTL, func() (interface{}, error) {
		data, total, err := s.client.ListAssessments(ctx, learnerID, filters)
		if err != nil {
			return nil, err
		}
		return &AssessmentListResponse{Total: total, Data: data}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return &resp, nil
}

func (s *service) ListAttempts(ctx context.Context, learnerID string, filters platform.ListFilters) (*AttemptListResponse, error) {
	var resp AttemptListResponse
	key := listKey(learnerID, filters)

	err := s.caches.Attempts.CacheOrExecute(ctx, key, &resp, cache.AttemptsCacheConfig.TTL, func() (interface{}, error) {
		data, total, err := s.client.ListAttempts(ctx, learnerID, filters)
		if err != nil {
			return nil, err
		}
		return &AttemptListResponse{Total: total, Data: data}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return &resp, nil
}

func (s *service) InvalidateLearner(ctx context.Context, learnerID string) {
	s.caches.InvalidateLearner(ctx, learnerID)
}

func listKey(learnerID string, filters platform.ListFilters) string {
	return fmt.Sprintf("learner:%s:q=%s:l=%d:o=%d", learnerID, filters.Query, filters.Limit, filters.Offset)
}
