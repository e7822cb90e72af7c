package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/learnware/session-gateway/internal/models"
)

// Client is the gateway's view of the learning platform backend: attempt
// creation, the incremental answer log, submission/grading, and the
// read-only catalog. Transport details stay behind this interface so the
// engine can be tested against an in-memory fake.
type Client interface {
	// CreateAttempt opens a new attempt and returns its identifier together
	// with the assessment content the learner will see.
	CreateAttempt(ctx context.Context, req *CreateAttemptRequest) (*CreateAttemptResponse, error)

	// SyncAnswer records one answer in the platform's incremental answer
	// log. Idempotent per (attempt, question): repeated calls overwrite.
	SyncAnswer(ctx context.Context, req *SyncAnswerRequest) error

	// SubmitAttempt closes the attempt server-side and returns the graded
	// result. The platform rejects a second submission for the same attempt.
	SubmitAttempt(ctx context.Context, req *SubmitAttemptRequest) (*models.Result, error)

	// GetResult fetches the result of an already-submitted attempt.
	GetResult(ctx context.Context, attemptID uint, learnerID string) (*models.Result, error)

	// ListAssessments returns the assessments available to the learner.
	ListAssessments(ctx context.Context, learnerID string, filters ListFilters) ([]*models.AssessmentSummary, int64, error)

	// ListAttempts returns the learner's past attempts.
	ListAttempts(ctx context.Context, learnerID string, filters ListFilters) ([]*models.AttemptSummary, int64, error)
}

// ===== REQUEST/RESPONSE SHAPES =====

type CreateAttemptRequest struct {
	AssessmentID uint   `json:"assessment_id"`
	LearnerID    string `json:"learner_id"`
}

type CreateAttemptResponse struct {
	AttemptID  uint              `json:"attempt_id"`
	Assessment models.Assessment `json:"assessment"`
	// Shuffled reports whether the platform already applied the
	// shuffle settings server-side.
	Shuffled bool `json:"shuffled"`
}

type SyncAnswerRequest struct {
	SyncID         string          `json:"sync_id"`
	AttemptID      uint            `json:"attempt_id"`
	LearnerID      string          `json:"learner_id"`
	QuestionID     uint            `json:"question_id"`
	Value          json.RawMessage `json:"value"`
	ElapsedSeconds int             `json:"elapsed_seconds"` // time on this question
}

type SubmitAttemptRequest struct {
	AttemptID      uint                 `json:"attempt_id"`
	LearnerID      string               `json:"learner_id"`
	Answers        []models.Answer      `json:"answers"`
	ElapsedSeconds int                  `json:"elapsed_seconds"`
	Trigger        models.SubmitTrigger `json:"trigger"`
}

type ListFilters struct {
	Query  string
	Limit  int
	Offset int
}

type listEnvelope struct {
	Total int64           `json:"total"`
	Data  json.RawMessage `json:"data"`
}

// apiError is the platform's error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ===== HTTP CLIENT =====

type httpClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates a Client speaking JSON over HTTP against the
// platform backend.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) Client {
	return &httpClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *httpClient) CreateAttempt(ctx context.Context, req *CreateAttemptRequest) (*CreateAttemptResponse, error) {
	var resp CreateAttemptResponse
	if err := c.do(ctx, http.MethodPost, "/attempts", req, &resp); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	return &resp, nil
}

func (c *httpClient) SyncAnswer(ctx context.Context, req *SyncAnswerRequest) error {
	path := fmt.Sprintf("/attempts/%d/answers", req.AttemptID)
	if err := c.do(ctx, http.MethodPut, path, req, nil); err != nil {
		return fmt.Errorf("sync answer for question %d: %w", req.QuestionID, err)
	}
	return nil
}

func (c *httpClient) SubmitAttempt(ctx context.Context, req *SubmitAttemptRequest) (*models.Result, error) {
	var result models.Result
	path := fmt.Sprintf("/attempts/%d/submit", req.AttemptID)
	if err := c.do(ctx, http.MethodPost, path, req, &result); err != nil {
		return nil, fmt.Errorf("submit attempt %d: %w", req.AttemptID, err)
	}
	return &result, nil
}

func (c *httpClient) GetResult(ctx context.Context, attemptID uint, learnerID string) (*models.Result, error) {
	var result models.Result
	path := fmt.Sprintf("/attempts/%d/result?learner_id=%s", attemptID, url.QueryEscape(learnerID))
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, fmt.Errorf("get result for attempt %d: %w", attemptID, err)
	}
	return &result, nil
}

func (c *httpClient) ListAssessments(ctx context.Context, learnerID string, filters ListFilters) ([]*models.AssessmentSummary, int64, error) {
	var out []*models.AssessmentSummary
	total, err := c.list(ctx, "/assessments", learnerID, filters, &out)
	if err != nil {
		return nil, 0, fmt.Errorf("list assessments: %w", err)
	}
	return out, total, nil
}

func (c *httpClient) ListAttempts(ctx context.Context, learnerID string, filters ListFilters) ([]*models.AttemptSummary, int64, error) {
	var out []*models.AttemptSummary
	total, err := c.list(ctx, "/attempts", learnerID, filters, &out)
	if err != nil {
		return nil, 0, fmt.Errorf("list attempts: %w", err)
	}
	return out, total, nil
}

func (c *httpClient) list(ctx context.Context, path, learnerID string, filters ListFilters, dest interface{}) (int64, error) {
	q := url.Values{}
	q.Set("learner_id", learnerID)
	if filters.Query != "" {
		q.Set("query", filters.Query)
	}
	if filters.Limit > 0 {
		q.Set("limit", strconv.Itoa(filters.Limit))
		q.Set("offset", strconv.Itoa(filters.Offset))
	}

	var envelope listEnvelope
	if err := c.do(ctx, http.MethodGet, path+"?"+q.Encode(), nil, &envelope); err != nil {
		return 0, err
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		return 0, fmt.Errorf("decode list body: %w", err)
	}
	return envelope.Total, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.errorFromResponse(resp)
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

func (c *httpClient) errorFromResponse(resp *http.Response) error {
	var body apiError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &body); err != nil {
		body.Message = string(raw)
	}

	c.logger.Warn("Platform request rejected",
		"status", resp.StatusCode,
		"code", body.Code,
		"message", body.Message)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, body.Message)
	case body.Code == "attempt_limit_exceeded":
		return fmt.Errorf("%w: %s", ErrAttemptLimitExceeded, body.Message)
	case body.Code == "attempt_already_submitted" || resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrAlreadySubmitted, body.Message)
	case resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: %s", ErrAttemptExpired, body.Message)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, body.Message)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, body.Message)
	}
}
