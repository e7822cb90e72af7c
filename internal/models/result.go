package models

import "time"

// Result is the server-computed outcome of a submitted attempt. It is
// immutable once received; the gateway never computes pass/fail itself.
type Result struct {
	AttemptID      uint             `json:"attempt_id"`
	AssessmentID   uint             `json:"assessment_id"`
	Score          float64          `json:"score"`
	MaxScore       int              `json:"max_score"`
	Percentage     float64          `json:"percentage"`
	Passed         bool             `json:"passed"`
	ElapsedSeconds int              `json:"elapsed_seconds"`
	Breakdown      []QuestionResult `json:"breakdown"`
	GradedAt       time.Time        `json:"graded_at"`
}

// QuestionResult is the per-question slice of a Result.
type QuestionResult struct {
	QuestionID     uint    `json:"question_id"`
	Answered       bool    `json:"answered"`
	Correct        *bool   `json:"correct,omitempty"` // nil while pending manual grading
	PointsAwarded  float64 `json:"points_awarded"`
	PointsPossible int     `json:"points_possible"`
}
