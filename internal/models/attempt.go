package models

import (
	"encoding/json"
	"time"
)

// AttemptStatus tracks the lifecycle of one attempt inside the engine.
// Submission is guarded by the single active -> submitting transition.
type AttemptStatus string

const (
	AttemptActive     AttemptStatus = "active"
	AttemptSubmitting AttemptStatus = "submitting"
	AttemptSubmitted  AttemptStatus = "submitted"
)

// SubmitTrigger distinguishes who initiated a submission.
type SubmitTrigger string

const (
	TriggerManual      SubmitTrigger = "manual"
	TriggerTimerExpiry SubmitTrigger = "timer_expiry"
)

// Attempt is the mutable unit the engine owns: one learner working through
// one assessment. The ID is assigned by the platform on creation.
type Attempt struct {
	ID           uint          `json:"id"`
	AssessmentID uint          `json:"assessment_id"`
	LearnerID    string        `json:"learner_id"`
	Status       AttemptStatus `json:"status"`

	StartedAt time.Time  `json:"started_at"`
	Deadline  *time.Time `json:"deadline,omitempty"` // nil when untimed
}

// Expired reports whether the attempt's deadline has passed.
func (a *Attempt) Expired(now time.Time) bool {
	return a.Deadline != nil && now.After(*a.Deadline)
}

// Answer is the learner's current response to one question. Later writes
// for the same question overwrite earlier ones.
type Answer struct {
	QuestionID uint            `json:"question_id"`
	Value      json.RawMessage `json:"value"`
	SavedAt    time.Time       `json:"saved_at"`
}

// AttemptSummary is the platform's listing shape for past attempts,
// surfaced through the catalog.
type AttemptSummary struct {
	ID           uint          `json:"id"`
	AssessmentID uint          `json:"assessment_id"`
	Title        string        `json:"title"`
	Status       AttemptStatus `json:"status"`
	StartedAt    time.Time     `json:"started_at"`
	SubmittedAt  *time.Time    `json:"submitted_at,omitempty"`
	Percentage   *float64      `json:"percentage,omitempty"`
	Passed       *bool         `json:"passed,omitempty"`
}
