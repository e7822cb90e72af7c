package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents different types of session lifecycle events
type EventType string

const (
	EventSessionStarted          EventType = "session.started"
	EventSessionSubmitted        EventType = "session.submitted"
	EventSessionExpired          EventType = "session.expired"
	EventSessionTimeWarning      EventType = "session.time_warning"
	EventSessionAbandoned        EventType = "session.abandoned"
	EventSessionRetriesExhausted EventType = "session.submit_retries_exhausted"
)

// SessionEvent is the base event structure for all session lifecycle events
type SessionEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Session lifecycle event payloads

type SessionStartedEvent struct {
	AttemptID       uint       `json:"attempt_id"`
	AssessmentID    uint       `json:"assessment_id"`
	AssessmentTitle string     `json:"assessment_title"`
	LearnerID       string     `json:"learner_id"`
	StartedAt       time.Time  `json:"started_at"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	Resumed         bool       `json:"resumed"`
}

type SessionSubmittedEvent struct {
	AttemptID     uint      `json:"attempt_id"`
	AssessmentID  uint      `json:"assessment_id"`
	LearnerID     string    `json:"learner_id"`
	Trigger       string    `json:"trigger"`
	SubmittedAt   time.Time `json:"submitted_at"`
	AnsweredCount int       `json:"answered_count"`
	Percentage    float64   `json:"percentage"`
	Passed        bool      `json:"passed"`
}

type SessionExpiredEvent struct {
	AttemptID    uint      `json:"attempt_id"`
	AssessmentID uint      `json:"assessment_id"`
	LearnerID    string    `json:"learner_id"`
	ExpiredAt    time.Time `json:"expired_at"`
}

type SessionTimeWarningEvent struct {
	AttemptID        uint      `json:"attempt_id"`
	AssessmentID     uint      `json:"assessment_id"`
	LearnerID        string    `json:"learner_id"`
	SecondsRemaining int       `json:"seconds_remaining"`
	WarningTime      time.Time `json:"warning_time"`
}

type SessionAbandonedEvent struct {
	AttemptID    uint      `json:"attempt_id"`
	AssessmentID uint      `json:"assessment_id"`
	LearnerID    string    `json:"learner_id"`
	AbandonedAt  time.Time `json:"abandoned_at"`
}

type SessionRetriesExhaustedEvent struct {
	AttemptID    uint   `json:"attempt_id"`
	AssessmentID uint   `json:"assessment_id"`
	LearnerID    string `json:"learner_id"`
	Attempts     int    `json:"attempts"`
	LastError    string `json:"last_error"`
}

// Event factory functions

func NewSessionStartedEvent(attemptID, assessmentID uint, title, learnerID string, startedAt time.Time, deadline *time.Time, resumed bool) *SessionEvent {
	return newEvent(EventSessionStarted, SessionStartedEvent{
		AttemptID:       attemptID,
		AssessmentID:    assessmentID,
		AssessmentTitle: title,
		LearnerID:       learnerID,
		StartedAt:       startedAt,
		Deadline:        deadline,
		Resumed:         resumed,
	})
}

func NewSessionSubmittedEvent(attemptID, assessmentID uint, learnerID, trigger string, answeredCount int, percentage float64, passed bool) *SessionEvent {
	return newEvent(EventSessionSubmitted, SessionSubmittedEvent{
		AttemptID:     attemptID,
		AssessmentID:  assessmentID,
		LearnerID:     learnerID,
		Trigger:       trigger,
		SubmittedAt:   time.Now(),
		AnsweredCount: answeredCount,
		Percentage:    percentage,
		Passed:        passed,
	})
}

func NewSessionExpiredEvent(attemptID, assessmentID uint, learnerID string) *SessionEvent {
	return newEvent(EventSessionExpired, SessionExpiredEvent{
		AttemptID:    attemptID,
		AssessmentID: assessmentID,
		LearnerID:    learnerID,
		ExpiredAt:    time.Now(),
	})
}

func NewSessionTimeWarningEvent(attemptID, assessmentID uint, learnerID string, secondsRemaining int) *SessionEvent {
	return newEvent(EventSessionTimeWarning, SessionTimeWarningEvent{
		AttemptID:        attemptID,
		AssessmentID:     assessmentID,
		LearnerID:        learnerID,
		SecondsRemaining: secondsRemaining,
		WarningTime:      time.Now(),
	})
}

func NewSessionAbandonedEvent(attemptID, assessmentID uint, learnerID string) *SessionEvent {
	return newEvent(EventSessionAbandoned, SessionAbandonedEvent{
		AttemptID:    attemptID,
		AssessmentID: assessmentID,
		LearnerID:    learnerID,
		AbandonedAt:  time.Now(),
	})
}

func NewSessionRetriesExhaustedEvent(attemptID, assessmentID uint, learnerID string, attempts int, lastErr error) *SessionEvent {
	msg := ""
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return newEvent(EventSessionRetriesExhausted, SessionRetriesExhaustedEvent{
		AttemptID:    attemptID,
		AssessmentID: assessmentID,
		LearnerID:    learnerID,
		Attempts:     attempts,
		LastError:    msg,
	})
}

func newEvent(eventType EventType, data interface{}) *SessionEvent {
	return &SessionEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    "session-gateway",
		Version:   "1.0",
		Data:      data,
	}
}
