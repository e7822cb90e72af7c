package models

import "time"

// Assessment is the immutable definition of a quiz as delivered by the
// platform's attempt-creation endpoint. The gateway never mutates it.
type Assessment struct {
	ID          uint       `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Settings    Settings   `json:"settings"`
	Questions   []Question `json:"questions"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Settings carries the scoring and timing rules for an assessment.
type Settings struct {
	TimeLimitSeconds    *int `json:"time_limit_seconds,omitempty"` // nil means untimed
	MaxAttempts         int  `json:"max_attempts"`
	PassingScorePercent int  `json:"passing_score_percent"`
	ShuffleQuestions    bool `json:"shuffle_questions"`
	ShuffleOptions      bool `json:"shuffle_options"`
	TimeWarningSeconds  int  `json:"time_warning_seconds"` // 0 disables the warning event
}

// Timed reports whether a countdown applies to attempts on this assessment.
func (s Settings) Timed() bool {
	return s.TimeLimitSeconds != nil && *s.TimeLimitSeconds > 0
}

// TotalPoints sums the point values of all questions.
func (a *Assessment) TotalPoints() int {
	total := 0
	for _, q := range a.Questions {
		total += q.Points
	}
	return total
}

// QuestionByID returns the question with the given ID, or nil.
func (a *Assessment) QuestionByID(questionID uint) *Question {
	for i := range a.Questions {
		if a.Questions[i].ID == questionID {
			return &a.Questions[i]
		}
	}
	return nil
}

// AssessmentSummary is the catalog listing shape: enough to render a card
// and decide whether the learner may start an attempt.
type AssessmentSummary struct {
	ID                uint       `json:"id"`
	Title             string     `json:"title"`
	Description       *string    `json:"description,omitempty"`
	QuestionCount     int        `json:"question_count"`
	TimeLimitSeconds  *int       `json:"time_limit_seconds,omitempty"`
	MaxAttempts       int        `json:"max_attempts"`
	AttemptsUsed      int        `json:"attempts_used"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	PassingScorePct   int        `json:"passing_score_percent"`
	HasActiveAttempt  bool       `json:"has_active_attempt"`
	AttemptsRemaining int        `json:"attempts_remaining"`
}
