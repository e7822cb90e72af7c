package models

import "encoding/json"

type QuestionType string

const (
	SingleChoice QuestionType = "single_choice"
	TrueFalse    QuestionType = "true_false"
	ShortText    QuestionType = "short_text"
	LongText     QuestionType = "long_text"
)

// Question is one item of an assessment as the learner sees it. Option
// correctness is stripped by the platform before delivery; the gateway
// never holds answer keys.
type Question struct {
	ID          uint         `json:"id"`
	Type        QuestionType `json:"type"`
	Text        string       `json:"text"`
	Options     []Option     `json:"options,omitempty"` // choice types only
	Points      int          `json:"points"`
	Explanation *string      `json:"explanation,omitempty"`
}

// Option is one selectable choice of a single-choice question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ChoiceType reports whether the question carries an option list.
func (q *Question) ChoiceType() bool {
	return q.Type == SingleChoice || q.Type == TrueFalse
}

// ValidValue checks that an answer payload is structurally acceptable for
// the question type: an option ID for choice questions, a boolean for
// true/false, a string for text questions.
func (q *Question) ValidValue(value json.RawMessage) bool {
	if len(value) == 0 {
		return false
	}
	switch q.Type {
	case SingleChoice:
		var optionID string
		if err := json.Unmarshal(value, &optionID); err != nil {
			return false
		}
		for _, opt := range q.Options {
			if opt.ID == optionID {
				return true
			}
		}
		return false
	case TrueFalse:
		var b bool
		return json.Unmarshal(value, &b) == nil
	case ShortText, LongText:
		var s string
		return json.Unmarshal(value, &s) == nil
	default:
		return false
	}
}
