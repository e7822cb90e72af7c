package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/learnware/session-gateway/internal/events"
	"github.com/learnware/session-gateway/internal/models"
	"github.com/learnware/session-gateway/internal/platform"
)

// Status is the controller's lifecycle state. It is a superset of the
// attempt status: Idle and Starting exist only inside the gateway, before
// the platform has an attempt on record.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusStarting   Status = "starting"
	StatusActive     Status = "active"
	StatusSubmitting Status = "submitting"
	StatusSubmitted  Status = "submitted"
)

const (
	defaultSubmitRetryAttempts = 5
	defaultSubmitRetryInterval = 5 * time.Second
	submitCallTimeout          = 15 * time.Second
)

// ResultRecorder receives graded results for the local history read model.
// A nil recorder disables recording.
type ResultRecorder interface {
	RecordResult(ctx context.Context, learnerID string, assessment *models.Assessment, result *models.Result) error
}

// CatalogInvalidator drops a learner's cached catalog listings once their
// attempt reaches a terminal state. A nil invalidator disables it.
type CatalogInvalidator interface {
	InvalidateLearner(ctx context.Context, learnerID string)
}

// Deps bundles the collaborators a controller needs. The manager owns one
// Deps value and hands it to every controller it creates.
type Deps struct {
	Client      platform.Client
	Publisher   events.EventPublisher
	Checkpoints CheckpointStore
	Recorder    ResultRecorder
	Catalog     CatalogInvalidator
	Logger      *slog.Logger

	SubmitRetryAttempts int
	SubmitRetryInterval time.Duration
}

// Controller drives one learner's attempt through its whole lifecycle:
// start, answer, flag, navigate, submit, view result. All entry points are
// safe for concurrent use; submission is guarded by the single
// active -> submitting transition, so exactly one submission wins no matter
// how the manual call and the timer race.
type Controller struct {
	mu sync.Mutex

	learnerID  string
	status     Status
	attempt    *models.Attempt
	assessment *models.Assessment
	result     *models.Result

	// resultPending: the platform confirmed the attempt is closed but the
	// result fetch failed; a later Submit re-fetches instead of answering
	// from the local guard.
	resultPending bool

	answers *AnswerStore
	flags   *FlagTracker
	timer   *CountdownTimer
	warning *CountdownTimer

	cursor          int
	cursorEnteredAt time.Time

	deps Deps
}

func NewController(learnerID string, deps Deps) *Controller {
	if deps.SubmitRetryAttempts <= 0 {
		deps.SubmitRetryAttempts = defaultSubmitRetryAttempts
	}
	if deps.SubmitRetryInterval <= 0 {
		deps.SubmitRetryInterval = defaultSubmitRetryInterval
	}
	return &Controller{
		learnerID: learnerID,
		status:    StatusIdle,
		flags:     NewFlagTracker(),
		timer:     NewCountdownTimer(),
		warning:   NewCountdownTimer(),
		deps:      deps,
	}
}

// ===== LIFECYCLE =====

// Start opens a new attempt against the platform and activates the session.
// Fails with ErrAttemptInProgress if this controller already owns one.
func (c *Controller) Start(ctx context.Context, assessmentID uint) (*SessionState, error) {
	c.mu.Lock()
	if c.status != StatusIdle {
		status := c.status
		c.mu.Unlock()
		if status == StatusSubmitted {
			return nil, ErrAlreadySubmitted
		}
		return nil, ErrAttemptInProgress
	}
	c.status = StatusStarting
	c.mu.Unlock()

	resp, err := c.deps.Client.CreateAttempt(ctx, &platform.CreateAttemptRequest{
		AssessmentID: assessmentID,
		LearnerID:    c.learnerID,
	})
	if err != nil {
		c.mu.Lock()
		c.status = StatusIdle
		c.mu.Unlock()
		c.deps.Logger.Error("Failed to create attempt",
			"learner_id", c.learnerID,
			"assessment_id", assessmentID,
			"error", err)
		return nil, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	assessment := resp.Assessment
	if !resp.Shuffled {
		shuffleAssessment(&assessment)
	}

	now := time.Now()
	attempt := &models.Attempt{
		ID:           resp.AttemptID,
		AssessmentID: assessment.ID,
		LearnerID:    c.learnerID,
		Status:       models.AttemptActive,
		StartedAt:    now,
	}
	if assessment.Settings.Timed() {
		deadline := now.Add(time.Duration(*assessment.Settings.TimeLimitSeconds) * time.Second)
		attempt.Deadline = &deadline
	}

	c.mu.Lock()
	c.attempt = attempt
	c.assessment = &assessment
	c.answers = NewAnswerStore(attempt.ID, c.learnerID, c.deps.Client, c.deps.Logger)
	c.flags.Reset()
	c.cursor = 0
	c.cursorEnteredAt = now
	c.status = StatusActive
	c.mu.Unlock()

	c.armTimers(attempt.Deadline)

	c.publish(events.NewSessionStartedEvent(
		attempt.ID, assessment.ID, assessment.Title, c.learnerID,
		attempt.StartedAt, attempt.Deadline, false))
	c.saveCheckpoint(ctx)

	c.deps.Logger.Info("Session started",
		"learner_id", c.learnerID,
		"attempt_id", attempt.ID,
		"assessment_id", assessment.ID,
		"timed", attempt.Deadline != nil)

	return c.State(), nil
}

// Resume rebuilds the session from the learner's checkpoint. If the
// deadline passed while the session was offline, the timer-expiry
// submission runs immediately in the background.
func (c *Controller) Resume(ctx context.Context) (*SessionState, error) {
	cp, err := c.deps.Checkpoints.Load(ctx, c.learnerID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.status != StatusIdle {
		c.mu.Unlock()
		return nil, ErrAttemptInProgress
	}
	assessment := cp.Assessment
	c.attempt = &models.Attempt{
		ID:           cp.AttemptID,
		AssessmentID: assessment.ID,
		LearnerID:    cp.LearnerID,
		Status:       models.AttemptActive,
		StartedAt:    cp.StartedAt,
		Deadline:     cp.Deadline,
	}
	c.assessment = &assessment
	c.answers = NewAnswerStore(cp.AttemptID, c.learnerID, c.deps.Client, c.deps.Logger)
	c.answers.Restore(cp.Answers)
	c.flags.Reset()
	for _, id := range cp.Flags {
		c.flags.Flag(id)
	}
	c.cursor = cp.Cursor
	c.cursorEnteredAt = time.Now()
	c.status = StatusActive
	deadline := cp.Deadline
	c.mu.Unlock()

	c.deps.Logger.Info("Session resumed from checkpoint",
		"learner_id", c.learnerID,
		"attempt_id", cp.AttemptID,
		"answers", len(cp.Answers))

	if deadline != nil && !time.Now().Before(*deadline) {
		go c.onTimerExpired()
	} else {
		c.armTimers(deadline)
		c.publish(events.NewSessionStartedEvent(
			cp.AttemptID, assessment.ID, assessment.Title, c.learnerID,
			cp.StartedAt, deadline, true))
	}

	return c.State(), nil
}

// armTimers arms the expiry countdown and, when configured, the
// time-warning countdown. No-op for untimed attempts.
func (c *Controller) armTimers(deadline *time.Time) {
	if deadline == nil {
		return
	}
	remaining := time.Until(*deadline)
	if remaining <= 0 {
		go c.onTimerExpired()
		return
	}
	if err := c.timer.Arm(remaining, c.onTimerExpired); err != nil {
		c.deps.Logger.Error("Failed to arm session timer", "learner_id", c.learnerID, "error", err)
	}

	c.mu.Lock()
	warnAt := time.Duration(c.assessment.Settings.TimeWarningSeconds) * time.Second
	c.mu.Unlock()
	if warnAt > 0 && remaining > warnAt {
		if err := c.warning.Arm(remaining-warnAt, c.onTimeWarning); err != nil {
			c.deps.Logger.Error("Failed to arm warning timer", "learner_id", c.learnerID, "error", err)
		}
	}
}

func (c *Controller) onTimeWarning() {
	c.mu.Lock()
	if c.status != StatusActive {
		c.mu.Unlock()
		return
	}
	attemptID := c.attempt.ID
	assessmentID := c.assessment.ID
	remaining := int(c.timer.Remaining().Seconds())
	c.mu.Unlock()

	c.deps.Logger.Info("Session time warning",
		"learner_id", c.learnerID,
		"attempt_id", attemptID,
		"seconds_remaining", remaining)
	c.publish(events.NewSessionTimeWarningEvent(attemptID, assessmentID, c.learnerID, remaining))
}

// ===== IN-SESSION OPERATIONS =====

// Answer records the learner's response to a question. The local store is
// updated synchronously; the platform sync happens in the background.
func (c *Controller) Answer(ctx context.Context, questionID uint, value json.RawMessage) (*SessionState, error) {
	c.mu.Lock()
	if c.status != StatusActive {
		c.mu.Unlock()
		return nil, c.notActiveErr()
	}
	question := c.assessment.QuestionByID(questionID)
	if question == nil {
		c.mu.Unlock()
		return nil, ErrUnknownQuestion
	}
	if !question.ValidValue(value) {
		c.mu.Unlock()
		return nil, ErrInvalidAnswer
	}
	elapsed := 0
	if c.cursor < len(c.assessment.Questions) && c.assessment.Questions[c.cursor].ID == questionID {
		elapsed = int(time.Since(c.cursorEnteredAt).Seconds())
	}
	store := c.answers
	c.mu.Unlock()

	store.Set(questionID, value, elapsed)
	c.saveCheckpoint(ctx)
	return c.State(), nil
}

// ToggleFlag flips the review mark on a question and returns the new state.
func (c *Controller) ToggleFlag(ctx context.Context, questionID uint) (bool, error) {
	if err := c.requireActiveQuestion(questionID); err != nil {
		return false, err
	}
	flagged := c.flags.Toggle(questionID)
	c.saveCheckpoint(ctx)
	return flagged, nil
}

// FlagQuestion marks a question for review.
func (c *Controller) FlagQuestion(ctx context.Context, questionID uint) error {
	if err := c.requireActiveQuestion(questionID); err != nil {
		return err
	}
	c.flags.Flag(questionID)
	c.saveCheckpoint(ctx)
	return nil
}

// UnflagQuestion clears the review mark on a question.
func (c *Controller) UnflagQuestion(ctx context.Context, questionID uint) error {
	if err := c.requireActiveQuestion(questionID); err != nil {
		return err
	}
	c.flags.Unflag(questionID)
	c.saveCheckpoint(ctx)
	return nil
}

// GoTo moves the navigation cursor to the question at the given index.
func (c *Controller) GoTo(ctx context.Context, index int) (*SessionState, error) {
	c.mu.Lock()
	if c.status != StatusActive {
		c.mu.Unlock()
		return nil, c.notActiveErr()
	}
	if index < 0 || index >= len(c.assessment.Questions) {
		c.mu.Unlock()
		return nil, ErrIndexOutOfRange
	}
	c.cursor = index
	c.cursorEnteredAt = time.Now()
	c.mu.Unlock()

	c.saveCheckpoint(ctx)
	return c.State(), nil
}

func (c *Controller) requireActiveQuestion(questionID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusActive {
		return c.notActiveErr()
	}
	if c.assessment.QuestionByID(questionID) == nil {
		return ErrUnknownQuestion
	}
	return nil
}

// notActiveErr maps the current status to the right sentinel. Caller holds
// the lock.
func (c *Controller) notActiveErr() error {
	switch c.status {
	case StatusIdle, StatusStarting:
		return ErrNoActiveAttempt
	case StatusSubmitted:
		return ErrAlreadySubmitted
	default:
		return ErrAttemptNotActive
	}
}

// ===== SUBMISSION =====

// Submit is the learner-initiated submission. Exactly one submission wins:
// a second manual call, or a manual call racing a fired timer, gets
// ErrAlreadySubmitted without a second platform call.
func (c *Controller) Submit(ctx context.Context) (*models.Result, error) {
	c.mu.Lock()
	switch c.status {
	case StatusActive:
	case StatusSubmitting:
		pending := c.resultPending
		c.mu.Unlock()
		if pending {
			// An earlier submission closed the attempt on the platform but
			// the result fetch failed; converge instead of short-circuiting.
			return c.recoverSubmittedResult(ctx, models.TriggerManual)
		}
		return nil, ErrAlreadySubmitted
	case StatusSubmitted:
		c.mu.Unlock()
		return nil, ErrAlreadySubmitted
	default:
		c.mu.Unlock()
		return nil, ErrNoActiveAttempt
	}
	c.status = StatusSubmitting
	c.timer.Cancel()
	c.warning.Cancel()
	req := c.submitRequestLocked(models.TriggerManual)
	deadline := c.attempt.Deadline
	c.mu.Unlock()

	result, err := c.deps.Client.SubmitAttempt(ctx, req)
	if err != nil {
		if errors.Is(err, platform.ErrAlreadySubmitted) {
			return c.recoverSubmittedResult(ctx, models.TriggerManual)
		}

		// The attempt reverts to active so the learner keeps their
		// answers. The countdown resumes against the original deadline.
		c.mu.Lock()
		if c.status == StatusSubmitting && c.attempt != nil {
			c.status = StatusActive
		}
		c.mu.Unlock()
		c.deps.Logger.Error("Manual submission failed",
			"learner_id", c.learnerID,
			"attempt_id", req.AttemptID,
			"error", err)
		c.rearmAfterFailure(deadline)
		return nil, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	c.finishSubmitted(result, models.TriggerManual)
	return result, nil
}

// onTimerExpired is the countdown callback. If a manual submission already
// claimed the transition this is a silent no-op.
func (c *Controller) onTimerExpired() {
	c.mu.Lock()
	if c.status != StatusActive {
		c.mu.Unlock()
		return
	}
	c.status = StatusSubmitting
	c.warning.Cancel()
	req := c.submitRequestLocked(models.TriggerTimerExpiry)
	attemptID := c.attempt.ID
	assessmentID := c.assessment.ID
	c.mu.Unlock()

	c.deps.Logger.Info("Session time expired, auto-submitting",
		"learner_id", c.learnerID,
		"attempt_id", attemptID)
	c.publish(events.NewSessionExpiredEvent(attemptID, assessmentID, c.learnerID))

	c.submitWithRetry(req, attemptID, assessmentID)
}

// submitWithRetry drives the timer-expiry submission. Unlike the manual
// path there is no learner to re-try, so the gateway retries on its own
// schedule and never reverts to active: the deadline has passed, answers
// are frozen.
func (c *Controller) submitWithRetry(req *platform.SubmitAttemptRequest, attemptID, assessmentID uint) {
	var lastErr error
	for i := 1; i <= c.deps.SubmitRetryAttempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), submitCallTimeout)
		result, err := c.deps.Client.SubmitAttempt(ctx, req)
		cancel()

		if err == nil {
			c.finishSubmitted(result, models.TriggerTimerExpiry)
			return
		}
		if errors.Is(err, platform.ErrAlreadySubmitted) {
			fetchCtx, fetchCancel := context.WithTimeout(context.Background(), submitCallTimeout)
			result, fetchErr := c.deps.Client.GetResult(fetchCtx, attemptID, c.learnerID)
			fetchCancel()
			if fetchErr == nil {
				c.finishSubmitted(result, models.TriggerTimerExpiry)
				return
			}
			c.markResultPending()
			err = fetchErr
		}

		lastErr = err
		c.deps.Logger.Warn("Auto-submission attempt failed",
			"learner_id", c.learnerID,
			"attempt_id", attemptID,
			"try", i,
			"max_tries", c.deps.SubmitRetryAttempts,
			"error", err)
		if i < c.deps.SubmitRetryAttempts {
			time.Sleep(c.deps.SubmitRetryInterval)
		}
	}

	// Stays in submitting: answers are checkpointed and the platform can
	// still grade from its answer log once it recovers.
	c.deps.Logger.Error("Auto-submission retries exhausted",
		"learner_id", c.learnerID,
		"attempt_id", attemptID,
		"tries", c.deps.SubmitRetryAttempts,
		"error", lastErr)
	c.publish(events.NewSessionRetriesExhaustedEvent(
		attemptID, assessmentID, c.learnerID, c.deps.SubmitRetryAttempts, lastErr))
}

// submitRequestLocked captures the submission payload. The local snapshot
// is authoritative: whatever the answer log holds, this payload decides
// grading. Caller holds the lock.
func (c *Controller) submitRequestLocked(trigger models.SubmitTrigger) *platform.SubmitAttemptRequest {
	return &platform.SubmitAttemptRequest{
		AttemptID:      c.attempt.ID,
		LearnerID:      c.learnerID,
		Answers:        c.answers.Snapshot(),
		ElapsedSeconds: int(time.Since(c.attempt.StartedAt).Seconds()),
		Trigger:        trigger,
	}
}

// rearmAfterFailure resumes the countdown after a failed manual submission.
// If the deadline slipped past during the failed call, the timer-expiry
// path takes over immediately.
func (c *Controller) rearmAfterFailure(deadline *time.Time) {
	if deadline == nil {
		return
	}
	remaining := time.Until(*deadline)
	if remaining <= 0 {
		go c.onTimerExpired()
		return
	}
	if err := c.timer.Arm(remaining, c.onTimerExpired); err != nil {
		c.deps.Logger.Error("Failed to re-arm session timer", "learner_id", c.learnerID, "error", err)
	}
}

// recoverSubmittedResult handles the platform reporting the attempt as
// already closed: some earlier submission (possibly a lost response) won,
// so fetch its result and converge.
func (c *Controller) recoverSubmittedResult(ctx context.Context, trigger models.SubmitTrigger) (*models.Result, error) {
	c.mu.Lock()
	attemptID := c.attempt.ID
	c.mu.Unlock()

	result, err := c.deps.Client.GetResult(ctx, attemptID, c.learnerID)
	if err != nil {
		// The attempt is closed on the platform; remember that so the next
		// Submit re-fetches instead of trusting the local guard.
		c.markResultPending()
		return nil, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	c.finishSubmitted(result, trigger)
	return result, nil
}

func (c *Controller) markResultPending() {
	c.mu.Lock()
	if c.status == StatusSubmitting {
		c.resultPending = true
	}
	c.mu.Unlock()
}

// finishSubmitted is the single place the session reaches its terminal
// state. Only the submitting -> submitted transition is taken; a session
// torn down or already finished by a racing path is left alone.
func (c *Controller) finishSubmitted(result *models.Result, trigger models.SubmitTrigger) {
	c.mu.Lock()
	if c.status != StatusSubmitting || c.attempt == nil {
		c.mu.Unlock()
		return
	}
	c.status = StatusSubmitted
	c.resultPending = false
	c.attempt.Status = models.AttemptSubmitted
	c.result = result
	assessment := c.assessment
	answered := c.answers.Len()
	c.mu.Unlock()

	c.deps.Logger.Info("Session submitted",
		"learner_id", c.learnerID,
		"attempt_id", result.AttemptID,
		"trigger", trigger,
		"percentage", result.Percentage,
		"passed", result.Passed)

	c.publish(events.NewSessionSubmittedEvent(
		result.AttemptID, result.AssessmentID, c.learnerID,
		string(trigger), answered, result.Percentage, result.Passed))

	ctx, cancel := context.WithTimeout(context.Background(), submitCallTimeout)
	defer cancel()
	if err := c.deps.Checkpoints.Delete(ctx, c.learnerID); err != nil {
		c.deps.Logger.Warn("Failed to delete checkpoint", "learner_id", c.learnerID, "error", err)
	}
	if c.deps.Recorder != nil {
		if err := c.deps.Recorder.RecordResult(ctx, c.learnerID, assessment, result); err != nil {
			c.deps.Logger.Warn("Failed to record result in history",
				"learner_id", c.learnerID,
				"attempt_id", result.AttemptID,
				"error", err)
		}
	}
	// The submission changes the learner's attempt listings
	if c.deps.Catalog != nil {
		c.deps.Catalog.InvalidateLearner(ctx, c.learnerID)
	}
}

// ===== READ SIDE =====

// Result returns the graded result of a submitted session.
func (c *Controller) Result() (*models.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusSubmitted || c.result == nil {
		return nil, ErrNoResult
	}
	return c.result, nil
}

// TimeRemaining returns the seconds left on the countdown, or nil for
// untimed sessions.
func (c *Controller) TimeRemaining() (*int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt == nil {
		return nil, ErrNoActiveAttempt
	}
	return c.remainingLocked(), nil
}

func (c *Controller) remainingLocked() *int {
	if c.attempt == nil || c.attempt.Deadline == nil {
		return nil
	}
	remaining := int(time.Until(*c.attempt.Deadline).Seconds())
	if remaining < 0 || c.status == StatusSubmitted {
		remaining = 0
	}
	return &remaining
}

// Abandon tears the session down without submitting. The platform attempt
// stays open server-side until its own expiry rules close it. While a
// submission is in flight the attempt state must stay intact, so abandoning
// a submitting session is rejected.
func (c *Controller) Abandon(ctx context.Context) error {
	c.mu.Lock()
	if c.attempt == nil {
		c.mu.Unlock()
		return ErrNoActiveAttempt
	}
	if c.status == StatusSubmitting {
		c.mu.Unlock()
		return ErrSubmissionInProgress
	}
	attemptID := c.attempt.ID
	assessmentID := c.attempt.AssessmentID
	wasActive := c.status == StatusActive
	c.status = StatusIdle
	c.attempt = nil
	c.assessment = nil
	c.result = nil
	c.timer.Cancel()
	c.warning.Cancel()
	c.flags.Reset()
	c.mu.Unlock()

	if err := c.deps.Checkpoints.Delete(ctx, c.learnerID); err != nil {
		c.deps.Logger.Warn("Failed to delete checkpoint", "learner_id", c.learnerID, "error", err)
	}
	if wasActive {
		c.publish(events.NewSessionAbandonedEvent(attemptID, assessmentID, c.learnerID))
	}
	c.deps.Logger.Info("Session abandoned", "learner_id", c.learnerID, "attempt_id", attemptID)
	return nil
}

// Close cancels timers without touching the checkpoint, so a later Resume
// can pick the attempt back up. Used on gateway shutdown.
func (c *Controller) Close() {
	c.timer.Cancel()
	c.warning.Cancel()
}

// ===== STATE VIEW =====

// QuestionMark is one navigator cell: enough to render the question grid.
type QuestionMark struct {
	Index      int  `json:"index"`
	QuestionID uint `json:"question_id"`
	Answered   bool `json:"answered"`
	Flagged    bool `json:"flagged"`
}

// SessionState is the full view the UI renders from.
type SessionState struct {
	Status           Status           `json:"status"`
	AttemptID        uint             `json:"attempt_id,omitempty"`
	AssessmentID     uint             `json:"assessment_id,omitempty"`
	AssessmentTitle  string           `json:"assessment_title,omitempty"`
	Cursor           int              `json:"cursor"`
	TotalQuestions   int              `json:"total_questions"`
	AnsweredCount    int              `json:"answered_count"`
	Question         *models.Question `json:"question,omitempty"`
	CurrentAnswer    json.RawMessage  `json:"current_answer,omitempty"`
	Navigator        []QuestionMark   `json:"navigator,omitempty"`
	RemainingSeconds *int             `json:"remaining_seconds,omitempty"`
	AllSynced        bool             `json:"all_synced"`
}

// State returns a point-in-time view of the session.
func (c *Controller) State() *SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := &SessionState{Status: c.status, AllSynced: true}
	if c.attempt == nil || c.assessment == nil {
		return state
	}

	state.AttemptID = c.attempt.ID
	state.AssessmentID = c.assessment.ID
	state.AssessmentTitle = c.assessment.Title
	state.Cursor = c.cursor
	state.TotalQuestions = len(c.assessment.Questions)
	state.AnsweredCount = c.answers.Len()
	state.AllSynced = c.answers.AllSynced()
	state.RemainingSeconds = c.remainingLocked()

	if c.cursor < len(c.assessment.Questions) {
		q := c.assessment.Questions[c.cursor]
		state.Question = &q
		if a, ok := c.answers.Get(q.ID); ok {
			state.CurrentAnswer = a.Value
		}
	}

	state.Navigator = make([]QuestionMark, len(c.assessment.Questions))
	for i, q := range c.assessment.Questions {
		state.Navigator[i] = QuestionMark{
			Index:      i,
			QuestionID: q.ID,
			Answered:   c.answers.Answered(q.ID),
			Flagged:    c.flags.IsFlagged(q.ID),
		}
	}
	return state
}

// ===== CHECKPOINTING =====

// saveCheckpoint persists the current session state. Best-effort: a failed
// save costs resumability, not correctness.
func (c *Controller) saveCheckpoint(ctx context.Context) {
	c.mu.Lock()
	if c.status != StatusActive || c.attempt == nil {
		c.mu.Unlock()
		return
	}
	cp := &Checkpoint{
		LearnerID:  c.learnerID,
		AttemptID:  c.attempt.ID,
		Assessment: *c.assessment,
		Status:     models.AttemptActive,
		StartedAt:  c.attempt.StartedAt,
		Deadline:   c.attempt.Deadline,
		Cursor:     c.cursor,
		Answers:    c.answers.Snapshot(),
		Flags:      c.flags.All(),
	}
	c.mu.Unlock()

	if err := c.deps.Checkpoints.Save(ctx, cp); err != nil {
		c.deps.Logger.Warn("Failed to save checkpoint",
			"learner_id", c.learnerID,
			"attempt_id", cp.AttemptID,
			"error", err)
	}
}

func (c *Controller) publish(event *events.SessionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.deps.Publisher.PublishSessionEvent(ctx, event); err != nil {
		c.deps.Logger.Warn("Failed to publish session event",
			"event_type", event.Type,
			"error", err)
	}
}

// shuffleAssessment applies the shuffle settings locally when the platform
// delivered the canonical order.
func shuffleAssessment(a *models.Assessment) {
	if a.Settings.ShuffleQuestions {
		rand.Shuffle(len(a.Questions), func(i, j int) {
			a.Questions[i], a.Questions[j] = a.Questions[j], a.Questions[i]
		})
	}
	if a.Settings.ShuffleOptions {
		for i := range a.Questions {
			if !a.Questions[i].ChoiceType() || a.Questions[i].Type == models.TrueFalse {
				continue
			}
			opts := a.Questions[i].Options
			rand.Shuffle(len(opts), func(x, y int) {
				opts[x], opts[y] = opts[y], opts[x]
			})
		}
	}
}
