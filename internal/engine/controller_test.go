package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/learnware/session-gateway/internal/events"
	"github.com/learnware/session-gateway/internal/models"
	"github.com/learnware/session-gateway/internal/platform"
)

// ===== TEST DOUBLES =====

// fakePlatform is an in-memory platform backend. Submit errors are consumed
// from a queue so tests can script failure-then-success sequences.
type fakePlatform struct {
	mu sync.Mutex

	assessment models.Assessment
	createErr  error

	syncCalls []platform.SyncAnswerRequest
	syncErr   error

	submitCalls []*platform.SubmitAttemptRequest
	submitErrs  []error

	// When set, SubmitAttempt signals submitStarted and parks on
	// submitRelease so a test can act mid-flight.
	submitStarted chan struct{}
	submitRelease chan struct{}

	result    *models.Result
	resultErr error
}

func (f *fakePlatform) CreateAttempt(ctx context.Context, req *platform.CreateAttemptRequest) (*platform.CreateAttemptResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &platform.CreateAttemptResponse{
		AttemptID:  42,
		Assessment: f.assessment,
		Shuffled:   true,
	}, nil
}

func (f *fakePlatform) SyncAnswer(ctx context.Context, req *platform.SyncAnswerRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.syncErr != nil {
		return f.syncErr
	}
	f.syncCalls = append(f.syncCalls, *req)
	return nil
}

func (f *fakePlatform) SubmitAttempt(ctx context.Context, req *platform.SubmitAttemptRequest) (*models.Result, error) {
	if f.submitStarted != nil {
		f.submitStarted <- struct{}{}
	}
	if f.submitRelease != nil {
		<-f.submitRelease
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls = append(f.submitCalls, req)
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.gradeLocked(req), nil
}

func (f *fakePlatform) GetResult(ctx context.Context, attemptID uint, learnerID string) (*models.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resultErr != nil {
		return nil, f.resultErr
	}
	if f.result != nil {
		return f.result, nil
	}
	return nil, platform.ErrNotFound
}

func (f *fakePlatform) ListAssessments(ctx context.Context, learnerID string, filters platform.ListFilters) ([]*models.AssessmentSummary, int64, error) {
	return nil, 0, nil
}

func (f *fakePlatform) ListAttempts(ctx context.Context, learnerID string, filters platform.ListFilters) ([]*models.AttemptSummary, int64, error) {
	return nil, 0, nil
}

func (f *fakePlatform) gradeLocked(req *platform.SubmitAttemptRequest) *models.Result {
	return &models.Result{
		AttemptID:      req.AttemptID,
		AssessmentID:   f.assessment.ID,
		Score:          float64(len(req.Answers)),
		MaxScore:       len(f.assessment.Questions),
		Percentage:     100 * float64(len(req.Answers)) / float64(len(f.assessment.Questions)),
		Passed:         true,
		ElapsedSeconds: req.ElapsedSeconds,
		GradedAt:       time.Now(),
	}
}

func (f *fakePlatform) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitCalls)
}

func (f *fakePlatform) lastSubmit() *platform.SubmitAttemptRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.submitCalls) == 0 {
		return nil
	}
	return f.submitCalls[len(f.submitCalls)-1]
}

// fakeCatalogInvalidator records which learners had their listings dropped.
type fakeCatalogInvalidator struct {
	mu       sync.Mutex
	learners []string
}

func (f *fakeCatalogInvalidator) InvalidateLearner(ctx context.Context, learnerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.learners = append(f.learners, learnerID)
}

func (f *fakeCatalogInvalidator) invalidated() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.learners...)
}

// memCheckpointStore is an in-memory CheckpointStore.
type memCheckpointStore struct {
	mu    sync.Mutex
	saved map[string]*Checkpoint
}

func newMemCheckpointStore() *memCheckpointStore {
	return &memCheckpointStore{saved: make(map[string]*Checkpoint)}
}

func (s *memCheckpointStore) Save(ctx context.Context, cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *cp
	s.saved[cp.LearnerID] = &copied
	return nil
}

func (s *memCheckpointStore) Load(ctx context.Context, learnerID string) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.saved[learnerID]
	if !ok {
		return nil, ErrNoCheckpoint
	}
	copied := *cp
	return &copied, nil
}

func (s *memCheckpointStore) Delete(ctx context.Context, learnerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.saved, learnerID)
	return nil
}

func (s *memCheckpointStore) has(learnerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.saved[learnerID]
	return ok
}

// ===== FIXTURES =====

func intPtr(n int) *int { return &n }

func testAssessment(timeLimitSeconds *int) models.Assessment {
	return models.Assessment{
		ID:    7,
		Title: "Networking Basics",
		Settings: models.Settings{
			TimeLimitSeconds:    timeLimitSeconds,
			MaxAttempts:         3,
			PassingScorePercent: 60,
		},
		Questions: []models.Question{
			{
				ID:   1,
				Type: models.SingleChoice,
				Text: "Which layer does TCP live on?",
				Options: []models.Option{
					{ID: "a", Text: "Transport"},
					{ID: "b", Text: "Network"},
				},
				Points: 2,
			},
			{
				ID:     2,
				Type:   models.TrueFalse,
				Text:   "UDP guarantees delivery.",
				Points: 1,
			},
			{
				ID:     3,
				Type:   models.ShortText,
				Text:   "Name the protocol behind the web.",
				Points: 2,
			},
		},
	}
}

type testEnv struct {
	ctrl        *Controller
	fp          *fakePlatform
	checkpoints *memCheckpointStore
	publisher   *events.MockEventPublisher
}

func newTestEnv(t *testing.T, timeLimit *int) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fp := &fakePlatform{assessment: testAssessment(timeLimit)}
	checkpoints := newMemCheckpointStore()
	publisher := events.NewMockEventPublisher(logger)

	ctrl := NewController("learner-1", Deps{
		Client:              fp,
		Publisher:           publisher,
		Checkpoints:         checkpoints,
		Logger:              logger,
		SubmitRetryAttempts: 2,
		SubmitRetryInterval: 10 * time.Millisecond,
	})
	t.Cleanup(ctrl.Close)

	return &testEnv{ctrl: ctrl, fp: fp, checkpoints: checkpoints, publisher: publisher}
}

func waitForStatus(t *testing.T, ctrl *Controller, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ctrl.State().Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %q, still %q", want, ctrl.State().Status)
}

func raw(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

// ===== LIFECYCLE TESTS =====

func TestController_FullSession(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	state, err := env.ctrl.Start(ctx, 7)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if state.Status != StatusActive {
		t.Fatalf("expected active, got %s", state.Status)
	}
	if state.TotalQuestions != 3 {
		t.Fatalf("expected 3 questions, got %d", state.TotalQuestions)
	}

	if _, err := env.ctrl.Answer(ctx, 1, raw(t, "a")); err != nil {
		t.Fatalf("Answer q1 failed: %v", err)
	}
	if _, err := env.ctrl.ToggleFlag(ctx, 2); err != nil {
		t.Fatalf("ToggleFlag failed: %v", err)
	}
	state, err = env.ctrl.GoTo(ctx, 2)
	if err != nil {
		t.Fatalf("GoTo failed: %v", err)
	}
	if state.Question == nil || state.Question.ID != 3 {
		t.Fatalf("cursor should be on question 3, state %+v", state.Question)
	}
	if _, err := env.ctrl.Answer(ctx, 3, raw(t, "HTTP")); err != nil {
		t.Fatalf("Answer q3 failed: %v", err)
	}

	nav := env.ctrl.State().Navigator
	if !nav[0].Answered || nav[1].Answered || !nav[2].Answered {
		t.Errorf("navigator answered marks wrong: %+v", nav)
	}
	if !nav[1].Flagged {
		t.Errorf("question 2 should be flagged: %+v", nav)
	}

	result, err := env.ctrl.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.AttemptID != 42 {
		t.Errorf("unexpected attempt ID %d", result.AttemptID)
	}

	// The submitted payload is the local snapshot, ordered by question ID
	req := env.fp.lastSubmit()
	if len(req.Answers) != 2 {
		t.Fatalf("expected 2 answers in payload, got %d", len(req.Answers))
	}
	if req.Answers[0].QuestionID != 1 || req.Answers[1].QuestionID != 3 {
		t.Errorf("payload not ordered by question ID: %+v", req.Answers)
	}
	if req.Trigger != models.TriggerManual {
		t.Errorf("expected manual trigger, got %s", req.Trigger)
	}

	if env.ctrl.State().Status != StatusSubmitted {
		t.Error("controller should be submitted")
	}
	if env.checkpoints.has("learner-1") {
		t.Error("checkpoint should be deleted after submission")
	}

	if _, err := env.ctrl.Result(); err != nil {
		t.Errorf("Result failed after submission: %v", err)
	}
}

func TestController_StartTwice(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.ctrl.Start(ctx, 7); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := env.ctrl.Start(ctx, 7); !errors.Is(err, ErrAttemptInProgress) {
		t.Fatalf("expected ErrAttemptInProgress, got %v", err)
	}
}

func TestController_StartFailureRevertsToIdle(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fp.createErr = platform.ErrAttemptLimitExceeded
	ctx := context.Background()

	_, err := env.ctrl.Start(ctx, 7)
	if !errors.Is(err, ErrStartFailed) {
		t.Fatalf("expected ErrStartFailed, got %v", err)
	}
	if !errors.Is(err, platform.ErrAttemptLimitExceeded) {
		t.Fatalf("platform sentinel lost: %v", err)
	}
	if env.ctrl.State().Status != StatusIdle {
		t.Error("failed start should leave controller idle")
	}

	env.fp.createErr = nil
	if _, err := env.ctrl.Start(ctx, 7); err != nil {
		t.Fatalf("retry after failed start should work: %v", err)
	}
}

// ===== ANSWER TESTS =====

func TestController_AnswerLastWriteWins(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.ctrl.Start(ctx, 7); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := env.ctrl.Answer(ctx, 1, raw(t, "a")); err != nil {
		t.Fatalf("first answer failed: %v", err)
	}
	if _, err := env.ctrl.Answer(ctx, 1, raw(t, "b")); err != nil {
		t.Fatalf("second answer failed: %v", err)
	}

	if _, err := env.ctrl.Submit(ctx); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	req := env.fp.lastSubmit()
	if len(req.Answers) != 1 {
		t.Fatalf("expected 1 answer, got %d", len(req.Answers))
	}
	var value string
	if err := json.Unmarshal(req.Answers[0].Value, &value); err != nil {
		t.Fatalf("unmarshal answer: %v", err)
	}
	if value != "b" {
		t.Errorf("expected last write to win, got %q", value)
	}
}

func TestController_AnswerValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.ctrl.Start(ctx, 7); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := env.ctrl.Answer(ctx, 99, raw(t, "a")); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("expected ErrUnknownQuestion, got %v", err)
	}
	// "z" is not an option of question 1
	if _, err := env.ctrl.Answer(ctx, 1, raw(t, "z")); !errors.Is(err, ErrInvalidAnswer) {
		t.Errorf("expected ErrInvalidAnswer, got %v", err)
	}
	// question 2 is true/false
	if _, err := env.ctrl.Answer(ctx, 2, raw(t, "yes")); !errors.Is(err, ErrInvalidAnswer) {
		t.Errorf("expected ErrInvalidAnswer for non-bool, got %v", err)
	}
	if _, err := env.ctrl.Answer(ctx, 2, raw(t, true)); err != nil {
		t.Errorf("bool answer should pass: %v", err)
	}
}

func TestController_GoToBounds(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.ctrl.Start(ctx, 7); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := env.ctrl.GoTo(ctx, -1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange for -1, got %v", err)
	}
	if _, err := env.ctrl.GoTo(ctx, 3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange for 3, got %v", err)
	}
	if _, err := env.ctrl.GoTo(ctx, 1); err != nil {
		t.Errorf("GoTo 1 should work: %v", err)
	}
}

// ===== SUBMISSION TESTS =====

func TestController_DoubleSubmit(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.ctrl.Start(ctx, 7); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := env.ctrl.Submit(ctx); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	if _, err := env.ctrl.Submit(ctx); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}

	if got := env.fp.submitCount(); got != 1 {
		t.Fatalf("expected exactly 1 platform submission, got %d", got)
	}
}

func TestController_ManualVsTimerRace(t *testing.T) {
	env := newTestEnv(t, intPtr(3600))
	ctx := context.Background()

	if _, err := env.ctrl.Start(ctx, 7); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Drive the expiry callback and the manual call concurrently; exactly
	// one of them claims the active -> submitting transition.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		env.ctrl.onTimerExpired()
	}()
	go func() {
		defer wg.Done()
		_, _ = env.ctrl.Submit(ctx)
	}()
	wg.Wait()

	waitForStatus(t, env.ctrl, StatusSubmitted)

	if got := env.fp.submitCount(); got != 1 {
		t.Fatalf("expected exactly 1 platform submission, got %d", got)
	}
}

func TestController_ManualSubmitFailureRevertsToActive(t *testing.T) {
	env := newTestEnv(t, intPtr(3600))
	ctx := context.Background()

	if _, err := env.ctrl.Start(ctx, 7); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := env.ctrl.Answer(ctx, 1, raw(t, "a")); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	env.fp.mu.Lock()
	env.fp.submitErrs = []error{platform.ErrUnavailable}
	env.fp.mu.Unlock()

	_, err := env.ctrl.Submit(ctx)
	if !errors.Is(err, ErrSubmitFailed) {
		t.Fatalf("expected ErrSubmitFailed, got %v", err)
	}

	state := env.ctrl.State()
	if state.Status != StatusActive {
		t.Fatalf("failed manual submit should revert to active, got %s", state.Status)
	}
	if state.AnsweredCount != 1 {
		t.Error("answers should survive a failed submission")
	}
	if state.RemainingSeconds == nil || *state.RemainingSeconds <= 0 {
		t.Error("countdown should still be running against the original deadline")
	}

	if _, err := env.ctrl.Submit(ctx); err != nil {
		t.Fatalf("retry Submit failed: %v", err)
	}
	if got := env.fp.submitCount(); got != 2 {
		t.Fatalf("expected 2 platform calls, got %d", got)
	}
}

func TestController_TimerExpirySubmitsWithRetry(t *testing.T) {
	env := newTestEnv(t, intPtr(3600))
	ctx := context.Background()

	if _, err := env.ctrl.Start(ctx, 7); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := env.ctrl.Answer(ctx, 1, raw(t, "a")); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	// First platform call fails; the expiry path retries on its own
	env.fp.mu.Lock()
	env.fp.submitErrs = []error{platform.ErrUnavailable}
	env.fp.mu.Unlock()

	env.ctrl.onTimerExpired()
	waitForStatus(t, env.ctrl, StatusSubmitted)

	if got := env.fp.submitCount(); got != 2 {
		t.Fatalf("expected 2 platform calls (fail then retry), got %d", got)
	}
	if trigger := env.fp.lastSubmit().Trigger; trigger != models.TriggerTimerExpiry {
		t.Errorf("expected timer_expiry trigger, got %s", trigger)
	}

	// Manual submit after the timer won reports already submitted
	if _, err := env.ctrl.Submit(ctx); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestController_TimerExpiryConvergesOnAlreadySubmitted(t *testing.T) {
	env := newTestEnv(t, intPtr(3600))
	ctx := context.Background()

	if _, err := env.ctrl.Start(ctx, 7); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	env.fp.mu.Lock()
	env.fp.submitErrs = []error{platform.ErrAlreadySubmitted}
	env.fp.result = &models.Result{AttemptID: 42, AssessmentID: 7, Percentage: 80, Passed: true}
	env.fp.mu.Unlock()

	env.ctrl.onTimerExpired()
	waitForStatus(t, env.ctrl, StatusSubmitted)

	result, err := env.ctrl.Result()
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if result.Percentage != 80 {
		t.Errorf("expected the fetched result, got %+v", result)
	}
}

func TestController_TimerExpiryRetriesExhausted(t *testing.T) {
	env := newTestEnv(t, intPtr(3600))
	ctx := context.Background()

	if _, err := env.ctrl.Start(ctx, 7); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	env.fp.mu.Lock()
	env.fp.submitErrs = []error{platform.ErrUnavailable, platform.ErrUnavailable}
	env.fp.mu.Unlock()

	env.ctrl.onTimerExpired()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		found := false
		for _, ev := range env.publisher.GetPublishedEvents() {
			if ev.Type == events.EventSessionRetriesExhausted {
				found = true
			}
		}
		if found {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if env.ctrl.State().Status != StatusSubmitting {
		t.Errorf("exhausted retries should leave the session submitting, got %s", env.ctrl.State().Status)
	}
	if got := env.fp.submitCount(); got != 2 {
		t.Errorf("expected 2 tries, got %d", got)
	}
}

func TestController_AbandonDuringSubmitRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.fp.submitStarted = make(chan struct{}, 1)
	env.fp.submitRelease = make(chan struct{})

	if _, err := env.ctrl.Start(ctx, 7); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := env.ctrl.Answer(ctx, 1, raw(t, "a")); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	submitErr := make(chan error, 1)
	go func() {
		_, err := env.ctrl.Submit(ctx)
		submitErr <- err
	}()

	// The submission is parked inside the platform call; abandoning now
	// must not tear the attempt out from under it.
	<-env.fp.submitStarted
	if err := env.ctrl.Abandon(ctx); !errors.Is(err, ErrSubmissionInProgress) {
		t.Fatalf("expected ErrSubmissionInProgress, got %v", err)
	}

	close(env.fp.submitRelease)
	if err := <-submitErr; err != nil {
		t.Fatalf("Submit failed after rejected abandon: %v", err)
	}

	if env.ctrl.State().Status != StatusSubmitted {
		t.Fatalf("session should finish submitted, got %s", env.ctrl.State().Status)
	}
	if _, err := env.ctrl.Result(); err != nil {
		t.Errorf("Result failed: %v", err)
	}
}

func TestController_SubmitRecoversResultAfterFetchFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.ctrl.Start(ctx, 7); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// The platform reports the attempt closed but the result fetch fails
	env.fp.mu.Lock()
	env.fp.submitErrs = []error{platform.ErrAlreadySubmitted}
	env.fp.resultErr = platform.ErrUnavailable
	env.fp.mu.Unlock()

	_, err := env.ctrl.Submit(ctx)
	if !errors.Is(err, ErrSubmitFailed) {
		t.Fatalf("expected ErrSubmitFailed, got %v", err)
	}
	if env.ctrl.State().Status != StatusSubmitting {
		t.Fatalf("expected submitting while the result is outstanding, got %s", env.ctrl.State().Status)
	}

	// Once the platform recovers, a retry converges on the result instead
	// of answering from the local guard
	env.fp.mu.Lock()
	env.fp.resultErr = nil
	env.fp.result = &models.Result{AttemptID: 42, AssessmentID: 7, Percentage: 80, Passed: true}
	env.fp.mu.Unlock()

	result, err := env.ctrl.Submit(ctx)
	if err != nil {
		t.Fatalf("retry Submit failed: %v", err)
	}
	if result.Percentage != 80 {
		t.Errorf("expected the fetched result, got %+v", result)
	}
	if env.ctrl.State().Status != StatusSubmitted {
		t.Errorf("session should finish submitted, got %s", env.ctrl.State().Status)
	}
	if got := env.fp.submitCount(); got != 1 {
		t.Errorf("the retry should fetch, not resubmit: %d platform submissions", got)
	}
	if _, err := env.ctrl.Result(); err != nil {
		t.Errorf("Result failed: %v", err)
	}
}

// ===== RESUME TESTS =====

func TestController_ResumeFromCheckpoint(t *testing.T) {
	env := newTestEnv(t, intPtr(3600))
	ctx := context.Background()

	deadline := time.Now().Add(30 * time.Minute)
	assessment := testAssessment(intPtr(3600))
	err := env.checkpoints.Save(ctx, &Checkpoint{
		LearnerID:  "learner-1",
		AttemptID:  42,
		Assessment: assessment,
		Status:     models.AttemptActive,
		StartedAt:  time.Now().Add(-30 * time.Minute),
		Deadline:   &deadline,
		Cursor:     1,
		Answers: []models.Answer{
			{QuestionID: 1, Value: raw(t, "a"), SavedAt: time.Now()},
		},
		Flags: []uint{2},
	})
	if err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	state, err := env.ctrl.Resume(ctx)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if state.Status != StatusActive {
		t.Fatalf("resumed session should be active, got %s", state.Status)
	}
	if state.Cursor != 1 {
		t.Errorf("cursor not restored: %d", state.Cursor)
	}
	if state.AnsweredCount != 1 {
		t.Errorf("answers not restored: %d", state.AnsweredCount)
	}
	if !state.Navigator[1].Flagged {
		t.Errorf("flags not restored: %+v", state.Navigator)
	}
	if state.RemainingSeconds == nil || *state.RemainingSeconds <= 0 {
		t.Error("countdown should resume against the stored deadline")
	}
}

func TestController_ResumeExpiredCheckpointAutoSubmits(t *testing.T) {
	env := newTestEnv(t, intPtr(3600))
	ctx := context.Background()

	deadline := time.Now().Add(-time.Minute)
	err := env.checkpoints.Save(ctx, &Checkpoint{
		LearnerID:  "learner-1",
		AttemptID:  42,
		Assessment: testAssessment(intPtr(3600)),
		Status:     models.AttemptActive,
		StartedAt:  time.Now().Add(-2 * time.Hour),
		Deadline:   &deadline,
		Answers: []models.Answer{
			{QuestionID: 3, Value: raw(t, "HTTP"), SavedAt: time.Now()},
		},
	})
	if err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	if _, err := env.ctrl.Resume(ctx); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	waitForStatus(t, env.ctrl, StatusSubmitted)

	req := env.fp.lastSubmit()
	if req.Trigger != models.TriggerTimerExpiry {
		t.Errorf("expected timer_expiry trigger, got %s", req.Trigger)
	}
	if len(req.Answers) != 1 || req.Answers[0].QuestionID != 3 {
		t.Errorf("checkpointed answers should be in the payload: %+v", req.Answers)
	}
}

func TestController_ResumeWithoutCheckpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	if _, err := env.ctrl.Resume(context.Background()); !errors.Is(err, ErrNoCheckpoint) {
		t.Fatalf("expected ErrNoCheckpoint, got %v", err)
	}
}

// ===== EVENT TESTS =====

func TestController_PublishesLifecycleEvents(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.ctrl.Start(ctx, 7); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := env.ctrl.Submit(ctx); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	var types []events.EventType
	for _, ev := range env.publisher.GetPublishedEvents() {
		types = append(types, ev.Type)
	}

	if len(types) != 2 || types[0] != events.EventSessionStarted || types[1] != events.EventSessionSubmitted {
		t.Fatalf("unexpected event sequence: %v", types)
	}
}

func TestController_SubmitInvalidatesCatalogListings(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fp := &fakePlatform{assessment: testAssessment(nil)}
	invalidator := &fakeCatalogInvalidator{}

	ctrl := NewController("learner-1", Deps{
		Client:      fp,
		Publisher:   events.NewMockEventPublisher(logger),
		Checkpoints: newMemCheckpointStore(),
		Catalog:     invalidator,
		Logger:      logger,
	})
	t.Cleanup(ctrl.Close)
	ctx := context.Background()

	if _, err := ctrl.Start(ctx, 7); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := invalidator.invalidated(); len(got) != 0 {
		t.Fatalf("starting should not invalidate listings: %v", got)
	}

	if _, err := ctrl.Submit(ctx); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	got := invalidator.invalidated()
	if len(got) != 1 || got[0] != "learner-1" {
		t.Fatalf("submission should drop the learner's cached listings, got %v", got)
	}
}
