package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/learnware/session-gateway/internal/models"
	"github.com/learnware/session-gateway/internal/platform"
)

// syncTimeout bounds each detached answer-sync call.
const syncTimeout = 10 * time.Second

// AnswerStore holds the learner's in-progress answers for one attempt.
// Writes land in the local map synchronously so UI reads are never stale;
// each write also schedules a detached sync to the platform's answer log.
// The local map stays the source of truth: a failed sync is logged and not
// retried, because the full snapshot is sent again at submission time.
type AnswerStore struct {
	mu      sync.Mutex
	answers map[uint]models.Answer
	seq     map[uint]uint64 // latest local write per question
	synced  map[uint]uint64 // latest acknowledged write per question

	attemptID uint
	learnerID string
	client    platform.Client
	logger    *slog.Logger
	wg        sync.WaitGroup
}

func NewAnswerStore(attemptID uint, learnerID string, client platform.Client, logger *slog.Logger) *AnswerStore {
	return &AnswerStore{
		answers:   make(map[uint]models.Answer),
		seq:       make(map[uint]uint64),
		synced:    make(map[uint]uint64),
		attemptID: attemptID,
		learnerID: learnerID,
		client:    client,
		logger:    logger,
	}
}

// Set stores the answer locally and fires a detached sync call. It never
// blocks on the network. Last write wins per question: a stale sync
// acknowledgment arriving after a newer write does not mark the newer
// write as synced.
func (s *AnswerStore) Set(questionID uint, value json.RawMessage, elapsedSeconds int) {
	s.mu.Lock()
	s.seq[questionID]++
	seq := s.seq[questionID]
	s.answers[questionID] = models.Answer{
		QuestionID: questionID,
		Value:      value,
		SavedAt:    time.Now(),
	}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.sync(questionID, value, elapsedSeconds, seq)
}

func (s *AnswerStore) sync(questionID uint, value json.RawMessage, elapsedSeconds int, seq uint64) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	err := s.client.SyncAnswer(ctx, &platform.SyncAnswerRequest{
		SyncID:         uuid.New().String(),
		AttemptID:      s.attemptID,
		LearnerID:      s.learnerID,
		QuestionID:     questionID,
		Value:          value,
		ElapsedSeconds: elapsedSeconds,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		// Non-fatal: the snapshot sent at submission carries the answer.
		s.logger.Warn("Answer sync failed",
			"attempt_id", s.attemptID,
			"question_id", questionID,
			"error", err)
		return
	}
	if seq > s.synced[questionID] {
		s.synced[questionID] = seq
	}
}

// Get returns the current local answer for a question.
func (s *AnswerStore) Get(questionID uint) (models.Answer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[questionID]
	return a, ok
}

// Answered reports whether the question has a local answer.
func (s *AnswerStore) Answered(questionID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.answers[questionID]
	return ok
}

// Len returns the number of answered questions.
func (s *AnswerStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answers)
}

// AllSynced reports whether every local write has been acknowledged by the
// answer log. Submission does not wait for this; it is informational.
func (s *AnswerStore) AllSynced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for questionID, seq := range s.seq {
		if s.synced[questionID] < seq {
			return false
		}
	}
	return true
}

// Snapshot returns an immutable copy of all answers ordered by question ID.
// This is the authoritative submission payload.
func (s *AnswerStore) Snapshot() []models.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Answer, 0, len(s.answers))
	for _, a := range s.answers {
		cp := a
		cp.Value = append(json.RawMessage(nil), a.Value...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out
}

// Restore replaces the local map with checkpointed answers. Restored
// entries count as synced: they were flushed best-effort before the
// checkpoint and travel in the submission snapshot regardless.
func (s *AnswerStore) Restore(answers []models.Answer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range answers {
		s.answers[a.QuestionID] = a
		s.seq[a.QuestionID]++
		s.synced[a.QuestionID] = s.seq[a.QuestionID]
	}
}

// WaitForSyncs blocks until all in-flight sync calls complete. Test hook.
func (s *AnswerStore) WaitForSyncs() {
	s.wg.Wait()
}
