package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnware/session-gateway/internal/engine"
	"github.com/learnware/session-gateway/internal/platform"
	"github.com/learnware/session-gateway/internal/utils"
	"github.com/learnware/session-gateway/internal/validator"
)

type SessionHandler struct {
	BaseHandler
	manager   *engine.SessionManager
	validator *validator.Validator
}

func NewSessionHandler(
	manager *engine.SessionManager,
	validator *validator.Validator,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler: NewBaseHandler(logger),
		manager:     manager,
		validator:   validator,
	}
}

// ===== REQUEST STRUCTURES =====

type StartSessionRequest struct {
	AssessmentID uint `json:"assessment_id" validate:"required,gt=0"`
}

type AnswerRequest struct {
	QuestionID uint            `json:"question_id" validate:"required,gt=0"`
	Value      json.RawMessage `json:"value" validate:"required"`
}

type GoToRequest struct {
	Index *int `json:"index" validate:"required,min=0"`
}

// ===== SESSION LIFECYCLE =====

// StartSession starts a new assessment session for the learner
func (h *SessionHandler) StartSession(c *gin.Context) {
	h.LogRequest(c, "Starting assessment session")

	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	learnerID, err := GetLearnerIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	ctrl := h.manager.GetOrCreate(learnerID)
	state, err := ctrl.Start(c.Request.Context(), req.AssessmentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, state)
}

// CurrentSession returns the learner's current session state, resuming
// from a checkpoint if the gateway lost the in-memory session.
func (h *SessionHandler) CurrentSession(c *gin.Context) {
	learnerID, err := GetLearnerIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	ctrl := h.manager.GetOrCreate(learnerID)
	state := ctrl.State()
	if state.Status == engine.StatusIdle {
		state, err = ctrl.Resume(c.Request.Context())
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, state)
}

// AbandonSession tears the session down without submitting
func (h *SessionHandler) AbandonSession(c *gin.Context) {
	h.LogRequest(c, "Abandoning assessment session")

	learnerID, err := GetLearnerIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	ctrl, ok := h.manager.Controller(learnerID)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "No active session"})
		return
	}
	if err := ctrl.Abandon(c.Request.Context()); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.manager.Remove(learnerID)

	c.JSON(http.StatusOK, SuccessResponse{Message: "Session abandoned"})
}

// ===== IN-SESSION OPERATIONS =====

// SaveAnswer records the learner's answer to a question
func (h *SessionHandler) SaveAnswer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	state, err := ctrl.Answer(c.Request.Context(), req.QuestionID, req.Value)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// FlagQuestion marks a question for review
func (h *SessionHandler) FlagQuestion(c *gin.Context) {
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	if err := ctrl.FlagQuestion(c.Request.Context(), questionID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"question_id": questionID, "flagged": true})
}

// UnflagQuestion clears the review mark on a question
func (h *SessionHandler) UnflagQuestion(c *gin.Context) {
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	if err := ctrl.UnflagQuestion(c.Request.Context(), questionID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"question_id": questionID, "flagged": false})
}

// GoTo moves the navigation cursor to another question
func (h *SessionHandler) GoTo(c *gin.Context) {
	var req GoToRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	state, err := ctrl.GoTo(c.Request.Context(), *req.Index)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// TimeRemaining returns the countdown state
func (h *SessionHandler) TimeRemaining(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	remaining, err := ctrl.TimeRemaining()
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"remaining_seconds": remaining})
}

// ===== SUBMISSION =====

// SubmitSession submits the session for grading
func (h *SessionHandler) SubmitSession(c *gin.Context) {
	h.LogRequest(c, "Submitting assessment session")

	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	result, err := ctrl.Submit(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SessionResult returns the graded result of the submitted session
func (h *SessionHandler) SessionResult(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	result, err := ctrl.Result()
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// controller looks up the learner's live controller, writing the error
// response itself when there is none.
func (h *SessionHandler) controller(c *gin.Context) (*engine.Controller, bool) {
	learnerID, err := GetLearnerIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return nil, false
	}

	ctrl, ok := h.manager.Controller(learnerID)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "No active session"})
		return nil, false
	}
	return ctrl, true
}

func (h *SessionHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrAttemptInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "An attempt is already in progress",
		})
	case errors.Is(err, engine.ErrAlreadySubmitted), errors.Is(err, platform.ErrAlreadySubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt already submitted",
		})
	case errors.Is(err, engine.ErrSubmissionInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "A submission is in progress",
		})
	case errors.Is(err, engine.ErrNoActiveAttempt), errors.Is(err, engine.ErrNoCheckpoint):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "No active session",
		})
	case errors.Is(err, engine.ErrAttemptNotActive):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt is not active",
		})
	case errors.Is(err, engine.ErrNoResult):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "No result available",
		})
	case errors.Is(err, engine.ErrUnknownQuestion):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Question does not belong to this attempt",
		})
	case errors.Is(err, engine.ErrInvalidAnswer):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Answer value is invalid for question type",
		})
	case errors.Is(err, engine.ErrIndexOutOfRange):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Question index out of range",
		})
	case errors.Is(err, platform.ErrAttemptLimitExceeded):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Maximum attempts exceeded",
		})
	case errors.Is(err, platform.ErrAttemptExpired):
		c.JSON(http.StatusGone, ErrorResponse{
			Message: "Attempt time has expired",
		})
	case errors.Is(err, platform.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Assessment not found",
		})
	case errors.Is(err, platform.ErrUnavailable),
		errors.Is(err, engine.ErrStartFailed),
		errors.Is(err, engine.ErrSubmitFailed):
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Message: "Learning platform unavailable, please retry",
		})
	default:
		h.LogError(c, err, "Unexpected session error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
