package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/learnware/session-gateway/internal/history"
	"github.com/learnware/session-gateway/internal/utils"
)

type HistoryHandler struct {
	BaseHandler
	historyService history.Service
}

func NewHistoryHandler(historyService history.Service, logger utils.Logger) *HistoryHandler {
	return &HistoryHandler{
		BaseHandler:    NewBaseHandler(logger),
		historyService: historyService,
	}
}

// ListAttempts returns the learner's locally recorded graded attempts
func (h *HistoryHandler) ListAttempts(c *gin.Context) {
	learnerID, err := GetLearnerIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	limit := parseQueryInt(c, "limit", 20)
	offset := parseQueryInt(c, "offset", 0)

	records, total, err := h.historyService.ListByLearner(c.Request.Context(), learnerID, limit, offset)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total": total,
		"data":  records,
	})
}

// GetAttempt returns one graded attempt with its per-question breakdown
func (h *HistoryHandler) GetAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	learnerID, err := GetLearnerIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	record, err := h.historyService.GetByAttemptID(c.Request.Context(), learnerID, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	result, err := record.Result()
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"record": record,
		"result": result,
	})
}

// ExportHistory streams the learner's attempt history as an Excel file
func (h *HistoryHandler) ExportHistory(c *gin.Context) {
	learnerID, err := GetLearnerIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	h.LogRequest(c, "Exporting attempt history")

	data, err := h.historyService.ExportXLSX(c.Request.Context(), learnerID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("attempt-history-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *HistoryHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, history.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Attempt record not found",
		})
	default:
		h.LogError(c, err, "Unexpected history error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
