package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnware/session-gateway/internal/catalog"
	"github.com/learnware/session-gateway/internal/platform"
	"github.com/learnware/session-gateway/internal/utils"
)

type CatalogHandler struct {
	BaseHandler
	catalogService catalog.Service
}

func NewCatalogHandler(catalogService catalog.Service, logger utils.Logger) *CatalogHandler {
	return &CatalogHandler{
		BaseHandler:    NewBaseHandler(logger),
		catalogService: catalogService,
	}
}

// ListAssessments returns the assessments available to the learner
func (h *CatalogHandler) ListAssessments(c *gin.Context) {
	learnerID, err := GetLearnerIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	resp, err := h.catalogService.ListAssessments(c.Request.Context(), learnerID, listFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListAttempts returns the learner's past attempts from the platform
func (h *CatalogHandler) ListAttempts(c *gin.Context) {
	learnerID, err := GetLearnerIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	resp, err := h.catalogService.ListAttempts(c.Request.Context(), learnerID, listFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func listFilters(c *gin.Context) platform.ListFilters {
	return platform.ListFilters{
		Query:  c.Query("query"),
		Limit:  parseQueryInt(c, "limit", 20),
		Offset: parseQueryInt(c, "offset", 0),
	}
}

func (h *CatalogHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, platform.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Resource not found",
		})
	case errors.Is(err, platform.ErrUnavailable):
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Message: "Learning platform unavailable, please retry",
		})
	default:
		h.LogError(c, err, "Unexpected catalog error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
