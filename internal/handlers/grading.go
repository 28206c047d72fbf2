package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kertaswork/plantrack-backend/internal/services"
)

type GradingHandler struct {
	gradingService services.GradingService
}

func NewGradingHandler(gradingService services.GradingService) *GradingHandler {
	return &GradingHandler{gradingService: gradingService}
}

func (h *GradingHandler) Queue(c *gin.Context) {
	rows, err := h.gradingService.Queue(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"queue": rows})
}

func (h *GradingHandler) Grade(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	var in services.GradeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	result, err := h.gradingService.Grade(c.Request.Context(), id, in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *GradingHandler) ConfirmVerdict(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	var in services.VerdictRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	row, err := h.gradingService.ConfirmVerdict(c.Request.Context(), id, in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"plan": row})
}
