package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kertaswork/plantrack-backend/internal/services"
)

type ResolutionHandler struct {
	resolutionService services.ResolutionService
}

func NewResolutionHandler(resolutionService services.ResolutionService) *ResolutionHandler {
	return &ResolutionHandler{resolutionService: resolutionService}
}

func (h *ResolutionHandler) DropQueue(c *gin.Context) {
	rows, err := h.resolutionService.DropQueue(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"queue": rows})
}

func (h *ResolutionHandler) ApproveDrop(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	row, err := h.resolutionService.ApproveDrop(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"plan": row})
}

func (h *ResolutionHandler) RejectDrop(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	row, err := h.resolutionService.RejectDrop(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"plan": row})
}

func (h *ResolutionHandler) CarryOver(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	successor, err := h.resolutionService.CarryOver(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"successor": successor})
}

func (h *ResolutionHandler) ReviewQueue(c *gin.Context) {
	rows, err := h.resolutionService.ReviewQueue(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"queue": rows})
}

func (h *ResolutionHandler) ResolveReview(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	var in struct {
		Note string `json:"note"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	row, err := h.resolutionService.ResolveReview(c.Request.Context(), id, in.Note)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"plan": row})
}
