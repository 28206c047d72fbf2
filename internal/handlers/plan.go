package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kertaswork/plantrack-backend/internal/repos"
	"github.com/kertaswork/plantrack-backend/internal/services"
)

type PlanHandler struct {
	planService       services.PlanService
	attachmentService services.AttachmentService
}

func NewPlanHandler(planService services.PlanService, attachmentService services.AttachmentService) *PlanHandler {
	return &PlanHandler{planService: planService, attachmentService: attachmentService}
}

func planID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *PlanHandler) Create(c *gin.Context) {
	var in services.CreatePlanInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	row, err := h.planService.Create(c.Request.Context(), in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"plan": row})
}

func (h *PlanHandler) List(c *gin.Context) {
	var filter repos.PlanFilter
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}
	if v := c.Query("month"); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			filter.Month = &m
		}
	}
	if v := c.Query("year"); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			filter.Year = &y
		}
	}
	views, err := h.planService.List(c.Request.Context(), filter)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"plans": views})
}

func (h *PlanHandler) Get(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	view, err := h.planService.Get(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, view)
}

func (h *PlanHandler) Timeline(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	entries, err := h.planService.Timeline(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"timeline": entries})
}

func (h *PlanHandler) LockStatus(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	res, err := h.planService.LockStatus(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"lock": res})
}

func (h *PlanHandler) Transition(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	var in services.TransitionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	view, err := h.planService.Transition(c.Request.Context(), id, in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, view)
}

func (h *PlanHandler) UpdateExecution(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	var in services.ExecutionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	view, err := h.planService.UpdateExecution(c.Request.Context(), id, in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, view)
}

func (h *PlanHandler) Submit(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	view, err := h.planService.Submit(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, view)
}

func (h *PlanHandler) Recall(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	view, err := h.planService.Recall(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, view)
}

func (h *PlanHandler) AddAttachments(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	var in struct {
		Attachments []services.AttachmentInput `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	rows, err := h.attachmentService.Register(c.Request.Context(), id, in.Attachments)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"attachments": rows})
}

func (h *PlanHandler) ListAttachments(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	rows, err := h.attachmentService.List(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"attachments": rows})
}
