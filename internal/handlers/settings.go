package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
	"github.com/kertaswork/plantrack-backend/internal/requestdata"
	"github.com/kertaswork/plantrack-backend/internal/services"
	"github.com/kertaswork/plantrack-backend/internal/types"
)

type SettingsHandler struct {
	settingsService services.SettingsService
	overrideService services.LockOverrideService
	sessionService  services.SessionOverrideService
}

func NewSettingsHandler(
	settingsService services.SettingsService,
	overrideService services.LockOverrideService,
	sessionService services.SessionOverrideService,
) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
		overrideService: overrideService,
		sessionService:  sessionService,
	}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	row, err := h.settingsService.Get(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"settings": row})
}

func (h *SettingsHandler) Save(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || !rd.Capabilities.CanOverrideLock {
		RespondServiceError(c, &plan.PermissionError{Capability: "configure_policy"})
		return
	}
	var in types.PolicySettings
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	row, err := h.settingsService.Save(c.Request.Context(), &in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"settings": row})
}

func (h *SettingsHandler) ListLockOverrides(c *gin.Context) {
	rows, err := h.overrideService.List(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"overrides": rows})
}

func (h *SettingsHandler) UpsertLockOverride(c *gin.Context) {
	var in services.LockOverrideInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	row, err := h.overrideService.Upsert(c.Request.Context(), in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"override": row})
}

func (h *SettingsHandler) DeleteLockOverride(c *gin.Context) {
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := h.overrideService.Delete(c.Request.Context(), month, year); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// EnableDateOverride turns on the caller's session-scoped temporal-lock
// bypass. TTL comes from the body in minutes, bounded by the service.
func (h *SettingsHandler) EnableDateOverride(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var in struct {
		TTLMinutes int `json:"ttl_minutes"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	ttl := time.Duration(in.TTLMinutes) * time.Minute
	if err := h.sessionService.Enable(c.Request.Context(), rd.Capabilities, rd.UserID, ttl); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"date_override": true})
}

func (h *SettingsHandler) DisableDateOverride(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if err := h.sessionService.Disable(c.Request.Context(), rd.UserID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"date_override": false})
}
