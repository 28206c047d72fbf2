package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
	"github.com/kertaswork/plantrack-backend/internal/services"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	// Field and Min surface validation thresholds so clients can render
	// the requirement without a second round trip.
	Field string `json:"field,omitempty"`
	Min   int    `json:"min,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondServiceError maps the service error taxonomy onto HTTP statuses.
// Conflicts and recalls are both 409 but keep distinct codes; transient
// failures are 503 so clients know the outcome is unknown.
func RespondServiceError(c *gin.Context, err error) {
	var (
		validation *plan.ValidationError
		permission *plan.PermissionError
		conflict   *plan.ConflictError
		recalled   *plan.RecalledError
		policy     *plan.PolicyConfigError
		transient  *plan.TransientError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusUnprocessableEntity, ErrorEnvelope{
			Error: APIError{
				Message: validation.Error(),
				Code:    "validation_failed",
				Field:   validation.Field,
				Min:     validation.Min,
			},
		})
	case errors.As(err, &permission):
		RespondError(c, http.StatusForbidden, "forbidden", err)
	case errors.As(err, &recalled):
		RespondError(c, http.StatusConflict, "submission_recalled", err)
	case errors.As(err, &conflict):
		RespondError(c, http.StatusConflict, "conflict", err)
	case errors.As(err, &policy):
		RespondError(c, http.StatusPreconditionFailed, "policy_not_configured", err)
	case errors.As(err, &transient):
		RespondError(c, http.StatusServiceUnavailable, "transient", err)
	case errors.Is(err, services.ErrPlanNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, services.ErrInvalidCredentials):
		RespondError(c, http.StatusUnauthorized, "invalid_credentials", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}
