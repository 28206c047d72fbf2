package requestdata

import (
	"context"

	"github.com/google/uuid"

	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
)

type contextKey struct{}

var requestDataKey contextKey

// RequestData is the caller identity resolved once per request by the auth
// middleware. Capabilities are derived from the role exactly once here;
// engines receive them explicitly and never look at the role again.
type RequestData struct {
	TokenString  string
	UserID       uuid.UUID
	DepartmentID uuid.UUID
	Role         string
	Capabilities plan.Capabilities
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(requestDataKey).(*RequestData); ok {
		return rd
	}
	return nil
}
