package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/subkeep/subkeep-api/internal/pkg/response"
)

type contextKey string

const adminIDKey contextKey = "admin_id"

// AdminActor requires an X-Admin-ID header on back-office routes and
// places the acting admin id in the request context, so every manual
// allocation and refund decision is attributable. Authentication itself
// is handled upstream by the gateway.
func AdminActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-Admin-ID")
		if raw == "" {
			response.Unauthorized(w, "missing X-Admin-ID header")
			return
		}
		adminID, err := uuid.Parse(raw)
		if err != nil {
			response.Unauthorized(w, "invalid X-Admin-ID header")
			return
		}
		ctx := context.WithValue(r.Context(), adminIDKey, adminID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAdminID returns the acting admin id from the context, or uuid.Nil.
func GetAdminID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(adminIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
