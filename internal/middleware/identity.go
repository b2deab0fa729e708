package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// UserIDHeader carries the caller's user id. Authentication happens upstream;
// this service trusts the header.
const UserIDHeader = "X-User-ID"

type contextKey string

const (
	// ContextKeyUserID is the key for storing the caller's user id in request context.
	ContextKeyUserID contextKey = "user_id"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Identity rejects requests without a well-formed X-User-ID header and
// stores the normalized id in the request context.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if raw == "" {
			unauthorized(w, "missing "+UserIDHeader+" header")
			return
		}

		id, err := uuid.Parse(raw)
		if err != nil {
			unauthorized(w, UserIDHeader+" must be a valid UUID")
			return
		}

		ctx := WithUserID(r.Context(), id.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// UserIDFromContext retrieves the caller's user id from request context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextKeyUserID).(string)
	return id, ok && id != ""
}

func unauthorized(w http.ResponseWriter, message string) {
	var body errorBody
	body.Error.Code = "UNAUTHENTICATED"
	body.Error.Message = message

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(body)
}
