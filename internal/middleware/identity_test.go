package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mtlprog/taskflow/internal/middleware"
	"github.com/stretchr/testify/assert"
)

func TestIdentity(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = middleware.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := middleware.Identity(next)

	tests := []struct {
		name   string
		header string
		status int
		userID string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"not a uuid", "alice", http.StatusUnauthorized, ""},
		{"normalized", " 0000000A-0000-0000-0000-000000000001 ", http.StatusNoContent, "0000000a-0000-0000-0000-000000000001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
			if tt.header != "" {
				req.Header.Set(middleware.UserIDHeader, tt.header)
			}
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.userID, seen)
		})
	}
}
