package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/grumeter/internal/middleware"
)

func TestRequireBearer(t *testing.T) {
	var gotOwner string
	h := middleware.RequireBearer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOwner, _ = middleware.Owner(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"empty token", "Bearer   ", http.StatusUnauthorized},
		{"valid", "Bearer secret", http.StatusOK},
		{"lowercase scheme", "bearer secret", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotOwner = ""
			req := httptest.NewRequest(http.MethodPost, "/carbon/sessions", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusOK {
				assert.Equal(t, middleware.HashToken("secret"), gotOwner)
			} else {
				assert.Empty(t, gotOwner)
			}
		})
	}
}

func TestHashToken_StableAndDistinct(t *testing.T) {
	assert.Equal(t, middleware.HashToken("a"), middleware.HashToken("a"))
	assert.NotEqual(t, middleware.HashToken("a"), middleware.HashToken("b"))
	assert.Len(t, middleware.HashToken("a"), 64)
}
