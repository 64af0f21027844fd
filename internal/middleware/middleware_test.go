package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"collabnotes-server/internal/logging"
	"collabnotes-server/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret"

func identityEcho(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := IdentityFrom(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(GetUsername(r) + "/" + GetUserID(r)))
	})
}

func TestAuthMiddleware(t *testing.T) {
	access, err := jwt.GenerateToken("u-1", "alice", time.Hour, testSecret)
	require.NoError(t, err)
	refresh, err := jwt.GenerateRefreshToken("u-1", "alice", time.Hour, testSecret)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "valid access token", header: "Bearer " + access, status: http.StatusOK},
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + access, status: http.StatusUnauthorized},
		{name: "refresh token rejected", header: "Bearer " + refresh, status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", status: http.StatusUnauthorized},
	}

	h := AuthMiddleware(testSecret)(identityEcho(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/notes", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "alice/u-1", rec.Body.String())
			}
		})
	}
}

func TestLoggerMiddlewareRecordsUser(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New("info", "text", &buf)

	token, err := jwt.GenerateToken("u-1", "alice", time.Hour, testSecret)
	require.NoError(t, err)

	h := LoggerMiddleware(logger)(AuthMiddleware(testSecret)(identityEcho(t)))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notes", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), "user=alice")
	assert.Contains(t, buf.String(), "status=200")
}

func TestCORSPreflight(t *testing.T) {
	h := CORSMiddleware("https://app.example.com, https://admin.example.com", "GET,POST", "Authorization")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("preflight reached the handler")
		}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/notes", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://admin.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
