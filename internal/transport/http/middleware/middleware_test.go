package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"biolink/internal/metrics"
	"biolink/internal/model"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func echoCaller() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(CallerID(r.Context())))
	})
}

func TestAuthMiddleware(t *testing.T) {
	valid := signToken(t, testSecret, "123456789", time.Now().Add(time.Hour))
	expired := signToken(t, testSecret, "123456789", time.Now().Add(-time.Hour))
	wrongKey := signToken(t, "other", "123456789", time.Now().Add(time.Hour))
	noSubject := signToken(t, testSecret, "", time.Now().Add(time.Hour))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
		code   string
		body   string
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) }, http.StatusOK, "", "123456789"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: valid}) }, http.StatusOK, "", "123456789"},
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized, "UNAUTHORIZED", ""},
		{"expired", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) }, http.StatusUnauthorized, model.CodeTokenExpired, ""},
		{"wrong key", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+wrongKey) }, http.StatusUnauthorized, model.CodeTokenInvalid, ""},
		{"no subject", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+noSubject) }, http.StatusUnauthorized, model.CodeTokenInvalid, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			AuthMiddleware(testSecret)(echoCaller()).ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				var body struct {
					Error struct {
						Code string `json:"code"`
					} `json:"error"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				require.Equal(t, tt.code, body.Error.Code)
				return
			}
			require.Equal(t, tt.body, rec.Body.String())
		})
	}
}

func TestAuthMiddleware_EmptySecretRejectsEveryToken(t *testing.T) {
	forged := signToken(t, "", "victim", time.Now().Add(time.Hour))

	_, err := parseCallerID(forged, "")
	require.ErrorIs(t, err, ErrNoSigningKey)

	req := httptest.NewRequest(http.MethodPatch, "/", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec := httptest.NewRecorder()
	AuthMiddleware("")(echoCaller()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotContains(t, rec.Body.String(), "victim")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec = httptest.NewRecorder()
	OptionalAuthMiddleware("")(echoCaller()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Body.String())
}

func TestOptionalAuthMiddleware(t *testing.T) {
	h := OptionalAuthMiddleware(testSecret)(echoCaller())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "u1", time.Now().Add(time.Hour)))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "u1", rec.Body.String())
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	m := metrics.New()

	r := chi.NewRouter()
	r.Use(AccessLog(logger, m))
	r.Get("/profiles/{ownerId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profiles/abc", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "http", line["message"])
	require.Equal(t, "/profiles/abc", line["path"])
	require.Equal(t, "/profiles/{ownerId}", line["route"])
	require.EqualValues(t, http.StatusTeapot, line["status"])
	require.EqualValues(t, 2, line["bytes"])

	require.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/profiles/{ownerId}", "418")))
}
