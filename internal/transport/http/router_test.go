package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"biolink/internal/config"
	"biolink/internal/model"
)

const testSecret = "router-test-secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		StorageDriver:      config.StorageDriverMemory,
		JWTSecret:          testSecret,
		RequestTimeout:     5 * time.Second,
		CORSAllowedOrigins: []string{"*"},
	}
	app, err := NewApp(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	srv := httptest.NewServer(app.Handler)
	t.Cleanup(srv.Close)
	return srv
}

func bearer(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

func do(t *testing.T, srv *httptest.Server, method, path, auth, body string) (*stdhttp.Response, map[string]any) {
	t.Helper()
	req, err := stdhttp.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestRouter_ProfileLifecycle(t *testing.T) {
	srv := newTestServer(t)
	alice := bearer(t, "alice")

	resp, body := do(t, srv, "POST", "/profiles", alice, `{"displayName":"Alice"}`)
	require.Equal(t, stdhttp.StatusCreated, resp.StatusCode)
	require.Equal(t, "alice", body["ownerId"])
	require.Equal(t, true, body["isOwnerView"])

	resp, body = do(t, srv, "GET", "/profiles/alice", "", "")
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	require.Equal(t, false, body["isOwnerView"])
	require.Equal(t, model.DefaultMood, body["mood"])

	resp, body = do(t, srv, "PATCH", "/profiles/alice", alice, `{"mood":"Happy","shareableSlug":"al1ce","unknown":1}`)
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	require.Equal(t, "Happy", body["mood"])

	resp, body = do(t, srv, "GET", "/profiles/by-slug/AL1CE", "", "")
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	require.Equal(t, "alice", body["ownerId"])

	for i := 0; i < 3; i++ {
		resp, _ = do(t, srv, "POST", "/profiles/alice/views", "", "")
		require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	}

	_, body = do(t, srv, "GET", "/profiles/alice", "", "")
	require.EqualValues(t, 3, body["viewCount"])

	_, body = do(t, srv, "GET", "/site/stats", "", "")
	require.EqualValues(t, 3, body["totalViews"])
}

func TestRouter_ErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	alice := bearer(t, "alice")
	bob := bearer(t, "bob")

	resp, _ := do(t, srv, "POST", "/profiles", alice, "")
	require.Equal(t, stdhttp.StatusCreated, resp.StatusCode)
	resp, _ = do(t, srv, "POST", "/profiles", bob, `{"shareableSlug":"taken"}`)
	require.Equal(t, stdhttp.StatusCreated, resp.StatusCode)

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		body   string
		status int
		code   string
	}{
		{"unknown profile", "GET", "/profiles/nobody", "", "", stdhttp.StatusNotFound, "NOT_FOUND"},
		{"unknown slug", "GET", "/profiles/by-slug/nothing", "", "", stdhttp.StatusNotFound, "NOT_FOUND"},
		{"no token", "PATCH", "/profiles/alice", "", `{"mood":"x"}`, stdhttp.StatusUnauthorized, "UNAUTHORIZED"},
		{"someone else's profile", "PATCH", "/profiles/alice", bob, `{"mood":"x"}`, stdhttp.StatusForbidden, "FORBIDDEN"},
		{"bad field", "PATCH", "/profiles/alice", alice, `{"nameColor":"blue"}`, stdhttp.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad body", "PATCH", "/profiles/alice", alice, `[1,2]`, stdhttp.StatusBadRequest, "VALIDATION_ERROR"},
		{"slug taken", "PATCH", "/profiles/alice", alice, `{"shareableSlug":"taken"}`, stdhttp.StatusConflict, "CONFLICT"},
		{"background without ref", "PATCH", "/profiles/alice", alice, `{"backgroundKind":"video"}`, stdhttp.StatusUnprocessableEntity, "INVALID_STATE"},
		{"duplicate create", "POST", "/profiles", alice, "", stdhttp.StatusConflict, "CONFLICT"},
		{"views on unknown profile", "POST", "/profiles/nobody/views", "", "", stdhttp.StatusNotFound, "NOT_FOUND"},
		{"sync without provider", "POST", "/profiles/alice/sync", alice, "", stdhttp.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, srv, tt.method, tt.path, tt.auth, tt.body)
			require.Equal(t, tt.status, resp.StatusCode)
			require.Equal(t, tt.code, errorCode(body))
		})
	}
}

func TestRouter_UploadWithoutStorage(t *testing.T) {
	srv := newTestServer(t)
	alice := bearer(t, "alice")
	resp, _ := do(t, srv, "POST", "/profiles", alice, "")
	require.Equal(t, stdhttp.StatusCreated, resp.StatusCode)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("avatar", "a.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png bytes"))
	require.NoError(t, mw.Close())

	req, err := stdhttp.NewRequest("POST", srv.URL+"/profiles/alice/avatar", &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", alice)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, stdhttp.StatusServiceUnavailable, resp.StatusCode)
}

func TestRouter_UploadMissingFile(t *testing.T) {
	srv := newTestServer(t)
	alice := bearer(t, "alice")
	resp, _ := do(t, srv, "POST", "/profiles", alice, "")
	require.Equal(t, stdhttp.StatusCreated, resp.StatusCode)

	resp, body := do(t, srv, "POST", "/profiles/alice/background", alice, `{}`)
	require.Equal(t, stdhttp.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "VALIDATION_ERROR", errorCode(body))
}

func TestNewApp_RequiresJWTSecret(t *testing.T) {
	_, err := NewApp(context.Background(), &config.Config{StorageDriver: config.StorageDriverMemory}, zerolog.Nop())
	require.ErrorIs(t, err, config.ErrMissingJWTSecret)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, "GET", "/health", "", "")
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	require.Contains(t, buf.String(), "biolink_http_requests_total")
}
