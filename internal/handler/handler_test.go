package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"recruit-portal/internal/backend"
	"recruit-portal/internal/backend/backendtest"
	"recruit-portal/internal/common/auth"
	"recruit-portal/internal/common/errors"
	transport "recruit-portal/internal/common/http"
	"recruit-portal/internal/common/logger"
	"recruit-portal/internal/models"
	"recruit-portal/internal/query"
	"recruit-portal/internal/session"
	"recruit-portal/internal/views"
	"recruit-portal/pkg/registry"
)

// fakeAuth is both the authenticator and the identity provider, backed by
// an in-memory session table.
type fakeAuth struct {
	mu       sync.Mutex
	sessions map[string]*models.Identity
	signOuts []string
	block    chan struct{}
	lookup   error
	nextID   int
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{sessions: make(map[string]*models.Identity)}
}

func (f *fakeAuth) add(id string, identity *models.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id] = identity
}

func (f *fakeAuth) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	if password != "secret" {
		return nil, errors.NewUnauthorizedError("invalid credentials")
	}
	role := models.RoleCandidate
	if strings.HasPrefix(email, "hr") {
		role = models.RoleHRAdmin
	}
	return f.start(models.Identity{UserID: "u-" + email, Email: email, Role: role}), nil
}

func (f *fakeAuth) SignUp(ctx context.Context, req auth.SignUpRequest) (*models.Session, error) {
	return f.start(models.Identity{UserID: "u-" + req.Email, Email: req.Email, DisplayName: req.FullName, Role: models.RoleCandidate}), nil
}

func (f *fakeAuth) start(id models.Identity) *models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	sid := fmt.Sprintf("s-%d", f.nextID)
	identity := id
	f.sessions[sid] = &identity
	return &models.Session{ID: sid, Identity: id, CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
}

func (f *fakeAuth) Resolve(ctx context.Context, sessionID string) (*models.Identity, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookup != nil {
		return nil, f.lookup
	}
	return f.sessions[sessionID], nil
}

func (f *fakeAuth) Watch(ctx context.Context, sessionID string) (<-chan models.SessionEvent, func(), error) {
	return make(chan models.SessionEvent), func() {}, nil
}

func (f *fakeAuth) SignOut(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts = append(f.signOuts, sessionID)
	delete(f.sessions, sessionID)
	return nil
}

type fixture struct {
	handler  http.Handler
	backend  *backendtest.Server
	auth     *fakeAuth
	sessions *session.Registry
}

func newFixture(t *testing.T, tweak func(*Config)) *fixture {
	t.Helper()
	srv := backendtest.NewServer()
	t.Cleanup(srv.Close)

	log := logger.NewTestLogger(t)
	tc, err := transport.NewClient(transport.Config{
		BaseURL:        srv.URL,
		DefaultTimeout: time.Second,
		UploadTimeout:  time.Second,
	}, log)
	require.NoError(t, err)
	api, err := backend.New(tc, registry.Default(), log)
	require.NoError(t, err)

	cache := query.New(query.Config{StaleTime: time.Minute, RetryDelay: time.Millisecond}, log)
	t.Cleanup(cache.Close)

	fa := newFakeAuth()
	sessions := session.NewRegistry(fa, log)
	t.Cleanup(sessions.Close)

	cfg := DefaultConfig()
	cfg.AuthWait = 200 * time.Millisecond
	if tweak != nil {
		tweak(&cfg)
	}
	h, err := New(Deps{
		Views:    views.New(api, cache, views.Config{Location: time.UTC}, log),
		Auth:     fa,
		Sessions: sessions,
	}, cfg, log)
	require.NoError(t, err)
	t.Cleanup(h.Close)

	return &fixture{handler: h.Routes(), backend: srv, auth: fa, sessions: sessions}
}

func (f *fixture) do(req *http.Request, sessionID string) *httptest.ResponseRecorder {
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sessionID})
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

var (
	hrUser        = &models.Identity{UserID: "u-hr", Email: "hr@example.com", Role: models.RoleHRAdmin}
	candidateUser = &models.Identity{UserID: "u-c", Email: "c@example.com", DisplayName: "Casey Lee", Role: models.RoleCandidate}
)

func TestGate(t *testing.T) {
	f := newFixture(t, nil)
	f.auth.add("hr-session", hrUser)
	f.auth.add("candidate-session", candidateUser)

	tests := []struct {
		name     string
		path     string
		session  string
		status   int
		location string
	}{
		{name: "anonymous to login", path: "/hr", status: http.StatusSeeOther, location: "/login"},
		{name: "candidate kept off hr", path: "/hr/approvals", session: "candidate-session", status: http.StatusSeeOther, location: "/candidate"},
		{name: "hr kept off candidate", path: "/candidate", session: "hr-session", status: http.StatusSeeOther, location: "/hr"},
		{name: "hr renders", path: "/hr", session: "hr-session", status: http.StatusOK},
		{name: "signed in skips login", path: "/login", session: "hr-session", status: http.StatusSeeOther, location: "/hr"},
		{name: "index is public", path: "/", status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(httptest.NewRequest(http.MethodGet, tt.path, nil), tt.session)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.location, rec.Header().Get("Location"))
		})
	}
}

func TestGate_PendingWhileResolving(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.AuthWait = 20 * time.Millisecond })
	f.auth.block = make(chan struct{})
	t.Cleanup(func() { close(f.auth.block) })
	f.auth.add("hr-session", hrUser)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/hr", nil), "hr-session")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "hr", body["page"])
	assert.Equal(t, "loading", body["auth"].(map[string]interface{})["status"])
}

func TestGate_LookupFailureKeepsSession(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.AuthWait = 20 * time.Millisecond })
	f.auth.lookup = context.DeadlineExceeded
	f.auth.add("hr-session", hrUser)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/hr", nil), "hr-session")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, 1, f.sessions.Len())
}

func TestSignIn(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(postForm("/login", url.Values{"email": {"hr@example.com"}, "password": {"secret"}}), "")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/hr", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/hr", nil), cookies[0].Value)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignIn_Rejected(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(postForm("/login", url.Values{"email": {"hr@example.com"}, "password": {"wrong"}}), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, rec)["code"])

	rec = f.do(postForm("/login", url.Values{"email": {"hr@example.com"}}), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignUp(t *testing.T) {
	f := newFixture(t, nil)

	form := url.Values{"email": {"new@example.com"}, "password": {"secret"}, "full_name": {"New Person"}}
	rec := f.do(postForm("/signup", form), "")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/candidate", rec.Header().Get("Location"))
	require.Len(t, rec.Result().Cookies(), 1)
}

func TestUnknownCookieIsCleared(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/", nil), "stale")
	assert.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Equal(t, 0, f.sessions.Len())
}

func TestSignOut(t *testing.T) {
	f := newFixture(t, nil)
	f.auth.add("hr-session", hrUser)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/logout", nil), "hr-session")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, []string{"hr-session"}, f.auth.signOuts)
	assert.Equal(t, 0, f.sessions.Len())

	rec = f.do(httptest.NewRequest(http.MethodGet, "/hr", nil), "hr-session")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestPublicStatus(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.SetStatus("x@y.com", map[string]interface{}{
		"status":         "Scheduled",
		"interview_time": "2025-01-01T10:00:00Z",
	})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/status?email=x@y.com", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Your interview is scheduled for Jan 1, 2025, 10:00 AM", decode(t, rec)["message"])
}

func TestPublicStatus_RateLimited(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.RateLimit = RateLimitConfig{Rate: rate.Limit(0.01), Burst: 2, CleanupInterval: time.Minute}
	})
	f.backend.SetStatus("x@y.com", map[string]interface{}{"status": "Applied"})

	for i := 0; i < 2; i++ {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/status?email=x@y.com", nil), "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := f.do(httptest.NewRequest(http.MethodGet, "/status?email=x@y.com", nil), "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", decode(t, rec)["code"])
}

func TestExam(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.AddExam("tok-1", "Engineer", map[string]interface{}{
		"question_text": "Pick one",
		"question_type": "multiple-choice",
		"options":       []string{"A", "B"},
	})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/exam/tok-1", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "ready", data["state"])
	assert.Equal(t, "Engineer", data["jobTitle"])

	submit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/exam/tok-1/submit", strings.NewReader(`{"answers":{"question_0":"A"}}`))
		req.Header.Set("Content-Type", "application/json")
		return f.do(req, "")
	}

	rec = submit()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "submitted", decode(t, rec)["data"].(map[string]interface{})["state"])

	rec = submit()
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "exam already submitted", decode(t, rec)["details"])
	assert.Equal(t, 1, f.backend.SubmissionCount("tok-1"))
}

func TestExam_InvalidLink(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/exam/missing", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "error", data["state"])
	assert.Equal(t, views.MsgExamInvalid, data["message"])
}

func TestUploadCandidate(t *testing.T) {
	f := newFixture(t, nil)
	f.auth.add("hr-session", hrUser)
	jobID := f.backend.AddJob("Engineer", "Build")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "Ada"))
	require.NoError(t, mw.WriteField("email", "ada@example.com"))
	fw, err := mw.CreateFormFile("resume", "ada.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	path := "/hr/jobs/" + strconv.FormatInt(jobID, 10) + "/candidates"
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := f.do(req, "hr-session")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Resume uploaded successfully", decode(t, rec)["message"])
	require.Len(t, f.backend.Uploads, 1)
	assert.Equal(t, "ada.pdf", f.backend.Uploads[0].FileName)
	assert.Equal(t, "%PDF-1.4", f.backend.Uploads[0].Content)
}

func TestUploadCandidate_MissingFile(t *testing.T) {
	f := newFixture(t, nil)
	f.auth.add("hr-session", hrUser)

	rec := f.do(postForm("/hr/jobs/1/candidates", url.Values{"name": {"Ada"}, "email": {"ada@example.com"}}), "hr-session")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file selected", decode(t, rec)["message"])
	assert.Empty(t, f.backend.Uploads)
}

func TestCreateJob_FailureStatus(t *testing.T) {
	f := newFixture(t, nil)
	f.auth.add("hr-session", hrUser)
	f.backend.Fail(registry.OpCreateJob, http.StatusInternalServerError, `{"detail":"boom"}`)

	rec := f.do(postForm("/hr/jobs", url.Values{"title": {"Engineer"}, "description": {"Build"}}), "hr-session")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "Failed to create job", body["message"])
}

func TestOperationalRoutes(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = f.do(httptest.NewRequest(http.MethodGet, "/ready", nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/nowhere", nil), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["page"])
}
