package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedpulse/internal/domain"
)

// Stub services. Each field, when set, overrides the default success path.

type stubIngest struct {
	stats *domain.IngestStats
	err   error
}

func (s *stubIngest) PollAll(ctx context.Context) (*domain.IngestStats, error) {
	return s.stats, s.err
}

type stubEnricher struct {
	err    error
	gotID  int64
	called bool
}

func (s *stubEnricher) Process(ctx context.Context, postID int64) error {
	s.called = true
	s.gotID = postID
	return s.err
}

type stubPosts struct {
	markReadErr error
	toggleSaved bool
	toggleErr   error
	saved       []domain.Post
	savedCursor *int64
	savedErr    error
	searchHits  []domain.Post
	searchErr   error

	gotLimit  int
	gotCursor *int64
	gotQuery  string
}

func (s *stubPosts) MarkRead(ctx context.Context, postID int64) error { return s.markReadErr }

func (s *stubPosts) ToggleSaved(ctx context.Context, postID int64) (bool, error) {
	return s.toggleSaved, s.toggleErr
}

func (s *stubPosts) ListSaved(ctx context.Context, limit int, cursor *int64) ([]domain.Post, *int64, error) {
	s.gotLimit = limit
	s.gotCursor = cursor
	return s.saved, s.savedCursor, s.savedErr
}

func (s *stubPosts) Search(ctx context.Context, query string) ([]domain.Post, error) {
	s.gotQuery = query
	return s.searchHits, s.searchErr
}

type stubScaffolder struct {
	url string
	err error
}

func (s *stubScaffolder) Generate(ctx context.Context, postID int64, prompt string) (string, error) {
	return s.url, s.err
}

type stubSources struct {
	created *domain.Source
	list    []domain.Source
	err     error
}

func (s *stubSources) Create(ctx context.Context, sourceType, name, identifier string) (*domain.Source, error) {
	return s.created, s.err
}

func (s *stubSources) List(ctx context.Context) ([]domain.Source, error) {
	return s.list, s.err
}

type testEnv struct {
	e        *echo.Echo
	ingest   *stubIngest
	enricher *stubEnricher
	posts    *stubPosts
	scaffold *stubScaffolder
	sources  *stubSources
}

func newTestEnv() *testEnv {
	env := &testEnv{
		ingest:   &stubIngest{stats: &domain.IngestStats{}},
		enricher: &stubEnricher{},
		posts:    &stubPosts{},
		scaffold: &stubScaffolder{url: "https://cdn.example.com/scaffolds/1-1.zip"},
		sources:  &stubSources{},
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	env.e = New(Services{
		Ingest:   env.ingest,
		Enrich:   env.enricher,
		Posts:    env.posts,
		Scaffold: env.scaffold,
		Sources:  env.sources,
	}, "cron-secret", logger)

	return env
}

func (env *testEnv) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestPollSources(t *testing.T) {
	env := newTestEnv()
	env.ingest.stats = &domain.IngestStats{New: 7}

	rec := env.do(http.MethodPost, "/cron/poll-sources", "", map[string]string{
		"Authorization": "Bearer cron-secret",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Polling complete. Found 7 new posts.", body["message"])
}

func TestPollSources_RejectsWithoutSecret(t *testing.T) {
	env := newTestEnv()

	tests := []struct {
		name string
		auth string
	}{
		{name: "missing header", auth: ""},
		{name: "wrong secret", auth: "Bearer nope"},
		{name: "wrong scheme", auth: "Basic cron-secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.auth != "" {
				headers["Authorization"] = tt.auth
			}
			rec := env.do(http.MethodPost, "/cron/poll-sources", "", headers)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireBearerSecret_EmptySecretRejectsAll(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	env := newTestEnv()
	env.e = New(Services{
		Ingest:   env.ingest,
		Enrich:   env.enricher,
		Posts:    env.posts,
		Scaffold: env.scaffold,
		Sources:  env.sources,
	}, "", logger)

	rec := env.do(http.MethodPost, "/cron/poll-sources", "", map[string]string{
		"Authorization": "Bearer ",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProcessPost(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodPost, "/posts/process", `{"postId":42}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Successfully processed post 42", body["message"])
	assert.True(t, env.enricher.called)
	assert.Equal(t, int64(42), env.enricher.gotID)
}

func TestProcessPost_Validation(t *testing.T) {
	env := newTestEnv()

	tests := []struct {
		name string
		body string
	}{
		{name: "missing postId", body: `{}`},
		{name: "malformed json", body: `{"postId":`},
		{name: "wrong type", body: `{"postId":"forty-two"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/posts/process", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestProcessPost_NotFound(t *testing.T) {
	env := newTestEnv()
	env.enricher.err = domain.ErrPostNotFound

	rec := env.do(http.MethodPost, "/posts/process", `{"postId":404}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkAsRead(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodPost, "/posts/mark-as-read", `{"postId":1}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
}

func TestSavePost(t *testing.T) {
	env := newTestEnv()
	env.posts.toggleSaved = true

	rec := env.do(http.MethodPost, "/posts/save", `{"postId":5}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["isSaved"])
}

func TestSavePost_NotFound(t *testing.T) {
	env := newTestEnv()
	env.posts.toggleErr = domain.ErrPostNotFound

	rec := env.do(http.MethodPost, "/posts/save", `{"postId":404}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSaved_Defaults(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodGet, "/posts/saved", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultSavedLimit, env.posts.gotLimit)
	assert.Nil(t, env.posts.gotCursor)

	body := decodeBody(t, rec)
	assert.Equal(t, []interface{}{}, body["posts"])
	assert.Nil(t, body["cursor"])
}

func TestListSaved_LimitAndCursor(t *testing.T) {
	env := newTestEnv()
	next := int64(19)
	env.posts.saved = []domain.Post{{ID: 20}}
	env.posts.savedCursor = &next

	rec := env.do(http.MethodGet, "/posts/saved?limit=1&cursor=21", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.posts.gotLimit)
	require.NotNil(t, env.posts.gotCursor)
	assert.Equal(t, int64(21), *env.posts.gotCursor)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(19), body["cursor"])
}

func TestListSaved_InvalidParams(t *testing.T) {
	env := newTestEnv()

	tests := []struct {
		name   string
		target string
	}{
		{name: "limit zero", target: "/posts/saved?limit=0"},
		{name: "limit over max", target: "/posts/saved?limit=101"},
		{name: "limit not a number", target: "/posts/saved?limit=many"},
		{name: "cursor not a number", target: "/posts/saved?cursor=abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodGet, tt.target, "", nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestScaffold(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodPost, "/scaffold", `{"postId":1,"prompt":"build a cli tool"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "https://cdn.example.com/scaffolds/1-1.zip", body["scaffoldUrl"])
}

func TestScaffold_PromptTooShort(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodPost, "/scaffold", `{"postId":1,"prompt":"short"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch(t *testing.T) {
	env := newTestEnv()
	env.posts.searchHits = []domain.Post{{ID: 3}, {ID: 1}}

	rec := env.do(http.MethodGet, "/search?query=golang", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "golang", env.posts.gotQuery)

	body := decodeBody(t, rec)
	hits, ok := body["posts"].([]interface{})
	require.True(t, ok)
	assert.Len(t, hits, 2)
}

func TestSearch_MissingQuery(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodGet, "/search", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSource(t *testing.T) {
	env := newTestEnv()
	env.sources.created = &domain.Source{ID: 1, Type: "discord", Name: "go-news", Identifier: "111"}

	rec := env.do(http.MethodPost, "/sources/create", `{"type":"discord","name":"go-news","identifier":"111"}`, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "go-news", body["name"])
}

func TestCreateSource_MissingFields(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodPost, "/sources/create", `{"type":"discord"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSources(t *testing.T) {
	env := newTestEnv()
	env.sources.list = []domain.Source{{ID: 1}, {ID: 2}}

	rec := env.do(http.MethodGet, "/sources", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var sources []domain.Source
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sources))
	assert.Len(t, sources, 2)
}

func TestServerError(t *testing.T) {
	env := newTestEnv()
	env.posts.searchErr = errors.New("db down")

	rec := env.do(http.MethodGet, "/search?query=x", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
