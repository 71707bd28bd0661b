package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Protocol-Lattice/go-grader/src/chunking"
	"github.com/Protocol-Lattice/go-grader/src/config"
	"github.com/Protocol-Lattice/go-grader/src/extract"
	"github.com/Protocol-Lattice/go-grader/src/grader"
	"github.com/Protocol-Lattice/go-grader/src/logging"
	"github.com/Protocol-Lattice/go-grader/src/models"
	"github.com/Protocol-Lattice/go-grader/src/store"
)

type stubAgent struct{ reply string }

func (s stubAgent) Name() string { return "openai" }

func (s stubAgent) Generate(context.Context, models.Request) (string, error) {
	return s.reply, nil
}

type failingRunner struct{ err error }

func (f failingRunner) Run(context.Context, grader.Job) (grader.FinalResult, error) {
	return grader.FinalResult{}, f.err
}

func newTestServer(t *testing.T, runner Runner) (http.Handler, store.ResultStore) {
	t.Helper()
	results := store.NewMemoryStore(0)
	api := NewAPI(runner, chunking.NewEstimator(map[string]int{"openai": 4000}), results,
		extract.NewService(), []string{"openai"}, logging.Nop{})
	srv := NewServer(config.ServerConfig{Addr: ":0"}, api, logging.Nop{})
	return srv.Handler, results
}

func coordinatorRunner(reply string) Runner {
	registry := models.NewRegistry(nil)
	registry.Register("openai", stubAgent{reply: reply})
	return grader.NewCoordinator(registry)
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGradeAndFetchResult(t *testing.T) {
	h, _ := newTestServer(t, coordinatorRunner("**Thesis:** clear.\nGrade: 18/20"))

	w := postJSON(t, h, "/api/v1/grade", JobRequest{
		Assignment:   "Argue for river restoration.",
		Instructions: "Grade out of 20.",
		Text:         "Rivers matter because they shape cities.",
		Provider:     "openai",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotEmpty(t, w.Header().Get(RequestIDHeader))

	var resp JobResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotEmpty(t, resp.ID)
	require.Equal(t, "Thesis: clear.\nGrade: 18/20", resp.Text)
	require.Equal(t, []string{"openai"}, resp.ProviderChain)
	require.NotNil(t, resp.Score)
	require.Equal(t, 18.0, resp.Score.Value)

	get := httptest.NewRequest(http.MethodGet, resp.Links.Self, nil)
	gw := httptest.NewRecorder()
	h.ServeHTTP(gw, get)
	require.Equal(t, http.StatusOK, gw.Code)
	var stored grader.FinalResult
	require.NoError(t, json.NewDecoder(gw.Body).Decode(&stored))
	require.Equal(t, resp.Text, stored.Text)
}

func TestJobIDIsNotTakenFromRequestID(t *testing.T) {
	h, results := newTestServer(t, coordinatorRunner("Grade: 15/20"))
	traceID := "6f1c2a8e-3b4d-4e5f-8a9b-0c1d2e3f4a5b"

	var ids []string
	for _, text := range []string{"First essay.", "Second essay."} {
		raw, err := json.Marshal(JobRequest{Text: text, Provider: "openai"})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/grade", bytes.NewReader(raw))
		req.Header.Set(RequestIDHeader, traceID)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Equal(t, traceID, w.Header().Get(RequestIDHeader))

		var resp JobResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.NotEqual(t, traceID, resp.ID)
		ids = append(ids, resp.ID)
	}
	require.NotEqual(t, ids[0], ids[1])

	for _, id := range ids {
		_, err := results.Get(context.Background(), id)
		require.NoError(t, err)
	}
}

func TestJobValidation(t *testing.T) {
	h, _ := newTestServer(t, coordinatorRunner("ok"))

	w := postJSON(t, h, "/api/v1/rewrite", JobRequest{Provider: "openai", Text: "  "})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, h, "/api/v1/rewrite", JobRequest{Text: "some text"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/grade", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAllProvidersFailedMapsToBadGateway(t *testing.T) {
	h, results := newTestServer(t, failingRunner{err: &grader.AllProvidersFailedError{
		Providers: []string{"openai"}, Errs: []error{errors.New("boom")},
	}})

	w := postJSON(t, h, "/api/v1/exemplar", JobRequest{Provider: "openai", Text: "essay"})
	require.Equal(t, http.StatusBadGateway, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, grader.UserMessage, resp.Error)

	_, err := results.Get(context.Background(), resp.RequestID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestNeedsChunking(t *testing.T) {
	h, _ := newTestServer(t, coordinatorRunner("ok"))

	w := postJSON(t, h, "/api/v1/needs-chunking", NeedsChunkingRequest{
		Provider: "openai",
		Texts:    []string{"Assignment", strings.Repeat("word ", 200)},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp NeedsChunkingResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.False(t, resp.NeedsChunking)
	require.Equal(t, 4000, resp.Limit)

	w = postJSON(t, h, "/api/v1/needs-chunking", NeedsChunkingRequest{
		Provider: "openai",
		Texts:    []string{strings.Repeat("word ", 5000)},
	})
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.True(t, resp.NeedsChunking)
}

func TestExtractUpload(t *testing.T) {
	h, _ := newTestServer(t, coordinatorRunner("ok"))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "essay.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("Rivers shape cities.\r\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res extract.Result
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	require.Equal(t, "Rivers shape cities.", res.Text)
}

func TestUnknownResult(t *testing.T) {
	h, _ := newTestServer(t, coordinatorRunner("ok"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/results/nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := ChainMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), RequestTraceMiddleware, RecoveryMiddleware(logging.Nop{}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotEmpty(t, resp.RequestID)
}

func TestPanickingRequestIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "info", "json")
	h := withMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), logger)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/grade", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	out := buf.String()
	require.Contains(t, out, "Panic recovered")
	require.Contains(t, out, `"msg":"HTTP request"`)
	require.Contains(t, out, `"status":500`)
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, coordinatorRunner("ok"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)
}
