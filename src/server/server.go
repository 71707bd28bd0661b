// Package server exposes grading and rewriting jobs over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Protocol-Lattice/go-grader/src/chunking"
	"github.com/Protocol-Lattice/go-grader/src/config"
	"github.com/Protocol-Lattice/go-grader/src/extract"
	"github.com/Protocol-Lattice/go-grader/src/grader"
	"github.com/Protocol-Lattice/go-grader/src/logging"
	"github.com/Protocol-Lattice/go-grader/src/store"
)

// Runner runs one job to completion.
type Runner interface {
	Run(ctx context.Context, job grader.Job) (grader.FinalResult, error)
}

type API struct {
	runner    Runner
	estimator *chunking.Estimator
	results   store.ResultStore
	extractor *extract.Service
	providers []string
	logger    logging.Logger
}

func NewAPI(runner Runner, estimator *chunking.Estimator, results store.ResultStore, extractor *extract.Service, providers []string, logger logging.Logger) *API {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &API{
		runner:    runner,
		estimator: estimator,
		results:   results,
		extractor: extractor,
		providers: providers,
		logger:    logger,
	}
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/grade", a.runJob(grader.ModeGrade))
	mux.HandleFunc("POST /api/v1/rewrite", a.runJob(grader.ModeRewrite))
	mux.HandleFunc("POST /api/v1/exemplar", a.runJob(grader.ModeExemplar))
	mux.HandleFunc("POST /api/v1/needs-chunking", a.needsChunking)
	mux.HandleFunc("POST /api/v1/extract", a.extract)
	mux.HandleFunc("GET /api/v1/results/{id}", a.getResult)
	mux.HandleFunc("GET /api/v1/health", a.health)
}

const maxJSONBody = 16 << 20

func (a *API) runJob(mode grader.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JobRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
			a.respondError(w, r, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
		if strings.TrimSpace(req.Provider) == "" {
			a.respondError(w, r, http.StatusBadRequest, "validation failed", "provider is required")
			return
		}

		job := grader.Job{
			ID:           uuid.NewString(),
			Assignment:   req.Assignment,
			Instructions: req.Instructions,
			Target:       req.Text,
			Provider:     req.Provider,
			Model:        req.Model,
			Temperature:  req.Temperature,
			Mode:         mode,
			MaxScore:     req.MaxScore,
		}
		if err := job.Validate(); err != nil {
			a.respondError(w, r, http.StatusBadRequest, "validation failed", err.Error())
			return
		}

		res, err := a.runner.Run(r.Context(), job)
		if err != nil {
			var exhausted *grader.AllProvidersFailedError
			switch {
			case errors.As(err, &exhausted):
				a.logger.Warn("job failed on every provider", "job", job.ID, "request_id", RequestID(r.Context()), "error", err)
				a.respondError(w, r, http.StatusBadGateway, grader.UserMessage, "")
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				a.respondError(w, r, http.StatusServiceUnavailable, "request cancelled", err.Error())
			case errors.Is(err, grader.ErrEmptyJob), errors.Is(err, grader.ErrUnknownMode):
				a.respondError(w, r, http.StatusBadRequest, "validation failed", err.Error())
			default:
				a.logger.Error("job failed", "job", job.ID, "request_id", RequestID(r.Context()), "error", err)
				a.respondError(w, r, http.StatusInternalServerError, "job failed", err.Error())
			}
			return
		}

		if err := a.results.Save(context.WithoutCancel(r.Context()), res); err != nil {
			a.logger.Error("saving result failed", "job", res.ID, "error", err)
		}
		a.respondJSON(w, http.StatusOK, JobResponse{
			ID:            res.ID,
			Mode:          res.Mode,
			Text:          res.Text,
			Score:         res.Score,
			PartScores:    res.PerChunkScores,
			ProviderChain: res.ProviderChain,
			Chunked:       res.Chunked,
			Chunks:        res.Chunks,
			FailedChunks:  res.FailedChunks,
			Links:         Links{Self: fmt.Sprintf("/api/v1/results/%s", res.ID)},
		})
	}
}

func (a *API) needsChunking(w http.ResponseWriter, r *http.Request) {
	var req NeedsChunkingRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		a.respondError(w, r, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	provider := chunking.NormalizeProvider(req.Provider)
	a.respondJSON(w, http.StatusOK, NeedsChunkingResponse{
		Provider:        provider,
		NeedsChunking:   a.estimator.NeedsChunking(provider, req.Texts...),
		EstimatedTokens: chunking.EstimateTokens(strings.Join(req.Texts, "\n\n")),
		Limit:           a.estimator.Limit(provider),
	})
}

func (a *API) extract(w http.ResponseWriter, r *http.Request) {
	maxBytes := a.extractor.MaxBytes
	if maxBytes <= 0 {
		maxBytes = extract.DefaultMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		a.respondError(w, r, http.StatusBadRequest, "missing file", err.Error())
		return
	}
	defer file.Close()

	res, err := a.extractor.Read(header.Filename, header.Header.Get("Content-Type"), file)
	switch {
	case errors.Is(err, extract.ErrTooLarge):
		a.respondError(w, r, http.StatusRequestEntityTooLarge, "file too large", err.Error())
	case errors.Is(err, extract.ErrUnsupported):
		a.respondError(w, r, http.StatusUnsupportedMediaType, "unsupported file type", err.Error())
	case err != nil:
		a.respondError(w, r, http.StatusUnprocessableEntity, "could not extract text", err.Error())
	default:
		a.respondJSON(w, http.StatusOK, res)
	}
}

// getResult handles GET /api/v1/results/{id}
func (a *API) getResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := a.results.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		a.respondError(w, r, http.StatusNotFound, "result not found", "")
		return
	}
	if err != nil {
		a.respondError(w, r, http.StatusInternalServerError, "loading result failed", err.Error())
		return
	}
	a.respondJSON(w, http.StatusOK, res)
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	a.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Providers: a.providers})
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func (a *API) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	respondJSON(w, statusCode, data)
}

func (a *API) respondError(w http.ResponseWriter, r *http.Request, statusCode int, error string, message string) {
	a.respondJSON(w, statusCode, ErrorResponse{
		Error:     error,
		Message:   message,
		Code:      statusCode,
		RequestID: RequestID(r.Context()),
	})
}

// NewServer wires the API and its middleware into an http.Server.
func NewServer(cfg config.ServerConfig, api *API, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      withMiddleware(mux, logger),
		ReadTimeout:  orDefault(cfg.ReadTimeout, 30*time.Second),
		WriteTimeout: orDefault(cfg.WriteTimeout, 10*time.Minute),
		IdleTimeout:  orDefault(cfg.IdleTimeout, 60*time.Second),
	}
}

// withMiddleware wraps h so that a recovered panic still gets its access log line.
func withMiddleware(h http.Handler, logger logging.Logger) http.Handler {
	return ChainMiddleware(h,
		RequestTraceMiddleware,
		LoggingMiddleware(logger),
		RecoveryMiddleware(logger),
	)
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
