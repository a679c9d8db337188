package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"market-pipeline/internal/model"
	"market-pipeline/internal/pipeline"
	"market-pipeline/internal/store"
	"market-pipeline/pkg/logger"
)

// Runner executes a batch under a caller-chosen run ID.
type Runner interface {
	RunWithID(ctx context.Context, runID string, specs []model.DatasetSpec) (*model.BatchResult, error)
}

// Ledger is the run ledger. StartRun must tolerate being called again for
// the same run by the Runner.
type Ledger interface {
	Ping(ctx context.Context) error
	StartRun(ctx context.Context, runID string, specs []model.DatasetSpec, startedAt time.Time) error
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
	GetRun(ctx context.Context, runID string) (store.Run, error)
	GetDatasetOutcomes(ctx context.Context, runID string, failedOnly bool) ([]store.DatasetOutcome, error)
	GetAnalysisResults(ctx context.Context, runID string) ([]store.StoredAnalysis, error)
	GetLatestAnalysis(ctx context.Context, dataset string) (store.StoredAnalysis, error)
}

// Handler serves the run API.
type Handler struct {
	runner   Runner
	ledger   Ledger
	defaults []model.DatasetSpec
	log      logger.Logger

	// base is the parent context of background runs.
	base context.Context
	wg   sync.WaitGroup
}

// New creates a Handler. Runs started over HTTP use defaults when the
// request names no datasets, and are cancelled when base is.
func New(base context.Context, runner Runner, ledger Ledger, defaults []model.DatasetSpec, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		runner:   runner,
		ledger:   ledger,
		defaults: defaults,
		log:      log.Named("api"),
		base:     base,
	}
}

// Wait blocks until every background run has returned.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// RunRequest optionally overrides the configured datasets.
type RunRequest struct {
	Datasets []model.DatasetSpec `json:"datasets"`
}

// RunAccepted is returned when a run has been scheduled.
type RunAccepted struct {
	RunID     string              `json:"run_id"`
	Status    string              `json:"status"`
	Datasets  []model.DatasetSpec `json:"datasets"`
	CreatedAt time.Time           `json:"created_at"`
}

// ErrResponse is the body of every error response.
type ErrResponse struct {
	Error string `json:"error"`
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	if err != nil && status >= http.StatusInternalServerError {
		h.log.Error(r.Context(), msg, logger.String("path", r.URL.Path), logger.Error(err))
	}
	if err != nil && status < http.StatusInternalServerError {
		msg = msg + ": " + err.Error()
	}
	render.Status(r, status)
	render.JSON(w, r, ErrResponse{Error: msg})
}

// CreateRun starts a pipeline run
// @Summary Start a run
// @Description Validate the datasets and run acquisition, cleaning and analysis in the background. Without a body the configured datasets are used.
// @Tags runs
// @Accept json
// @Produce json
// @Param run body RunRequest false "Datasets to process"
// @Success 202 {object} RunAccepted "Run scheduled"
// @Failure 400 {object} ErrResponse "Invalid dataset configuration"
// @Router /api/v1/runs [post]
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		h.fail(w, r, http.StatusBadRequest, "invalid JSON payload", err)
		return
	}

	specs := req.Datasets
	if len(specs) == 0 {
		specs = h.defaults
	}
	if err := pipeline.ValidateSpecs(specs); err != nil {
		h.fail(w, r, http.StatusBadRequest, "invalid datasets", err)
		return
	}

	runID := uuid.NewString()
	created := time.Now().UTC()
	if err := h.ledger.StartRun(r.Context(), runID, specs, created); err != nil {
		h.fail(w, r, http.StatusInternalServerError, "failed to record run", err)
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if _, err := h.runner.RunWithID(h.base, runID, specs); err != nil {
			h.log.Error(h.base, "background run failed", logger.String("run_id", runID), logger.Error(err))
		}
	}()

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, RunAccepted{
		RunID:     runID,
		Status:    store.RunStatusRunning,
		Datasets:  specs,
		CreatedAt: created,
	})
}

// ListRuns lists recent runs
// @Summary List runs
// @Description Get the most recent pipeline runs with their status
// @Tags runs
// @Produce json
// @Success 200 {array} store.Run "Runs, newest first"
// @Failure 500 {object} ErrResponse "Internal server error"
// @Router /api/v1/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.ledger.ListRuns(r.Context(), 50)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "failed to fetch runs", err)
		return
	}
	render.JSON(w, r, runs)
}

// RunDetail is a run with the state of each dataset.
type RunDetail struct {
	store.Run
	Outcomes []store.DatasetOutcome `json:"outcomes"`
}

// GetRun retrieves a run
// @Summary Get run
// @Description Retrieve a run and the current state of each of its datasets
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} RunDetail "Run details"
// @Failure 404 {object} ErrResponse "Run not found"
// @Router /api/v1/runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	outcomes, err := h.ledger.GetDatasetOutcomes(r.Context(), run.ID, false)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "failed to fetch dataset outcomes", err)
		return
	}
	render.JSON(w, r, RunDetail{Run: run, Outcomes: outcomes})
}

// ResultEntry is either the analysis of a dataset or why it failed.
type ResultEntry struct {
	Location string                `json:"location,omitempty"`
	Result   *model.AnalysisResult `json:"result,omitempty"`
	Error    *FailureEntry         `json:"error,omitempty"`
}

type FailureEntry struct {
	Stage    string `json:"stage"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Attempts int    `json:"attempts"`
}

// RunResults maps every dataset of a run to its outcome.
type RunResults struct {
	RunID    string                 `json:"run_id"`
	Status   string                 `json:"status"`
	Datasets map[string]ResultEntry `json:"datasets"`
}

// GetRunResults retrieves the results of a run
// @Summary Get run results
// @Description Map every dataset of a run to its analysis artifact or to the error that stopped it
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} RunResults "Run results"
// @Failure 404 {object} ErrResponse "Run not found"
// @Router /api/v1/runs/{id}/results [get]
func (h *Handler) GetRunResults(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	analyses, err := h.ledger.GetAnalysisResults(r.Context(), run.ID)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "failed to fetch results", err)
		return
	}
	failed, err := h.ledger.GetDatasetOutcomes(r.Context(), run.ID, true)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "failed to fetch failures", err)
		return
	}

	out := RunResults{RunID: run.ID, Status: run.Status, Datasets: make(map[string]ResultEntry)}
	for _, a := range analyses {
		res := a.Result
		out.Datasets[a.Dataset] = ResultEntry{Location: a.Location, Result: &res}
	}
	for _, f := range failed {
		out.Datasets[f.Dataset] = ResultEntry{Error: &FailureEntry{
			Stage:    f.Stage,
			Kind:     f.ErrorKind,
			Message:  f.ErrorMessage,
			Attempts: f.Attempts,
		}}
	}
	render.JSON(w, r, out)
}

// GetRunErrors retrieves the failed datasets of a run
// @Summary Get run errors
// @Description List every dataset of a run that ended in the failed state
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Failed datasets"
// @Failure 404 {object} ErrResponse "Run not found"
// @Router /api/v1/runs/{id}/errors [get]
func (h *Handler) GetRunErrors(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	failed, err := h.ledger.GetDatasetOutcomes(r.Context(), run.ID, true)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "failed to fetch errors", err)
		return
	}
	render.JSON(w, r, map[string]any{
		"run_id": run.ID,
		"errors": failed,
		"count":  len(failed),
	})
}

// GetDatasetAnalysis returns the latest analysis of a dataset
// @Summary Get dataset analysis
// @Description Return the most recent analysis artifact of a dataset, in the format consumed by the presentation layer
// @Tags datasets
// @Produce json
// @Param name path string true "Dataset name"
// @Success 200 {object} model.AnalysisResult "Analysis artifact"
// @Failure 404 {object} ErrResponse "No analysis for this dataset"
// @Router /api/v1/datasets/{name}/analysis [get]
func (h *Handler) GetDatasetAnalysis(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	a, err := h.ledger.GetLatestAnalysis(r.Context(), name)
	if errors.Is(err, store.ErrNotFound) {
		h.fail(w, r, http.StatusNotFound, "no analysis for dataset "+name, nil)
		return
	}
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "failed to fetch analysis", err)
		return
	}
	w.Header().Set("X-Run-ID", a.RunID)
	render.JSON(w, r, a.Result)
}

// Health reports whether the ledger is reachable
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string "Service is healthy"
// @Failure 503 {object} ErrResponse "Ledger unavailable"
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Ping(r.Context()); err != nil {
		h.fail(w, r, http.StatusServiceUnavailable, "ledger unavailable", err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (h *Handler) lookupRun(w http.ResponseWriter, r *http.Request) (store.Run, bool) {
	id := chi.URLParam(r, "id")
	run, err := h.ledger.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.fail(w, r, http.StatusNotFound, "run not found", nil)
		return store.Run{}, false
	}
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "failed to fetch run", err)
		return store.Run{}, false
	}
	return run, true
}
