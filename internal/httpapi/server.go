package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"genctl/internal/manager"
	"genctl/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Status() types.StatusResponse
	Refresh(ctx context.Context) error
	Load(ctx context.Context, modelID string, force bool) (types.ModelRecord, error)
	Unload(ctx context.Context, modelID string) (types.ModelRecord, error)
	ClearAll(ctx context.Context) types.ClearAllResult
	Generate(ctx context.Context, mode, prompt string) (*types.GenerationResponse, error)
	SubmitJob(mode, prompt string) (types.JobResponse, error)
	Job(id string) (types.JobResponse, bool)
	CancelJob(id string) (types.JobResponse, bool)
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsCfg.enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsCfg.origins,
			AllowedMethods: corsCfg.methods,
			AllowedHeaders: corsCfg.headers,
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc}
	r.Get("/models/status", h.status)
	r.Post("/models/load", h.load)
	r.Post("/models/unload", h.unload)
	r.Post("/models/clear-all", h.clearAll)
	r.Post("/generate-art", h.generate("art"))
	r.Post("/generate-video", h.generate("video"))
	r.Post("/generate-streaming", h.generate("streaming"))
	r.Post("/jobs", h.submitJob)
	r.Get("/jobs/{id}", h.job)
	r.Delete("/jobs/{id}", h.cancelJob)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("no model loaded"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

type handlers struct {
	svc Service
}

// decodeJSON enforces the content type and body limit, then decodes into v.
// It writes the error response itself and reports false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", manager.KindInvalidInput)
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body", manager.KindInvalidInput)
		return false
	}
	return true
}

// @Summary  Model lifecycle records
// @Produce  json
// @Param    refresh  query  string  false  "1 to refresh from the remote service first"
// @Success  200  {object}  types.StatusResponse
// @Failure  502  {object}  types.ErrorResponse
// @Router   /models/status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	if v := r.URL.Query().Get("refresh"); v == "1" || v == "true" {
		if err := h.svc.Refresh(r.Context()); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// @Summary  Load a model on the remote service
// @Accept   json
// @Produce  json
// @Param    request  body  types.LoadModelRequest  true  "model"
// @Success  200  {object}  types.ModelRecord
// @Failure  400,404,409,502,504  {object}  types.ErrorResponse
// @Router   /models/load [post]
func (h *handlers) load(w http.ResponseWriter, r *http.Request) {
	var req types.LoadModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ModelType) == "" {
		writeJSONError(w, http.StatusBadRequest, "model_type is required", manager.KindInvalidInput)
		return
	}
	rec, err := h.svc.Load(r.Context(), req.ModelType, req.ForceReload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// @Summary  Unload a model on the remote service
// @Accept   json
// @Produce  json
// @Param    request  body  types.UnloadModelRequest  true  "model"
// @Success  200  {object}  types.ModelRecord
// @Failure  400,404,409,502,504  {object}  types.ErrorResponse
// @Router   /models/unload [post]
func (h *handlers) unload(w http.ResponseWriter, r *http.Request) {
	var req types.UnloadModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ModelType) == "" {
		writeJSONError(w, http.StatusBadRequest, "model_type is required", manager.KindInvalidInput)
		return
	}
	rec, err := h.svc.Unload(r.Context(), req.ModelType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// @Summary  Unload every model
// @Produce  json
// @Success  200  {object}  types.ClearAllResult
// @Success  207  {object}  types.ClearAllResult
// @Router   /models/clear-all [post]
func (h *handlers) clearAll(w http.ResponseWriter, r *http.Request) {
	res := h.svc.ClearAll(r.Context())
	status := http.StatusOK
	if !res.Success {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, res)
}

// @Summary  Generate with a fixed preset and wait for the result
// @Accept   json
// @Produce  json
// @Param    request  body  types.PromptRequest  true  "prompt"
// @Success  200  {object}  types.GenerationResponse
// @Failure  400,409,429,502,504  {object}  types.ErrorResponse
// @Router   /generate-art [post]
// @Router   /generate-video [post]
// @Router   /generate-streaming [post]
func (h *handlers) generate(mode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.PromptRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		res, err := h.svc.Generate(ctx, mode, req.Prompt)
		if err != nil {
			// Client went away; nobody reads the response.
			if r.Context().Err() != nil {
				return
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// @Summary  Queue a generation job
// @Accept   json
// @Produce  json
// @Param    request  body  types.JobRequest  true  "job"
// @Success  202  {object}  types.JobResponse
// @Failure  400,409,429  {object}  types.ErrorResponse
// @Router   /jobs [post]
func (h *handlers) submitJob(w http.ResponseWriter, r *http.Request) {
	var req types.JobRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	job, err := h.svc.SubmitJob(req.Mode, req.Prompt)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

// @Summary  Job state
// @Produce  json
// @Param    id  path  string  true  "job id"
// @Success  200  {object}  types.JobResponse
// @Failure  404  {object}  types.ErrorResponse
// @Router   /jobs/{id} [get]
func (h *handlers) job(w http.ResponseWriter, r *http.Request) {
	job, ok := h.svc.Job(chi.URLParam(r, "id"))
	if !ok {
		writeJSONError(w, http.StatusNotFound, "job not found", "")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// @Summary  Cancel a job
// @Produce  json
// @Param    id  path  string  true  "job id"
// @Success  200  {object}  types.JobResponse
// @Failure  404  {object}  types.ErrorResponse
// @Router   /jobs/{id} [delete]
func (h *handlers) cancelJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.svc.CancelJob(chi.URLParam(r, "id"))
	if !ok {
		writeJSONError(w, http.StatusNotFound, "job not found", "")
		return
	}
	writeJSON(w, http.StatusOK, job)
}
