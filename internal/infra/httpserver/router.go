package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appanalysis "github.com/bryanwahyu/hdfs-analysis-sim/internal/application/analysis"
	domain "github.com/bryanwahyu/hdfs-analysis-sim/internal/domain/analysis"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/middleware"
)

// ServiceName is reported by /health
const ServiceName = "HDFS Log Analysis Simulator"

// Options configures the cross-cutting middleware. The zero value gives an
// open router with no auth or rate limit.
type Options struct {
	Log         *zap.Logger
	APIKeys     map[string]string
	Limiter     *middleware.RateLimiter
	CORSOrigins []string
	Checkers    map[string]middleware.HealthChecker
}

type Router struct {
	svc *appanalysis.Service
	log *zap.Logger
}

func NewRouter(svc *appanalysis.Service, opts Options) http.Handler {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	checkers := map[string]middleware.HealthChecker{
		"results_dir": middleware.DirHealthChecker{Dir: svc.ResultsDir()},
	}
	for name, c := range opts.Checkers {
		checkers[name] = c
	}

	r := &Router{svc: svc, log: opts.Log}
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.Logging(opts.Log))
	mux.Use(middleware.Metrics)
	mux.Use(chimw.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	mux.Use(middleware.RateLimit(opts.Limiter))

	mux.Get("/health", middleware.HealthHandler(ServiceName, svc.ResultsDir(), checkers))
	mux.Method(http.MethodGet, "/metrics", promhttp.Handler())

	mux.Post("/analyze", r.wrap(r.handleAnalyze))
	mux.Get("/status/{job_id}", r.wrap(r.handleStatus))
	mux.Get("/results/{filename}", r.wrap(r.handleResults))

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// errBadRequest marks client input errors that have no domain sentinel
type errBadRequest struct{ err error }

func (e errBadRequest) Error() string { return e.err.Error() }
func (e errBadRequest) Unwrap() error { return e.err }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var bad errBadRequest
		switch {
		case errors.Is(err, domain.ErrMissingFields):
			writeError(w, http.StatusBadRequest, "Missing required fields")
		case errors.Is(err, domain.ErrInvalidCallbackURL), errors.As(err, &bad):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrResultNotFound):
			writeError(w, http.StatusNotFound, "File not found")
		default:
			r.log.Error("request failed",
				zap.String("path", req.URL.Path),
				zap.String("request_id", chimw.GetReqID(req.Context())),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
	}
}

type analyzeRequest struct {
	UploadID     domain.UploadID `json:"upload_id"`
	Filename     string          `json:"filename"`
	TotalEntries int             `json:"total_entries"`
	BlockIDs     []string        `json:"block_ids"`
	CallbackURL  string          `json:"callback_url"`
}

// POST /analyze
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 32<<20)).Decode(&body); err != nil {
		return errBadRequest{fmt.Errorf("invalid JSON body: %w", err)}
	}

	cmd := appanalysis.AnalyzeCommand{
		UploadID:     body.UploadID,
		Filename:     middleware.SanitizeString(body.Filename),
		TotalEntries: body.TotalEntries,
		BlockIDs:     body.BlockIDs,
		CallbackURL:  body.CallbackURL,
	}
	if cb := r.svc.CallbackURL(cmd); cb != "" {
		if err := middleware.ValidateCallbackURL(cb); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidCallbackURL, err)
		}
	}

	desc, err := r.svc.Start(req.Context(), cmd)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, desc)
}

// GET /status/{job_id}
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) error {
	id := domain.JobID(chi.URLParam(req, "job_id"))

	job, err := r.svc.Status(req.Context(), id)
	if errors.Is(err, domain.ErrJobNotFound) {
		return writeJSON(w, http.StatusOK, map[string]string{
			"job_id":  string(id),
			"status":  "processing",
			"message": "Analysis in progress",
		})
	}
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, job)
}

// GET /results/{filename}
func (r *Router) handleResults(w http.ResponseWriter, req *http.Request) error {
	name := chi.URLParam(req, "filename")
	if err := middleware.ValidateResultFilename(name); err != nil {
		return domain.ErrResultNotFound
	}

	rc, err := r.svc.OpenResult(req.Context(), name)
	if err != nil {
		return err
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := io.Copy(w, rc); err != nil {
		r.log.Warn("streaming result interrupted", zap.String("filename", name), zap.Error(err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	_ = writeJSON(w, code, map[string]string{"error": msg})
}
