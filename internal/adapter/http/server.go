package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/phuslu/log"

	"github.com/hylfro/instasweep/internal/domain"
)

// Server is the HTTP adapter for the job control API.
type Server struct {
	svc      *domain.JobService
	mux      *http.ServeMux
	server   *http.Server
	validate *validator.Validate
	logger   log.Logger
}

// NewServer creates a new HTTP server.
func NewServer(svc *domain.JobService, addr string, logger log.Logger) *Server {
	s := &Server{
		svc:      svc,
		mux:      http.NewServeMux(),
		validate: validator.New(),
		logger:   logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/jobs", s.handleCreateJob)
	s.mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("POST /api/jobs/{id}/stop", s.handleStopJob)
	s.mux.HandleFunc("GET /api/settings/cookies", s.handleGetCookies)
	s.mux.HandleFunc("POST /api/settings/cookies/clear", s.handleClearCookies)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// createJobRequest is the request body for POST /api/jobs.
type createJobRequest struct {
	Cookies    string `json:"cookies" validate:"required"`
	Speed      int    `json:"speed" validate:"omitempty,min=1,max=200"`
	TargetType string `json:"targetType" validate:"omitempty,oneof=like comment"`
}

// jobResponse is the JSON shape of a job everywhere it is returned.
type jobResponse struct {
	ID             int64    `json:"id"`
	Status         string   `json:"status"`
	TargetType     string   `json:"targetType"`
	TotalToProcess int      `json:"totalToProcess"`
	TotalUnliked   int      `json:"totalUnliked"`
	TotalSkipped   int      `json:"totalSkipped"`
	TotalErrors    int      `json:"totalErrors"`
	Speed          int      `json:"speed"`
	Logs           []string `json:"logs"`
	CreatedAt      string   `json:"createdAt"`
}

// errorResponse is the JSON error response.
type errorResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	job, err := s.svc.Create(r.Context(), req.Cookies, req.Speed, domain.TargetType(req.TargetType))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCookies) {
			s.writeError(w, http.StatusBadRequest, "Invalid JSON format for cookies")
			return
		}
		if errors.Is(err, domain.ErrInvalidSpeed) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("create job failed")
		s.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.writeJSON(w, http.StatusCreated, jobToResponse(job))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}

	job, err := s.svc.Get(r.Context(), id)
	if err != nil {
		s.jobError(w, id, err, "get job")
		return
	}
	s.writeJSON(w, http.StatusOK, jobToResponse(job))
}

func (s *Server) handleStopJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}

	job, err := s.svc.Stop(r.Context(), id)
	if err != nil {
		s.jobError(w, id, err, "stop job")
		return
	}
	s.writeJSON(w, http.StatusOK, jobToResponse(job))
}

func (s *Server) handleGetCookies(w http.ResponseWriter, r *http.Request) {
	cookies, err := s.svc.CookieSetting(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("get cookie setting failed")
		s.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"cookies": cookies})
}

func (s *Server) handleClearCookies(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearCookieSetting(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("clear cookie setting failed")
		s.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) jobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid job ID")
		return 0, false
	}
	return id, true
}

func (s *Server) jobError(w http.ResponseWriter, id int64, err error, op string) {
	if errors.Is(err, domain.ErrJobNotFound) {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	s.logger.Error().Int64("job", id).Err(err).Msgf("%s failed", op)
	s.writeError(w, http.StatusInternalServerError, "Internal server error")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Message: msg})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "Cookies":
			return "Cookies are required"
		case "Speed":
			return "speed must be between 1 and 200"
		case "TargetType":
			return "targetType must be like or comment"
		}
	}
	return "invalid request"
}

func jobToResponse(job *domain.Job) jobResponse {
	logs := job.Logs
	if logs == nil {
		logs = []string{}
	}
	return jobResponse{
		ID:             job.ID,
		Status:         string(job.Status),
		TargetType:     string(job.TargetType),
		TotalToProcess: job.TotalToProcess,
		TotalUnliked:   job.TotalUnliked,
		TotalSkipped:   job.TotalSkipped,
		TotalErrors:    job.TotalErrors,
		Speed:          job.Speed,
		Logs:           logs,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
