package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"scanbay/internal/api"
	"scanbay/internal/config"
	"scanbay/internal/dispatch"
	"scanbay/internal/jobs"
	"scanbay/internal/logging"
	"scanbay/internal/services"
	"scanbay/internal/storage"
)

type apiServer struct {
	bind    string
	maxBody int64
	logger  *slog.Logger
	jobSvc  *api.JobService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, store *jobs.Store, objects storage.Store, dispatcher *dispatch.Dispatcher, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("api bind address required")
	}

	srv := &apiServer{
		bind:    bind,
		maxBody: cfg.Enrichment.MaxPayloadBytes + 1<<20,
		logger:  logging.NewComponentLogger(logger, "api-server"),
		jobSvc:  api.NewJobService(store, objects, dispatcher.Enqueue, cfg.Enrichment),
	}

	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return authMiddleware(cfg.Paths.APIToken, next)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/jobs", auth(srv.handleSubmit))
	mux.HandleFunc("GET /api/jobs", auth(srv.handleList))
	mux.HandleFunc("GET /api/jobs/{id}", auth(srv.handleGet))
	mux.HandleFunc("POST /api/jobs/{id}/retry", auth(srv.handleRetry))
	mux.HandleFunc("POST /api/jobs/retry", auth(srv.handleRetryAll))
	mux.HandleFunc("GET /api/health", srv.handleHealth)
	// Hosted photos must stay reachable without a token; the model provider
	// fetches them by URL.
	mux.Handle("GET /files/", http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.Paths.FilesDir))))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// handleSubmit accepts a multipart form with photo parts and optional
// barcodes, locale, and model fields.
func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := r.ParseMultipartForm(s.maxBody); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	req := api.SubmitRequest{
		Barcodes: r.FormValue("barcodes"),
		Locale:   r.FormValue("locale"),
		Model:    r.FormValue("model"),
	}
	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["photos"] {
			upload, err := readUpload(header)
			if err != nil {
				s.writeError(w, http.StatusBadRequest, fmt.Sprintf("read uploaded file %q", header.Filename))
				return
			}
			req.Uploads = append(req.Uploads, upload)
		}
	}

	view, err := s.jobSvc.Submit(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.JobResponse{Job: *view})
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	var statuses []jobs.Status
	for _, value := range r.URL.Query()["status"] {
		status, ok := jobs.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		statuses = append(statuses, status)
	}
	views, err := s.jobSvc.List(r.Context(), statuses...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: views})
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	view, err := s.jobSvc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if view == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: *view})
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	retried, err := s.jobSvc.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if retried == 0 {
		s.writeError(w, http.StatusConflict, "job is not failed")
		return
	}
	s.writeJSON(w, http.StatusOK, api.RetryResponse{Retried: retried})
}

func (s *apiServer) handleRetryAll(w http.ResponseWriter, r *http.Request) {
	retried, err := s.jobSvc.Retry(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RetryResponse{Retried: retried})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.jobSvc.Health(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, health)
}

func readUpload(header *multipart.FileHeader) (api.Upload, error) {
	file, err := header.Open()
	if err != nil {
		return api.Upload{}, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return api.Upload{}, err
	}
	return api.Upload{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

// writeServiceError maps the service error taxonomy onto HTTP status codes.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrBarcodeLimit):
		s.writeError(w, http.StatusBadRequest, services.Message(err))
	case errors.Is(err, services.ErrPayloadLimit):
		s.writeError(w, http.StatusRequestEntityTooLarge, services.Message(err))
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, services.Message(err))
	default:
		s.logger.Error("request failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
