// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quote-parser/internal/model"
	"github.com/sells-group/quote-parser/internal/pipeline"
	"github.com/sells-group/quote-parser/internal/store"
)

const maxMultipartMemory = 32 << 20 // 32 MiB

// ExtractionResponse is the envelope returned by POST /extract. Failures in
// steps past input validation ride the envelope with HTTP 200.
type ExtractionResponse struct {
	Success   bool               `json:"success"`
	Data      *model.QuoteRecord `json:"data,omitempty"`
	Error     string             `json:"error,omitempty"`
	Sources   []string           `json:"sources"`
	URLsFound []string           `json:"urls_found"`
}

// Server wires the pipeline and store into an http.Handler.
type Server struct {
	pipeline *pipeline.Pipeline
	proc     pipeline.SourceProcessor
	store    *store.Store
	router   chi.Router
}

// New creates a Server.
func New(p *pipeline.Pipeline, proc pipeline.SourceProcessor, st *store.Store) *Server {
	s := &Server{pipeline: p, proc: proc, store: st}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))
	r.Use(requestLogger)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/extract", s.handleExtract)
	r.Post("/extract-text", s.handleExtractText)
	r.Get("/recent-requests", s.handleRecentRequests)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger tags each request with a correlation ID and logs it.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		zap.L().Info("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Hotel Quote Parser Microservice",
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "hotel-quote-parser",
	})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeJSON(w, http.StatusBadRequest, ExtractionResponse{
			Error:     "invalid multipart form",
			Sources:   []string{},
			URLsFound: []string{},
		})
		return
	}

	req := pipeline.Request{
		EmailContent: r.FormValue("email_content"),
		ProposalURL:  r.FormValue("proposal_url"),
	}

	var err error
	if req.EmailFile, err = formFile(r, "email_file"); err != nil {
		writeEnvelopeError(w, err)
		return
	}
	if req.ProposalFile, err = formFile(r, "proposal_file"); err != nil {
		writeEnvelopeError(w, err)
		return
	}

	if req.EmailContent == "" && req.EmailFile == nil && req.ProposalFile == nil && req.ProposalURL == "" {
		writeJSON(w, http.StatusBadRequest, ExtractionResponse{
			Error:     "no content provided for extraction",
			Sources:   []string{},
			URLsFound: []string{},
		})
		return
	}

	result, err := s.pipeline.Run(r.Context(), req)
	if err != nil {
		writeEnvelopeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ExtractionResponse{
		Success:   true,
		Data:      result.Data,
		Sources:   result.Sources,
		URLsFound: result.URLsFound,
	})
}

func (s *Server) handleExtractText(w http.ResponseWriter, r *http.Request) {
	var content string
	if err := json.NewDecoder(r.Body).Decode(&content); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "request body must be a JSON string",
		})
		return
	}

	rec, err := s.proc.Process(r.Context(), content, "text")
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   eris.Cause(err).Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    rec,
	})
}

func (s *Server) handleRecentRequests(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	rows, err := s.store.RecentRequests(r.Context(), limit)
	if err != nil {
		zap.L().Error("recent requests", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "failed to load recent requests",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    rows,
	})
}

// writeEnvelopeError reports a pipeline failure inside the 200 envelope; the
// success flag carries the outcome.
func writeEnvelopeError(w http.ResponseWriter, err error) {
	zap.L().Error("extraction failed", zap.Error(err))

	msg := err.Error()
	if errors.Is(err, pipeline.ErrNoInput) {
		msg = "no content provided for extraction"
	}
	writeJSON(w, http.StatusOK, ExtractionResponse{
		Error:     msg,
		Sources:   []string{},
		URLsFound: []string{},
	})
}

func formFile(r *http.Request, field string) (*pipeline.FileInput, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "server: read %s", field)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, eris.Wrapf(err, "server: read %s content", field)
	}

	return &pipeline.FileInput{
		Name:        header.Filename,
		ContentType: fileContentType(header),
		Data:        data,
	}, nil
}

func fileContentType(h *multipart.FileHeader) string {
	return h.Header.Get("Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}
