package newswire

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/pevans/newswire/logging"
	"github.com/pevans/newswire/metrics"
)

// PayloadSource produces the current Payload. *Pipeline implements it.
type PayloadSource interface {
	Payload(ctx context.Context) (Payload, bool, error)
}

// APIOptions configures an APIServer.
type APIOptions struct {
	// Shared-cache freshness advertised to CDNs (s-maxage)
	CacheTTL time.Duration
	// Window a CDN may serve stale content while revalidating
	StaleWhileRevalidate time.Duration
	// Optional; nil disables /healthz counters
	Metrics *metrics.Metrics
	// Optional; nil uses logging.Logger
	Logger *log.Logger
}

// APIServer serves the merged news Payload as JSON.
type APIServer struct {
	source       PayloadSource
	metrics      *metrics.Metrics
	logger       *log.Logger
	cacheControl string
}

// NewAPIServer creates a new API server backed by source.
func NewAPIServer(source PayloadSource, opts APIOptions) *APIServer {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = logging.Logger
	}
	if opts.Metrics == nil {
		opts.Metrics = &metrics.Metrics{}
	}

	return &APIServer{
		source:  source,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		cacheControl: fmt.Sprintf("public, max-age=0, s-maxage=%d, stale-while-revalidate=%d",
			int(opts.CacheTTL.Seconds()), int(opts.StaleWhileRevalidate.Seconds())),
	}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	OK      bool             `json:"ok"`
	Metrics metrics.Snapshot `json:"metrics"`
}

// Handler returns the routed handler with CORS and panic recovery applied.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// Register routes - need both with and without trailing slash to avoid 301
	mux.HandleFunc("/api/news", s.HandleNews)
	mux.HandleFunc("/api/news/", s.RouteNews)
	mux.HandleFunc("/healthz", s.HandleHealth)
	mux.HandleFunc("/", s.HandleRoot)

	return s.CORSMiddleware(s.RecoverMiddleware(mux))
}

// Start serves the API on addr until the server fails. cmd/newswire uses
// Handler with its own http.Server to get graceful shutdown.
func (s *APIServer) Start(addr string) error {
	return http.ListenAndServe(addr, s.Handler())
}

// HandleRoot serves the news payload at "/" and 404 elsewhere.
func (s *APIServer) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "Not found")
		return
	}
	s.HandleNews(w, r)
}

// RouteNews routes /api/news/* requests: the bare path with a trailing
// slash lists, anything else is an article ID.
func (s *APIServer) RouteNews(w http.ResponseWriter, r *http.Request) {
	suffix := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/news/"), "/")
	if suffix == "" {
		s.HandleNews(w, r)
		return
	}
	if strings.Contains(suffix, "/") {
		s.writeError(w, http.StatusNotFound, "Not found")
		return
	}
	s.HandleGetArticle(w, r, suffix)
}

// HandleNews handles GET /api/news. Optional query parameters narrow the
// cached payload without affecting it: source (label, case-insensitive),
// category, since (RFC 3339) and limit.
func (s *APIServer) HandleNews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeMethodNotAllowed(w)
		return
	}

	filter, err := parseNewsFilter(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payload, hit, err := s.source.Payload(r.Context())
	if err != nil {
		s.logger.Error("failed to build payload", "err", err)
		s.writeError(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	payload = filter.apply(payload)

	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.Header().Set("Cache-Control", s.cacheControl)
	s.writeJSON(w, http.StatusOK, payload)
}

// HandleGetArticle handles GET /api/news/{id}.
func (s *APIServer) HandleGetArticle(w http.ResponseWriter, r *http.Request, rawID string) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeMethodNotAllowed(w)
		return
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid article ID: "+err.Error())
		return
	}

	payload, hit, err := s.source.Payload(r.Context())
	if err != nil {
		s.logger.Error("failed to build payload", "err", err)
		s.writeError(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	for _, a := range payload.Articles {
		if a.ID == id {
			if hit {
				w.Header().Set("X-Cache", "HIT")
			} else {
				w.Header().Set("X-Cache", "MISS")
			}
			w.Header().Set("Cache-Control", s.cacheControl)
			s.writeJSON(w, http.StatusOK, a)
			return
		}
	}
	s.writeError(w, http.StatusNotFound, "Article with ID "+id.String()+" not found")
}

// HandleHealth handles GET /healthz.
func (s *APIServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeMethodNotAllowed(w)
		return
	}

	snapshot := s.metrics.Snapshot()
	w.Header().Set("Cache-Control", "no-store")
	s.writeJSON(w, http.StatusOK, HealthResponse{
		OK:      snapshot.Healthy,
		Metrics: snapshot,
	})
}

// newsFilter narrows a Payload for a single response.
type newsFilter struct {
	source   string
	category string
	since    time.Time
	limit    int
}

func parseNewsFilter(r *http.Request) (newsFilter, error) {
	query := r.URL.Query()
	f := newsFilter{
		source:   strings.TrimSpace(query.Get("source")),
		category: strings.TrimSpace(query.Get("category")),
	}

	if since := query.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return f, fmt.Errorf("invalid since parameter: must be RFC 3339")
		}
		f.since = t
	}

	if limit := query.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			return f, fmt.Errorf("invalid limit parameter")
		}
		f.limit = n
	}
	return f, nil
}

func (f newsFilter) empty() bool {
	return f.source == "" && f.category == "" && f.since.IsZero() && f.limit == 0
}

// apply returns a copy of p holding only matching articles. The cached
// payload itself is never modified.
func (f newsFilter) apply(p Payload) Payload {
	if f.empty() {
		return p
	}

	filtered := make([]Article, 0, len(p.Articles))
	for _, a := range p.Articles {
		if f.source != "" && !strings.EqualFold(a.SourceLabel, f.source) {
			continue
		}
		if f.category != "" && !strings.EqualFold(a.Category, f.category) {
			continue
		}
		if !f.since.IsZero() && !a.PublishedAt.After(f.since) {
			continue
		}
		filtered = append(filtered, a)
	}
	if f.limit > 0 && len(filtered) > f.limit {
		filtered = filtered[:f.limit]
	}

	p.Articles = filtered
	p.Count = len(filtered)
	return p
}

// writeJSON writes v as a JSON response.
func (s *APIServer) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "err", err)
	}
}

// writeError writes an error response with the given status code.
func (s *APIServer) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Cache-Control", "no-store")
	s.writeJSON(w, statusCode, ErrorResponse{
		OK:    false,
		Error: message,
	})
}

func (s *APIServer) writeMethodNotAllowed(w http.ResponseWriter) {
	w.Header().Set("Allow", "GET, HEAD, OPTIONS")
	s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// CORSMiddleware adds CORS headers to responses and answers preflight
// requests on any route with 204.
func (s *APIServer) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// internalErrorMessage is the body text of every 500. The cause is logged,
// never sent to the client.
const internalErrorMessage = "Internal server error"

// RecoverMiddleware turns a handler panic into a 500 JSON response.
func (s *APIServer) RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				msg := fmt.Sprint(rec)
				s.logger.Error("handler panicked", "path", r.URL.Path, "panic", msg)
				s.metrics.SetError(msg, time.Now())
				s.writeError(w, http.StatusInternalServerError, internalErrorMessage)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
