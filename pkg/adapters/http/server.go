// Package http exposes an engine over a small JSON API: dialing, status,
// stored results, keyword checks, a live event stream and metrics.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ngabopay/ussdpilot/internal/logging"
	"github.com/ngabopay/ussdpilot/pkg/adapters/memory"
	"github.com/ngabopay/ussdpilot/pkg/adapters/replay"
	"github.com/ngabopay/ussdpilot/pkg/classify"
	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/ngabopay/ussdpilot/pkg/ports"
	"github.com/ngabopay/ussdpilot/pkg/session"
	"github.com/ngabopay/ussdpilot/pkg/ussdcode"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// Engine is the part of the engine facade the API drives.
type Engine interface {
	Dial(ctx context.Context, code string, steps ...domain.Step) *session.Pending
	Status() session.Status
	Classifier() *classify.Classifier
}

// Server serves the API.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	store    ports.ResultStore
	feed     *memory.Feed
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithResultStore enables the /v1/results endpoints.
func WithResultStore(store ports.ResultStore) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithSnapshotFeed enables POST /v1/snapshots, which publishes element trees
// into feed.
func WithSnapshotFeed(feed *memory.Feed) Option {
	return func(s *Server) {
		s.feed = feed
	}
}

// WithGatherer enables GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithStreams shares sm with the server. The engine must have been built with
// sm.Hooks() for the event stream to carry anything.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a Server for engine.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger
	return s
}

// NewHandler creates the HTTP handler for engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	return NewServer(engine, opts...).Handler()
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.GetHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/engine", s.GetEngine)
		r.Post("/dial", s.Dial)
		r.Post("/classify", s.Classify)
		r.Get("/events", s.SubscribeEvents)
		if s.store != nil {
			r.Get("/results", s.ListResults)
			r.Get("/results/{id}", s.GetResult)
		}
		if s.feed != nil {
			r.Post("/snapshots", s.PublishSnapshot)
		}
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// EngineInfo is the GET /v1/engine body.
type EngineInfo struct {
	session.Status
	Profile string `json:"profile"`
}

// DialRequest is the POST /v1/dial body. Either Code, or Template with Vars.
type DialRequest struct {
	Code     string            `json:"code,omitempty"`
	Template string            `json:"template,omitempty"`
	Vars     map[string]string `json:"vars,omitempty"`
	Steps    []domain.Step     `json:"steps,omitempty"`

	// Wait holds the response until the session resolves.
	Wait bool `json:"wait,omitempty"`
}

// DialResponse is returned when the session was accepted but not yet resolved.
type DialResponse struct {
	SessionID string `json:"session_id"`
}

// ClassifyRequest is the POST /v1/classify body.
type ClassifyRequest struct {
	Text string `json:"text"`
}

// SnapshotRequest is the POST /v1/snapshots body.
type SnapshotRequest struct {
	Package string         `json:"package,omitempty"`
	Root    replay.Element `json:"root"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetEngine handles GET /v1/engine.
func (s *Server) GetEngine(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, EngineInfo{
		Status:  s.Engine.Status(),
		Profile: s.Engine.Classifier().Profile().ID(),
	})
}

// Dial handles POST /v1/dial. A busy engine answers 409, a session resolved
// before the reply (or Wait) answers 200 with the result, otherwise 202.
func (s *Server) Dial(w http.ResponseWriter, r *http.Request) {
	var body DialRequest
	if !s.decode(w, r, &body) {
		return
	}

	code, logged, err := body.code()
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	if err := ussdcode.Validate(code); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}

	pending := s.Engine.Dial(r.Context(), code, body.Steps...)
	s.logger.Info("dial requested", "code", logged, "steps", len(body.Steps), "session_id", pending.ID())

	if body.Wait {
		res, err := pending.Wait(r.Context())
		if err != nil {
			// The client went away; the session keeps running.
			return
		}
		s.writeResult(w, res)
		return
	}
	if res, ok := pending.Result(); ok {
		s.writeResult(w, res)
		return
	}
	writeJSON(w, http.StatusAccepted, DialResponse{SessionID: pending.ID()})
}

// code resolves the dial string and a redacted form for logs.
func (b DialRequest) code() (string, string, error) {
	if b.Template == "" {
		if b.Code == "" {
			return "", "", errors.New("code or template is required")
		}
		return b.Code, b.Code, nil
	}
	if b.Code != "" {
		return "", "", errors.New("code and template are mutually exclusive")
	}
	tpl, err := ussdcode.Parse(b.Template)
	if err != nil {
		return "", "", err
	}
	code, err := tpl.Render(b.Vars)
	if err != nil {
		return "", "", err
	}
	return code, tpl.Redact(b.Vars), nil
}

func (s *Server) writeResult(w http.ResponseWriter, res domain.Result) {
	status := http.StatusOK
	if res.Outcome == domain.OutcomeBusy {
		status = http.StatusConflict
	}
	writeJSON(w, status, res)
}

// Classify handles POST /v1/classify.
func (s *Server) Classify(w http.ResponseWriter, r *http.Request) {
	var body ClassifyRequest
	if !s.decode(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, s.Engine.Classifier().Explain(body.Text))
}

// ListResults handles GET /v1/results.
func (s *Server) ListResults(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

// GetResult handles GET /v1/results/{id}.
func (s *Server) GetResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.store.Load(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrResultNotFound) {
		s.fail(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PublishSnapshot handles POST /v1/snapshots.
func (s *Server) PublishSnapshot(w http.ResponseWriter, r *http.Request) {
	var body SnapshotRequest
	if !s.decode(w, r, &body) {
		return
	}
	snap := replay.NewSnapshot(body.Package, body.Root, nil)
	if err := s.feed.Publish(r.Context(), snap); err != nil {
		s.fail(w, http.StatusServiceUnavailable, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.logger.Warn("invalid request body", "path", r.URL.Path, "err", err)
		s.fail(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "err", err)
	}
	writeJSON(w, status, ErrorResponse{Error: strings.TrimSpace(err.Error())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
