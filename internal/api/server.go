// Package api exposes the admission filter over HTTP: one request, one
// response or one explicit error envelope. An empty accepted list is a
// normal result, never an error.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/crawlspace/linkgate/internal/errors"
	"github.com/crawlspace/linkgate/internal/filter"
	"github.com/crawlspace/linkgate/internal/logger"
	"github.com/crawlspace/linkgate/internal/metrics"
)

// maxRequestBody bounds filter request payloads.
const maxRequestBody = 32 << 20

// Server serves the filter API.
type Server struct {
	engine  *filter.Engine
	metrics *metrics.Collector
	log     *logger.Logger
	hub     *Hub
	httpSrv *http.Server
}

// NewServer creates a server bound to addr.
func NewServer(addr string, engine *filter.Engine, collector *metrics.Collector, log *logger.Logger) *Server {
	s := &Server{
		engine:  engine,
		metrics: collector,
		log:     log.WithComponent("api"),
		hub:     NewHub(log),
	}

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/filter", s.handleFilter)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/events", s.hub.ServeHTTP)
	return mux
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Infof("listening on %s", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpSrv.Shutdown(ctx)
}

// errorEnvelope is the tagged error payload, distinguishable from a result.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed,
			errors.NewTransport("filter", "method not allowed", nil))
		return
	}

	var req filter.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest,
			errors.NewTransport("filter", "malformed request payload", err))
		return
	}

	start := time.Now()
	result, err := s.engine.Filter(&req)
	if err != nil {
		s.metrics.RecordCallError()
		switch errors.GetKind(err) {
		case errors.Configuration:
			s.writeError(w, http.StatusUnprocessableEntity, err)
		default:
			s.log.WithError(err).Error("filter call failed")
			s.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	duration := time.Since(start)
	s.record(&req, result, duration)

	s.writeJSON(w, http.StatusOK, result)
}

// record feeds the metrics and event side channels.
func (s *Server) record(req *filter.Request, result *filter.Result, duration time.Duration) {
	s.metrics.RecordCall(len(req.Links), len(result.Links), duration)

	// Denied counts distinct denied URLs, consistent with the denials map;
	// duplicate occurrences of one URL collapse to one map entry.
	denials := make(map[string]int, len(result.DenialReasons))
	denied := 0
	for _, reason := range result.DenialReasons {
		s.metrics.RecordDenial(string(reason))
		denials[string(reason)]++
		denied++
	}

	s.log.FilterEvent(len(req.Links), len(result.Links), duration)

	s.hub.Broadcast(Event{
		Time:       time.Now().UTC(),
		Links:      len(req.Links),
		Accepted:   len(result.Links),
		Denied:     denied,
		Denials:    denials,
		DurationMs: float64(duration.Microseconds()) / 1000.0,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorEnvelope{
		Error: errorBody{
			Kind:    errors.GetKind(err).String(),
			Message: err.Error(),
		},
	})
}
