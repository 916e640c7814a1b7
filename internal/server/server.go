// Package server handles the HTTP API for the key-value store.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	v1 "github.com/ASHISH26940/heliokv/api/v1"
	"github.com/ASHISH26940/heliokv/internal/events"
	"github.com/ASHISH26940/heliokv/internal/handler"
	"github.com/ASHISH26940/heliokv/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-metrics"
	"github.com/oapi-codegen/runtime"
	"golang.org/x/net/websocket"
)

// maxBodyBytes caps request bodies on the write endpoints.
const maxBodyBytes = 4 << 20

// Options carries the server's optional collaborators.
type Options struct {
	Bus     *events.Bus        // change feed; nil disables /watch
	Metrics *metrics.Metrics   // nil discards metrics
	Sink    *metrics.InmemSink // rendered by /metrics; nil disables it
	Logger  hclog.Logger
}

// Server is the HTTP server for our key-value store.
type Server struct {
	backend handler.Backend
	bus     *events.Bus
	metrics *metrics.Metrics
	sink    *metrics.InmemSink
	logger  hclog.Logger
	router  chi.Router
}

// New creates a new Server instance.
func New(backend handler.Backend, opts Options) *Server {
	s := &Server{
		backend: backend,
		bus:     opts.Bus,
		metrics: opts.Metrics,
		sink:    opts.Sink,
		logger:  opts.Logger,
		router:  chi.NewRouter(),
	}
	if s.metrics == nil {
		s.metrics = telemetry.Discard()
	}
	if s.logger == nil {
		s.logger = hclog.NewNullLogger()
	}
	s.registerRoutes()
	return s
}

// ServeHTTP makes our Server a standard http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// registerRoutes sets up the HTTP routing for the server.
func (s *Server) registerRoutes() {
	s.router.Use(requestID)
	s.router.Use(s.accessLog)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.router.Get("/metrics", s.handleMetrics)
	s.router.Get("/greet", s.handleGreet)
	s.router.Get("/greet/", s.handleGreet)
	s.router.Get("/greet/{name}", s.handleGreet)
	s.router.Handle("/watch", websocket.Handler(s.handleWatch))

	s.router.Post("/kv/{key}", s.handleCreate)
	s.router.Get("/kv/{key}", s.handleRead)
	s.router.Put("/kv/{key}", s.handleUpdate)
	s.router.Delete("/kv/{key}", s.handleDelete)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	key, ok := s.keyParam(w, r)
	if !ok {
		return
	}
	var body v1.CreateRequest
	if !s.decodeBody(w, r, &body) {
		return
	}

	start := time.Now()
	res, err := handler.Create(s.backend, handler.CreateRequest{Key: key, Timestamp: body.Timestamp, Data: body.Data})
	s.finish(w, "create", key, start, res, err, events.TypeCreated)
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	key, ok := s.keyParam(w, r)
	if !ok {
		return
	}

	start := time.Now()
	res, err := handler.Read(s.backend, handler.ReadRequest{Key: key})
	s.finish(w, "read", key, start, res, err, "")
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	key, ok := s.keyParam(w, r)
	if !ok {
		return
	}
	var body v1.UpdateRequest
	if !s.decodeBody(w, r, &body) {
		return
	}

	start := time.Now()
	res, err := handler.Update(s.backend, handler.UpdateRequest{
		Key:       key,
		Version:   body.Version,
		Timestamp: body.Timestamp,
		Data:      body.Data,
	})
	s.finish(w, "update", key, start, res, err, events.TypeUpdated)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key, ok := s.keyParam(w, r)
	if !ok {
		return
	}

	start := time.Now()
	res, err := handler.Delete(s.backend, handler.DeleteRequest{Key: key})
	s.finish(w, "delete", key, start, res, err, events.TypeDeleted)
}

// finish records telemetry, publishes the change event for a successful
// mutation and writes the response.
func (s *Server) finish(w http.ResponseWriter, op string, key int64, start time.Time, res handler.Result, err error, evType events.Type) {
	s.metrics.MeasureSince([]string{"op", op, "latency"}, start)

	if err != nil {
		s.metrics.IncrCounterWithLabels([]string{"op", op}, 1, []metrics.Label{{Name: "status", Value: "error"}})
		s.logger.Error("backend failure", "op", op, "key", key, "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, v1.ErrorResponse{Error: err.Error()})
		return
	}

	s.metrics.IncrCounterWithLabels([]string{"op", op}, 1, []metrics.Label{{Name: "status", Value: res.Status.String()}})

	if res.Status == handler.StatusOK && evType != "" && s.bus != nil {
		s.bus.Publish(events.New(evType, key, res.Version, res.Revision))
	}

	code := statusCode(res.Status)
	if res.Status == handler.StatusOK && op == "create" {
		code = http.StatusCreated
	}
	s.writeJSON(w, code, v1.Result{
		Status:    res.Status.String(),
		Version:   res.Version,
		Revision:  res.Revision,
		Timestamp: res.Timestamp,
		Data:      res.Data,
	})
}

func statusCode(st handler.Status) int {
	switch st {
	case handler.StatusOK:
		return http.StatusOK
	case handler.StatusNotFound:
		return http.StatusNotFound
	case handler.StatusConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// handleGreet serves /greet and /greet/{name}. A missing name is empty.
func (s *Server) handleGreet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	// chi matches on the raw path when one is set, leaving the segment escaped.
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, v1.ErrorResponse{Error: fmt.Sprintf("invalid name: %v", err)})
			return
		}
		name = unescaped
	}
	s.writeJSON(w, http.StatusOK, v1.GreetResponse{Message: handler.Greet(name)})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.sink == nil {
		s.writeJSON(w, http.StatusNotFound, v1.ErrorResponse{Error: "metrics are disabled"})
		return
	}
	summary, err := s.sink.DisplayMetrics(w, r)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, v1.ErrorResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

// handleWatch streams change events to a websocket client until either side
// goes away.
func (s *Server) handleWatch(ws *websocket.Conn) {
	defer ws.Close()
	if s.bus == nil {
		return
	}

	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)

	// The client never sends anything we use; a failed receive means it left.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			var msg string
			if err := websocket.Message.Receive(ws, &msg); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if err := websocket.JSON.Send(ws, ev); err != nil {
				s.logger.Debug("watch client dropped", "error", err)
				return
			}
		}
	}
}

// keyParam binds the {key} path parameter as an int64.
func (s *Server) keyParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var key int64
	err := runtime.BindStyledParameterWithLocation("simple", false, "key", runtime.ParamLocationPath, chi.URLParam(r, "key"), &key)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, v1.ErrorResponse{Error: fmt.Sprintf("invalid key: %v", err)})
		return 0, false
	}
	return key, true
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "Invalid request body"
		if errors.Is(err, io.EOF) {
			msg = "Request body is empty"
		}
		s.writeJSON(w, http.StatusBadRequest, v1.ErrorResponse{Error: msg})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
