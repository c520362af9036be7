// Package kioskapi exposes the orchestrator to the touch screen frontend.
//
// The frontend reads the current view (or streams it) and posts customer
// actions. It never holds state of its own.
package kioskapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/grpchealth"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mpapenbr/simkiosk/log"
	"github.com/mpapenbr/simkiosk/pkg/catalog"
	"github.com/mpapenbr/simkiosk/pkg/kiosk"
)

const HealthService = "simkiosk.v1.KioskService"

type (
	Server struct {
		k         *kiosk.Orchestrator
		cat       *catalog.Catalog
		l         *log.Logger
		heartbeat time.Duration
		actions   map[string]actionFunc
	}
	Option func(*Server)

	actionFunc func(ctx context.Context, body []byte) error
)

func New(k *kiosk.Orchestrator, cat *catalog.Catalog, opts ...Option) *Server {
	ret := &Server{
		k:         k,
		cat:       cat,
		l:         log.Default().Named("kiosk.api"),
		heartbeat: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.actions = ret.registerActions()
	return ret
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		s.l = l
	}
}

// WithHeartbeat sets the interval of keep-alive comments on view streams.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		s.heartbeat = d
	}
}

// Mux returns the routes without CORS and h2c wrapping.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/view", s.handleView)
	mux.HandleFunc("GET /v1/view/stream", s.handleStream)
	mux.HandleFunc("POST /v1/actions/{action}", s.handleAction)
	mux.HandleFunc("GET /v1/scenarios", s.handleScenarios)
	mux.HandleFunc("GET /v1/content", s.handleContent)
	mux.HandleFunc("GET /v1/lobbies", s.handleLobbies)
	mux.Handle(grpchealth.NewHandler(grpchealth.NewStaticChecker(HealthService)))
	return mux
}

// Handler returns the routes ready to be served over HTTP/1.1 and h2c.
func (s *Server) Handler() http.Handler {
	return h2c.NewHandler(NewCORS().Handler(s.Mux()), &http2.Server{})
}

// NewCORS allows the kiosk frontend to be served from a different origin.
func NewCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{
			"Grpc-Status",
			"Grpc-Message",
			"Grpc-Status-Details-Bin",
		},
		MaxAge: int(2 * time.Hour / time.Second),
	})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.k.View())
}

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	ret, err := s.cat.Scenarios(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	ret, err := s.cat.Content(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleLobbies(w http.ResponseWriter, r *http.Request) {
	ret, err := s.cat.JoinableLobbies(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("action")
	fn, ok := s.actions[name]
	if !ok {
		writeJSON(w, http.StatusNotFound,
			errorBody{Error: fmt.Sprintf("unknown action %q", name)})
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if err := fn(r.Context(), body); err != nil {
		s.l.Debug("action refused", log.String("action", name), log.ErrorField(err))
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.k.View())
}

// handleStream sends the current view followed by every change as server
// sent events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError,
			errorBody{Error: "streaming not supported"})
		return
	}
	ch := s.k.Subscribe()
	defer s.k.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, s.k.View()); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, v); err != nil {
				s.l.Debug("view stream closed", log.ErrorField(err))
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, v kiosk.View) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: view\ndata: %s\n\n", data)
	return err
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		s.l.Warn("request failed", log.ErrorField(err))
	}
	writeJSON(w, code, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	//nolint:errcheck // nothing left to report to
	json.NewEncoder(w).Encode(v)
}
