package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/adimehra/dali/internal/config"
	"github.com/adimehra/dali/internal/observability"
	"github.com/adimehra/dali/internal/protocol"
	"github.com/adimehra/dali/internal/store"
)

// Gateway is the hub surface the websocket handler drives.
type Gateway interface {
	Connect(connID string, outbound chan<- any)
	Disconnect(connID string)
	HandleMessage(connID string, msg any)
}

type Server struct {
	cfg      config.Config
	gateway  Gateway
	logStore store.Store
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
	static   http.Handler
}

func New(cfg config.Config, gateway Gateway, logStore store.Store, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		gateway:  gateway,
		logStore: logStore,
		metrics:  metrics,
		static:   newStaticHandler(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser connections unless explicitly
				// opened up: a foreign page must not drive the session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Handle("/ui/*", http.StripPrefix("/ui/", s.static))

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/ws", s.handleWS)
	r.Get("/v1/stats", s.handleStats)
	r.Get("/v1/sessions/{id}/history", s.handleSessionHistory)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "dali",
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.logStore.Statistics(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "stats_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}
	history, err := s.logStore.SessionHistory(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, history)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 256)
	s.gateway.Connect(connID, outbound)
	defer s.gateway.Disconnect(connID)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			// Protocol errors are ignored; the connection continues.
			log.Printf("httpapi: client %s: %v", connID[:8], err)
			continue
		}
		if s.metrics != nil {
			if env, ok := envelopeTypeOf(parsed); ok {
				s.metrics.WSMessages.WithLabelValues("inbound", env).Inc()
			}
		}
		s.gateway.HandleMessage(connID, parsed)
	}

	cancel()
	<-writerDone
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func envelopeTypeOf(v any) (string, bool) {
	switch m := v.(type) {
	case protocol.ClientText:
		return string(m.Type), true
	case protocol.ClientToggleTTS:
		return string(m.Type), true
	case protocol.ClientPing:
		return string(m.Type), true
	default:
		return "", false
	}
}
