// Package httpapi exposes the bridge's two externally visible surfaces:
// the telephony control-document webhook and the media-stream WebSocket
// the provider connects back to, plus health and metrics endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/agriagents/voicebridge/internal/config"
	"github.com/agriagents/voicebridge/internal/observability"
	"github.com/agriagents/voicebridge/internal/protocol"
)

// Orchestrator runs one call's pipeline end-to-end for the lifetime of a
// single media-stream WebSocket connection.
type Orchestrator interface {
	RunConnection(ctx context.Context, inbound <-chan any, outbound chan<- protocol.OutboundMedia) error
}

// Server hosts the telephony webhook and media-stream WebSocket.
type Server struct {
	cfg          config.Config
	orchestrator Orchestrator
	metrics      *observability.Metrics
	upgrader     websocket.Upgrader
}

// New constructs a Server. orchestrator may be nil in tests that only
// exercise the webhook/health routes.
func New(cfg config.Config, orchestrator Orchestrator, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		metrics:      metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// The telephony provider dials this endpoint directly, never
				// from a browser; most such clients omit Origin entirely.
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return u.Scheme == "http" || u.Scheme == "https"
			},
		},
	}
}

// Router builds the service's HTTP route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/voice/incoming", s.handleIncomingCall)
	r.Get("/voice/stream", s.handleVoiceStream)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleIncomingCall responds to the provider's inbound-call webhook with
// the control document pointing it at our media-stream WebSocket.
func (s *Server) handleIncomingCall(w http.ResponseWriter, r *http.Request) {
	streamURL := strings.TrimRight(s.cfg.BaseURL, "/") + "/voice/stream"
	streamURL = toWebSocketURL(streamURL)

	doc, err := protocol.BuildConnectDocument(streamURL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "build_connect_document_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func toWebSocketURL(httpURL string) string {
	if strings.HasPrefix(httpURL, "https://") {
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	}
	if strings.HasPrefix(httpURL, "http://") {
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	}
	return httpURL
}

// handleVoiceStream upgrades the provider's connection and bridges it to
// the orchestrator: one goroutine runs RunConnection against inbound
// frames, another drains RunConnection's outbound channel back onto the
// WS; errgroup fans both in so a failure or cancellation in either one
// tears down the whole call. The WS read loop itself stays on this
// goroutine, since conn.ReadMessage must be called from a single
// goroutine at a time.
func (s *Server) handleVoiceStream(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	s.metrics.ActiveSessions.Inc()
	defer s.metrics.ActiveSessions.Dec()

	parentCtx, cancel := context.WithCancel(r.Context())
	defer cancel()
	g, ctx := errgroup.WithContext(parentCtx)

	inbound := make(chan any, 256)
	outbound := make(chan protocol.OutboundMedia, 256)

	g.Go(func() error {
		if err := s.orchestrator.RunConnection(ctx, inbound, outbound); err != nil {
			s.metrics.ProviderErrors.WithLabelValues("orchestrator", "run_connection").Inc()
			return err
		}
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case msg, ok := <-outbound:
				if !ok {
					return nil
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					s.metrics.WSMessages.WithLabelValues("outbound", "write_error").Inc()
					return err
				}
				s.metrics.WSMessages.WithLabelValues("outbound", "media").Inc()
			}
		}
	})

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseInboundMessage(data)
		if err != nil {
			s.metrics.WSMessages.WithLabelValues("inbound", "invalid").Inc()
			continue
		}
		s.metrics.WSMessages.WithLabelValues("inbound", eventNameOf(parsed)).Inc()
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	_ = g.Wait()
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}

func eventNameOf(v any) string {
	switch v.(type) {
	case protocol.Connected:
		return "connected"
	case protocol.Start:
		return "start"
	case protocol.Media:
		return "media"
	case protocol.Stop:
		return "stop"
	default:
		return "unknown"
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
