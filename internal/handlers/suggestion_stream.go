package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/feedbackhq/feedback/internal/logger"
	"github.com/feedbackhq/feedback/internal/middleware"
	"github.com/feedbackhq/feedback/internal/notify"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamSendBuffer = 32
)

// streamClient is one connected admin inbox
type streamClient struct {
	conn      *websocket.Conn
	send      chan []byte
	principal string
	done      chan struct{}
	closeOnce sync.Once
}

func (c *streamClient) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// SuggestionStream pushes suggestion lifecycle events to connected admin
// clients over websocket. It implements notify.Notifier.
type SuggestionStream struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*streamClient]struct{}
}

// NewSuggestionStream creates a new stream hub. An empty allowedOrigins list accepts any origin.
func NewSuggestionStream(allowedOrigins ...string) *SuggestionStream {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &SuggestionStream{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || allowed["*"] || origin == "" || allowed[origin]
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*streamClient]struct{}),
	}
}

// HandleWebSocket handles GET /api/merge-suggestions/stream
func (s *SuggestionStream) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	log := logger.L()
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Failed to upgrade WebSocket", zap.Error(err))
		return
	}

	client := &streamClient{
		conn:      conn,
		send:      make(chan []byte, streamSendBuffer),
		principal: middleware.GetPrincipalFromContext(r.Context()),
		done:      make(chan struct{}),
	}
	s.register(client)
	log.Info("Suggestion stream client connected",
		zap.String("principal", client.principal),
		zap.String("remote_addr", r.RemoteAddr))

	go s.writePump(client)
	s.readPump(client)
}

func (s *SuggestionStream) register(c *streamClient) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *SuggestionStream) unregister(c *streamClient) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.close()
}

// readPump discards client messages and notices disconnects
func (s *SuggestionStream) readPump(c *streamClient) {
	defer func() {
		s.unregister(c)
		_ = c.conn.Close()
		logger.L().Info("Suggestion stream client disconnected", zap.String("principal", c.principal))
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.L().Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump is the only writer on the connection
func (s *SuggestionStream) writePump(c *streamClient) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(streamWriteWait))
			return
		}
	}
}

// Notify broadcasts event to every connected client. Slow clients whose
// buffer is full miss the event rather than blocking the caller.
func (s *SuggestionStream) Notify(_ context.Context, event notify.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.L().Warn("Failed to encode stream event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			logger.L().Warn("Dropping stream event for slow client",
				zap.String("principal", c.principal),
				zap.String("type", string(event.Type)))
		}
	}
}

// ClientCount returns the number of connected clients
func (s *SuggestionStream) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close disconnects every client
func (s *SuggestionStream) Close() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[*streamClient]struct{})
	s.mu.Unlock()
	for c := range clients {
		c.close()
	}
}
