package handler

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Wei-Shaw/tokengate/internal/config"
	"github.com/Wei-Shaw/tokengate/internal/server/middleware"
	"github.com/Wei-Shaw/tokengate/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// eventWriteWait bounds a single frame write.
	eventWriteWait = 10 * time.Second
	// eventPongWait is how long a client may stay silent before the
	// connection is considered dead.
	eventPongWait = 60 * time.Second
	// eventPingPeriod must be shorter than eventPongWait.
	eventPingPeriod = 50 * time.Second
	// eventBuffer is the per-client backlog. A client that falls this far
	// behind is disconnected instead of blocking the registry.
	eventBuffer = 16
)

// EventsHandler streams token state transitions over a websocket. Each client
// gets the current state as its first frame, then one frame per cache
// transition, in order.
type EventsHandler struct {
	gateway  *service.TokenGatewayService
	upgrader websocket.Upgrader
}

// NewEventsHandler creates a new EventsHandler
func NewEventsHandler(gateway *service.TokenGatewayService, cfg *config.Config) *EventsHandler {
	return &EventsHandler{
		gateway: gateway,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser admin clients carry their key in the subprotocol list;
			// echoing the admin subprotocol completes their handshake.
			Subprotocols: []string{middleware.AdminSubprotocol},
			CheckOrigin:  originChecker(cfg.CORS),
		},
	}
}

// EventFrame is one websocket message. It never carries the raw token value;
// consumers that need the token call the acquire endpoint.
type EventFrame struct {
	Status        string     `json:"status"`
	TokenPreview  string     `json:"token_preview,omitempty"`
	EnvironmentID string     `json:"environment_id,omitempty"`
	ClientID      string     `json:"client_id,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func frameFrom(event service.TokenEvent) EventFrame {
	frame := EventFrame{Status: event.Status}
	if event.Token != nil {
		frame.TokenPreview = event.Token.Preview()
		frame.EnvironmentID = event.Token.EnvironmentID
		frame.ClientID = event.Token.ClientID
		expiresAt := event.Token.ExpiresAt
		frame.ExpiresAt = &expiresAt
	}
	return frame
}

// Stream upgrades the connection and forwards token events until the client
// goes away or falls too far behind.
// GET /api/v1/token/events/ws
func (h *EventsHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		log.Printf("[Events] websocket upgrade failed: %v", err)
		return
	}

	events := make(chan service.TokenEvent, eventBuffer)
	overflow := make(chan struct{})
	var overflowOnce sync.Once

	// The registry delivers synchronously; the callback must not block it.
	// A full buffer marks the client as too slow and drops it.
	unsubscribe := h.gateway.Subscribe(func(event service.TokenEvent) {
		select {
		case events <- event:
		default:
			overflowOnce.Do(func() { close(overflow) })
		}
	})

	go h.writeLoop(conn, events, overflow, unsubscribe)
	go readLoop(conn)
}

// writeLoop owns all writes on the connection: event frames and pings.
func (h *EventsHandler) writeLoop(conn *websocket.Conn, events <-chan service.TokenEvent, overflow <-chan struct{}, unsubscribe func()) {
	ticker := time.NewTicker(eventPingPeriod)
	defer func() {
		ticker.Stop()
		unsubscribe()
		_ = conn.Close()
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteJSON(frameFrom(event)); err != nil {
				return
			}
		case <-overflow:
			log.Printf("[Events] client too slow, disconnecting %s", conn.RemoteAddr())
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "event backlog overflow"),
				time.Now().Add(eventWriteWait))
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains the connection so control frames are processed. Incoming
// data frames are ignored; the stream is one-way.
func readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(eventPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			_ = conn.Close()
			return
		}
	}
}

// originChecker applies the CORS origin policy to websocket upgrades, which
// bypass regular CORS preflight.
func originChecker(cors config.CORSConfig) func(*http.Request) bool {
	allowAll := false
	allowed := make(map[string]struct{}, len(cors.AllowedOrigins))
	for _, origin := range cors.AllowedOrigins {
		if origin == "*" {
			allowAll = true
			continue
		}
		allowed[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser client; nothing to enforce.
			return true
		}
		if allowAll {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
