package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/choraleia/thinkbot/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsReadLimit  = 4096
	wsQueueSize  = 64
)

// Notification is one event as delivered to a websocket client.
type Notification struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	TS    int64           `json:"ts"`
}

func newNotification(ev Event, at time.Time) (Notification, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return Notification{}, fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}
	return Notification{Event: ev.EventName(), Data: data, TS: at.UnixMilli()}, nil
}

// Subscription narrows what a client receives. Events that carry no
// conversation or tab are not affected by those filters.
type Subscription struct {
	Names          map[string]bool
	ConversationID string
	TabID          int
	ByTab          bool
}

// ParseSubscription reads the events, conversationId and tabId query
// parameters.
func ParseSubscription(q url.Values) (Subscription, error) {
	var sub Subscription
	for _, name := range strings.Split(q.Get("events"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			if sub.Names == nil {
				sub.Names = make(map[string]bool)
			}
			sub.Names[name] = true
		}
	}
	sub.ConversationID = strings.TrimSpace(q.Get("conversationId"))
	if raw := strings.TrimSpace(q.Get("tabId")); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return Subscription{}, fmt.Errorf("invalid tabId %q", raw)
		}
		sub.TabID, sub.ByTab = id, true
	}
	return sub, nil
}

// Matches reports whether ev should be delivered.
func (s Subscription) Matches(ev Event) bool {
	if s.Names != nil && !s.Names[ev.EventName()] {
		return false
	}
	if s.ConversationID != "" {
		if scoped, ok := ev.(conversationScoped); ok && scoped.conversationScope() != s.ConversationID {
			return false
		}
	}
	if s.ByTab {
		if scoped, ok := ev.(tabScoped); ok && scoped.tabScope() != s.TabID {
			return false
		}
	}
	return true
}

// WSHandler pushes emitter events to websocket clients.
type WSHandler struct {
	emitter  *Emitter
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWSHandler creates a WebSocket handler. A nil emitter means the global one.
func NewWSHandler(emitter *Emitter, checkOrigin func(r *http.Request) bool) *WSHandler {
	if emitter == nil {
		emitter = Global()
	}
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &WSHandler{
		emitter:  emitter,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		logger:   utils.GetLogger(),
	}
}

// Handle upgrades the request and streams matching events until either side
// goes away.
//
// Example: /api/events/ws?events=branch.status&conversationId=abc
func (h *WSHandler) Handle(c *gin.Context) {
	sub, err := ParseSubscription(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": err.Error()})
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	client := &wsClient{
		conn:   conn,
		sub:    sub,
		queue:  make(chan Notification, wsQueueSize),
		logger: h.logger,
	}
	defer h.emitter.OnAny(client.deliver)()

	closed := make(chan struct{})
	go client.readPump(closed)
	client.writePump(c.Request.Context(), closed)
}

type wsClient struct {
	conn   *websocket.Conn
	sub    Subscription
	queue  chan Notification
	logger *slog.Logger
}

// deliver queues ev without blocking the emitter; a slow client loses events.
func (cl *wsClient) deliver(ev Event) {
	if !cl.sub.Matches(ev) {
		return
	}
	n, err := newNotification(ev, time.Now())
	if err != nil {
		cl.logger.Warn("Skipped websocket event", "error", err)
		return
	}
	select {
	case cl.queue <- n:
	default:
		cl.logger.Warn("Dropped websocket event, buffer full", "event", n.Event)
	}
}

// readPump discards client frames and tracks pongs; it closes closed when the
// connection fails.
func (cl *wsClient) readPump(closed chan<- struct{}) {
	defer close(closed)
	cl.conn.SetReadLimit(wsReadLimit)
	_ = cl.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := cl.conn.NextReader(); err != nil {
			return
		}
	}
}

// writePump is the only writer on the connection.
func (cl *wsClient) writePump(ctx context.Context, closed <-chan struct{}) {
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case <-ping.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			err = cl.conn.WriteMessage(websocket.PingMessage, nil)
		case n := <-cl.queue:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			err = cl.conn.WriteJSON(n)
		}
		if err != nil {
			cl.logger.Debug("WebSocket write failed", "error", err)
			return
		}
	}
}
