package server

import (
	"net/http"
	"sync"
	"time"

	"EmberFM/logger"

	"github.com/gorilla/websocket"
)

// EventType 推送消息类型
type EventType string

const (
	EvtLifecycleState EventType = "lifecycle_state" // 生命周期状态变更
	EvtPlayback       EventType = "playback"        // 播放会话快照
	EvtAdvance        EventType = "advance"         // 切歌信号（宿主据此选下一首）
	EvtPing           EventType = "ping"            // 心跳
	EvtPong           EventType = "pong"            // 心跳响应
)

// Event 是推送给前端的消息结构
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16
)

type eventConn struct {
	ws          *websocket.Conn
	principalID string
	send        chan Event
	once        sync.Once
}

func (c *eventConn) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// EventHub fans lifecycle and playback events out to connected clients.
// Lifecycle states go only to the principal they belong to; playback and
// advance events are shared, the engine being a single instance.
type EventHub struct {
	mu    sync.Mutex
	conns map[*eventConn]struct{}
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{conns: make(map[*eventConn]struct{})}
}

func (h *EventHub) register(c *eventConn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *EventHub) unregister(c *eventConn) {
	h.mu.Lock()
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		c.close()
	}
	h.mu.Unlock()
}

func (h *EventHub) deliver(c *eventConn, evt Event) {
	select {
	case c.send <- evt:
	default:
		// 慢消费者直接丢弃消息，不阻塞广播
		logger.Warn("[Events] 客户端消费过慢，丢弃消息",
			logger.String("principalId", c.principalID),
			logger.String("type", string(evt.Type)))
	}
}

// Broadcast sends an event to every connection.
func (h *EventHub) Broadcast(evt Event) {
	h.mu.Lock()
	conns := make([]*eventConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		h.deliver(c, evt)
	}
}

// BroadcastTo sends an event to one principal's connections.
func (h *EventHub) BroadcastTo(principalID string, evt Event) {
	h.mu.Lock()
	conns := make([]*eventConn, 0, len(h.conns))
	for c := range h.conns {
		if c.principalID == principalID {
			conns = append(conns, c)
		}
	}
	h.mu.Unlock()
	for _, c := range conns {
		h.deliver(c, evt)
	}
}

// EventsHandler upgrades the connection and starts the pumps. The token
// rides in the query string because browsers cannot set headers on
// websocket dials.
func (h *APIHandler) EventsHandler(hub *EventHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		principal, err := h.gateway.Authenticate(token)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("[Events] WebSocket升级失败", logger.ErrorField(err))
			return
		}

		conn := &eventConn{
			ws:          ws,
			principalID: principal.ID,
			send:        make(chan Event, sendBufferSize),
		}
		hub.register(conn)
		logger.Info("[Events] 客户端已连接", logger.String("principalId", principal.ID))

		// 连接建立后立即推一次当前状态，避免前端等第一次变更
		ctrl := h.manager.Get(principal)
		hub.deliver(conn, Event{Type: EvtLifecycleState, Data: ctrl.State().String()})
		hub.deliver(conn, Event{Type: EvtPlayback, Data: h.engine.Session()})

		go conn.writePump(hub)
		go conn.readPump(hub)
	}
}

func (c *eventConn) writePump(hub *EventHub) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(Event{Type: EvtPing}); err != nil {
				return
			}
		}
	}
}

func (c *eventConn) readPump(hub *EventHub) {
	defer func() {
		hub.unregister(c)
		c.ws.Close()
		logger.Info("[Events] 客户端已断开", logger.String("principalId", c.principalID))
	}()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	for {
		var evt Event
		if err := c.ws.ReadJSON(&evt); err != nil {
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		if evt.Type == EvtPing {
			hub.deliver(c, Event{Type: EvtPong})
		}
	}
}
