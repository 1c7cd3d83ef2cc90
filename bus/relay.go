package bus

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/volk7/alerting/logger"
)

// Relay is the optional external transport mentioned alongside the Bus:
// it fans subscribed events out to any number of WebSocket clients so an
// operator dashboard can tail alarm.triggered / internal.error live
// without polling the HTTP API. It is purely an additional subscriber;
// removing it never affects in-process delivery.
const (
	relayWriteWait  = 10 * time.Second
	relayPongWait   = 60 * time.Second
	relayPingPeriod = (relayPongWait * 9) / 10
)

var relayUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type relayClient struct {
	conn *websocket.Conn
	send chan interface{}
}

// Relay upgrades incoming connections and forwards whatever it receives
// from its Bus subscriptions to every connected client as JSON.
type Relay struct {
	bus    *Bus
	topics []Topic
	log    *zap.SugaredLogger

	mu      sync.Mutex
	clients map[*relayClient]struct{}
}

// NewRelay builds a Relay that fans events from the given topics out to
// WebSocket clients.
func NewRelay(b *Bus, log *zap.SugaredLogger, topics ...Topic) *Relay {
	return &Relay{
		bus:     b,
		topics:  topics,
		log:     log,
		clients: make(map[*relayClient]struct{}),
	}
}

// Start subscribes to each configured topic and begins fanning events
// out to connected clients. Call once before serving ServeHTTP.
func (r *Relay) Start() {
	for _, topic := range r.topics {
		ch, _ := r.bus.Subscribe(topic, 64)
		go r.forward(ch)
	}
}

func (r *Relay) forward(ch <-chan interface{}) {
	for event := range ch {
		r.broadcast(event)
	}
}

func (r *Relay) broadcast(event interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		select {
		case c.send <- event:
		default:
			// Client too slow to keep up; drop rather than block the
			// whole relay on one stalled socket.
		}
	}
}

// ServeHTTP upgrades the connection and registers it for the relay's
// subscribed topics until the client disconnects.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := relayUpgrader.Upgrade(w, req, nil)
	if err != nil {
		if r.log != nil {
			r.log.With(logger.FieldSymbol, logger.SymbolBus).Warnw("relay upgrade failed", "error", err)
		}
		return
	}

	client := &relayClient{conn: conn, send: make(chan interface{}, 64)}
	r.mu.Lock()
	r.clients[client] = struct{}{}
	r.mu.Unlock()

	if r.log != nil {
		traceID := uuid.New().String()
		ctx := logger.WithTraceID(req.Context(), traceID)
		logger.LoggerFromContext(ctx).With(logger.FieldSymbol, logger.SymbolBus).Infow("relay client connected",
			"remote_addr", req.RemoteAddr)
	}

	go r.writePump(client)
	r.readPump(client)
}

func (r *Relay) readPump(c *relayClient) {
	defer r.disconnect(c)

	c.conn.SetReadDeadline(time.Now().Add(relayPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(relayPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (r *Relay) writePump(c *relayClient) {
	ticker := time.NewTicker(relayPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (r *Relay) disconnect(c *relayClient) {
	r.mu.Lock()
	delete(r.clients, c)
	r.mu.Unlock()
	close(c.send)
}
