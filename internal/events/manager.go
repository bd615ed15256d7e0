package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	writeTimeout = 10 * time.Second
	catchupLimit = 200
)

// CatchupQuerier fetches persisted events newer than lastEventID on a
// channel, for replay to a client that reconnected after a gap.
type CatchupQuerier interface {
	EventsSince(ctx context.Context, channel string, lastEventID int, limit int) ([]StoredEvent, error)
}

// StoredEvent is a persisted row from the events table.
type StoredEvent struct {
	ID      int64
	Channel string
	Payload json.RawMessage
}

// Connection is one live WebSocket client, possibly subscribed to
// several channels at once (its own job channel plus its user channel).
type Connection struct {
	id       string
	conn     *websocket.Conn
	mu       sync.Mutex // guards writes; websocket.Conn forbids concurrent writers
	channels map[string]struct{}
}

func (c *Connection) sendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.sendRaw(ctx, data)
}

func (c *Connection) sendRaw(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(wctx, websocket.MessageText, data)
}

func (c *Connection) readJSON(ctx context.Context, v any) error {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// ConnectionManager fans incoming NOTIFY payloads out to subscribed
// WebSocket connections and manages the LISTEN lifecycle behind each
// subscription. Grounded on the teacher's pkg/events.ConnectionManager.
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[string]*Connection   // connection id -> connection
	channels    map[string]map[string]*Connection // channel -> connection id -> connection
	listener    *NotifyListener
	catchup     CatchupQuerier
}

// NewConnectionManager builds a manager with no live connections yet.
func NewConnectionManager(catchup CatchupQuerier) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		channels:    make(map[string]map[string]*Connection),
		catchup:     catchup,
	}
}

// SetListener wires the backing NOTIFY listener used to subscribe/
// unsubscribe at the database level as local subscriber counts go
// between zero and nonzero.
func (m *ConnectionManager) SetListener(l *NotifyListener) {
	m.listener = l
}

// HandleConnection upgrades an HTTP request to a WebSocket and services
// it until the client disconnects or ctx is canceled.
func (m *ConnectionManager) HandleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request, connID string) error {
	wsConn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return err
	}
	defer wsConn.CloseNow()

	conn := &Connection{
		id:       connID,
		conn:     wsConn,
		channels: make(map[string]struct{}),
	}
	m.registerConnection(conn)
	defer m.unregisterConnection(conn)

	for {
		var msg ClientMessage
		if err := conn.readJSON(ctx, &msg); err != nil {
			return err
		}
		m.handleClientMessage(ctx, conn, msg)
	}
}

func (m *ConnectionManager) handleClientMessage(ctx context.Context, conn *Connection, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if err := m.subscribe(ctx, conn, msg.Channel); err != nil {
			slog.Warn("subscribe failed", "channel", msg.Channel, "error", err)
			return
		}
		if msg.LastEventID != nil {
			m.handleCatchup(ctx, conn, msg.Channel, *msg.LastEventID)
		}
	case "unsubscribe":
		m.unsubscribe(conn, msg.Channel)
	case "catchup":
		if msg.LastEventID != nil {
			m.handleCatchup(ctx, conn, msg.Channel, *msg.LastEventID)
		}
	case "ping":
		_ = conn.sendJSON(ctx, map[string]string{"type": "pong"})
	}
}

// subscribe registers conn on channel and, if this is the channel's
// first local subscriber, LISTENs on it before returning — so a
// subscribe ack always implies the channel is actually live.
func (m *ConnectionManager) subscribe(ctx context.Context, conn *Connection, channel string) error {
	m.mu.Lock()
	subs, ok := m.channels[channel]
	firstSubscriber := !ok || len(subs) == 0
	if !ok {
		subs = make(map[string]*Connection)
		m.channels[channel] = subs
	}
	subs[conn.id] = conn
	conn.channels[channel] = struct{}{}
	m.mu.Unlock()

	if firstSubscriber && m.listener != nil {
		if err := m.listener.Subscribe(ctx, channel); err != nil {
			m.cleanupFailedChannel(conn, channel)
			return err
		}
	}
	return nil
}

func (m *ConnectionManager) cleanupFailedChannel(conn *Connection, channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(conn.channels, channel)
	if subs, ok := m.channels[channel]; ok {
		delete(subs, conn.id)
		if len(subs) == 0 {
			delete(m.channels, channel)
		}
	}
}

// unsubscribe drops conn from channel and, if it was the last local
// subscriber, UNLISTENs — deferred through the listener's generation
// counter so a fast resubscribe racing the UNLISTEN never gets dropped.
func (m *ConnectionManager) unsubscribe(conn *Connection, channel string) {
	m.mu.Lock()
	delete(conn.channels, channel)
	lastSubscriber := false
	if subs, ok := m.channels[channel]; ok {
		delete(subs, conn.id)
		if len(subs) == 0 {
			delete(m.channels, channel)
			lastSubscriber = true
		}
	}
	m.mu.Unlock()

	if lastSubscriber && m.listener != nil {
		m.listener.Unsubscribe(channel)
	}
}

func (m *ConnectionManager) registerConnection(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[conn.id] = conn
}

func (m *ConnectionManager) unregisterConnection(conn *Connection) {
	m.mu.Lock()
	channels := make([]string, 0, len(conn.channels))
	for ch := range conn.channels {
		channels = append(channels, ch)
	}
	delete(m.connections, conn.id)
	m.mu.Unlock()

	for _, ch := range channels {
		m.unsubscribe(conn, ch)
	}
}

// Broadcast fans a raw NOTIFY payload out to every connection currently
// subscribed to channel. Connections are snapshotted under the lock and
// written to outside it, so a slow client write never blocks Subscribe/
// Unsubscribe for everyone else.
func (m *ConnectionManager) Broadcast(ctx context.Context, channel string, payload []byte) {
	m.mu.RLock()
	subs := m.channels[channel]
	targets := make([]*Connection, 0, len(subs))
	for _, c := range subs {
		targets = append(targets, c)
	}
	m.mu.RUnlock()

	for _, conn := range targets {
		if err := conn.sendRaw(ctx, payload); err != nil {
			slog.Debug("broadcast write failed", "connection", conn.id, "channel", channel, "error", err)
		}
	}
}

// handleCatchup replays events missed since lastEventID to one
// reconnecting connection, capped at catchupLimit with an overflow
// notice rather than an unbounded backlog dump.
func (m *ConnectionManager) handleCatchup(ctx context.Context, conn *Connection, channel string, lastEventID int) {
	if m.catchup == nil {
		return
	}
	events, err := m.catchup.EventsSince(ctx, channel, lastEventID, catchupLimit+1)
	if err != nil {
		slog.Warn("catchup query failed", "channel", channel, "error", err)
		return
	}

	overflow := len(events) > catchupLimit
	if overflow {
		events = events[:catchupLimit]
	}
	for _, ev := range events {
		if err := conn.sendRaw(ctx, ev.Payload); err != nil {
			return
		}
	}
	if overflow {
		_ = conn.sendJSON(ctx, map[string]any{
			"type":    "catchup.overflow",
			"channel": channel,
		})
	}
}

// ActiveConnections returns the number of live WebSocket connections.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

func (m *ConnectionManager) subscriberCount(channel string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels[channel])
}
