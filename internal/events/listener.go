package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
)

// listenCmd represents a LISTEN/UNLISTEN command executed by the receive
// loop, the sole goroutine that touches the pgx connection.
type listenCmd struct {
	sql     string
	channel string
	gen     uint64 // generation at Unsubscribe time; 0 for LISTEN (always execute)
	result  chan error
}

// NotifyListener listens for PostgreSQL NOTIFY events on the job-progress
// channels and dispatches them to the ConnectionManager. Ported from the
// teacher's pkg/events.NotifyListener — its LISTEN/UNLISTEN serialization
// and reconnect logic are channel-name-agnostic.
type NotifyListener struct {
	connString string
	conn       *pgx.Conn
	connMu     sync.Mutex
	manager    *ConnectionManager
	channels   map[string]bool
	channelsMu sync.RWMutex

	// cmdCh serializes LISTEN/UNLISTEN through the receive loop to avoid
	// the "conn busy" race between WaitForNotification and Exec.
	cmdCh   chan listenCmd
	running atomic.Bool

	// listenGen prevents a stale UNLISTEN from winning a race against a
	// newer LISTEN on the same channel.
	listenGen   map[string]uint64
	listenGenMu sync.Mutex

	handlers   map[string]func(payload []byte)
	handlersMu sync.RWMutex

	cancelLoop context.CancelFunc
	loopDone   chan struct{}
}

// NewNotifyListener creates a listener bound to manager for dispatch.
func NewNotifyListener(connString string, manager *ConnectionManager) *NotifyListener {
	return &NotifyListener{
		connString: connString,
		manager:    manager,
		channels:   make(map[string]bool),
		cmdCh:      make(chan listenCmd, 16),
		listenGen:  make(map[string]uint64),
		handlers:   make(map[string]func(payload []byte)),
	}
}

// Start establishes the dedicated LISTEN connection and begins receiving.
func (l *NotifyListener) Start(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.connString)
	if err != nil {
		return fmt.Errorf("connecting for LISTEN: %w", err)
	}

	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()

	l.running.Store(true)

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancelLoop = cancel
	l.loopDone = make(chan struct{})
	go func() {
		defer close(l.loopDone)
		l.receiveLoop(loopCtx)
	}()

	slog.Info("notify listener started")
	return nil
}

// Subscribe sends LISTEN for channel on the dedicated connection, always,
// even if already marked active — PostgreSQL handles duplicate LISTEN
// idempotently, and this avoids a race with a concurrent UNLISTEN.
func (l *NotifyListener) Subscribe(ctx context.Context, channel string) error {
	if !l.running.Load() {
		return fmt.Errorf("listen connection not established")
	}

	sanitized := pgx.Identifier{channel}.Sanitize()
	cmd := listenCmd{
		sql:     "LISTEN " + sanitized,
		channel: channel,
		result:  make(chan error, 1),
	}

	select {
	case l.cmdCh <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.result:
		if err != nil {
			return fmt.Errorf("LISTEN %s failed: %w", sanitized, err)
		}
		l.channelsMu.Lock()
		l.channels[channel] = true
		l.channelsMu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unsubscribe sends UNLISTEN for channel, carrying the current generation
// so a racing newer Subscribe makes the receive loop skip it as stale.
func (l *NotifyListener) Unsubscribe(channel string) {
	l.channelsMu.Lock()
	if !l.channels[channel] {
		l.channelsMu.Unlock()
		return
	}
	l.channelsMu.Unlock()

	if !l.running.Load() {
		return
	}

	l.listenGenMu.Lock()
	gen := l.listenGen[channel]
	l.listenGenMu.Unlock()

	sanitized := pgx.Identifier{channel}.Sanitize()
	cmd := listenCmd{
		sql:     "UNLISTEN " + sanitized,
		channel: channel,
		gen:     gen,
		result:  make(chan error, 1),
	}

	select {
	case l.cmdCh <- cmd:
	default:
		slog.Warn("unsubscribe command queue full, dropping UNLISTEN", "channel", channel)
		return
	}

	go func() {
		if err := <-cmd.result; err != nil {
			slog.Warn("UNLISTEN failed", "channel", channel, "error", err)
		}
	}()
}

// isListening reports whether the listener is actively LISTENing on channel.
func (l *NotifyListener) isListening(channel string) bool {
	l.channelsMu.RLock()
	defer l.channelsMu.RUnlock()
	return l.channels[channel]
}

// RegisterHandler registers an internal (backend-to-backend) callback
// invoked, in addition to the ConnectionManager broadcast, when a NOTIFY
// arrives on channel — used for cross-pod job cancellation signaling.
func (l *NotifyListener) RegisterHandler(channel string, fn func(payload []byte)) {
	l.handlersMu.Lock()
	defer l.handlersMu.Unlock()
	l.handlers[channel] = fn
}

// receiveLoop is the sole goroutine that touches the pgx connection,
// avoiding a concurrent-access race between WaitForNotification and Exec.
func (l *NotifyListener) receiveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		l.processPendingCmds(ctx)

		l.connMu.Lock()
		conn := l.conn
		l.connMu.Unlock()

		if conn == nil {
			l.reconnect(ctx)
			continue
		}

		waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		notification, err := conn.WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if waitCtx.Err() != nil {
				continue
			}
			slog.Error("notify receive error", "error", err)
			l.reconnect(ctx)
			continue
		}

		l.handlersMu.RLock()
		handler := l.handlers[notification.Channel]
		l.handlersMu.RUnlock()
		if handler != nil {
			handler([]byte(notification.Payload))
		}

		l.manager.Broadcast(ctx, notification.Channel, []byte(notification.Payload))
	}
}

// processPendingCmds drains cmdCh and executes each LISTEN/UNLISTEN.
func (l *NotifyListener) processPendingCmds(ctx context.Context) {
	for {
		select {
		case cmd := <-l.cmdCh:
			if cmd.gen > 0 {
				l.listenGenMu.Lock()
				stale := l.listenGen[cmd.channel] != cmd.gen
				l.listenGenMu.Unlock()
				if stale {
					cmd.result <- nil
					continue
				}
			}

			l.connMu.Lock()
			conn := l.conn
			l.connMu.Unlock()

			if conn == nil {
				cmd.result <- fmt.Errorf("listen connection not established")
				continue
			}

			_, err := conn.Exec(ctx, cmd.sql)

			if err == nil && cmd.gen == 0 && cmd.channel != "" {
				l.listenGenMu.Lock()
				l.listenGen[cmd.channel]++
				l.listenGenMu.Unlock()
			}

			cmd.result <- err
		default:
			return
		}
	}
}

// reconnect re-establishes the LISTEN connection with exponential backoff
// and re-subscribes every channel that was active before the drop.
func (l *NotifyListener) reconnect(ctx context.Context) {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	if l.conn != nil {
		_ = l.conn.Close(ctx)
		l.conn = nil
	}

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		conn, err := pgx.Connect(ctx, l.connString)
		if err != nil {
			slog.Error("listen reconnect failed", "error", err, "backoff", backoff)
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		l.conn = conn

		l.channelsMu.RLock()
		for ch := range l.channels {
			sanitized := pgx.Identifier{ch}.Sanitize()
			if _, err := conn.Exec(ctx, "LISTEN "+sanitized); err != nil {
				slog.Error("re-LISTEN failed", "channel", ch, "error", err)
			}
		}
		l.channelsMu.RUnlock()

		slog.Info("notify listener reconnected")
		return
	}
}

// Stop signals the receive loop to exit, waits for it, then closes the
// LISTEN connection.
func (l *NotifyListener) Stop(ctx context.Context) {
	l.running.Store(false)

	if l.cancelLoop != nil {
		l.cancelLoop()
	}
	if l.loopDone != nil {
		<-l.loopDone
	}

	l.connMu.Lock()
	defer l.connMu.Unlock()
	if l.conn != nil {
		_ = l.conn.Close(ctx)
		l.conn = nil
	}
}
