// websocket.go receives job events over a websocket stream. It is the
// fallback when NATS is not configured.
//
// Connection lifecycle:
//  1. Connect to ws(s)://server/ws/console?token=apiKey&project=projectID
//  2. Read messages and pass them to the Handler
//  3. On disconnect, wait with exponential backoff (1s to 5m, +/-30% jitter)
//  4. Reconnect and resume
package events

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Exponential backoff configuration for reconnection
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 5 * time.Minute
	backoffFactor  = 2.0
	jitterFactor   = 0.3
)

// WSListener keeps a websocket connection open and feeds events to the
// Handler. Safe for concurrent use.
type WSListener struct {
	serverURL string
	apiKey    string
	projectID string
	handler   *Handler
	logger    *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	running  bool
	stopChan chan struct{}
}

// NewWSListener creates a websocket listener. serverURL is the API base URL
// (http or https); the scheme is converted.
func NewWSListener(serverURL, apiKey, projectID string, handler *Handler, logger *slog.Logger) *WSListener {
	return &WSListener{
		serverURL: serverURL,
		apiKey:    apiKey,
		projectID: projectID,
		handler:   handler,
		logger:    logger.With(slog.String("component", "websocket")),
		stopChan:  make(chan struct{}),
	}
}

// Run maintains the connection until ctx is cancelled or Shutdown is called.
func (l *WSListener) Run(ctx context.Context) {
	l.mu.Lock()
	l.running = true
	stop := l.stopChan
	l.mu.Unlock()

	l.logger.Info("websocket listener starting")
	backoff := initialBackoff

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("websocket listener stopping: context cancelled")
			return
		case <-stop:
			l.logger.Info("websocket listener stopping: stop requested")
			return
		default:
		}

		conn, err := l.connect(ctx)
		if err != nil {
			l.logger.Warn("websocket connection failed",
				slog.String("error", err.Error()),
				slog.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff)
			continue
		}

		backoff = initialBackoff
		l.readLoop(ctx, conn)
		l.logger.Info("websocket connection closed, will reconnect")
	}
}

func (l *WSListener) connect(ctx context.Context) (*websocket.Conn, error) {
	wsURL, err := l.buildURL()
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()

	l.logger.Info("websocket connected")
	return conn, nil
}

// buildURL converts http(s):// to ws(s):// and appends /ws/console with the
// token and project query parameters.
func (l *WSListener) buildURL() (string, error) {
	u, err := url.Parse(l.serverURL)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		u.Scheme = "wss"
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/console"

	q := u.Query()
	q.Set("token", l.apiKey)
	if l.projectID != "" {
		q.Set("project", l.projectID)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (l *WSListener) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		l.mu.Lock()
		if l.conn == conn {
			l.conn = nil
		}
		l.mu.Unlock()
		conn.Close()
	}()

	// ReadMessage blocks; closing the connection on cancel unblocks it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			l.logger.Debug("websocket read error", slog.String("error", err.Error()))
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		if err := l.handler.Handle(data); err != nil {
			level := slog.LevelError
			if errors.Is(err, ErrMalformed) {
				level = slog.LevelWarn
			}
			l.logger.Log(ctx, level, "event processing failed",
				slog.String("error", err.Error()),
			)
		}
	}
}

// Shutdown stops the listener and closes the connection.
// It implements shutdown.Shutdowner.
func (l *WSListener) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return nil
	}
	close(l.stopChan)
	l.running = false

	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
	l.logger.Info("websocket listener stopped")
	return nil
}

// nextBackoff computes min(current * factor +/- 30%, maxBackoff).
func nextBackoff(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * backoffFactor)
	jitter := float64(next) * jitterFactor * (2*rand.Float64() - 1)
	next = time.Duration(float64(next) + jitter)
	if next > maxBackoff {
		next = maxBackoff
	}
	return next
}
