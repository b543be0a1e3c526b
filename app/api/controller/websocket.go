package controller

import (
	"context"
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBufferSize = 64
	pingInterval   = 30 * time.Second
	readTimeout    = 60 * time.Second
	writeTimeout   = 10 * time.Second
)

var (
	errClientClosed = errors.New("websocket client closed")
	errClientSlow   = errors.New("websocket client send buffer full")
)

// wsClient is a hub subscriber backed by one websocket connection. Sends
// never block: a full buffer drops the message.
type wsClient struct {
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newWSClient() *wsClient {
	return &wsClient{
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

func (cl *wsClient) Send(msg []byte) error {
	select {
	case <-cl.done:
		return errClientClosed
	default:
	}

	select {
	case cl.send <- msg:
		return nil
	case <-cl.done:
		return errClientClosed
	default:
		return errClientSlow
	}
}

func (cl *wsClient) close() {
	cl.once.Do(func() { close(cl.done) })
}

func (c *Controller) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || c.allowedOrigin(origin)
		},
	}
}

// HandleWebSocket upgrades the connection and registers it with the hub
// until either side hangs up. Every broadcast is written as a text frame
// holding the {"s","t","d"} envelope. Client messages are read only to
// detect closure.
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	c.conns.Add(1)
	defer c.conns.Done()

	conn, err := c.upgrader().Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(c.closing, cancel)
	defer stop()

	client := newWSClient()
	id := c.App.Hub.Subscribe(client)
	defer c.App.Hub.Unsubscribe(id)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer c.recoverConn(r, "ping ticker", cancel)
		c.sendPings(ctx, conn)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer c.recoverConn(r, "message writer", cancel)
		c.writeMessages(ctx, conn, client)
		// Unblocks the reader when we are the side hanging up.
		_ = conn.Close()
	}()

	c.readClientMessages(conn)

	cancel()
	client.close()
	wg.Wait()

	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.App.Logger.Debug("Failed to close WebSocket connection", zap.Error(err))
	}

	c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

func (c *Controller) recoverConn(r *http.Request, routine string, cancel context.CancelFunc) {
	if rec := recover(); rec != nil {
		c.App.Logger.Error("Panic in WebSocket goroutine",
			zap.String("routine", routine),
			zap.Any("panic", rec),
			zap.String("stack", string(debug.Stack())),
			zap.String("remote_addr", r.RemoteAddr))
		cancel()
	}
}

// sendPings keeps the connection alive; pongs reset the read deadline.
func (c *Controller) sendPings(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeTimeout)); err != nil {
				c.App.Logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

// writeMessages drains the client buffer until the connection is done,
// then says goodbye with a close frame.
func (c *Controller) writeMessages(ctx context.Context, conn *websocket.Conn, client *wsClient) {
	for {
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
			return
		case msg := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.App.Logger.Debug("Failed to write WebSocket message", zap.Error(err))
				client.close()
				return
			}
		}
	}
}

// readClientMessages blocks until the peer goes away or the read deadline
// passes without a pong.
func (c *Controller) readClientMessages(conn *websocket.Conn) {
	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		c.App.Logger.Error("Failed to set read deadline", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.App.Logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
}
