package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentchat/server/internal/wire"
)

// Conn adapts one websocket connection to internal/session.Sender and
// feeds every inbound frame into the server's single event loop, so
// handlers never run concurrently with each other.
type Conn struct {
	id  string
	srv *Server
	ws  *websocket.Conn

	out chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(srv *Server, ws *websocket.Conn, id string) *Conn {
	return &Conn{
		id:     id,
		srv:    srv,
		ws:     ws,
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

// Send marshals v and queues it for delivery, satisfying
// internal/session.Sender. Safe to call from the event loop goroutine;
// never blocks on network I/O.
func (c *Conn) Send(v any) error {
	b, err := wire.Encode(v)
	if err != nil {
		return err
	}
	select {
	case c.out <- b:
		return nil
	case <-c.closed:
		return nil
	default:
		// Slow consumer: drop rather than block the single event loop,
		// matching spec.md §5's "there is no backpressure" policy.
		return nil
	}
}

// Close satisfies internal/session.Sender; idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return c.ws.Close()
}

func (c *Conn) sendError(code wire.ErrCode, message string) {
	_ = c.Send(wire.NewError(code, message))
}

const (
	pongWait   = 90 * time.Second
	pingPeriod = 30 * time.Second
)

func (c *Conn) readPump() {
	defer func() {
		c.srv.events <- event{conn: c, data: nil}
		_ = c.Close()
	}()

	c.ws.SetReadLimit(512 * 1024)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.srv.events <- event{conn: c, data: data}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case b := <-c.out:
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
