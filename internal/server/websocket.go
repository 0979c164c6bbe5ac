package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/packwork/internal/core/events/bus"
	"github.com/zeusync/packwork/internal/core/observability/log"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Frame is one bus event as sent to clients.
type Frame struct {
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

func frameOf(e bus.Event) Frame {
	f := Frame{
		Type:      e.Type(),
		Source:    e.Source(),
		Timestamp: e.Timestamp(),
		Metadata:  e.Metadata(),
	}
	if d := e.Data(); d != nil {
		var raw []byte
		switch v := d.(type) {
		case error:
			raw, _ = json.Marshal(v.Error())
		default:
			var err error
			if raw, err = json.Marshal(v); err != nil {
				raw, _ = json.Marshal(fmt.Sprint(v))
			}
		}
		f.Data = raw
	}
	return f
}

type client struct {
	conn *websocket.Conn
	send chan Frame
	done chan struct{}
	once sync.Once
}

func (c *client) offer(f Frame) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (i *Inspector) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		i.logger.Warn("websocket upgrade failed", log.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan Frame, i.buffer), done: make(chan struct{})}
	i.mu.Lock()
	i.clients[c] = struct{}{}
	i.mu.Unlock()
	logger := i.logger.With(log.String("remote", r.RemoteAddr))
	logger.Debug("inspector client connected")

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.writeLoop(c, logger)
	}()

	// Clients never send anything meaningful; reading only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	i.mu.Lock()
	delete(i.clients, c)
	i.mu.Unlock()
	c.close()
	logger.Debug("inspector client disconnected")
}

func (i *Inspector) writeLoop(c *client, logger log.Log) {
	for {
		select {
		case <-c.done:
			return
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				logger.Debug("inspector write failed", log.Error(err))
				c.close()
				return
			}
		}
	}
}
