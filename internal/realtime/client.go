package realtime

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Client is one live connection subscribed to a single group.
type Client struct {
	hub   *Hub
	group string
	conn  *websocket.Conn
	send  chan []byte
}

// ServeWS upgrades the request and subscribes the connection to the group.
// The connection stays subscribed until it closes.
func ServeWS(hub *Hub, group string, w http.ResponseWriter, r *http.Request) error {
	const op = "realtime.ServeWS"

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	c := &Client{
		hub:   hub,
		group: group,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
	}
	hub.Join(group, c)

	go c.writePump()
	go c.readPump()
	return nil
}

// readPump discards inbound frames (subscribers only listen) and tears the
// client down when the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.hub.Leave(c.group, c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
