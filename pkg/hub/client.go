package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait = 10 * time.Second

	// a viewer that misses pongs this long is disconnected
	pongWait = 60 * time.Second

	// below pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound messages; viewers only send objectives
	maxMessageSize = 64 * 1024

	// sendBuffer is how many frames may queue before a client counts as slow
	sendBuffer = 256
)

// Client is one viewer connection attached to a Hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient creates a new client and registers it with the hub. It returns
// nil when the hub has stopped.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
	select {
	case hub.register <- client:
		return client
	case <-hub.stop:
		return nil
	}
}

// Run pumps the connection until it closes. Call it from the websocket
// handler; it blocks.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// Send queues a message for this client only.
func (c *Client) Send(msg Message) {
	select {
	case c.hub.unicast <- reply{client: c, message: msg}:
	case <-c.hub.stop:
	default:
		c.hub.logger.Warn("reply queue full, dropping message")
	}
}

// readPump hands inbound messages to the hub handler and unregisters the
// client when the connection drops.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stop:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if c.hub.handler != nil {
			c.hub.handler(c, data)
		}
	}
}

// writePump is the only writer on conn.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// dropped or hub stopped
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message.Data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
