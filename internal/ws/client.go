package ws

import (
	"strings"

	"github.com/gofiber/websocket/v2"
)

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	// events is the subscription filter; empty means everything
	events map[EventType]bool
	send   chan []byte
}

// parseEvents turns "match.result,frame.skipped" into a filter set
func parseEvents(raw string) map[EventType]bool {
	events := make(map[EventType]bool)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			events[EventType(part)] = true
		}
	}
	return events
}

func (c *Client) wants(t EventType) bool {
	return len(c.events) == 0 || c.events[t]
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}
