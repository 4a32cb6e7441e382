package clients

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/always-cache/offline-worker/notify"
)

// Client is one connected page context.
type Client struct {
	id     string
	origin string
	conn   *websocket.Conn
	hub    *Hub

	// guards url and controlled, and serializes writes to conn
	mutex      sync.Mutex
	url        string
	controlled bool
}

func (c *Client) ID() string {
	return c.id
}

// Origin returns the scheme and host the client connected through.
func (c *Client) Origin() string {
	return c.origin
}

// URL returns the last known location of the client.
func (c *Client) URL() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.url
}

// Controlled reports whether the worker has claimed this client.
func (c *Client) Controlled() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.controlled
}

// Focus asks the client to bring itself to the foreground.
func (c *Client) Focus(ctx context.Context) error {
	return c.send(Envelope{Type: TypeFocus})
}

// Navigate asks the client to load the given URL.
func (c *Client) Navigate(ctx context.Context, url string) error {
	return c.send(Envelope{Type: TypeNavigate, URL: url})
}

func (c *Client) send(env Envelope) error {
	bytes, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.write(bytes)
}

func (c *Client) write(bytes []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, bytes)
}

// readLoop dispatches inbound messages until the connection fails.
func (c *Client) readLoop(ctx context.Context) {
	log := c.hub.log.With().Str("client", c.id).Logger()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Client connection failed")
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Msg("Could not parse client message")
			continue
		}
		if err := c.dispatch(ctx, env, data); err != nil {
			log.Error().Err(err).Str("type", env.Type).Msg("Could not handle client message")
		}
	}
}

func (c *Client) dispatch(ctx context.Context, env Envelope, data []byte) error {
	handlers := c.hub.handlers
	switch env.Type {
	case TypeLocation:
		c.mutex.Lock()
		c.url = env.URL
		c.mutex.Unlock()
		return nil
	case TypeNotificationClick:
		if env.Notification == nil || handlers.NotificationClick == nil {
			return nil
		}
		return handlers.NotificationClick(ctx, notify.ClickEvent{Notification: *env.Notification, Action: env.Action})
	case TypeNotificationClosed:
		if env.Notification != nil && handlers.NotificationClose != nil {
			handlers.NotificationClose(ctx, *env.Notification)
		}
		return nil
	default:
		if handlers.Message == nil {
			return nil
		}
		return handlers.Message(ctx, data)
	}
}
