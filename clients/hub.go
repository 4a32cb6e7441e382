package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/always-cache/offline-worker/notify"
)

// Message types sent to clients.
const (
	TypeControllerChange  = "CONTROLLER_CHANGE"
	TypeFocus             = "FOCUS"
	TypeNavigate          = "NAVIGATE"
	TypeOpen              = "OPEN"
	TypeNotification      = "NOTIFICATION"
	TypeNotificationClose = "NOTIFICATION_CLOSE"
)

// Message types received from clients.
const (
	TypeLocation           = "LOCATION"
	TypeNotificationClick  = "NOTIFICATION_CLICK"
	TypeNotificationClosed = "NOTIFICATION_CLOSED"
)

const writeWait = 10 * time.Second

// Envelope is the wire format of every message exchanged with clients.
type Envelope struct {
	Type         string               `json:"type"`
	URL          string               `json:"url,omitempty"`
	Action       string               `json:"action,omitempty"`
	Notification *notify.Notification `json:"notification,omitempty"`
}

// Handlers receive what clients send to the worker.
type Handlers struct {
	// Message is called for every command that is not handled by the hub itself.
	Message func(ctx context.Context, raw []byte) error
	// NotificationClick is called when a client reports a click on a notification.
	NotificationClick func(ctx context.Context, ev notify.ClickEvent) error
	// NotificationClose is called when a client reports a notification closed without interaction.
	NotificationClose func(ctx context.Context, n notify.Notification)
}

// ErrNoOpener is returned by Open when there is no opener and no connected client to open a window.
var ErrNoOpener = errors.New("no window opener available")

// Hub tracks the page contexts connected over websocket.
type Hub struct {
	upgrader websocket.Upgrader
	handlers Handlers
	opener   func(ctx context.Context, url string) error
	log      zerolog.Logger

	mutex   sync.RWMutex
	clients map[string]*Client
	order   []string
}

type Config struct {
	Handlers Handlers
	// Opener opens a new window at the given URL.
	// If nil, the first connected client is asked to open it.
	Opener func(ctx context.Context, url string) error
	// CheckOrigin is passed on to the websocket upgrader.
	CheckOrigin func(r *http.Request) bool
	Log         zerolog.Logger
}

func NewHub(config Config) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     config.CheckOrigin,
		},
		handlers: config.Handlers,
		opener:   config.Opener,
		log:      config.Log,
		clients:  make(map[string]*Client),
	}
}

// ServeHTTP upgrades the request to a websocket connection and registers the client.
// The client's initial URL is taken from the `url` query parameter, or the Referer header.
// Its origin is the one it connected through.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Could not upgrade client connection")
		return
	}
	location := r.URL.Query().Get("url")
	if location == "" {
		location = r.Referer()
	}
	c := &Client{id: uuid.NewString(), origin: requestOrigin(r), url: location, conn: conn, hub: h}
	h.register(c)
	defer h.unregister(c)
	c.readLoop(r.Context())
}

func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	} else if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func (h *Hub) register(c *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[c.id] = c
	h.order = append(h.order, c.id)
	h.log.Debug().Str("client", c.id).Str("url", c.url).Int("clients", len(h.clients)).Msg("Client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.clients, c.id)
	for i, id := range h.order {
		if id == c.id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	c.conn.Close()
	h.log.Debug().Str("client", c.id).Int("clients", len(h.clients)).Msg("Client disconnected")
}

// Clients returns the connected clients in connection order.
func (h *Hub) Clients() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	clients := make([]*Client, 0, len(h.order))
	for _, id := range h.order {
		clients = append(clients, h.clients[id])
	}
	return clients
}

// Broadcast sends the message to every connected client.
// A failed send to one client does not stop the others.
func (h *Hub) Broadcast(ctx context.Context, msg any) error {
	bytes, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var errs []error
	for _, c := range h.Clients() {
		if err := c.write(bytes); err != nil {
			h.log.Warn().Err(err).Str("client", c.id).Msg("Could not send message to client")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Claim marks every connected client as controlled and tells it so.
func (h *Hub) Claim(ctx context.Context) error {
	clients := h.Clients()
	for _, c := range clients {
		c.mutex.Lock()
		c.controlled = true
		c.mutex.Unlock()
	}
	h.log.Debug().Int("clients", len(clients)).Msg("Claimed clients")
	return h.Broadcast(ctx, Envelope{Type: TypeControllerChange})
}

// MatchAll returns the connected clients as windows.
func (h *Hub) MatchAll(ctx context.Context) ([]notify.Window, error) {
	clients := h.Clients()
	windows := make([]notify.Window, 0, len(clients))
	for _, c := range clients {
		windows = append(windows, c)
	}
	return windows, nil
}

// Open opens a new window through the configured opener,
// or else asks the first connected client to open it.
func (h *Hub) Open(ctx context.Context, url string) error {
	if h.opener != nil {
		return h.opener(ctx, url)
	}
	clients := h.Clients()
	if len(clients) == 0 {
		h.log.Info().Str("url", url).Msg("No client connected, cannot open window")
		return ErrNoOpener
	}
	return clients[0].send(Envelope{Type: TypeOpen, URL: url})
}

// Show sends the notification to every client for display.
func (h *Hub) Show(ctx context.Context, n notify.Notification) error {
	return h.Broadcast(ctx, Envelope{Type: TypeNotification, Notification: &n})
}

// Close tells every client to close the notification.
func (h *Hub) Close(ctx context.Context, n notify.Notification) error {
	return h.Broadcast(ctx, Envelope{Type: TypeNotificationClose, Notification: &n})
}
