package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	ActionOpen    = "open"
	ActionDismiss = "dismiss"
)

type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Data is retained with a displayed notification and handed back on interaction.
type Data struct {
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// Notification is what gets displayed for a push message.
type Notification struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Icon    string   `json:"icon"`
	Badge   string   `json:"badge"`
	Actions []Action `json:"actions"`
	Data    Data     `json:"data"`
}

// ClickEvent is a user interaction with a displayed notification.
// An empty Action is a tap on the notification itself.
type ClickEvent struct {
	Notification Notification `json:"notification"`
	Action       string       `json:"action"`
}

// Displayer shows and closes notifications.
type Displayer interface {
	Show(ctx context.Context, n Notification) error
	Close(ctx context.Context, n Notification) error
}

// Window is an open page context.
type Window interface {
	URL() string
	Focus(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
}

// OriginWindow is a window that knows the origin it was served from.
// It is used to match windows when no application origin is configured.
type OriginWindow interface {
	Window
	Origin() string
}

// Windows gives access to the open page contexts.
type Windows interface {
	MatchAll(ctx context.Context) ([]Window, error)
	Open(ctx context.Context, url string) error
}

type Config struct {
	Displayer Displayer
	Windows   Windows
	// Origin of the application as seen by its pages. Only windows on this origin are reused on click.
	// If empty, a window's own origin is used when it has one.
	Origin   url.URL
	Defaults Descriptor
	// Now is the clock used for delivery timestamps. Defaults to time.Now.
	Now func() time.Time
	Log zerolog.Logger
}

// Relay turns push messages into notifications and routes interactions with them.
type Relay struct {
	displayer Displayer
	windows   Windows
	origin    string
	defaults  Descriptor
	now       func() time.Time
	log       zerolog.Logger
}

func NewRelay(config Config) *Relay {
	r := &Relay{
		displayer: config.Displayer,
		windows:   config.Windows,
		defaults:  config.Defaults.WithDefaults(DefaultDescriptor()),
		now:       config.Now,
		log:       config.Log,
	}
	if config.Origin.Host != "" {
		r.origin = config.Origin.Scheme + "://" + config.Origin.Host
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Push shows a notification for the payload.
// Payloads that cannot be parsed are replaced by the defaults.
func (r *Relay) Push(ctx context.Context, data []byte) (Notification, error) {
	d := ParsePayload(data, r.defaults, r.now())
	n := Notification{
		ID:    uuid.NewString(),
		Title: d.Title,
		Body:  d.Body,
		Icon:  d.Icon,
		Badge: d.Badge,
		Actions: []Action{
			{Action: ActionOpen, Title: "Open"},
			{Action: ActionDismiss, Title: "Dismiss"},
		},
		Data: Data{
			URL:       d.URL,
			Timestamp: d.Timestamp.UnixMilli(),
		},
	}
	r.log.Debug().Str("id", n.ID).Str("title", n.Title).Str("url", n.Data.URL).Msg("Showing notification")
	if err := r.displayer.Show(ctx, n); err != nil {
		return n, fmt.Errorf("could not show notification: %w", err)
	}
	return n, nil
}

// Click handles an interaction with a notification.
// The notification is always closed. Unless it was dismissed,
// the first window on the application origin is focused and navigated to the target,
// or a new window is opened at the target if there is none.
func (r *Relay) Click(ctx context.Context, ev ClickEvent) error {
	n := ev.Notification
	if err := r.displayer.Close(ctx, n); err != nil {
		r.log.Warn().Err(err).Str("id", n.ID).Msg("Could not close notification")
	}
	if ev.Action == ActionDismiss {
		r.log.Trace().Str("id", n.ID).Msg("Notification dismissed")
		return nil
	}

	target := n.Data.URL
	if target == "" {
		target = r.defaults.URL
	}

	windows, err := r.windows.MatchAll(ctx)
	if err != nil {
		return fmt.Errorf("could not list windows: %w", err)
	}
	for _, w := range windows {
		if !r.sameOrigin(w) {
			continue
		}
		r.log.Debug().Str("window", w.URL()).Str("target", target).Msg("Focusing window")
		if err := w.Focus(ctx); err != nil {
			return fmt.Errorf("could not focus window: %w", err)
		}
		return w.Navigate(ctx, target)
	}

	r.log.Debug().Str("target", target).Msg("Opening window")
	return r.windows.Open(ctx, target)
}

// Close is called when a notification is closed without interaction.
func (r *Relay) Close(ctx context.Context, n Notification) {
	r.log.Trace().Str("id", n.ID).Msg("Notification closed")
}

func (r *Relay) sameOrigin(w Window) bool {
	windowURL := w.URL()
	// relative locations are on whatever origin the window is on
	if strings.HasPrefix(windowURL, "/") && !strings.HasPrefix(windowURL, "//") {
		return true
	}
	origin := r.origin
	if origin == "" {
		if ow, ok := w.(OriginWindow); ok {
			origin = ow.Origin()
		}
	}
	if origin == "" {
		return true
	}
	return windowURL == origin || strings.HasPrefix(windowURL, origin+"/")
}
