package notify

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeDisplay struct {
	shown  []Notification
	closed []Notification
}

func (d *fakeDisplay) Show(ctx context.Context, n Notification) error {
	d.shown = append(d.shown, n)
	return nil
}

func (d *fakeDisplay) Close(ctx context.Context, n Notification) error {
	d.closed = append(d.closed, n)
	return nil
}

type fakeWindow struct {
	url       string
	focused   int
	navigated []string
}

func (w *fakeWindow) URL() string { return w.url }

func (w *fakeWindow) Focus(ctx context.Context) error {
	w.focused++
	return nil
}

func (w *fakeWindow) Navigate(ctx context.Context, url string) error {
	w.navigated = append(w.navigated, url)
	return nil
}

type fakeWindows struct {
	windows []*fakeWindow
	opened  []string
}

func (f *fakeWindows) MatchAll(ctx context.Context) ([]Window, error) {
	windows := make([]Window, 0, len(f.windows))
	for _, w := range f.windows {
		windows = append(windows, w)
	}
	return windows, nil
}

func (f *fakeWindows) Open(ctx context.Context, url string) error {
	f.opened = append(f.opened, url)
	return nil
}

var clock = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newRelay(display *fakeDisplay, windows *fakeWindows) *Relay {
	origin, _ := url.Parse("https://hub.example.com")
	return NewRelay(Config{
		Displayer: display,
		Windows:   windows,
		Origin:    *origin,
		Now:       func() time.Time { return clock },
		Log:       zerolog.Nop(),
	})
}

func TestParsePayloadMergesOverDefaults(t *testing.T) {
	d := ParsePayload([]byte(`{"title":"X"}`), DefaultDescriptor(), clock)
	if d.Title != "X" || d.Body != "New content available" || d.URL != "/dashboard" {
		t.Fatalf("Descriptor is %+v", d)
	}
	if !d.Timestamp.Equal(clock) {
		t.Fatalf("Timestamp is %s", d.Timestamp)
	}
}

func TestParsePayloadMalformed(t *testing.T) {
	defaults := DefaultDescriptor()
	for _, data := range []string{"not json", `["title"]`, `{"title":"X","body":5}`, `{"title":`, ""} {
		d := ParsePayload([]byte(data), defaults, clock)
		d.Timestamp = time.Time{}
		if d != defaults {
			t.Fatalf("%q parsed to %+v", data, d)
		}
	}
}

func TestParsePayloadIgnoresUnknownFields(t *testing.T) {
	d := ParsePayload([]byte(`{"body":"B","url":"/events","color":"red"}`), DefaultDescriptor(), clock)
	if d.Body != "B" || d.URL != "/events" || d.Title != DefaultDescriptor().Title {
		t.Fatalf("Descriptor is %+v", d)
	}
}

func TestPushShowsNotification(t *testing.T) {
	display := &fakeDisplay{}
	relay := newRelay(display, &fakeWindows{})

	n, err := relay.Push(context.Background(), []byte(`{"title":"X"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(display.shown) != 1 || display.shown[0].ID != n.ID || n.ID == "" {
		t.Fatalf("Shown %+v", display.shown)
	}
	if n.Title != "X" || n.Body != "New content available" || n.Data.URL != "/dashboard" {
		t.Fatalf("Notification is %+v", n)
	}
	if n.Data.Timestamp != clock.UnixMilli() {
		t.Fatalf("Timestamp is %d", n.Data.Timestamp)
	}
	if n.Icon == "" || n.Badge == "" || len(n.Actions) != 2 {
		t.Fatalf("Notification is %+v", n)
	}
}

func TestClickDismiss(t *testing.T) {
	display := &fakeDisplay{}
	window := &fakeWindow{url: "https://hub.example.com/home"}
	windows := &fakeWindows{windows: []*fakeWindow{window}}
	relay := newRelay(display, windows)
	n, _ := relay.Push(context.Background(), nil)

	if err := relay.Click(context.Background(), ClickEvent{Notification: n, Action: ActionDismiss}); err != nil {
		t.Fatal(err)
	}
	if len(display.closed) != 1 {
		t.Fatal("Notification not closed")
	}
	if window.focused != 0 || len(window.navigated) != 0 || len(windows.opened) != 0 {
		t.Fatal("Dismiss should not touch windows")
	}
}

func TestClickFocusesFirstMatchingWindow(t *testing.T) {
	display := &fakeDisplay{}
	foreign := &fakeWindow{url: "https://other.example.com/"}
	first := &fakeWindow{url: "https://hub.example.com/home"}
	second := &fakeWindow{url: "https://hub.example.com/events"}
	windows := &fakeWindows{windows: []*fakeWindow{foreign, first, second}}
	relay := newRelay(display, windows)
	n, _ := relay.Push(context.Background(), []byte(`{"url":"/archive"}`))

	if err := relay.Click(context.Background(), ClickEvent{Notification: n}); err != nil {
		t.Fatal(err)
	}
	if len(display.closed) != 1 {
		t.Fatal("Notification not closed")
	}
	if first.focused != 1 || len(first.navigated) != 1 || first.navigated[0] != "/archive" {
		t.Fatalf("First window %+v", first)
	}
	if foreign.focused != 0 || second.focused != 0 || len(windows.opened) != 0 {
		t.Fatal("Only one window should be used")
	}
}

func TestClickOpensWindowWhenNoneMatch(t *testing.T) {
	windows := &fakeWindows{windows: []*fakeWindow{{url: "https://hub.example.com.evil/"}}}
	relay := newRelay(&fakeDisplay{}, windows)
	n, _ := relay.Push(context.Background(), nil)

	if err := relay.Click(context.Background(), ClickEvent{Notification: n, Action: ActionOpen}); err != nil {
		t.Fatal(err)
	}
	if len(windows.opened) != 1 || windows.opened[0] != "/dashboard" {
		t.Fatalf("Opened %v", windows.opened)
	}
}

type connectedWindow struct {
	fakeWindow
	origin string
}

func (w *connectedWindow) Origin() string { return w.origin }

type connectedWindows struct {
	windows []*connectedWindow
	opened  []string
}

func (f *connectedWindows) MatchAll(ctx context.Context) ([]Window, error) {
	windows := make([]Window, 0, len(f.windows))
	for _, w := range f.windows {
		windows = append(windows, w)
	}
	return windows, nil
}

func (f *connectedWindows) Open(ctx context.Context, url string) error {
	f.opened = append(f.opened, url)
	return nil
}

func TestClickMatchesConnectionOriginWithoutAppOrigin(t *testing.T) {
	foreign := &connectedWindow{fakeWindow: fakeWindow{url: "https://other.example.com/"}, origin: "http://127.0.0.1:8080"}
	local := &connectedWindow{fakeWindow: fakeWindow{url: "http://127.0.0.1:8080/home"}, origin: "http://127.0.0.1:8080"}
	windows := &connectedWindows{windows: []*connectedWindow{foreign, local}}
	relay := NewRelay(Config{Displayer: &fakeDisplay{}, Windows: windows, Log: zerolog.Nop()})
	n, _ := relay.Push(context.Background(), nil)

	if err := relay.Click(context.Background(), ClickEvent{Notification: n}); err != nil {
		t.Fatal(err)
	}
	if foreign.focused != 0 || local.focused != 1 || len(local.navigated) != 1 {
		t.Fatalf("Foreign %+v, local %+v", foreign, local)
	}
	if len(windows.opened) != 0 {
		t.Fatalf("Opened %v", windows.opened)
	}
}

func TestClickMatchesRelativeLocation(t *testing.T) {
	window := &fakeWindow{url: "/events"}
	windows := &fakeWindows{windows: []*fakeWindow{window}}
	relay := newRelay(&fakeDisplay{}, windows)
	n, _ := relay.Push(context.Background(), nil)

	if err := relay.Click(context.Background(), ClickEvent{Notification: n}); err != nil {
		t.Fatal(err)
	}
	if window.focused != 1 || len(windows.opened) != 0 {
		t.Fatalf("Window %+v, opened %v", window, windows.opened)
	}
}
