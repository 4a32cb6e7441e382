package offlineworker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/always-cache/offline-worker/clients"
	"github.com/always-cache/offline-worker/lifecycle"
	"github.com/always-cache/offline-worker/notify"
)

type EventKind string

const (
	EventInstall           EventKind = "install"
	EventActivate          EventKind = "activate"
	EventMessage           EventKind = "message"
	EventFetch             EventKind = "fetch"
	EventPush              EventKind = "push"
	EventNotificationClick EventKind = "notificationclick"
	EventNotificationClose EventKind = "notificationclose"
)

// EventHandler handles every kind of event the host delivers to a worker.
type EventHandler interface {
	Install(ctx context.Context) error
	Activate(ctx context.Context) error
	// Message handles a command. Unknown commands are ignored.
	Message(ctx context.Context, data []byte) error
	// Fetch resolves a request. If it is not intercepted the response is nil.
	Fetch(ctx context.Context, r *http.Request) (*http.Response, bool, error)
	Push(ctx context.Context, data []byte) error
	NotificationClick(ctx context.Context, ev notify.ClickEvent) error
	NotificationClose(ctx context.Context, n notify.Notification) error
}

// Event is one occurrence of an event. Only the fields of its kind are used.
type Event struct {
	Kind EventKind
	// Data is the command of a message event or the payload of a push event.
	Data []byte
	// Request of a fetch event.
	Request *http.Request
	// Click of a notificationclick event.
	Click notify.ClickEvent
	// Notification of a notificationclose event.
	Notification notify.Notification
}

var _ EventHandler = (*Worker)(nil)

func (w *Worker) Install(ctx context.Context) error {
	err := w.manager.Install(ctx)
	w.metrics.event(EventInstall, err)
	return err
}

func (w *Worker) Activate(ctx context.Context) error {
	err := w.manager.Activate(ctx)
	w.metrics.event(EventActivate, err)
	return err
}

func (w *Worker) Message(ctx context.Context, data []byte) error {
	var msg lifecycle.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		w.metrics.event(EventMessage, err)
		return fmt.Errorf("could not parse message: %w", err)
	}
	err := w.manager.HandleMessage(ctx, msg)
	w.metrics.event(EventMessage, err)
	return err
}

func (w *Worker) Push(ctx context.Context, data []byte) error {
	_, err := w.relay.Push(ctx, data)
	w.metrics.event(EventPush, err)
	return err
}

func (w *Worker) NotificationClick(ctx context.Context, ev notify.ClickEvent) error {
	err := w.relay.Click(ctx, ev)
	w.metrics.event(EventNotificationClick, err)
	return err
}

func (w *Worker) NotificationClose(ctx context.Context, n notify.Notification) error {
	w.relay.Close(ctx, n)
	w.metrics.event(EventNotificationClose, nil)
	return nil
}

// hubHandlers routes what connected clients send back into the worker's events.
func (w *Worker) hubHandlers() clients.Handlers {
	return clients.Handlers{
		Message: func(ctx context.Context, raw []byte) error {
			return Dispatch(ctx, w, Event{Kind: EventMessage, Data: raw}).Err(ctx)
		},
		NotificationClick: func(ctx context.Context, ev notify.ClickEvent) error {
			return Dispatch(ctx, w, Event{Kind: EventNotificationClick, Click: ev}).Err(ctx)
		},
		NotificationClose: func(ctx context.Context, n notify.Notification) {
			Dispatch(ctx, w, Event{Kind: EventNotificationClose, Notification: n}).Err(ctx)
		},
	}
}
