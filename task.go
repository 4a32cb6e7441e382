package offlineworker

import (
	"context"
	"fmt"
	"net/http"
)

// Task is an event being handled. The event only counts as handled once the task has settled.
type Task struct {
	done chan struct{}
	res  *http.Response
	err  error
}

// Dispatch starts handling the event in its own goroutine.
// For fetch events that are intercepted, the task settles with the response.
func Dispatch(ctx context.Context, h EventHandler, ev Event) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.res, t.err = handle(ctx, h, ev)
	}()
	return t
}

func handle(ctx context.Context, h EventHandler, ev Event) (*http.Response, error) {
	switch ev.Kind {
	case EventInstall:
		return nil, h.Install(ctx)
	case EventActivate:
		return nil, h.Activate(ctx)
	case EventMessage:
		return nil, h.Message(ctx, ev.Data)
	case EventFetch:
		res, intercepted, err := h.Fetch(ctx, ev.Request)
		if !intercepted {
			return nil, nil
		}
		return res, err
	case EventPush:
		return nil, h.Push(ctx, ev.Data)
	case EventNotificationClick:
		return nil, h.NotificationClick(ctx, ev.Click)
	case EventNotificationClose:
		return nil, h.NotificationClose(ctx, ev.Notification)
	}
	return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
}

// Wait blocks until the task has settled or ctx is done.
func (t *Task) Wait(ctx context.Context) (*http.Response, error) {
	select {
	case <-t.done:
		return t.res, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Err waits for the task and returns only its error.
func (t *Task) Err(ctx context.Context) error {
	_, err := t.Wait(ctx)
	return err
}
