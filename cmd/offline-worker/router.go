package main

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	offlineworker "github.com/always-cache/offline-worker"
)

const maxEventBody = 64 << 10

// newRouter exposes the worker's events next to the proxied application.
func newRouter(worker *offlineworker.Worker) http.Handler {
	r := chi.NewRouter()
	r.Route("/sw", func(r chi.Router) {
		if hub := worker.Hub(); hub != nil {
			r.Get("/clients", hub.ServeHTTP)
		}
		r.Post("/message", eventHandler(worker, offlineworker.EventMessage))
		r.Post("/push", eventHandler(worker, offlineworker.EventPush))
	})
	r.Get("/metrics", worker.Metrics().ServeHTTP)
	r.Handle("/*", worker)
	return r
}

// eventHandler dispatches the request body as an event of the given kind
// and responds once the event is handled.
func eventHandler(worker *offlineworker.Worker, kind offlineworker.EventKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		task := offlineworker.Dispatch(r.Context(), worker, offlineworker.Event{Kind: kind, Data: data})
		if err := task.Err(r.Context()); err != nil {
			log.Warn().Err(err).Str("event", string(kind)).Msg("Event failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}
