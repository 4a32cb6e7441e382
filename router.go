package offlineworker

import (
	"context"
	"net/http"

	"github.com/always-cache/offline-worker/strategy"
)

const (
	strategyCacheFirst   = "cache-first"
	strategyNetworkFirst = "network-first"
)

// Fetch decides whether the worker handles a request, and if so resolves it.
// Only GET requests outside the API prefix are intercepted.
// Static assets are served cache-first, everything else network-first.
// If the request is not intercepted, the response is nil and the caller
// should let the request go to the network unmodified.
func (w *Worker) Fetch(ctx context.Context, r *http.Request) (*http.Response, bool, error) {
	res, _, intercepted, err := w.resolve(ctx, r)
	return res, intercepted, err
}

func (w *Worker) resolve(ctx context.Context, r *http.Request) (*http.Response, strategy.Status, bool, error) {
	var status strategy.Status
	if r.Method != http.MethodGet && r.Method != "" {
		w.log.Trace().Str("method", r.Method).Str("url", r.URL.String()).Msg("Not intercepting method")
		return nil, status, false, nil
	}
	if w.rules.IsAPI(r.URL.Path) {
		w.log.Trace().Str("url", r.URL.String()).Msg("Not intercepting API request")
		return nil, status, false, nil
	}

	st := w.manager.Store()

	var s strategy.Strategy
	name := strategyNetworkFirst
	log := w.log.With().Str("url", r.URL.String()).Logger()
	if w.rules.IsStaticAsset(r.URL.Path) {
		name = strategyCacheFirst
		s = strategy.CacheFirst{
			Store:   st,
			Fetcher: w.fetcher,
			Log:     log.With().Str("strategy", name).Logger(),
		}
	} else {
		s = strategy.NetworkFirst{
			Store:       st,
			Fetcher:     w.fetcher,
			OfflinePath: w.rules.OfflinePath,
			IsPage:      w.rules.IsPage,
			Log:         log.With().Str("strategy", name).Logger(),
		}
	}

	res, status, err := s.Resolve(ctx, r)
	if err != nil {
		w.metrics.fetchError(name)
		return nil, status, true, err
	}
	w.metrics.response(name, status)
	return res, status, true, nil
}
