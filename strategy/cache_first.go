package strategy

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/always-cache/offline-worker/store"
)

// CacheFirst serves from the store and only goes to the network on a miss.
// It is meant for assets that are assumed to be cacheable after install,
// so a network failure on a miss is returned to the caller as is.
type CacheFirst struct {
	Store   store.Store
	Fetcher Fetcher
	Log     zerolog.Logger
}

func (s CacheFirst) Resolve(ctx context.Context, r *http.Request) (*http.Response, Status, error) {
	var status Status
	key, ok := requestKey(r)
	if !ok {
		status.Forward(FwdReasonRequest)
		res, err := s.Fetcher.Fetch(ctx, r)
		return res, status, err
	}

	if res, ok := match(ctx, s.Store, key, r, s.Log); ok {
		s.Log.Trace().Str("key", key).Msg("Serving from store")
		status.Hit()
		return res, status, nil
	}

	status.Forward(FwdReasonUriMiss)
	res, stored, err := fetchAndStore(ctx, s.Store, s.Fetcher, key, r, s.Log)
	if err != nil {
		s.Log.Error().Err(err).Str("key", key).Msg("Cache-first fetch failed")
		return nil, status, err
	}
	status.Stored = stored
	return res, status, nil
}
