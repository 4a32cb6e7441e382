package strategy

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	requestkey "github.com/always-cache/offline-worker/pkg/request-key"
	"github.com/always-cache/offline-worker/store"
)

// NetworkFirst prefers fresh content and falls back to the store when the network fails.
// For pages with nothing stored it falls back once more, to the stored offline page.
type NetworkFirst struct {
	Store   store.Store
	Fetcher Fetcher
	// Path of the offline page. No offline fallback is attempted if empty.
	OfflinePath string
	// IsPage reports whether a path is an HTML page, i.e. eligible for the offline page.
	IsPage func(path string) bool
	Log    zerolog.Logger
}

func (s NetworkFirst) Resolve(ctx context.Context, r *http.Request) (*http.Response, Status, error) {
	var status Status
	status.Forward(FwdReasonRequest)
	key, ok := requestKey(r)
	if !ok {
		res, err := s.Fetcher.Fetch(ctx, r)
		return res, status, err
	}

	res, stored, fetchErr := fetchAndStore(ctx, s.Store, s.Fetcher, key, r, s.Log)
	if fetchErr == nil {
		status.Stored = stored
		return res, status, nil
	}

	s.Log.Debug().Err(fetchErr).Str("key", key).Msg("Network failed, trying store")
	if res, ok := match(ctx, s.Store, key, r, s.Log); ok {
		status.Hit()
		status.Detail = DetailNetworkError
		return res, status, nil
	}

	if s.OfflinePath != "" && s.IsPage != nil && s.IsPage(r.URL.Path) {
		offlineKey := requestkey.ForPath(s.OfflinePath)
		if res, ok := match(ctx, s.Store, offlineKey, r, s.Log); ok {
			s.Log.Debug().Str("key", key).Msg("Serving offline page")
			status.Hit()
			status.Detail = DetailOffline
			return res, status, nil
		}
	}

	return nil, status, fetchErr
}
