package strategy

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	requestkey "github.com/always-cache/offline-worker/pkg/request-key"
	serializer "github.com/always-cache/offline-worker/pkg/response-serializer"
	"github.com/always-cache/offline-worker/store"
)

// Fetcher performs a network fetch.
// A non-nil error means the network failed; any status code is a success.
type Fetcher interface {
	Fetch(ctx context.Context, r *http.Request) (*http.Response, error)
}

type FetcherFunc func(ctx context.Context, r *http.Request) (*http.Response, error)

func (f FetcherFunc) Fetch(ctx context.Context, r *http.Request) (*http.Response, error) {
	return f(ctx, r)
}

// Strategy resolves one request against a store and the network.
type Strategy interface {
	Resolve(ctx context.Context, r *http.Request) (*http.Response, Status, error)
}

// match returns the stored response for the given key, if any.
// Stored entries that cannot be read are treated as misses.
func match(ctx context.Context, st store.Store, key string, r *http.Request, log zerolog.Logger) (*http.Response, bool) {
	bytes, ok, err := st.Match(ctx, key)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Could not read from store")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	res, err := serializer.BytesToResponse(bytes, r)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Could not read stored response")
		return nil, false
	}
	return res, true
}

// fetchAndStore fetches r and stores a copy of the response if its status is 200.
// The returned response is independent of the stored copy.
// Store failures are logged and do not fail the request.
func fetchAndStore(ctx context.Context, st store.Store, fetcher Fetcher, key string, r *http.Request, log zerolog.Logger) (*http.Response, bool, error) {
	res, err := fetcher.Fetch(ctx, r)
	if err != nil {
		return nil, false, err
	}
	if res.StatusCode != http.StatusOK {
		log.Trace().Str("key", key).Int("http-status", res.StatusCode).Msg("Non-cacheable response")
		return res, false, nil
	}
	snap, err := serializer.Capture(res)
	if err != nil {
		return nil, false, err
	}
	stored := true
	if err := st.Put(ctx, key, snap.Bytes()); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Could not write to store")
		stored = false
	} else {
		log.Trace().Str("key", key).Msg("Store write")
	}
	return snap.Response(r), stored, nil
}

// requestKey returns the identity of r.
// Requests without an identity are still resolved, but nothing is stored for them.
func requestKey(r *http.Request) (string, bool) {
	key, err := requestkey.Key(r)
	return key, err == nil
}
