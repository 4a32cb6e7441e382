package strategy

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
)

// OriginFetcher fetches requests from an origin server.
// Redirects are not followed, they are returned to the caller like any other response.
type OriginFetcher struct {
	originURL  url.URL
	originHost string
	httpClient http.Client
	log        zerolog.Logger
}

// NewOriginFetcher creates a fetcher for the given origin.
// If host is set, it is used for the Host header and TLS negotiation,
// e.g. when the origin URL is just an IP address.
func NewOriginFetcher(origin url.URL, host string, log zerolog.Logger) *OriginFetcher {
	f := &OriginFetcher{
		originURL:  origin,
		originHost: host,
		log:        log,
		httpClient: http.Client{
			// do not follow redirects
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	if host != "" {
		f.httpClient.Transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				ServerName: host,
			},
		}
	}
	return f
}

// Fetch the resource specified in the incoming request from the origin.
func (f *OriginFetcher) Fetch(ctx context.Context, r *http.Request) (*http.Response, error) {
	uri := f.originURL.Scheme + "://" + f.originURL.Host + r.URL.RequestURI()
	// need to specifically set body to nil on the outgoing request if content is zero length
	// see https://github.com/golang/go/issues/16036
	body := r.Body
	if r.ContentLength == 0 {
		body = nil
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, uri, body)
	if err != nil {
		f.log.Error().Err(err).Str("uri", uri).Msg("Could not create request for fetching")
		return nil, err
	}
	req.ContentLength = r.ContentLength
	if f.originHost != "" {
		req.Host = f.originHost
	}
	copyHeader(req.Header, r.Header)
	// do not forward connection header, this causes trouble
	req.Header.Del("Connection")
	f.log.Trace().Str("method", req.Method).Str("uri", uri).Msg("Fetching from origin")
	return f.httpClient.Do(req)
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		// this is a workaround to remove default headers sent by an upstream proxy
		// some servers do not like the presence of these headers in the downstream request
		if k != "X-Forwarded-For" && k != "X-Forwarded-Proto" && k != "X-Forwarded-Host" {
			for _, v := range vv {
				dst.Add(k, v)
			}
		}
	}
}
