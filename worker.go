package offlineworker

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/always-cache/offline-worker/clients"
	"github.com/always-cache/offline-worker/lifecycle"
	"github.com/always-cache/offline-worker/notify"
	"github.com/always-cache/offline-worker/pkg/classifier"
	"github.com/always-cache/offline-worker/store"
	"github.com/always-cache/offline-worker/strategy"
)

// DefaultPrecache is the set of paths stored on install unless configured otherwise.
var DefaultPrecache = []string{
	"/",
	"/offline",
	"/static/css/base.css",
	"/static/css/components.css",
	"/static/icons/icon-192.png",
	"/static/icons/icon-512.png",
	"/static/manifest.json",
}

const DefaultVersion = "piana-hub-v1"

type Config struct {
	// Storage for the versioned stores. An in-memory storage is used if nil.
	Storage store.Storage
	// Version tag of the store. Stores of other versions are removed on activation.
	Version string
	// Paths stored on install. DefaultPrecache is used if nil.
	Precache []string
	// Rules for classifying request paths. Empty fields take the default rules.
	Rules classifier.Rules
	// URL of the origin server.
	// Origins with paths are not supported.
	OriginURL url.URL
	// Hostname to use for HTTP requests and TLS negotiation.
	// Use if needed if e.g. the origin URL is just an IP address.
	OriginHost string
	// Optional network access. Defaults to fetching from the origin.
	Fetcher strategy.Fetcher
	// Page contexts controlled by the worker.
	// Whichever of Clients, Windows and Displayer is nil is served by a websocket hub, see Worker.Hub.
	Clients   lifecycle.Clients
	Windows   notify.Windows
	Displayer notify.Displayer
	// Origin the application's pages are served from, i.e. the public origin of this worker.
	// Windows on this origin are reused when a notification is clicked.
	// If empty, each client's own connection origin is used.
	AppOrigin url.URL
	// Opens a new window when no open window can be reused. Used by the websocket hub.
	// If nil, the first connected client is asked to open the window.
	Opener func(ctx context.Context, url string) error
	// Checks the Origin header of websocket connections to the hub.
	// If nil, the origin must match the host.
	CheckOrigin func(r *http.Request) bool
	// Content used for every field a push payload does not provide.
	Notifications notify.Descriptor
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Registry for metrics. A new registry is created if nil.
	// Workers of different versions may share a registry, their metrics carry a version label.
	Registry *prometheus.Registry
}

// Worker intercepts requests on behalf of the pages of one application
// and handles the events of its lifecycle.
type Worker struct {
	storage store.Storage
	rules   classifier.Rules
	fetcher strategy.Fetcher
	manager *lifecycle.Manager
	relay   *notify.Relay
	hub     *clients.Hub
	metrics *metrics
	log     zerolog.Logger
}

// New creates a worker. Nothing is stored before Install or Start is called.
func New(config Config) *Worker {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	if config.Version == "" {
		config.Version = DefaultVersion
	}
	if config.Precache == nil {
		config.Precache = DefaultPrecache
	}
	if config.Storage == nil {
		config.Storage = store.NewMemStorage()
	}

	// create a child logger and add defaults
	logger = logger.With().
		Str("version", config.Version).
		Logger()

	w := &Worker{
		storage: config.Storage,
		rules:   config.Rules.WithDefaults(),
		fetcher: config.Fetcher,
		metrics: newMetrics(config.Registry, config.Version),
		log:     logger,
	}
	if w.fetcher == nil {
		w.fetcher = strategy.NewOriginFetcher(config.OriginURL, config.OriginHost, logger)
	}

	if config.Clients == nil || config.Windows == nil || config.Displayer == nil {
		w.hub = clients.NewHub(clients.Config{
			Handlers:    w.hubHandlers(),
			Opener:      config.Opener,
			CheckOrigin: config.CheckOrigin,
			Log:         logger.With().Str("component", "clients").Logger(),
		})
		if config.Clients == nil {
			config.Clients = w.hub
		}
		if config.Windows == nil {
			config.Windows = w.hub
		}
		if config.Displayer == nil {
			config.Displayer = w.hub
		}
	}

	w.manager = lifecycle.NewManager(lifecycle.Config{
		Storage:  config.Storage,
		Version:  config.Version,
		Precache: config.Precache,
		Fetcher:  w.fetcher,
		Clients:  config.Clients,
		Log:      logger.With().Str("component", "lifecycle").Logger(),
	})

	w.relay = notify.NewRelay(notify.Config{
		Displayer: config.Displayer,
		Windows:   config.Windows,
		Origin:    config.AppOrigin,
		Defaults:  config.Notifications,
		Log:       logger.With().Str("component", "notify").Logger(),
	})

	return w
}

// Hub returns the websocket hub serving as the worker's clients, or nil if none was needed.
func (w *Worker) Hub() *clients.Hub {
	return w.hub
}

// Metrics returns a handler exposing the worker's metrics.
func (w *Worker) Metrics() http.Handler {
	return w.metrics.handler()
}

// Lifecycle returns the lifecycle manager of the worker.
func (w *Worker) Lifecycle() *lifecycle.Manager {
	return w.manager
}

// Start installs the worker and activates it right away,
// as the installed version always skips waiting.
func (w *Worker) Start(ctx context.Context) error {
	if err := Dispatch(ctx, w, Event{Kind: EventInstall}).Err(ctx); err != nil {
		return err
	}
	if !w.manager.SkipWaiting() {
		w.log.Info().Msg("Installed version is waiting for activation")
		return nil
	}
	return Dispatch(ctx, w, Event{Kind: EventActivate}).Err(ctx)
}

// ServeHTTP implements the http.Handler interface.
// Requests that are not intercepted are forwarded to the network and relayed verbatim.
func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	res, status, intercepted, err := w.resolve(r.Context(), r)
	if !intercepted {
		w.log.Trace().Msgf("proxying %s", r.URL.String())
		res, err = w.fetcher.Fetch(r.Context(), r)
	}
	if err != nil {
		w.log.Error().Err(err).Str("url", r.URL.String()).Msg("Could not get response")
		http.Error(rw, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	defer res.Body.Close()

	copyHeader(rw.Header(), res.Header)
	if intercepted {
		rw.Header().Set("Cache-Status", status.String())
	}
	rw.WriteHeader(res.StatusCode)
	bytesWritten, err := io.Copy(rw, res.Body)
	if err != nil {
		w.log.Error().Err(err).Msg("Could not write response body to client")
	}
	w.logRequest(r, res, status, intercepted)
	w.log.Trace().Msgf("Wrote body (%d bytes)", bytesWritten)
}

func (w *Worker) logRequest(r *http.Request, res *http.Response, status strategy.Status, intercepted bool) {
	ev := w.log.Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("sourceIp", getRequestSourceIp(r)).
		Int("code", res.StatusCode).
		Bool("intercepted", intercepted)
	if intercepted {
		ev = ev.
			Str("status", string(status.Status)).
			Str("fwd", string(status.FwdReason)).
			Str("source", status.Source()).
			Bool("stored", status.Stored)
	}
	ev.Msg("Sending response to client")
}

func getRequestSourceIp(r *http.Request) string {
	// RemoteAddr is in the format:
	// 1.2.3.4:10000 for ipv4
	// [1:2:3]:10000 for ipv6
	ipAndPort := r.RemoteAddr
	portSepIdx := strings.LastIndex(ipAndPort, ":")
	// if not found, return
	if portSepIdx < 0 {
		return ipAndPort
	}
	return ipAndPort[:portSepIdx]
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
