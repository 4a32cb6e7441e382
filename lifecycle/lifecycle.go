package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	requestkey "github.com/always-cache/offline-worker/pkg/request-key"
	serializer "github.com/always-cache/offline-worker/pkg/response-serializer"
	"github.com/always-cache/offline-worker/store"
	"github.com/always-cache/offline-worker/strategy"
)

// ErrNotInstalled is returned when activating a version whose install has not succeeded.
var ErrNotInstalled = errors.New("version is not installed")

type State int

const (
	StateParsed State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActivated
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateRedundant:
		return "redundant"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const (
	// MessageForceUpdate asks for every store to be deleted.
	MessageForceUpdate = "FORCE_UPDATE"
	// MessageCacheCleared is broadcast to all clients after a forced invalidation.
	MessageCacheCleared = "CACHE_CLEARED"
)

// Message is a command sent to the worker, or a notice sent by it to clients.
type Message struct {
	Type string `json:"type"`
}

// Clients are the page contexts controlled by the worker.
type Clients interface {
	// Claim takes control of all open clients without waiting for them to reload.
	Claim(ctx context.Context) error
	// Broadcast sends the message to every connected client.
	Broadcast(ctx context.Context, msg any) error
}

type Config struct {
	Storage store.Storage
	// Version tag of the current store. Every other store is stale once this version activates.
	Version string
	// Paths that must be stored before the version counts as installed.
	Precache []string
	Fetcher  strategy.Fetcher
	Clients  Clients
	Log      zerolog.Logger
}

// Manager owns creation, pruning and invalidation of stores.
type Manager struct {
	storage  store.Storage
	version  string
	precache []string
	fetcher  strategy.Fetcher
	clients  Clients
	log      zerolog.Logger

	mutex       sync.Mutex
	state       State
	skipWaiting bool
}

func NewManager(config Config) *Manager {
	return &Manager{
		storage:  config.Storage,
		version:  config.Version,
		precache: config.Precache,
		fetcher:  config.Fetcher,
		clients:  config.Clients,
		log:      config.Log.With().Str("version", config.Version).Logger(),
	}
}

func (m *Manager) Version() string {
	return m.version
}

func (m *Manager) State() State {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.state
}

// SkipWaiting reports whether the installed version asked to be activated
// without waiting for existing clients to go away.
func (m *Manager) SkipWaiting() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.skipWaiting
}

func (m *Manager) setState(s State) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.log.Debug().Str("from", m.state.String()).Str("to", s.String()).Msg("Lifecycle transition")
	m.state = s
}

// Store returns the store of the current version.
// It is not created by reading. After an invalidation the first write recreates it empty.
func (m *Manager) Store() store.Store {
	return m.storage.Handle(m.version)
}

// Install populates the store of the current version with the precache set.
// It is atomic from the caller's point of view: every entry is fetched before anything is written,
// and if writing fails part way, a store created by this install is deleted again.
// On failure the version becomes redundant and can never be activated.
func (m *Manager) Install(ctx context.Context) error {
	m.setState(StateInstalling)
	m.log.Info().Int("assets", len(m.precache)).Msg("Installing")

	snapshots, err := m.fetchPrecache(ctx)
	if err != nil {
		m.setState(StateRedundant)
		m.log.Error().Err(err).Msg("Install failed")
		return fmt.Errorf("install %s: %w", m.version, err)
	}

	if err := m.writePrecache(ctx, snapshots); err != nil {
		m.setState(StateRedundant)
		m.log.Error().Err(err).Msg("Install failed")
		return fmt.Errorf("install %s: %w", m.version, err)
	}

	m.mutex.Lock()
	m.skipWaiting = true
	m.mutex.Unlock()
	m.setState(StateInstalled)
	m.log.Info().Msg("Installed")
	return nil
}

func (m *Manager) fetchPrecache(ctx context.Context) ([]serializer.Snapshot, error) {
	snapshots := make([]serializer.Snapshot, len(m.precache))
	g, gCtx := errgroup.WithContext(ctx)
	for i, path := range m.precache {
		i, path := i, path
		g.Go(func() error {
			req, err := http.NewRequestWithContext(gCtx, http.MethodGet, path, nil)
			if err != nil {
				return fmt.Errorf("precache %s: %w", path, err)
			}
			res, err := m.fetcher.Fetch(gCtx, req)
			if err != nil {
				return fmt.Errorf("precache %s: %w", path, err)
			}
			snap, err := serializer.Capture(res)
			if err != nil {
				return fmt.Errorf("precache %s: %w", path, err)
			}
			if snap.StatusCode < 200 || snap.StatusCode > 299 {
				return fmt.Errorf("precache %s: unexpected status %d", path, snap.StatusCode)
			}
			m.log.Trace().Str("path", path).Msg("Fetched precache asset")
			snapshots[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (m *Manager) writePrecache(ctx context.Context, snapshots []serializer.Snapshot) error {
	names, err := m.storage.Keys(ctx)
	if err != nil {
		return err
	}
	existed := false
	for _, name := range names {
		if name == m.version {
			existed = true
		}
	}

	st, err := m.storage.Open(ctx, m.version)
	if err != nil {
		return err
	}
	for i, path := range m.precache {
		if err := st.Put(ctx, requestkey.ForPath(path), snapshots[i].Bytes()); err != nil {
			if !existed {
				if _, delErr := m.storage.Delete(ctx, m.version); delErr != nil {
					m.log.Warn().Err(delErr).Msg("Could not delete incomplete store")
				}
			}
			return fmt.Errorf("precache %s: %w", path, err)
		}
	}
	return nil
}

// Activate deletes every store that does not belong to the current version,
// then takes control of all open clients.
// Deletion is best effort: a failure on one store does not stop the others from being deleted.
func (m *Manager) Activate(ctx context.Context) error {
	if s := m.State(); s != StateInstalled {
		return fmt.Errorf("activate %s (state %s): %w", m.version, s, ErrNotInstalled)
	}
	m.setState(StateActivating)
	m.log.Info().Msg("Activating")

	names, err := m.storage.Keys(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("Could not list stores")
	}
	for _, name := range names {
		if name == m.version {
			continue
		}
		m.log.Debug().Str("store", name).Msg("Deleting old store")
		if _, err := m.storage.Delete(ctx, name); err != nil {
			m.log.Warn().Err(err).Str("store", name).Msg("Could not delete old store")
		}
	}

	if m.clients != nil {
		if err := m.clients.Claim(ctx); err != nil {
			m.log.Warn().Err(err).Msg("Could not claim clients")
		}
	}
	m.setState(StateActivated)
	m.log.Info().Msg("Activated")
	return nil
}

// ForceInvalidate deletes every store unconditionally and tells all clients about it.
// Calling it when there is nothing to delete is not an error.
func (m *Manager) ForceInvalidate(ctx context.Context) error {
	names, err := m.storage.Keys(ctx)
	if err != nil {
		return fmt.Errorf("could not list stores: %w", err)
	}
	for _, name := range names {
		if _, err := m.storage.Delete(ctx, name); err != nil {
			m.log.Warn().Err(err).Str("store", name).Msg("Could not delete store")
		}
	}
	m.log.Info().Int("stores", len(names)).Msg("All stores cleared")

	if m.clients != nil {
		if err := m.clients.Broadcast(ctx, Message{Type: MessageCacheCleared}); err != nil {
			m.log.Warn().Err(err).Msg("Could not notify clients")
		}
	}
	return nil
}

// HandleMessage runs the command in msg. Unknown commands are ignored.
func (m *Manager) HandleMessage(ctx context.Context, msg Message) error {
	switch msg.Type {
	case MessageForceUpdate:
		return m.ForceInvalidate(ctx)
	default:
		m.log.Trace().Str("type", msg.Type).Msg("Ignoring message")
		return nil
	}
}
