package store

import "context"

// Storage is a set of named stores.
// The name of a store usually encodes a version tag, so that a new version
// can be populated side by side with the old one before the old one is deleted.
//
// Implementations must be thread-safe!
type Storage interface {
	// Open returns the store with the given name, creating it if it does not exist.
	Open(ctx context.Context, name string) (Store, error)
	// Handle returns a handle to the store with the given name without creating it.
	// Reads miss until the first write creates the store.
	Handle(name string) Store
	// Delete removes the store with the given name and all its entries.
	// It reports whether a store was found and deleted.
	Delete(ctx context.Context, name string) (bool, error)
	// Keys returns the names of all existing stores, in creation order.
	Keys(ctx context.Context) ([]string, error)
}

// Store maps request identities to serialized responses.
// There is no expiry: entries stay until overwritten, deleted,
// or the whole store is deleted.
// A handle stays usable after its name has been deleted from the storage:
// reads miss, and the first write recreates the store empty.
//
// Implementations must be thread-safe!
type Store interface {
	// Name returns the name the store was opened with.
	Name() string
	// Match returns the stored bytes for the given key, if any.
	Match(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores the bytes under the given key. The last write wins.
	Put(ctx context.Context, key string, bytes []byte) error
	// Delete removes the entry for the given key.
	// It reports whether an entry was found.
	Delete(ctx context.Context, key string) (bool, error)
	// Keys returns all keys in the store.
	Keys(ctx context.Context) ([]string, error)
}
