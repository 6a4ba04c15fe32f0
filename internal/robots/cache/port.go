package cache

import "time"

// Cache defines the port interface for robots.txt result caching.
// This interface follows the port-adapter pattern, allowing different
// cache implementations to be swapped without changing the robot logic.
//
// Values are opaque strings; implementations own expiry and are
// responsible for nothing beyond key-value storage.
type Cache interface {
	// Get retrieves a value from the cache by key.
	// Returns the cached value and true if found and unexpired.
	Get(key string) (string, bool)

	// Put stores a key-value pair with a time-to-live.
	// If the key already exists, the value and its TTL are overwritten.
	Put(key string, value string, ttl time.Duration)
}
