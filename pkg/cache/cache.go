// Package cache provides stage caching for the districting pipeline.
//
// Adjacency graphs are expensive to build on large unit tables and finished
// plans are expensive to compute, so both are cached keyed by the unit
// table's content fingerprint plus the settings that shaped the result.
// Backends:
//   - file: JSON entries under a directory tree, for CLI usage
//   - redis: shared cache for server deployments
//   - null: caching disabled
//
// Keys are produced by a Keyer so every caller derives them the same way.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Default entry lifetimes per key type.
const (
	// TTLAdjacency bounds cached adjacency graphs. Geometry changes rarely;
	// the fingerprint in the key invalidates naturally.
	TTLAdjacency = 30 * 24 * time.Hour

	// TTLPlan bounds cached finished plans.
	TTLPlan = 7 * 24 * time.Hour
)

// Cache is the interface all caching backends implement.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key was
	// present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of zero means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// AdjacencyKeyOpts distinguishes adjacency graphs built with different
// geometry settings.
type AdjacencyKeyOpts struct {
	MinSharedLength float64 `json:"min_shared_length"`
	Tolerance       float64 `json:"tolerance"`
}

// Keyer derives cache keys so the CLI and the server agree on them.
type Keyer interface {
	// AdjacencyKey keys an adjacency graph by table fingerprint and build
	// options.
	AdjacencyKey(fingerprint string, opts AdjacencyKeyOpts) string

	// PlanKey keys a finished plan by table fingerprint and the partition
	// configuration. options must be JSON-serializable.
	PlanKey(fingerprint string, options any) string
}

// DefaultKeyer hashes key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// AdjacencyKey implements Keyer.
func (DefaultKeyer) AdjacencyKey(fingerprint string, opts AdjacencyKeyOpts) string {
	return hashKey("adjacency", fingerprint, opts)
}

// PlanKey implements Keyer.
func (DefaultKeyer) PlanKey(fingerprint string, options any) string {
	return hashKey("plan", fingerprint, options)
}

// hashKey generates a cache key by hashing the components.
// The key format is: prefix:hash(parts...)
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

// Hash computes the SHA-256 hash of data as a 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
