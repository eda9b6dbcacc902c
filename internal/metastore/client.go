// Package metastore provides the client surface to the upstream Hive-style
// metastore: current id, notification ranges and full snapshots.
package metastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/syntrixbase/metasync/internal/hms"
)

// ErrOutOfSync means the upstream log no longer retains the event right
// after the requested position; the follower must re-baseline from a full
// snapshot.
var ErrOutOfSync = errors.New("metastore: requested position no longer retained upstream")

// Snapshot is a complete authorization-relevant image of the metastore.
// ID equals the last event id included in the image.
type Snapshot struct {
	ID    int64               `json:"id"`
	Paths map[string][]string `json:"paths"`
}

// Client talks to the upstream metastore. Implementations must be safe to
// Connect/Disconnect repeatedly; the follower cycles the connection on every
// leadership change and transport error.
type Client interface {
	// Connect establishes the transport. Calling Connect on a connected
	// client is a no-op.
	Connect(ctx context.Context) error

	// Disconnect releases the transport. Safe to call when not connected.
	Disconnect() error

	// CurrentNotificationID returns the upstream's current maximum event id.
	CurrentNotificationID(ctx context.Context) (int64, error)

	// FetchNotifications returns up to max events with id strictly greater
	// than after, in id order. Returns ErrOutOfSync when the upstream has
	// truncated past the requested position.
	FetchNotifications(ctx context.Context, after int64, max int) ([]hms.Event, error)

	// FullSnapshot produces a full image of the metastore state.
	FullSnapshot(ctx context.Context) (*Snapshot, error)
}

// Config configures the HTTP metastore client.
type Config struct {
	// BaseURL is the metastore notification API endpoint.
	BaseURL string `yaml:"base_url"`

	// RequestTimeout bounds individual HTTP calls.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// FetchBatchSize caps how many notifications one fetch may return.
	FetchBatchSize int `yaml:"fetch_batch_size"`
}

// DefaultConfig returns defaults for a local metastore.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:9083",
		RequestTimeout: 30 * time.Second,
		FetchBatchSize: 1000,
	}
}

// Validate checks the configuration for obvious mistakes.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("metastore: base_url is required")
	}
	if c.FetchBatchSize <= 0 {
		return fmt.Errorf("metastore: fetch_batch_size must be positive")
	}
	return nil
}
