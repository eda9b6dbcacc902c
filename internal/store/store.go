// Package store defines the persistence gateway the follower writes through.
// Implementations live in subpackages (mongo).
package store

import (
	"context"
	"errors"

	"github.com/syntrixbase/metasync/internal/hms"
	"github.com/syntrixbase/metasync/internal/store/countwait"
)

// PathsImage maps an HDFS path to the authorizable objects that own it.
type PathsImage map[string][]string

const (
	// EmptyNotificationID is the sentinel for "no notification persisted".
	EmptyNotificationID int64 = 0

	// EmptyPathsImageID is the sentinel for "no path image persisted".
	EmptyPathsImageID int64 = 0
)

// ErrConflict is returned by ApplyEvent when the event id has already been
// recorded. The caller decides whether that means a harmless re-delivery or
// a re-seek of the stream.
var ErrConflict = errors.New("store: event id already persisted")

// Store is the durable home of permissions, the path image and the
// follower's bookkeeping counters.
//
// All writes are atomic per call; the follower never implements compensating
// actions on top of it.
type Store interface {
	// GetMaxNotificationID returns the highest fully applied event id, or
	// EmptyNotificationID when nothing has been applied.
	GetMaxNotificationID(ctx context.Context) (int64, error)

	// IsNotificationsEmpty reports whether no notifications were ever
	// persisted.
	IsNotificationsEmpty(ctx context.Context) (bool, error)

	// IsPathsImageEmpty reports whether no path image was ever persisted.
	IsPathsImageEmpty(ctx context.Context) (bool, error)

	// GetLastProcessedImageID returns the id of the most recent persisted
	// full snapshot, or EmptyPathsImageID.
	GetLastProcessedImageID(ctx context.Context) (int64, error)

	// PersistFullPathsImage atomically replaces the path image and sets the
	// max notification id to imageID.
	PersistFullPathsImage(ctx context.Context, image PathsImage, imageID int64) error

	// PersistLastProcessedID advances the max notification id without
	// applying any authorization effect. Used for semantically empty events
	// so the stream head still moves.
	PersistLastProcessedID(ctx context.Context, id int64) error

	// ApplyEvent applies the event's authorization mutation and records its
	// id in one step. Returns whether the mutation changed anything, or
	// ErrConflict when the id was already recorded.
	ApplyEvent(ctx context.Context, ev hms.Event) (bool, error)

	// CounterWait returns the shared rendezvous readers block on.
	CounterWait() *countwait.CounterWait

	// Close releases the underlying connections.
	Close(ctx context.Context) error
}
