// Package mongo implements the persistence gateway on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/syntrixbase/metasync/internal/hms"
	"github.com/syntrixbase/metasync/internal/store"
	"github.com/syntrixbase/metasync/internal/store/config"
	"github.com/syntrixbase/metasync/internal/store/countwait"
)

const (
	collNotifications = "hms_notifications"
	collPaths         = "authz_paths"
	collPrivileges    = "authz_privileges"
	collBookkeeping   = "follower_bookkeeping"

	// Single bookkeeping document per deployment.
	bookkeepingID = "hms_follower"
)

// Store implements store.Store on a MongoDB database.
type Store struct {
	client    *mongo.Client
	db        *mongo.Database
	server    string
	opTimeout time.Duration
	cw        *countwait.CounterWait
}

type notificationDoc struct {
	ID          int64     `bson:"_id"`
	Type        string    `bson:"event_type,omitempty"`
	Object      string    `bson:"object,omitempty"`
	Applied     bool      `bson:"applied"`
	TimestampMs int64     `bson:"timestamp_ms,omitempty"`
	RecordedAt  time.Time `bson:"recorded_at"`
}

type bookkeepingDoc struct {
	ID                string    `bson:"_id"`
	MaxNotificationID int64     `bson:"max_notification_id"`
	LastImageID       int64     `bson:"last_image_id"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

type pathDoc struct {
	Path    string   `bson:"_id"`
	Objects []string `bson:"objects"`
	ImageID int64    `bson:"image_id,omitempty"`
}

// New connects to MongoDB and returns a ready Store. serverName scopes
// privilege mutations to the authorization server this deployment serves.
func New(ctx context.Context, cfg config.Config, serverName string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Store{
		client:    client,
		db:        client.Database(cfg.Database),
		server:    serverName,
		opTimeout: cfg.OperationTimeout,
		cw:        countwait.New(),
	}, nil
}

// opContext bounds a single store operation when the caller brought no
// deadline of its own.
func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// EnsureIndexes creates the indexes the mutation paths rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.db.Collection(collPrivileges).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "server", Value: 1}, {Key: "object", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create privilege index: %w", err)
	}
	_, err = s.db.Collection(collPaths).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "objects", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create paths index: %w", err)
	}
	return nil
}

func (s *Store) GetMaxNotificationID(ctx context.Context) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	doc, err := s.bookkeeping(ctx)
	if err != nil {
		return 0, err
	}
	if doc == nil {
		return store.EmptyNotificationID, nil
	}
	return doc.MaxNotificationID, nil
}

func (s *Store) GetLastProcessedImageID(ctx context.Context) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	doc, err := s.bookkeeping(ctx)
	if err != nil {
		return 0, err
	}
	if doc == nil {
		return store.EmptyPathsImageID, nil
	}
	return doc.LastImageID, nil
}

func (s *Store) IsNotificationsEmpty(ctx context.Context) (bool, error) {
	return s.isEmpty(ctx, collNotifications)
}

func (s *Store) IsPathsImageEmpty(ctx context.Context) (bool, error) {
	return s.isEmpty(ctx, collPaths)
}

func (s *Store) isEmpty(ctx context.Context, coll string) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	n, err := s.db.Collection(coll).CountDocuments(ctx, bson.M{}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count %s: %w", coll, err)
	}
	return n == 0, nil
}

// PersistFullPathsImage replaces the whole path image and re-bases the
// notification counter in a single transaction.
func (s *Store) PersistFullPathsImage(ctx context.Context, image store.PathsImage, imageID int64) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		paths := s.db.Collection(collPaths)
		if _, err := paths.DeleteMany(sc, bson.M{}); err != nil {
			return nil, fmt.Errorf("failed to clear path image: %w", err)
		}

		if len(image) > 0 {
			docs := make([]interface{}, 0, len(image))
			for path, objects := range image {
				docs = append(docs, pathDoc{Path: path, Objects: objects, ImageID: imageID})
			}
			if _, err := paths.InsertMany(sc, docs); err != nil {
				return nil, fmt.Errorf("failed to insert path image: %w", err)
			}
		}

		update := bson.M{"$set": bson.M{
			"max_notification_id": imageID,
			"last_image_id":       imageID,
			"updated_at":          time.Now(),
		}}
		opts := options.Update().SetUpsert(true)
		if _, err := s.db.Collection(collBookkeeping).UpdateByID(sc, bookkeepingID, update, opts); err != nil {
			return nil, fmt.Errorf("failed to update bookkeeping: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist full paths image %d: %w", imageID, err)
	}
	return nil
}

// PersistLastProcessedID records an event id without any authorization
// effect. Re-recording the same id is not an error.
func (s *Store) PersistLastProcessedID(ctx context.Context, id int64) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	doc := notificationDoc{ID: id, Applied: false, RecordedAt: time.Now()}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.db.Collection(collNotifications).ReplaceOne(ctx, bson.M{"_id": id}, doc, opts); err != nil {
		return fmt.Errorf("failed to record notification %d: %w", id, err)
	}
	return s.advanceMaxID(ctx, id)
}

// ApplyEvent records the event id and applies its authorization effect in a
// single transaction, so a failed effect never leaves the id behind as a
// durable no-op. A duplicate id surfaces as store.ErrConflict and nothing is
// mutated.
func (s *Store) ApplyEvent(ctx context.Context, ev hms.Event) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	doc := notificationDoc{
		ID:          ev.ID,
		Type:        string(ev.Type),
		Object:      ev.Object(),
		Applied:     true,
		TimestampMs: ev.TimestampMs,
		RecordedAt:  time.Now(),
	}

	session, err := s.client.StartSession()
	if err != nil {
		return false, fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := s.db.Collection(collNotifications).InsertOne(sc, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return false, store.ErrConflict
			}
			return false, fmt.Errorf("failed to record notification %d: %w", ev.ID, err)
		}
		applied, err := s.applyEffect(sc, ev)
		if err != nil {
			return false, err
		}
		if err := s.advanceMaxID(sc, ev.ID); err != nil {
			return false, err
		}
		return applied, nil
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return false, store.ErrConflict
		}
		return false, err
	}
	applied, _ := result.(bool)
	return applied, nil
}

func (s *Store) CounterWait() *countwait.CounterWait {
	return s.cw
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) bookkeeping(ctx context.Context) (*bookkeepingDoc, error) {
	var doc bookkeepingDoc
	err := s.db.Collection(collBookkeeping).FindOne(ctx, bson.M{"_id": bookkeepingID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read bookkeeping: %w", err)
	}
	return &doc, nil
}

func (s *Store) advanceMaxID(ctx context.Context, id int64) error {
	update := bson.M{
		"$max": bson.M{"max_notification_id": id},
		"$set": bson.M{"updated_at": time.Now()},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := s.db.Collection(collBookkeeping).UpdateByID(ctx, bookkeepingID, update, opts); err != nil {
		return fmt.Errorf("failed to advance max notification id to %d: %w", id, err)
	}
	return nil
}

// applyEffect translates one event into path image and privilege mutations.
// Returns false when the event turned out to be a no-op against the current
// state.
func (s *Store) applyEffect(ctx context.Context, ev hms.Event) (bool, error) {
	obj := ev.Object()
	switch ev.Type {
	case hms.EventCreateDatabase, hms.EventCreateTable, hms.EventAddPartition:
		if ev.Location == "" {
			return false, nil
		}
		return s.addPathMapping(ctx, ev.Location, obj)

	case hms.EventDropDatabase, hms.EventDropTable:
		pathsChanged, err := s.removeObjectMappings(ctx, obj)
		if err != nil {
			return false, err
		}
		privsDropped, err := s.dropPrivileges(ctx, obj)
		if err != nil {
			return false, err
		}
		return pathsChanged || privsDropped, nil

	case hms.EventDropPartition:
		if ev.Location == "" {
			return false, nil
		}
		return s.removePathMapping(ctx, ev.Location, obj)

	case hms.EventAlterDatabase, hms.EventAlterTable, hms.EventAlterPartition:
		if ev.OldLocation != "" && ev.OldLocation != ev.Location {
			removed, err := s.removePathMapping(ctx, ev.OldLocation, obj)
			if err != nil {
				return false, err
			}
			if ev.Location == "" {
				return removed, nil
			}
			added, err := s.addPathMapping(ctx, ev.Location, obj)
			if err != nil {
				return false, err
			}
			return removed || added, nil
		}
		if ev.Location != "" {
			return s.addPathMapping(ctx, ev.Location, obj)
		}
		return false, nil

	default:
		return false, nil
	}
}

func (s *Store) addPathMapping(ctx context.Context, path, obj string) (bool, error) {
	update := bson.M{"$addToSet": bson.M{"objects": obj}}
	opts := options.Update().SetUpsert(true)
	res, err := s.db.Collection(collPaths).UpdateByID(ctx, path, update, opts)
	if err != nil {
		return false, fmt.Errorf("failed to map path %q: %w", path, err)
	}
	return res.ModifiedCount > 0 || res.UpsertedCount > 0, nil
}

func (s *Store) removePathMapping(ctx context.Context, path, obj string) (bool, error) {
	res, err := s.db.Collection(collPaths).UpdateByID(ctx, path, bson.M{"$pull": bson.M{"objects": obj}})
	if err != nil {
		return false, fmt.Errorf("failed to unmap path %q: %w", path, err)
	}
	if err := s.pruneEmptyPaths(ctx); err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (s *Store) removeObjectMappings(ctx context.Context, obj string) (bool, error) {
	coll := s.db.Collection(collPaths)
	res, err := coll.UpdateMany(ctx, bson.M{"objects": obj}, bson.M{"$pull": bson.M{"objects": obj}})
	if err != nil {
		return false, fmt.Errorf("failed to unmap object %q: %w", obj, err)
	}
	if err := s.pruneEmptyPaths(ctx); err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (s *Store) pruneEmptyPaths(ctx context.Context) error {
	_, err := s.db.Collection(collPaths).DeleteMany(ctx, bson.M{"objects": bson.M{"$size": 0}})
	if err != nil {
		return fmt.Errorf("failed to prune empty paths: %w", err)
	}
	return nil
}

// objectPattern matches an authorizable object and everything under it, so
// dropping a database revokes its tables' privileges too.
func objectPattern(obj string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(obj) + "(\\..*)?$"}
}

// dropPrivileges revokes privileges on the object and everything under it.
func (s *Store) dropPrivileges(ctx context.Context, obj string) (bool, error) {
	filter := bson.M{"server": s.server, "object": objectPattern(obj)}
	res, err := s.db.Collection(collPrivileges).DeleteMany(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("failed to drop privileges for %q: %w", obj, err)
	}
	return res.DeletedCount > 0, nil
}
