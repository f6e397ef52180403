// Package mongodb is the MongoDB backend for readings and the alert ledger.
// CloseActive uses a multi-document transaction, so the server must run as a
// replica set.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"basement-monitor/internal/models"
	"basement-monitor/internal/store"
)

const (
	readingsCollection = "readings"
	activeCollection   = "active_alerts"
	historyCollection  = "alert_history"
)

type Store struct {
	client   *mongo.Client
	readings *mongo.Collection
	active   *mongo.Collection
	history  *mongo.Collection
}

var _ store.Store = (*Store)(nil)

func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	db := client.Database(database)
	return &Store{
		client:   client,
		readings: db.Collection(readingsCollection),
		active:   db.Collection(activeCollection),
		history:  db.Collection(historyCollection),
	}, nil
}

// EnsureIndexes creates the unique active alert key and the lookup indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.active.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "dev_id", Value: 1}, {Key: "alert_type", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("dev_alert_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create active alert index: %w", err)
	}
	_, err = s.readings.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "dev_id", Value: 1}, {Key: "ts", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create readings index: %w", err)
	}
	_, err = s.history.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "dev_id", Value: 1}, {Key: "alert_type", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create history index: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) InsertReading(ctx context.Context, r models.Reading) error {
	if _, err := s.readings.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// RecentReadings breaks timestamp ties on _id, which grows with insertion.
func (s *Store) RecentReadings(ctx context.Context, deviceID string, limit int) ([]models.Reading, error) {
	opts := options.Find().SetSort(bson.D{{Key: "ts", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.readings.Find(ctx, bson.M{"dev_id": deviceID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	var out []models.Reading
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode readings: %w", err)
	}
	return out, nil
}

func (s *Store) CountReadings(ctx context.Context, f models.Filter) (int64, error) {
	return count(ctx, s.readings, filter(f, false))
}

func (s *Store) DeleteReadings(ctx context.Context, f models.Filter) (int64, error) {
	return deleteMany(ctx, s.readings, filter(f, false))
}

func (s *Store) ExistsActive(ctx context.Context, deviceID string, rt models.ReadingType) (bool, error) {
	n, err := s.active.CountDocuments(ctx, key(deviceID, rt), options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check active alert: %w", err)
	}
	return n > 0, nil
}

func (s *Store) InsertActive(ctx context.Context, a models.ActiveAlert) error {
	_, err := s.active.InsertOne(ctx, a)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicateAlert
	}
	if err != nil {
		return fmt.Errorf("failed to insert active alert: %w", err)
	}
	return nil
}

func (s *Store) GetActive(ctx context.Context, deviceID string, rt models.ReadingType) (models.ActiveAlert, error) {
	var a models.ActiveAlert
	err := s.active.FindOne(ctx, key(deviceID, rt)).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ActiveAlert{}, store.ErrAlertNotFound
	}
	if err != nil {
		return models.ActiveAlert{}, fmt.Errorf("failed to get active alert: %w", err)
	}
	a.OriginatedAt = a.OriginatedAt.UTC()
	a.LastNotifiedAt = a.LastNotifiedAt.UTC()
	return a, nil
}

func (s *Store) UpdateLastNotified(ctx context.Context, deviceID string, rt models.ReadingType, ts time.Time) error {
	res, err := s.active.UpdateOne(ctx, key(deviceID, rt), bson.M{"$set": bson.M{"last_notified_at": ts}})
	if err != nil {
		return fmt.Errorf("failed to update last notified: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrAlertNotFound
	}
	return nil
}

func (s *Store) CloseActive(ctx context.Context, deviceID string, rt models.ReadingType, clearedAt time.Time) (models.AlertHistoryRecord, error) {
	sess, err := s.client.StartSession()
	if err != nil {
		return models.AlertHistoryRecord{}, fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(ctx)

	out, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var a models.ActiveAlert
		if err := s.active.FindOneAndDelete(sc, key(deviceID, rt)).Decode(&a); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, store.ErrAlertNotFound
			}
			return nil, fmt.Errorf("failed to delete active alert: %w", err)
		}
		rec := models.AlertHistoryRecord{
			ID:           uuid.NewString(),
			DeviceID:     a.DeviceID,
			ReadingType:  a.ReadingType,
			OriginatedAt: a.OriginatedAt.UTC(),
			ClearedAt:    clearedAt,
		}
		if _, err := s.history.InsertOne(sc, rec); err != nil {
			return nil, fmt.Errorf("failed to insert alert history: %w", err)
		}
		return rec, nil
	})
	if err != nil {
		return models.AlertHistoryRecord{}, err
	}
	return out.(models.AlertHistoryRecord), nil
}

func (s *Store) CountActive(ctx context.Context, f models.Filter) (int64, error) {
	return count(ctx, s.active, filter(f, true))
}

func (s *Store) DeleteActive(ctx context.Context, f models.Filter) (int64, error) {
	return deleteMany(ctx, s.active, filter(f, true))
}

func (s *Store) CountHistory(ctx context.Context, f models.Filter) (int64, error) {
	return count(ctx, s.history, filter(f, true))
}

func (s *Store) DeleteHistory(ctx context.Context, f models.Filter) (int64, error) {
	return deleteMany(ctx, s.history, filter(f, true))
}

func key(deviceID string, rt models.ReadingType) bson.M {
	return bson.M{"dev_id": deviceID, "alert_type": string(rt)}
}

// filter builds a query document for f; readings have no alert_type.
func filter(f models.Filter, withType bool) bson.M {
	q := bson.M{}
	if f.DeviceID != "" {
		q["dev_id"] = f.DeviceID
	}
	if withType && f.ReadingType != "" {
		q["alert_type"] = string(f.ReadingType)
	}
	return q
}

func count(ctx context.Context, c *mongo.Collection, q bson.M) (int64, error) {
	n, err := c.CountDocuments(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", c.Name(), err)
	}
	return n, nil
}

func deleteMany(ctx context.Context, c *mongo.Collection, q bson.M) (int64, error) {
	res, err := c.DeleteMany(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s: %w", c.Name(), err)
	}
	return res.DeletedCount, nil
}
