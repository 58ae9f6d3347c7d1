// Package mongostore implements the user and booking repositories on
// MongoDB. Documents use string UUID _id values so identifiers look the
// same across every store driver.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	ColUsers    = "users"
	ColBookings = "bookings"
)

// Store owns the MongoDB client and hands out repository views.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to uri, pings the server and selects dbName.
func Open(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}

	return &Store{client: client, db: client.Database(dbName)}, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{col: s.col(ColUsers)}
}

func (s *Store) Bookings() *BookingRepository {
	return &BookingRepository{col: s.col(ColBookings)}
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// EnsureIndexes creates the unique email and username indexes along with
// the listing indexes. It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	type idx struct {
		col    string
		name   string
		keys   bson.D
		unique bool
	}

	indexes := []idx{
		{ColUsers, "users_email_key", bson.D{{Key: "email", Value: 1}}, true},
		{ColUsers, "users_username_key", bson.D{{Key: "username", Value: 1}}, true},
		{ColUsers, "users_created_at_idx", bson.D{{Key: "createdAt", Value: -1}}, false},

		{ColBookings, "bookings_user_idx", bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}, false},
		{ColBookings, "bookings_status_idx", bson.D{{Key: "status", Value: 1}}, false},
		{ColBookings, "bookings_created_at_idx", bson.D{{Key: "createdAt", Value: -1}}, false},
	}

	for _, i := range indexes {
		opts := options.Index().SetName(i.name)
		if i.unique {
			opts.SetUnique(true)
		}
		model := mongo.IndexModel{Keys: i.keys, Options: opts}
		if _, err := s.col(i.col).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index %s on %s: %w", i.name, i.col, err)
		}
	}
	return nil
}
