package server

import (
	"context"
	"fmt"

	"github.com/bookingd/apiserver/config"
	"github.com/bookingd/apiserver/internal/db"
	"github.com/bookingd/apiserver/internal/services"
	"github.com/bookingd/apiserver/internal/store/memstore"
	"github.com/bookingd/apiserver/internal/store/mongostore"
	"github.com/bookingd/apiserver/internal/store/pgstore"
)

// Repositories is an opened store driver.
type Repositories struct {
	Users    services.UserRepository
	Bookings services.BookingRepository
	close    func() error
}

// Close releases the driver's connections.
func (r *Repositories) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// OpenStore connects the store selected by cfg.StoreDriver. The mongo
// driver ensures its indexes on open so the unique email and username
// constraints always exist.
func OpenStore(ctx context.Context, cfg config.Config) (*Repositories, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		s, err := mongostore.Open(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("mongostore: %w", err)
		}
		return &Repositories{Users: s.Users(), Bookings: s.Bookings(), close: s.Close}, nil
	case config.StorePostgres:
		conn, err := db.Open(ctx, db.DSN(cfg.Database))
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		s := pgstore.New(conn)
		return &Repositories{Users: s.Users(), Bookings: s.Bookings(), close: s.Close}, nil
	case config.StoreMemory:
		s := memstore.New()
		return &Repositories{Users: s.Users(), Bookings: s.Bookings(), close: s.Close}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
