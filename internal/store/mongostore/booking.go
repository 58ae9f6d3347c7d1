package mongostore

import (
	"context"
	"time"

	"github.com/bookingd/apiserver/internal/store"
	"github.com/bookingd/apiserver/types"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type BookingRepository struct {
	col *mongo.Collection
}

func (r *BookingRepository) Create(ctx context.Context, booking types.Booking) (types.Booking, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.ID = store.NewID()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	if _, err := r.col.InsertOne(ctx, booking); err != nil {
		return types.Booking{}, wrapError(err)
	}
	return booking, nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (types.Booking, error) {
	if !store.ValidID(id) {
		return types.Booking{}, store.ErrInvalidID
	}
	return findOne[types.Booking](ctx, r.col, bson.D{{Key: "_id", Value: id}})
}

func (r *BookingRepository) Update(ctx context.Context, booking types.Booking) (types.Booking, error) {
	if !store.ValidID(booking.ID) {
		return types.Booking{}, store.ErrInvalidID
	}
	booking.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if err := replaceByID(ctx, r.col, booking.ID, booking); err != nil {
		return types.Booking{}, err
	}
	return booking, nil
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]types.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	return findMany[types.Booking](ctx, r.col, bson.D{{Key: "user", Value: userID}}, opts)
}

func (r *BookingRepository) List(ctx context.Context, filter store.BookingFilter) ([]types.Booking, int, error) {
	q := bson.D{}
	if filter.Status != "" {
		q = append(q, bson.E{Key: "status", Value: filter.Status})
	}
	if filter.Search != "" {
		q = append(q, searchAny(filter.Search, "notes", "platformDetails", "platform"))
	}
	return findPage[types.Booking](ctx, r.col, q, filter.Page)
}
