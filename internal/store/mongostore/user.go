package mongostore

import (
	"context"
	"time"

	"github.com/bookingd/apiserver/internal/store"
	"github.com/bookingd/apiserver/types"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type UserRepository struct {
	col *mongo.Collection
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	if !store.ValidID(id) {
		return types.User{}, store.ErrInvalidID
	}
	return findOne[types.User](ctx, r.col, bson.D{{Key: "_id", Value: id}})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return findOne[types.User](ctx, r.col, bson.D{{Key: "email", Value: email}})
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return findOne[types.User](ctx, r.col, bson.D{{Key: "username", Value: username}})
}

func (r *UserRepository) ListByIDs(ctx context.Context, ids []string) ([]types.User, error) {
	if len(ids) == 0 {
		return []types.User{}, nil
	}
	filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}
	return findMany[types.User](ctx, r.col, filter)
}

func (r *UserRepository) List(ctx context.Context, filter store.UserFilter) ([]types.User, int, error) {
	q := bson.D{}
	if filter.Search != "" {
		q = append(q, searchAny(filter.Search, "email", "username", "firstName", "lastName", "phone"))
	}
	if filter.Role != "" {
		q = append(q, bson.E{Key: "role", Value: filter.Role})
	}
	if filter.Banned != nil {
		q = append(q, bson.E{Key: "isBanned", Value: *filter.Banned})
	}
	return findPage[types.User](ctx, r.col, q, filter.Page)
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	user.ID = store.NewID()
	user.CreatedAt = now
	user.UpdatedAt = now
	if _, err := r.col.InsertOne(ctx, user); err != nil {
		return types.User{}, wrapError(err)
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	if !store.ValidID(user.ID) {
		return types.User{}, store.ErrInvalidID
	}
	user.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if err := replaceByID(ctx, r.col, user.ID, user); err != nil {
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if !store.ValidID(id) {
		return store.ErrInvalidID
	}
	return deleteByID(ctx, r.col, id)
}
