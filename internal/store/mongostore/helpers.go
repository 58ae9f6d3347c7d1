package mongostore

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/bookingd/apiserver/internal/store"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// wrapError translates driver errors into store errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return &store.DuplicateError{Fields: store.DuplicateFields(duplicateIndexes(err))}
	}
	return err
}

// duplicateIndexes returns the names of the unique indexes an E11000 error
// reports, leaving out the duplicated values.
func duplicateIndexes(err error) string {
	messages := []string{err.Error()}
	var we mongo.WriteException
	if errors.As(err, &we) && len(we.WriteErrors) > 0 {
		messages = messages[:0]
		for _, e := range we.WriteErrors {
			messages = append(messages, e.Message)
		}
	}

	names := make([]string, 0, len(messages))
	for _, msg := range messages {
		names = append(names, indexName(msg))
	}
	return strings.Join(names, " ")
}

// indexName cuts "... index: <name> dup key: {...}" down to <name>.
func indexName(msg string) string {
	if i := strings.Index(msg, "index: "); i >= 0 {
		msg = msg[i+len("index: "):]
	}
	if i := strings.Index(msg, " dup key"); i >= 0 {
		msg = msg[:i]
	}
	return strings.TrimSpace(msg)
}

func findOne[T any](ctx context.Context, col *mongo.Collection, filter bson.D) (T, error) {
	var result T
	if err := col.FindOne(ctx, filter).Decode(&result); err != nil {
		return result, wrapError(err)
	}
	return result, nil
}

func findMany[T any](ctx context.Context, col *mongo.Collection, filter bson.D, opts ...options.Lister[options.FindOptions]) ([]T, error) {
	cursor, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer cursor.Close(ctx)

	results := []T{}
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// findPage counts the documents matching filter and returns one page of
// them, newest first.
func findPage[T any](ctx context.Context, col *mongo.Collection, filter bson.D, page store.Page) ([]T, int, error) {
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, wrapError(err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit))
	items, err := findMany[T](ctx, col, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}

func replaceByID(ctx context.Context, col *mongo.Collection, id string, doc any) error {
	res, err := col.ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}}, doc)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func deleteByID(ctx context.Context, col *mongo.Collection, id string) error {
	res, err := col.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return wrapError(err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// searchAny matches needle as a case-insensitive literal substring of any
// of fields.
func searchAny(needle string, fields ...string) bson.E {
	pattern := bson.Regex{Pattern: regexp.QuoteMeta(needle), Options: "i"}
	or := make(bson.A, 0, len(fields))
	for _, f := range fields {
		or = append(or, bson.D{{Key: f, Value: pattern}})
	}
	return bson.E{Key: "$or", Value: or}
}
