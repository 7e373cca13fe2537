// Package store holds the MongoDB repositories for users, products, carts and
// orders.
package store

import (
	"context"
	"errors"
	"fmt"
	"plantify/apperr"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	UsersCollection    = "users"
	ProductsCollection = "products"
	CartsCollection    = "carts"
	OrdersCollection   = "orders"
)

// Store groups the repositories sharing one database
type Store struct {
	db       *mongo.Database
	Users    *UserStore
	Products *ProductStore
	Carts    *CartStore
	Orders   *OrderStore
}

// New creates the repositories; every call runs under timeout
func New(db *mongo.Database, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Store{
		db:       db,
		Users:    &UserStore{coll: db.Collection(UsersCollection), timeout: timeout},
		Products: &ProductStore{coll: db.Collection(ProductsCollection), timeout: timeout},
		Carts:    &CartStore{coll: db.Collection(CartsCollection), timeout: timeout},
		Orders:   &OrderStore{coll: db.Collection(OrdersCollection), timeout: timeout},
	}
}

// EnsureIndexes creates the unique and lookup indexes
func (s *Store) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ProductsCollection: {
			{
				Keys:    bson.D{{Key: "sellerId", Value: 1}, {Key: "name", Value: 1}, {Key: "category", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "sellerId", Value: 1}, {Key: "category", Value: 1}}},
		},
		CartsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		OrdersCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "orderStatus", Value: 1}}},
			{Keys: bson.D{{Key: "items.sellerId", Value: 1}}},
		},
	}

	for name, idx := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// translate maps driver errors onto application error kinds
func translate(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.NotFound(entity + " not found")
	case mongo.IsDuplicateKeyError(err):
		return apperr.Wrap(apperr.KindConflict, entity+" already exists", err)
	default:
		return fmt.Errorf("%s store: %w", entity, err)
	}
}

func decodeAll[T any](ctx context.Context, cursor *mongo.Cursor) ([]T, error) {
	defer cursor.Close(ctx)
	out := make([]T, 0)
	for cursor.Next(ctx) {
		var doc T
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, cursor.Err()
}
