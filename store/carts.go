package store

import (
	"context"
	"plantify/models"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CartStore keeps one cart per buyer
type CartStore struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewCartStore(coll *mongo.Collection, timeout time.Duration) *CartStore {
	return &CartStore{coll: coll, timeout: timeout}
}

// GetOrCreate returns the buyer's cart, creating an empty one on first use
func (s *CartStore) GetOrCreate(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now().UTC()
	update := bson.M{
		"$setOnInsert": bson.M{
			"userId":    userID,
			"items":     []models.CartItem{},
			"createdAt": now,
			"updatedAt": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var cart models.Cart
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"userId": userID}, update, opts).Decode(&cart); err != nil {
		return nil, translate(err, "Cart")
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return &cart, nil
}

// FindByUser returns the buyer's cart or NotFound
func (s *CartStore) FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var cart models.Cart
	if err := s.coll.FindOne(ctx, bson.M{"userId": userID}).Decode(&cart); err != nil {
		return nil, translate(err, "Cart")
	}
	return &cart, nil
}

// SaveItems writes the item list of cart
func (s *CartStore) SaveItems(ctx context.Context, cart *models.Cart) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cart.UpdatedAt = time.Now().UTC()
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": cart.ID}, bson.M{
		"$set": bson.M{"items": cart.Items, "updatedAt": cart.UpdatedAt},
	})
	if err != nil {
		return translate(err, "Cart")
	}
	if res.MatchedCount == 0 {
		return translate(mongo.ErrNoDocuments, "Cart")
	}
	return nil
}
