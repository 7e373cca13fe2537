package store

import (
	"context"
	"errors"
	"fmt"
	"plantify/apperr"
	"plantify/models"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OrderStore persists orders and applies item transitions atomically per document
type OrderStore struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewOrderStore(coll *mongo.Collection, timeout time.Duration) *OrderStore {
	return &OrderStore{coll: coll, timeout: timeout}
}

func (s *OrderStore) Create(ctx context.Context, o *models.Order) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, o)
	return translate(err, "Order")
}

func (s *OrderStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var order models.Order
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		return nil, translate(err, "Order")
	}
	return &order, nil
}

// HasActiveOrderFor reports whether buyerID holds an active order with a
// non-cancelled line for productID
func (s *OrderStore) HasActiveOrderFor(ctx context.Context, buyerID, productID primitive.ObjectID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	filter := bson.M{
		"userId":      buyerID,
		"orderStatus": bson.M{"$in": models.ActiveOrderStatuses},
		"items": bson.M{"$elemMatch": bson.M{
			"productId":  productID,
			"itemStatus": bson.M{"$ne": models.ItemCancelled},
		}},
	}
	n, err := s.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, translate(err, "Order")
	}
	return n > 0, nil
}

func (s *OrderStore) ListByBuyer(ctx context.Context, buyerID primitive.ObjectID) ([]models.Order, error) {
	return s.list(ctx, bson.M{"userId": buyerID})
}

// ListBySeller returns orders containing at least one line of sellerID
func (s *OrderStore) ListBySeller(ctx context.Context, sellerID primitive.ObjectID) ([]models.Order, error) {
	return s.list(ctx, bson.M{"items.sellerId": sellerID})
}

func (s *OrderStore) ListAll(ctx context.Context) ([]models.Order, error) {
	return s.list(ctx, bson.M{})
}

func (s *OrderStore) list(ctx context.Context, filter bson.M) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cursor, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, translate(err, "Order")
	}
	orders, err := decodeAll[models.Order](ctx, cursor)
	return orders, translate(err, "Order")
}

// TransitionItem moves one line from -> to only if it is still in from, and
// returns the order after the change. A line that moved concurrently yields
// an InvalidState error and nothing is written.
func (s *OrderStore) TransitionItem(ctx context.Context, orderID, itemID primitive.ObjectID, from, to models.ItemStatus) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	filter := bson.M{
		"_id":   orderID,
		"items": bson.M{"$elemMatch": bson.M{"_id": itemID, "itemStatus": from}},
	}
	set := bson.M{
		"items.$.itemStatus": to,
		"updatedAt":          time.Now().UTC(),
	}
	if to == models.ItemCancelled {
		set["items.$.canReorder"] = true
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var order models.Order
	err := s.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.InvalidState(fmt.Sprintf("Item is no longer %s", from))
	}
	if err != nil {
		return nil, translate(err, "Order")
	}
	return &order, nil
}

// SetStatus sets the aggregate status of orderID
func (s *OrderStore) SetStatus(ctx context.Context, orderID primitive.ObjectID, status models.OrderStatus) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": orderID}, bson.M{
		"$set": bson.M{"orderStatus": status, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return translate(err, "Order")
	}
	if res.MatchedCount == 0 {
		return translate(mongo.ErrNoDocuments, "Order")
	}
	return nil
}

// DeleteIfDeletable removes the buyer's order unless its status forbids it.
// It reports whether a document was removed.
func (s *OrderStore) DeleteIfDeletable(ctx context.Context, orderID, buyerID primitive.ObjectID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.coll.DeleteOne(ctx, bson.M{
		"_id":         orderID,
		"userId":      buyerID,
		"orderStatus": bson.M{"$nin": models.UndeletableOrderStatuses},
	})
	if err != nil {
		return false, translate(err, "Order")
	}
	return res.DeletedCount > 0, nil
}
