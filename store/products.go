package store

import (
	"context"
	"errors"
	"plantify/apperr"
	"plantify/models"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProductStore is the catalog
type ProductStore struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewProductStore(coll *mongo.Collection, timeout time.Duration) *ProductStore {
	return &ProductStore{coll: coll, timeout: timeout}
}

// ProductFilter narrows List; zero values match everything
type ProductFilter struct {
	SellerID primitive.ObjectID
	Category models.Category
}

func (f ProductFilter) bson() bson.M {
	filter := bson.M{}
	if !f.SellerID.IsZero() {
		filter["sellerId"] = f.SellerID
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	return filter
}

// Create inserts p; a duplicate (seller, name, category) is a conflict
func (s *ProductStore) Create(ctx context.Context, p *models.Product) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, p)
	return translate(err, "Product")
}

func (s *ProductStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var product models.Product
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&product); err != nil {
		return nil, translate(err, "Product")
	}
	return &product, nil
}

// List returns products matching f, newest first
func (s *ProductStore) List(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cursor, err := s.coll.Find(ctx, f.bson(), options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, translate(err, "Product")
	}
	products, err := decodeAll[models.Product](ctx, cursor)
	return products, translate(err, "Product")
}

// ProductChanges lists the fields an owner edit sets; nil fields are left
// alone. Stock is written only when set explicitly and ratings never.
type ProductChanges struct {
	Name        *string
	Description *string
	Category    *models.Category
	Price       *float64
	Stock       *int
	Images      []string
}

func (c ProductChanges) set(now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if c.Name != nil {
		set["name"] = *c.Name
	}
	if c.Description != nil {
		set["description"] = *c.Description
	}
	if c.Category != nil {
		set["category"] = *c.Category
	}
	if c.Price != nil {
		set["price"] = *c.Price
	}
	if c.Stock != nil {
		set["stock"] = *c.Stock
	}
	if len(c.Images) > 0 {
		set["images"] = c.Images
	}
	return set
}

// Update sets only the changed fields of id and returns the product after
// the write. A rename onto an existing (seller, name, category) is a conflict.
func (s *ProductStore) Update(ctx context.Context, id primitive.ObjectID, changes ProductChanges) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	update := bson.M{"$set": changes.set(time.Now().UTC())}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var product models.Product
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&product); err != nil {
		return nil, translate(err, "Product")
	}
	return &product, nil
}

// UpsertRating replaces the rating of rating.UserID on id, or appends it, in
// one pipeline update so concurrent raters never overwrite each other.
func (s *ProductStore) UpsertRating(ctx context.Context, id primitive.ObjectID, rating models.Rating) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	others := bson.M{"$filter": bson.M{
		"input": bson.M{"$ifNull": bson.A{"$ratings", bson.A{}}},
		"cond":  bson.M{"$ne": bson.A{"$$this.userId", rating.UserID}},
	}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"ratings":   bson.M{"$concatArrays": bson.A{others, bson.A{bson.M{"$literal": rating}}}},
			"updatedAt": time.Now().UTC(),
		}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var product models.Product
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, pipeline, opts).Decode(&product); err != nil {
		return nil, translate(err, "Product")
	}
	return &product, nil
}

func (s *ProductStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err, "Product")
	}
	if res.DeletedCount == 0 {
		return translate(mongo.ErrNoDocuments, "Product")
	}
	return nil
}

// Reserve decrements stock by quantity only if enough is left, in a single
// document update, and returns the product after the decrement.
func (s *ProductStore) Reserve(ctx context.Context, id primitive.ObjectID, quantity int) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	filter := bson.M{"_id": id, "stock": bson.M{"$gte": quantity}}
	update := bson.M{
		"$inc": bson.M{"stock": -quantity},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var product models.Product
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.InsufficientStock("Insufficient stock")
	}
	if err != nil {
		return nil, translate(err, "Product")
	}
	return &product, nil
}

// Restore increments stock by quantity and returns the product after the increment
func (s *ProductStore) Restore(ctx context.Context, id primitive.ObjectID, quantity int) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	update := bson.M{
		"$inc": bson.M{"stock": quantity},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var product models.Product
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&product); err != nil {
		return nil, translate(err, "Product")
	}
	return &product, nil
}
