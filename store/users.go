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

// UserStore is the account directory
type UserStore struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// NewUserStore wraps an existing collection
func NewUserStore(coll *mongo.Collection, timeout time.Duration) *UserStore {
	return &UserStore{coll: coll, timeout: timeout}
}

// Create inserts u and assigns its id; a taken email is a conflict
func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, u)
	return translate(err, "User")
}

func (s *UserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": models.NormalizeEmail(email)})
}

// FindByResetToken finds the user holding an unexpired reset token hash
func (s *UserStore) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return s.findOne(ctx, bson.M{
		"resetPasswordToken":  tokenHash,
		"resetPasswordExpire": bson.M{"$gt": now},
	})
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var user models.User
	if err := s.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translate(err, "User")
	}
	return &user, nil
}

// List returns every user, newest first
func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cursor, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, translate(err, "User")
	}
	users, err := decodeAll[models.User](ctx, cursor)
	return users, translate(err, "User")
}

// Update replaces the stored profile with u
func (s *UserStore) Update(ctx context.Context, u *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	u.UpdatedAt = time.Now().UTC()
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		return translate(err, "User")
	}
	if res.MatchedCount == 0 {
		return translate(mongo.ErrNoDocuments, "User")
	}
	return nil
}

// UpdateRole sets the role of id and returns the updated user
func (s *UserStore) UpdateRole(ctx context.Context, id primitive.ObjectID, role models.Role) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"role": role, "updatedAt": time.Now().UTC()},
	}, opts).Decode(&user)
	if err != nil {
		return nil, translate(err, "User")
	}
	return &user, nil
}

// SetResetToken stores the hash of a reset token and its expiry
func (s *UserStore) SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expire time.Time) error {
	return s.updateOne(ctx, id, bson.M{
		"$set": bson.M{"resetPasswordToken": tokenHash, "resetPasswordExpire": expire},
	})
}

// ResetPassword stores a new password hash and clears the reset token
func (s *UserStore) ResetPassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	return s.updateOne(ctx, id, bson.M{
		"$set":   bson.M{"password": passwordHash, "updatedAt": time.Now().UTC()},
		"$unset": bson.M{"resetPasswordToken": "", "resetPasswordExpire": ""},
	})
}

func (s *UserStore) updateOne(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return translate(err, "User")
	}
	if res.MatchedCount == 0 {
		return translate(mongo.ErrNoDocuments, "User")
	}
	return nil
}

func (s *UserStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err, "User")
	}
	if res.DeletedCount == 0 {
		return translate(mongo.ErrNoDocuments, "User")
	}
	return nil
}
