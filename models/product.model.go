package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category is the closed set of product categories
type Category string

const (
	CategoryFertilizer Category = "fertilizer"
	CategorySeed       Category = "seed"
	CategoryPlant      Category = "plant"
	CategoryTool       Category = "tool"
	CategoryAccessory  Category = "accessory"
)

// IsValid reports whether c is a known category
func (c Category) IsValid() bool {
	switch c {
	case CategoryFertilizer, CategorySeed, CategoryPlant, CategoryTool, CategoryAccessory:
		return true
	}
	return false
}

// DefaultProductImage is used when a listing is created without images
const DefaultProductImage = "https://www.shutterstock.com/image-vector/no-item-found-vector-outline-260nw-2082716986.jpg"

// Rating is one buyer's score for a product
type Rating struct {
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Rating    int                `bson:"rating" json:"rating"`
	Comment   string             `bson:"comment,omitempty" json:"comment,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Product is a listing owned by one seller
type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	SellerID    primitive.ObjectID `bson:"sellerId" json:"sellerId"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Category    Category           `bson:"category" json:"category"`
	Price       float64            `bson:"price" json:"price"`
	Stock       int                `bson:"stock" json:"stock"`
	Images      []string           `bson:"images" json:"images"`
	Ratings     []Rating           `bson:"ratings" json:"ratings"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ValidPrice reports whether price is non-negative with at most two decimals
func ValidPrice(price float64) bool {
	d := decimal.NewFromFloat(price)
	return !d.IsNegative() && d.Exponent() >= -2
}

// AverageRating is the mean rating rounded to one decimal, 0 without ratings
func (p *Product) AverageRating() float64 {
	if len(p.Ratings) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, r := range p.Ratings {
		sum = sum.Add(decimal.NewFromInt(int64(r.Rating)))
	}
	avg, _ := sum.Div(decimal.NewFromInt(int64(len(p.Ratings)))).Round(1).Float64()
	return avg
}

// UpsertRating records userID's rating, replacing a previous one
func (p *Product) UpsertRating(userID primitive.ObjectID, rating int, comment string) {
	entry := Rating{UserID: userID, Rating: rating, Comment: comment, CreatedAt: time.Now().UTC()}
	for i := range p.Ratings {
		if p.Ratings[i].UserID == userID {
			p.Ratings[i] = entry
			return
		}
	}
	p.Ratings = append(p.Ratings, entry)
}

// SellerSummary is the seller contact shown alongside a listing
type SellerSummary struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Email string             `json:"email"`
}

// ProductView is a product with derived fields for responses
type ProductView struct {
	Product
	AverageRating float64        `json:"averageRating"`
	Seller        *SellerSummary `json:"seller,omitempty"`
}

// NewProductView derives the response projection of p
func NewProductView(p *Product, seller *User) ProductView {
	view := ProductView{Product: *p, AverageRating: p.AverageRating()}
	if view.Ratings == nil {
		view.Ratings = []Rating{}
	}
	if seller != nil {
		view.Seller = &SellerSummary{ID: seller.ID, Name: seller.Name, Email: seller.Email}
	}
	return view
}
