package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartItem represents an item in the cart with the price seen when it was added
type CartItem struct {
	ProductID   primitive.ObjectID `bson:"productId" json:"productId"`
	SellerID    primitive.ObjectID `bson:"sellerId" json:"sellerId"`
	Quantity    int                `bson:"quantity" json:"quantity"`
	PriceAtTime float64            `bson:"priceAtTime" json:"priceAtTime"`
}

// Cart represents a buyer's shopping cart; one per buyer
type Cart struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Items     []CartItem         `bson:"items" json:"items"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NewCart returns an empty cart for userID
func NewCart(userID primitive.ObjectID) *Cart {
	now := time.Now().UTC()
	return &Cart{UserID: userID, Items: []CartItem{}, CreatedAt: now, UpdatedAt: now}
}

// Add merges item into the cart, summing quantities for a product already present
func (c *Cart) Add(item CartItem) {
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i].Quantity += item.Quantity
			return
		}
	}
	c.Items = append(c.Items, item)
}

// Remove drops productID from the cart
func (c *Cart) Remove(productID primitive.ObjectID) {
	kept := make([]CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	c.Items = kept
}

// SetQuantity updates the quantity of productID; false when it is not in the cart
func (c *Cart) SetQuantity(productID primitive.ObjectID, quantity int) bool {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			return true
		}
	}
	return false
}
