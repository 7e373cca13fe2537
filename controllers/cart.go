package controllers

import (
	"context"
	"net/http"

	"plantify/apperr"
	"plantify/models"
	"plantify/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartRepository is the cart store used by the cart handlers
type CartRepository interface {
	GetOrCreate(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error)
	SaveItems(ctx context.Context, cart *models.Cart) error
}

// ProductLookup resolves a product for its price snapshot
type ProductLookup interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
}

// CartController handles cart-related requests
type CartController struct {
	carts    CartRepository
	products ProductLookup
}

// NewCartController creates a new CartController
func NewCartController(carts CartRepository, products ProductLookup) *CartController {
	return &CartController{carts: carts, products: products}
}

type addToCartRequest struct {
	ProductID primitive.ObjectID `json:"productId"`
	Quantity  int                `json:"quantity"`
}

// AddToCart adds a product to the user's cart, snapshotting its current price
func (cc *CartController) AddToCart(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	var req addToCartRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if req.ProductID.IsZero() || req.Quantity < 1 {
		utils.WriteError(w, r, apperr.Validation("Product ID and quantity are required"))
		return
	}

	product, err := cc.products.FindByID(r.Context(), req.ProductID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	cart, err := cc.carts.GetOrCreate(r.Context(), user.ID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	cart.Add(models.CartItem{
		ProductID:   product.ID,
		SellerID:    product.SellerID,
		Quantity:    req.Quantity,
		PriceAtTime: product.Price,
	})
	if err := cc.carts.SaveItems(r.Context(), cart); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Product added to cart successfully", utils.Envelope{"cart": cart})
}

// RemoveFromCart removes a product from the user's cart
func (cc *CartController) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	productID, err := pathID(r, "productId", "product")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	cart, err := cc.carts.FindByUser(r.Context(), user.ID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	cart.Remove(productID)
	if err := cc.carts.SaveItems(r.Context(), cart); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Product removed from cart", utils.Envelope{"cart": cart})
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateCartItemQuantity sets the quantity of a product already in the cart
func (cc *CartController) UpdateCartItemQuantity(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	productID, err := pathID(r, "productId", "product")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var req quantityRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if req.Quantity < 1 {
		utils.WriteError(w, r, apperr.Validation("Quantity must be at least 1"))
		return
	}

	cart, err := cc.carts.FindByUser(r.Context(), user.ID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if !cart.SetQuantity(productID, req.Quantity) {
		utils.WriteError(w, r, apperr.NotFound("Product not in cart"))
		return
	}
	if err := cc.carts.SaveItems(r.Context(), cart); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Cart item quantity updated", utils.Envelope{"cart": cart})
}

// GetCart returns the user's cart, creating an empty one on first use
func (cc *CartController) GetCart(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	cart, err := cc.carts.GetOrCreate(r.Context(), user.ID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", utils.Envelope{"cart": cart})
}
