// Package routes wires the HTTP handlers to their paths under /api/v1.
package routes

import (
	"net/http"

	"plantify/apperr"
	"plantify/controllers"
	"plantify/middleware"
	"plantify/models"
	"plantify/utils"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Controllers groups the handlers the router dispatches to
type Controllers struct {
	User    *controllers.UserController
	Product *controllers.ProductController
	Cart    *controllers.CartController
	Order   *controllers.OrderController
	ML      *controllers.MLController
}

// NewRouter builds the application handler: request logging, panic
// recovery and CORS around the /api/v1 routes.
func NewRouter(c Controllers, auth *middleware.Authenticator, log *zap.Logger, frontendOrigin string) http.Handler {
	router := mux.NewRouter()
	RegisterRoutes(router, c, auth)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteError(w, r, apperr.NotFound("Route not found"))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusMethodNotAllowed, utils.Envelope{"success": false, "message": "Method not allowed"})
	})

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{frontendOrigin}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", middleware.RequestIDHeader}),
		handlers.ExposedHeaders([]string{middleware.RequestIDHeader}),
		handlers.AllowCredentials(),
	)
	return middleware.RequestLogger(log)(middleware.Recover(cors(router)))
}

// RegisterRoutes sets up all the routes for the application
func RegisterRoutes(router *mux.Router, c Controllers, auth *middleware.Authenticator) {
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Plantify API is running"))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()

	authed := func(h http.HandlerFunc) http.Handler {
		return auth.Authenticate(h)
	}
	roles := func(h http.HandlerFunc, allowed ...models.Role) http.Handler {
		return auth.Authenticate(middleware.RequireRoles(allowed...)(h))
	}

	// User routes
	api.HandleFunc("/users/register", c.User.Register).Methods(http.MethodPost)
	api.HandleFunc("/users/login", c.User.Login).Methods(http.MethodPost)
	api.HandleFunc("/users/forgot-password", c.User.ForgotPassword).Methods(http.MethodPost)
	api.HandleFunc("/users/reset-password/{token}", c.User.ResetPassword).Methods(http.MethodPut)
	api.Handle("/users/logout", authed(c.User.Logout)).Methods(http.MethodPost)
	api.Handle("/users/profile", authed(c.User.GetProfile)).Methods(http.MethodGet)
	api.Handle("/users/profile", authed(c.User.UpdateProfile)).Methods(http.MethodPut)
	api.Handle("/users/profile/upload", authed(c.User.UploadProfileImage)).Methods(http.MethodPut)
	api.Handle("/users/all", roles(c.User.GetAllUsers, models.RoleAdmin)).Methods(http.MethodGet)
	api.Handle("/users/role/{id}", roles(c.User.UpdateUserRole, models.RoleAdmin)).Methods(http.MethodPut)
	api.Handle("/users/{id}", roles(c.User.DeleteUser, models.RoleAdmin)).Methods(http.MethodDelete)

	// Product routes; fixed paths before /products/{id}
	api.HandleFunc("/products", c.Product.GetProducts).Methods(http.MethodGet)
	api.Handle("/products", roles(c.Product.CreateProduct, models.RoleSeller, models.RoleAdmin)).Methods(http.MethodPost)
	api.Handle("/products/seller", roles(c.Product.GetSellerProducts, models.RoleSeller, models.RoleAdmin)).Methods(http.MethodGet)
	api.Handle("/products/admin/all", roles(c.Product.GetAllProductsAdmin, models.RoleAdmin)).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", c.Product.GetProductByID).Methods(http.MethodGet)
	api.Handle("/products/{id}", roles(c.Product.UpdateProduct, models.RoleSeller, models.RoleAdmin)).Methods(http.MethodPut)
	api.Handle("/products/{id}", roles(c.Product.DeleteProduct, models.RoleSeller, models.RoleAdmin)).Methods(http.MethodDelete)
	api.Handle("/products/{id}/ratings", authed(c.Product.RateProduct)).Methods(http.MethodPost)

	// Cart routes
	api.Handle("/cart", authed(c.Cart.GetCart)).Methods(http.MethodGet)
	api.Handle("/cart/add", authed(c.Cart.AddToCart)).Methods(http.MethodPost)
	api.Handle("/cart/remove/{productId}", authed(c.Cart.RemoveFromCart)).Methods(http.MethodDelete)
	api.Handle("/cart/update/{productId}", authed(c.Cart.UpdateCartItemQuantity)).Methods(http.MethodPut)

	// Order routes
	api.Handle("/orders", authed(c.Order.CreateOrder)).Methods(http.MethodPost)
	api.Handle("/orders/my-orders", authed(c.Order.GetMyOrders)).Methods(http.MethodGet)
	api.Handle("/orders/seller-orders", roles(c.Order.GetSellerOrders, models.RoleSeller, models.RoleAdmin)).Methods(http.MethodGet)
	api.Handle("/orders/admin/all", roles(c.Order.GetAllOrders, models.RoleAdmin)).Methods(http.MethodGet)
	api.Handle("/orders/remove/{orderId}", authed(c.Order.DeleteOrder)).Methods(http.MethodDelete)
	api.Handle("/orders/{orderId}/item/{itemId}/status", authed(c.Order.UpdateItemStatus)).Methods(http.MethodPut)
	api.Handle("/orders/{orderId}", authed(c.Order.GetOrder)).Methods(http.MethodGet)

	// ML routes
	api.Handle("/ml/detect-disease", authed(c.ML.DetectDisease)).Methods(http.MethodPost)
}
