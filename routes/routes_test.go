package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"plantify/apperr"
	"plantify/controllers"
	"plantify/middleware"
	"plantify/models"
	"plantify/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"
)

type users map[primitive.ObjectID]*models.User

func (u users) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, apperr.NotFound("User not found")
}

type carts struct{}

func (carts) GetOrCreate(_ context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	return models.NewCart(userID), nil
}

func (carts) FindByUser(context.Context, primitive.ObjectID) (*models.Cart, error) {
	return nil, apperr.NotFound("Cart not found")
}

func (carts) SaveItems(context.Context, *models.Cart) error { return nil }

type routerFixture struct {
	handler http.Handler
	token   string
}

const origin = "http://localhost:5173"

func newRouterFixture(t *testing.T) *routerFixture {
	buyer := models.NewUser("Asha", "asha@example.com", "hash", models.RoleBuyer)
	buyer.ID = primitive.NewObjectID()

	tokens := utils.NewTokenService("test-secret", time.Hour)
	auth := middleware.NewAuthenticator(tokens, utils.NewMemoryBlacklist(), users{buyer.ID: buyer})
	token, err := tokens.GenerateJWT(buyer.ID.Hex(), string(buyer.Role))
	require.NoError(t, err)

	c := Controllers{
		User:    &controllers.UserController{},
		Product: &controllers.ProductController{},
		Cart:    controllers.NewCartController(carts{}, nil),
		Order:   &controllers.OrderController{},
		ML:      &controllers.MLController{},
	}
	return &routerFixture{handler: NewRouter(c, auth, zaptest.NewLogger(t), origin), token: token}
}

func (f *routerFixture) do(method, target string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func message(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	msg, _ := body["message"].(string)
	return msg
}

func TestHealthCheck(t *testing.T) {
	f := newRouterFixture(t)
	rr := f.do(http.MethodGet, "/", false)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Plantify API is running", rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
}

func TestProtectedRoutes(t *testing.T) {
	f := newRouterFixture(t)

	rr := f.do(http.MethodGet, "/api/v1/cart", false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Not authorized, no token", message(t, rr))

	rr = f.do(http.MethodGet, "/api/v1/cart", true)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = f.do(http.MethodGet, "/api/v1/orders/admin/all", true)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(http.MethodPost, "/api/v1/ml/detect-disease", false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestFixedProductPathsWinOverID(t *testing.T) {
	f := newRouterFixture(t)

	// /products/{id} is public; the role check proves the seller route matched
	rr := f.do(http.MethodGet, "/api/v1/products/seller", true)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Access denied for role buyer", message(t, rr))

	rr = f.do(http.MethodGet, "/api/v1/products/admin/all", true)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestUnknownRoutes(t *testing.T) {
	f := newRouterFixture(t)

	rr := f.do(http.MethodGet, "/api/v1/nothing-here", false)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Route not found", message(t, rr))

	rr = f.do(http.MethodPatch, "/api/v1/products", false)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/orders", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, origin, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}
