package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"plantify/apperr"
	"plantify/middleware"
	"plantify/models"
	"plantify/services"
	"plantify/store"
	"plantify/utils"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeUserDir struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newFakeUserDir(users ...*models.User) *fakeUserDir {
	d := &fakeUserDir{users: make(map[primitive.ObjectID]*models.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *fakeUserDir) Create(_ context.Context, u *models.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.users {
		if existing.Email == u.Email {
			return apperr.Conflict("User already exists")
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	cp := *u
	d.users[u.ID] = &cp
	return nil
}

func (d *fakeUserDir) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, apperr.NotFound("User not found")
	}
	cp := *u
	return &cp, nil
}

func (d *fakeUserDir) FindByEmail(_ context.Context, email string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Email == models.NormalizeEmail(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("User not found")
}

func (d *fakeUserDir) FindByResetToken(_ context.Context, hash string, now time.Time) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.ResetPasswordToken == hash && u.ResetPasswordExpire != nil && u.ResetPasswordExpire.After(now) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("User not found")
}

func (d *fakeUserDir) List(context.Context) ([]models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, *u)
	}
	return out, nil
}

func (d *fakeUserDir) Update(_ context.Context, u *models.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[u.ID]; !ok {
		return apperr.NotFound("User not found")
	}
	cp := *u
	d.users[u.ID] = &cp
	return nil
}

func (d *fakeUserDir) UpdateRole(_ context.Context, id primitive.ObjectID, role models.Role) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, apperr.NotFound("User not found")
	}
	u.Role = role
	cp := *u
	return &cp, nil
}

func (d *fakeUserDir) SetResetToken(_ context.Context, id primitive.ObjectID, hash string, expire time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return apperr.NotFound("User not found")
	}
	u.ResetPasswordToken = hash
	u.ResetPasswordExpire = &expire
	return nil
}

func (d *fakeUserDir) ResetPassword(_ context.Context, id primitive.ObjectID, hash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return apperr.NotFound("User not found")
	}
	u.Password = hash
	u.ResetPasswordToken = ""
	u.ResetPasswordExpire = nil
	return nil
}

func (d *fakeUserDir) Delete(_ context.Context, id primitive.ObjectID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[id]; !ok {
		return apperr.NotFound("User not found")
	}
	delete(d.users, id)
	return nil
}

type fakeCatalog struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]*models.Product
}

func newFakeCatalog(products ...*models.Product) *fakeCatalog {
	c := &fakeCatalog{products: make(map[primitive.ObjectID]*models.Product)}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *fakeCatalog) Create(_ context.Context, p *models.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.products {
		if existing.SellerID == p.SellerID && existing.Name == p.Name && existing.Category == p.Category {
			return apperr.Conflict("Product already exists")
		}
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	cp := *p
	c.products[p.ID] = &cp
	return nil
}

func (c *fakeCatalog) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, apperr.NotFound("Product not found")
	}
	cp := *p
	return &cp, nil
}

func (c *fakeCatalog) List(_ context.Context, f store.ProductFilter) ([]models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Product, 0)
	for _, p := range c.products {
		if !f.SellerID.IsZero() && p.SellerID != f.SellerID {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (c *fakeCatalog) Update(_ context.Context, id primitive.ObjectID, ch store.ProductChanges) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, apperr.NotFound("Product not found")
	}
	if ch.Name != nil {
		p.Name = *ch.Name
	}
	if ch.Description != nil {
		p.Description = *ch.Description
	}
	if ch.Category != nil {
		p.Category = *ch.Category
	}
	if ch.Price != nil {
		p.Price = *ch.Price
	}
	if ch.Stock != nil {
		p.Stock = *ch.Stock
	}
	if len(ch.Images) > 0 {
		p.Images = ch.Images
	}
	cp := *p
	return &cp, nil
}

func (c *fakeCatalog) UpsertRating(_ context.Context, id primitive.ObjectID, r models.Rating) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, apperr.NotFound("Product not found")
	}
	p.UpsertRating(r.UserID, r.Rating, r.Comment)
	cp := *p
	cp.Ratings = append([]models.Rating(nil), p.Ratings...)
	return &cp, nil
}

// reserve takes stock the way a concurrent order placement would
func (c *fakeCatalog) reserve(id primitive.ObjectID, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[id].Stock -= quantity
}

func (c *fakeCatalog) Delete(_ context.Context, id primitive.ObjectID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.products[id]; !ok {
		return apperr.NotFound("Product not found")
	}
	delete(c.products, id)
	return nil
}

type fakeCarts struct {
	mu    sync.Mutex
	carts map[primitive.ObjectID]*models.Cart
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{carts: make(map[primitive.ObjectID]*models.Cart)}
}

func (f *fakeCarts) GetOrCreate(_ context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[userID]
	if !ok {
		c = models.NewCart(userID)
		c.ID = primitive.NewObjectID()
		f.carts[userID] = c
	}
	cp := *c
	cp.Items = append([]models.CartItem{}, c.Items...)
	return &cp, nil
}

func (f *fakeCarts) FindByUser(_ context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[userID]
	if !ok {
		return nil, apperr.NotFound("Cart not found")
	}
	cp := *c
	cp.Items = append([]models.CartItem{}, c.Items...)
	return &cp, nil
}

func (f *fakeCarts) SaveItems(_ context.Context, cart *models.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[cart.UserID]
	if !ok || c.ID != cart.ID {
		return apperr.NotFound("Cart not found")
	}
	c.Items = append([]models.CartItem{}, cart.Items...)
	return nil
}

// stubWorkflow records the last call and returns canned results
type stubWorkflow struct {
	placedBy primitive.ObjectID
	placed   services.PlaceOrderInput
	order    *models.Order
	orders   []models.Order
	err      error
}

func (s *stubWorkflow) PlaceOrder(_ context.Context, buyerID primitive.ObjectID, in services.PlaceOrderInput) (*models.Order, error) {
	s.placedBy, s.placed = buyerID, in
	return s.order, s.err
}

func (s *stubWorkflow) UpdateItemStatus(context.Context, *models.User, primitive.ObjectID, primitive.ObjectID, models.ItemStatus) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubWorkflow) DeleteOrder(context.Context, *models.User, primitive.ObjectID) error {
	return s.err
}

func (s *stubWorkflow) GetOrder(context.Context, *models.User, primitive.ObjectID) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubWorkflow) ListBuyerOrders(context.Context, primitive.ObjectID) ([]models.Order, error) {
	return s.orders, s.err
}

func (s *stubWorkflow) ListSellerOrders(context.Context, primitive.ObjectID) ([]models.Order, error) {
	return s.orders, s.err
}

func (s *stubWorkflow) ListAllOrders(context.Context) ([]models.Order, error) {
	return s.orders, s.err
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *recordingMailer) SendEmail(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+"|"+subject+"|"+body)
	return nil
}

func newUser(name, email string, role models.Role) *models.User {
	hash, _ := utils.HashPassword("secret123")
	u := models.NewUser(name, email, hash, role)
	u.ID = primitive.NewObjectID()
	return u
}

// randomBuyer is a buyer whose identity no assertion depends on
func randomBuyer() *models.User {
	return newUser(gofakeit.Name(), gofakeit.Email(), models.RoleBuyer)
}

// request builds a request carrying an authenticated user and route vars
func request(t *testing.T, method, target string, body interface{}, user *models.User, vars map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		claims := &utils.Claims{UserID: user.ID.Hex(), Role: string(user.Role)}
		claims.ID = "jti-" + user.ID.Hex()
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
		req = req.WithContext(middleware.WithUser(req.Context(), user, claims))
	}
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

func serve(h http.HandlerFunc, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	rr := httptest.NewRecorder()
	h(rr, req)
	var body map[string]interface{}
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	return rr, body
}
