package services

import (
	"context"
	"sync"
	"time"

	"plantify/apperr"
	"plantify/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeProducts struct {
	mu         sync.Mutex
	items      map[primitive.ObjectID]*models.Product
	reserveErr map[primitive.ObjectID]error
}

func newFakeProducts(products ...*models.Product) *fakeProducts {
	f := &fakeProducts{
		items:      make(map[primitive.ObjectID]*models.Product),
		reserveErr: make(map[primitive.ObjectID]error),
	}
	for _, p := range products {
		f.items[p.ID] = p
	}
	return f
}

func (f *fakeProducts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return nil, apperr.NotFound("Product not found")
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) Reserve(_ context.Context, id primitive.ObjectID, quantity int) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.reserveErr[id]; err != nil {
		return nil, err
	}
	p, ok := f.items[id]
	if !ok || p.Stock < quantity {
		return nil, apperr.InsufficientStock("Insufficient stock")
	}
	p.Stock -= quantity
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) Restore(_ context.Context, id primitive.ObjectID, quantity int) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return nil, apperr.NotFound("Product not found")
	}
	p.Stock += quantity
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) stock(id primitive.ObjectID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id].Stock
}

func (f *fakeProducts) setPrice(id primitive.ObjectID, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[id].Price = price
}

type fakeOrders struct {
	mu        sync.Mutex
	items     map[primitive.ObjectID]*models.Order
	createErr error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{items: make(map[primitive.ObjectID]*models.Order)}
}

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	return &cp
}

func (f *fakeOrders) Create(_ context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.items[o.ID] = cloneOrder(o)
	return nil
}

func (f *fakeOrders) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.items[id]
	if !ok {
		return nil, apperr.NotFound("Order not found")
	}
	return cloneOrder(o), nil
}

func (f *fakeOrders) HasActiveOrderFor(_ context.Context, buyerID, productID primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.items {
		if o.UserID != buyerID || !o.IsActive() {
			continue
		}
		for _, item := range o.Items {
			if item.ProductID == productID && item.ItemStatus != models.ItemCancelled {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeOrders) list(match func(*models.Order) bool) []models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Order{}
	for _, o := range f.items {
		if match(o) {
			out = append(out, *cloneOrder(o))
		}
	}
	return out
}

func (f *fakeOrders) ListByBuyer(_ context.Context, buyerID primitive.ObjectID) ([]models.Order, error) {
	return f.list(func(o *models.Order) bool { return o.UserID == buyerID }), nil
}

func (f *fakeOrders) ListBySeller(_ context.Context, sellerID primitive.ObjectID) ([]models.Order, error) {
	return f.list(func(o *models.Order) bool { return o.HasSeller(sellerID) }), nil
}

func (f *fakeOrders) ListAll(_ context.Context) ([]models.Order, error) {
	return f.list(func(*models.Order) bool { return true }), nil
}

func (f *fakeOrders) TransitionItem(_ context.Context, orderID, itemID primitive.ObjectID, from, to models.ItemStatus) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.items[orderID]
	if !ok {
		return nil, apperr.InvalidState("Item is no longer " + string(from))
	}
	item, ok := o.Item(itemID)
	if !ok || item.ItemStatus != from {
		return nil, apperr.InvalidState("Item is no longer " + string(from))
	}
	item.ItemStatus = to
	if to == models.ItemCancelled {
		item.CanReorder = true
	}
	o.UpdatedAt = time.Now()
	return cloneOrder(o), nil
}

func (f *fakeOrders) SetStatus(_ context.Context, orderID primitive.ObjectID, status models.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.items[orderID]
	if !ok {
		return apperr.NotFound("Order not found")
	}
	o.OrderStatus = status
	return nil
}

func (f *fakeOrders) DeleteIfDeletable(_ context.Context, orderID, buyerID primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.items[orderID]
	if !ok || o.UserID != buyerID || !o.IsDeletable() {
		return false, nil
	}
	delete(f.items, orderID)
	return true, nil
}

func (f *fakeOrders) get(id primitive.ObjectID) (*models.Order, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.items[id]
	if !ok {
		return nil, false
	}
	return cloneOrder(o), true
}

type fakeUsers struct {
	items map[primitive.ObjectID]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{items: make(map[primitive.ObjectID]*models.User)}
	for _, u := range users {
		f.items[u.ID] = u
	}
	return f
}

func (f *fakeUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u, ok := f.items[id]
	if !ok {
		return nil, apperr.NotFound("User not found")
	}
	cp := *u
	return &cp, nil
}

type sentMessage struct {
	phone string
	body  string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeNotifier) Notify(_ context.Context, phone, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{phone: phone, body: body})
}

func (f *fakeNotifier) to(phone string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		if m.phone == phone {
			out = append(out, m.body)
		}
	}
	return out
}

type fakeReceipts struct {
	sent chan string
}

func (f *fakeReceipts) SendOrderConfirmationEmail(toEmail, _ string, _ *models.Order) error {
	f.sent <- toEmail
	return nil
}
