// Package services holds the order workflow: placement with stock
// reservation, per-item status transitions and buyer deletion.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"plantify/apperr"
	"plantify/logger"
	"plantify/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ProductStore is the part of the catalog the workflow mutates
type ProductStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	Reserve(ctx context.Context, id primitive.ObjectID, quantity int) (*models.Product, error)
	Restore(ctx context.Context, id primitive.ObjectID, quantity int) (*models.Product, error)
}

// OrderStore persists orders
type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	HasActiveOrderFor(ctx context.Context, buyerID, productID primitive.ObjectID) (bool, error)
	ListByBuyer(ctx context.Context, buyerID primitive.ObjectID) ([]models.Order, error)
	ListBySeller(ctx context.Context, sellerID primitive.ObjectID) ([]models.Order, error)
	ListAll(ctx context.Context) ([]models.Order, error)
	TransitionItem(ctx context.Context, orderID, itemID primitive.ObjectID, from, to models.ItemStatus) (*models.Order, error)
	SetStatus(ctx context.Context, orderID primitive.ObjectID, status models.OrderStatus) error
	DeleteIfDeletable(ctx context.Context, orderID, buyerID primitive.ObjectID) (bool, error)
}

// UserStore resolves buyers and sellers
type UserStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Notifier delivers best-effort messages; it must not block or fail the caller
type Notifier interface {
	Notify(ctx context.Context, phone, message string)
}

// Receipts sends the order confirmation email
type Receipts interface {
	SendOrderConfirmationEmail(toEmail, name string, order *models.Order) error
}

// OrderService implements the order lifecycle
type OrderService struct {
	products ProductStore
	orders   OrderStore
	users    UserStore
	notifier Notifier
	receipts Receipts
	log      *zap.Logger
}

// Option configures an OrderService
type Option func(*OrderService)

func WithReceipts(r Receipts) Option {
	return func(s *OrderService) { s.receipts = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *OrderService) {
		if l != nil {
			s.log = l
		}
	}
}

func NewOrderService(products ProductStore, orders OrderStore, users UserStore, notifier Notifier, opts ...Option) *OrderService {
	s := &OrderService{
		products: products,
		orders:   orders,
		users:    users,
		notifier: notifier,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("orders")
	return s
}

// PlaceOrderItem is one requested line
type PlaceOrderItem struct {
	ProductID primitive.ObjectID `json:"productId"`
	Quantity  int                `json:"quantity"`
}

// PlaceOrderInput is the body of an order placement. A positive TotalAmount
// is trusted over the computed total.
type PlaceOrderInput struct {
	Items           []PlaceOrderItem     `json:"items"`
	ShippingAddress string               `json:"shippingAddress"`
	PaymentMethod   models.PaymentMethod `json:"paymentMethod"`
	TotalAmount     float64              `json:"totalAmount"`
}

func (in *PlaceOrderInput) validate() error {
	if len(in.Items) == 0 {
		return apperr.Validation("No items provided.")
	}
	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)
	if in.ShippingAddress == "" {
		return apperr.Validation("Shipping address is required.")
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = models.PaymentCOD
	}
	if !in.PaymentMethod.IsValid() {
		return apperr.Validation("Payment method must be COD or Online.")
	}
	if in.TotalAmount < 0 {
		return apperr.Validation("Total amount cannot be negative.")
	}
	seen := make(map[primitive.ObjectID]bool, len(in.Items))
	for _, item := range in.Items {
		if item.ProductID.IsZero() {
			return apperr.Validation("Each item needs a productId.")
		}
		if item.Quantity < 1 {
			return apperr.Validation("Quantity must be at least 1.")
		}
		if seen[item.ProductID] {
			return apperr.Validation(fmt.Sprintf("Product %s is listed more than once.", item.ProductID.Hex()))
		}
		seen[item.ProductID] = true
	}
	return nil
}

type reservation struct {
	product  *models.Product // state after the decrement
	quantity int
}

// PlaceOrder reserves stock for every line and persists the order. Either
// every line is reserved and the order stored, or all reservations are
// released and nothing is stored.
func (s *OrderService) PlaceOrder(ctx context.Context, buyerID primitive.ObjectID, in PlaceOrderInput) (*models.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	log := s.logFor(ctx)

	buyer, err := s.users.FindByID(ctx, buyerID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("Buyer not found.")
		}
		return nil, err
	}

	products := make([]*models.Product, len(in.Items))
	for i, item := range in.Items {
		product, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.NotFound("Product not found: " + item.ProductID.Hex())
			}
			return nil, err
		}
		active, err := s.orders.HasActiveOrderFor(ctx, buyerID, product.ID)
		if err != nil {
			return nil, err
		}
		if active {
			return nil, apperr.Conflict(fmt.Sprintf("You already have an active order for %q.", product.Name))
		}
		if item.Quantity > product.Stock {
			return nil, apperr.InsufficientStock("Insufficient stock for " + product.Name)
		}
		products[i] = product
	}

	reserved := make([]reservation, 0, len(in.Items))
	for i, item := range in.Items {
		after, err := s.products.Reserve(ctx, item.ProductID, item.Quantity)
		if err != nil {
			s.release(ctx, reserved)
			if errors.Is(err, apperr.ErrInsufficientStock) {
				return nil, apperr.InsufficientStock("Insufficient stock for " + products[i].Name)
			}
			return nil, err
		}
		reserved = append(reserved, reservation{product: after, quantity: item.Quantity})
	}

	sellers := s.sellerDirectory(ctx)
	for _, r := range reserved {
		if r.product.Stock == 0 {
			if seller := sellers(r.product.SellerID); seller != nil {
				s.notifier.Notify(ctx, seller.Phone, fmt.Sprintf(
					"Hello %s, your product %q is OUT OF STOCK! Please restock.", seller.Name, r.product.Name))
			}
		}
	}

	items := make([]models.OrderItem, 0, len(reserved))
	computed := decimal.Zero
	for _, r := range reserved {
		items = append(items, models.NewOrderItem(r.product, r.quantity))
		computed = computed.Add(lineTotal(r.product.Price, r.quantity))
	}
	total, _ := computed.Round(2).Float64()
	if in.TotalAmount > 0 {
		total = in.TotalAmount
	}

	order := models.NewOrder(buyerID, items, total, in.ShippingAddress, in.PaymentMethod)
	if err := s.orders.Create(ctx, order); err != nil {
		s.release(ctx, reserved)
		return nil, err
	}
	log.Info("order placed",
		zap.String("order_id", order.ID.Hex()),
		zap.String("buyer_id", buyerID.Hex()),
		zap.Int("items", len(items)),
		zap.Float64("total", total),
	)

	for _, r := range reserved {
		amount := lineTotal(r.product.Price, r.quantity).StringFixed(2)
		seller := sellers(r.product.SellerID)
		if seller != nil {
			s.notifier.Notify(ctx, seller.Phone, fmt.Sprintf(
				"New Order Received!\nBuyer: %s (%s)\nProduct: %s\nQuantity: %d\nTotal: ₹%s\nUpdated Stock: %d",
				buyer.Name, orNA(buyer.Phone), r.product.Name, r.quantity, amount, r.product.Stock))
		}
		sellerName, sellerPhone := "N/A", "N/A"
		if seller != nil {
			sellerName, sellerPhone = seller.Name, orNA(seller.Phone)
		}
		s.notifier.Notify(ctx, buyer.Phone, fmt.Sprintf(
			"Order Placed Successfully!\nProduct: %s\nSeller: %s (%s)\nAmount: ₹%s\nShipping: %s\nStatus: Processing",
			r.product.Name, sellerName, sellerPhone, amount, order.ShippingAddress))
	}

	if s.receipts != nil {
		go func(email, name string, o models.Order) {
			if err := s.receipts.SendOrderConfirmationEmail(email, name, &o); err != nil {
				log.Warn("failed to send order confirmation", zap.String("email", email), zap.Error(err))
			}
		}(buyer.Email, buyer.Name, *order)
	}

	return order, nil
}

// release gives back reserved stock. It runs even when ctx is cancelled.
func (s *OrderService) release(ctx context.Context, reserved []reservation) {
	ctx = context.WithoutCancel(ctx)
	for _, r := range reserved {
		if _, err := s.products.Restore(ctx, r.product.ID, r.quantity); err != nil {
			s.logFor(ctx).Error("failed to release reserved stock",
				zap.String("product_id", r.product.ID.Hex()),
				zap.Int("quantity", r.quantity),
				zap.Error(err),
			)
		}
	}
}

// UpdateItemStatus moves one line of an order to status. Only the line's
// seller or the order's buyer may do so.
func (s *OrderService) UpdateItemStatus(ctx context.Context, requester *models.User, orderID, itemID primitive.ObjectID, status models.ItemStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, apperr.Validation("Invalid status. Use pending, shipped, delivered or cancelled.")
	}
	log := s.logFor(ctx)

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("Order not found")
		}
		return nil, err
	}
	item, ok := order.Item(itemID)
	if !ok {
		return nil, apperr.NotFound("Order item not found")
	}

	isSeller := item.SellerID == requester.ID
	isBuyer := order.UserID == requester.ID
	if !isSeller && !isBuyer {
		return nil, apperr.Forbidden("Not authorized")
	}
	if !item.ItemStatus.CanTransitionTo(status) {
		return nil, apperr.Validation(fmt.Sprintf("Cannot change item status from %s to %s", item.ItemStatus, status))
	}

	updated, err := s.orders.TransitionItem(ctx, orderID, itemID, item.ItemStatus, status)
	if err != nil {
		return nil, err
	}

	var product *models.Product
	if status == models.ItemCancelled {
		product, err = s.products.Restore(ctx, item.ProductID, item.Quantity)
		if err != nil {
			log.Error("failed to restore stock for cancelled item",
				zap.String("order_id", orderID.Hex()),
				zap.String("product_id", item.ProductID.Hex()),
				zap.Int("quantity", item.Quantity),
				zap.Error(err),
			)
			product = nil
		}
	}

	switch {
	case updated.AllDelivered():
		if err := s.orders.SetStatus(ctx, orderID, models.OrderCompleted); err != nil {
			return nil, err
		}
		updated.OrderStatus = models.OrderCompleted
	case updated.AllCancelled():
		if err := s.orders.SetStatus(ctx, orderID, models.OrderCancelled); err != nil {
			return nil, err
		}
		updated.OrderStatus = models.OrderCancelled
	}

	log.Info("order item status updated",
		zap.String("order_id", orderID.Hex()),
		zap.String("item_id", itemID.Hex()),
		zap.String("status", string(status)),
		zap.String("order_status", string(updated.OrderStatus)),
	)

	s.notifyTransition(ctx, updated, item, product, status, isBuyer)
	return updated, nil
}

func (s *OrderService) notifyTransition(ctx context.Context, order *models.Order, item *models.OrderItem, product *models.Product, status models.ItemStatus, byBuyer bool) {
	if product == nil {
		product, _ = s.products.FindByID(ctx, item.ProductID)
	}
	name := "your product"
	if product != nil {
		name = product.Name
	}

	sellers := s.sellerDirectory(ctx)
	seller := sellers(item.SellerID)
	sellerName := "N/A"
	if seller != nil {
		sellerName = seller.Name
	}

	buyer, err := s.users.FindByID(ctx, order.UserID)
	if err == nil {
		s.notifier.Notify(ctx, buyer.Phone, fmt.Sprintf(
			"Order Update\nProduct: %s\nSeller: %s\nStatus: %s",
			name, sellerName, strings.ToUpper(string(status))))
	}

	if status != models.ItemCancelled || seller == nil {
		return
	}
	actor, buyerName := "Seller", "N/A"
	if byBuyer {
		actor = "Buyer"
	}
	if buyer != nil {
		buyerName = buyer.Name
	}
	stock := "unknown"
	if product != nil {
		stock = fmt.Sprint(product.Stock)
	}
	s.notifier.Notify(ctx, seller.Phone, fmt.Sprintf(
		"Order Cancelled by %s\nBuyer: %s\nProduct: %s\nQuantity: %d\nUpdated Stock: %s",
		actor, buyerName, name, item.Quantity, stock))
}

// DeleteOrder removes a buyer's order and gives its stock back. Completed
// and shipped orders cannot be deleted.
func (s *OrderService) DeleteOrder(ctx context.Context, requester *models.User, orderID primitive.ObjectID) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.NotFound("Order not found.")
		}
		return err
	}
	if order.UserID != requester.ID {
		return apperr.Forbidden("Unauthorized.")
	}
	if !order.IsDeletable() {
		return apperr.Validation("Cannot delete completed or shipped orders.")
	}

	deleted, err := s.orders.DeleteIfDeletable(ctx, orderID, requester.ID)
	if err != nil {
		return err
	}
	if !deleted {
		// Status moved or the order vanished between the read and the delete.
		return apperr.Validation("Order can no longer be deleted.")
	}

	ctx = context.WithoutCancel(ctx)
	log := s.logFor(ctx)
	sellers := s.sellerDirectory(ctx)
	for _, item := range order.Items {
		// Cancelled lines gave their stock back when they were cancelled.
		if item.ItemStatus == models.ItemCancelled {
			continue
		}
		product, err := s.products.Restore(ctx, item.ProductID, item.Quantity)
		if err != nil {
			log.Warn("failed to restore stock for deleted order",
				zap.String("order_id", orderID.Hex()),
				zap.String("product_id", item.ProductID.Hex()),
				zap.Error(err),
			)
			continue
		}
		if seller := sellers(item.SellerID); seller != nil {
			s.notifier.Notify(ctx, seller.Phone, fmt.Sprintf(
				"Order Canceled\nBuyer %s canceled their order for %q.\nRestocked Quantity: %d\nUpdated Stock: %d",
				requester.Name, product.Name, item.Quantity, product.Stock))
		}
	}

	log.Info("order deleted by buyer", zap.String("order_id", orderID.Hex()))
	return nil
}

// GetOrder returns an order visible to requester: admins see all, buyers
// their own, sellers orders containing their products.
func (s *OrderService) GetOrder(ctx context.Context, requester *models.User, orderID primitive.ObjectID) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("Order not found")
		}
		return nil, err
	}
	if requester.Role == models.RoleAdmin || order.UserID == requester.ID || order.HasSeller(requester.ID) {
		return order, nil
	}
	return nil, apperr.Forbidden("Not authorized to view this order")
}

func (s *OrderService) ListBuyerOrders(ctx context.Context, buyerID primitive.ObjectID) ([]models.Order, error) {
	return s.orders.ListByBuyer(ctx, buyerID)
}

func (s *OrderService) ListSellerOrders(ctx context.Context, sellerID primitive.ObjectID) ([]models.Order, error) {
	return s.orders.ListBySeller(ctx, sellerID)
}

func (s *OrderService) ListAllOrders(ctx context.Context) ([]models.Order, error) {
	return s.orders.ListAll(ctx)
}

// sellerDirectory memoizes seller lookups for one operation; unknown
// sellers resolve to nil.
func (s *OrderService) sellerDirectory(ctx context.Context) func(primitive.ObjectID) *models.User {
	cache := make(map[primitive.ObjectID]*models.User)
	return func(id primitive.ObjectID) *models.User {
		if u, ok := cache[id]; ok {
			return u
		}
		u, err := s.users.FindByID(ctx, id)
		if err != nil {
			s.logFor(ctx).Debug("seller lookup failed", zap.String("seller_id", id.Hex()), zap.Error(err))
			u = nil
		}
		cache[id] = u
		return u
	}
}

func (s *OrderService) logFor(ctx context.Context) *zap.Logger {
	if id := logger.RequestID(ctx); id != "" {
		return s.log.With(zap.String("request_id", id))
	}
	return s.log
}

func lineTotal(price float64, quantity int) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity)))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
