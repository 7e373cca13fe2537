package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ItemStatus is the lifecycle state of a single order line
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemShipped   ItemStatus = "shipped"
	ItemDelivered ItemStatus = "delivered"
	ItemCancelled ItemStatus = "cancelled"
)

var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemPending: {ItemShipped, ItemCancelled},
	ItemShipped: {ItemDelivered, ItemCancelled},
}

// IsValid reports whether s is a known item status
func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemPending, ItemShipped, ItemDelivered, ItemCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s
func (s ItemStatus) IsTerminal() bool {
	return s == ItemDelivered || s == ItemCancelled
}

// CanTransitionTo reports whether moving from s to target is allowed
func (s ItemStatus) CanTransitionTo(target ItemStatus) bool {
	for _, allowed := range itemTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// OrderStatus is the aggregate status of an order
type OrderStatus string

const (
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"

	// Legacy values still present on old documents. They take part in the
	// active-order and deletion checks but are never assigned.
	OrderPending OrderStatus = "pending"
	OrderShipped OrderStatus = "shipped"
)

// ActiveOrderStatuses are the statuses that block a second order for the same product
var ActiveOrderStatuses = []OrderStatus{OrderProcessing, OrderPending}

// UndeletableOrderStatuses are the statuses in which a buyer can no longer delete an order
var UndeletableOrderStatuses = []OrderStatus{OrderCompleted, OrderShipped}

// OrderItem is one line of an order with its own status
type OrderItem struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	ProductID   primitive.ObjectID `bson:"productId" json:"productId"`
	SellerID    primitive.ObjectID `bson:"sellerId" json:"sellerId"`
	Quantity    int                `bson:"quantity" json:"quantity"`
	PriceAtTime float64            `bson:"priceAtTime" json:"priceAtTime"`
	ItemStatus  ItemStatus         `bson:"itemStatus" json:"itemStatus"`
	CanReorder  bool               `bson:"canReorder" json:"canReorder"`
}

// Order represents an order placed by a buyer
type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	Items           []OrderItem        `bson:"items" json:"items"`
	TotalAmount     float64            `bson:"totalAmount" json:"totalAmount"`
	ShippingAddress string             `bson:"shippingAddress" json:"shippingAddress"`
	PaymentMethod   PaymentMethod      `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus   PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	OrderStatus     OrderStatus        `bson:"orderStatus" json:"orderStatus"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NewOrderItem snapshots p's seller and price for a new pending line
func NewOrderItem(p *Product, quantity int) OrderItem {
	return OrderItem{
		ID:          primitive.NewObjectID(),
		ProductID:   p.ID,
		SellerID:    p.SellerID,
		Quantity:    quantity,
		PriceAtTime: p.Price,
		ItemStatus:  ItemPending,
	}
}

// NewOrder builds a processing order; payment status follows the method
func NewOrder(buyerID primitive.ObjectID, items []OrderItem, total float64, address string, method PaymentMethod) *Order {
	if method == "" {
		method = PaymentCOD
	}
	now := time.Now().UTC()
	return &Order{
		ID:              primitive.NewObjectID(),
		UserID:          buyerID,
		Items:           items,
		TotalAmount:     total,
		ShippingAddress: address,
		PaymentMethod:   method,
		PaymentStatus:   method.InitialStatus(),
		OrderStatus:     OrderProcessing,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Item returns the line with the given id
func (o *Order) Item(itemID primitive.ObjectID) (*OrderItem, bool) {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// AllDelivered reports whether every line has been delivered
func (o *Order) AllDelivered() bool {
	return o.allIn(ItemDelivered)
}

// AllCancelled reports whether every line has been cancelled
func (o *Order) AllCancelled() bool {
	return o.allIn(ItemCancelled)
}

func (o *Order) allIn(status ItemStatus) bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, item := range o.Items {
		if item.ItemStatus != status {
			return false
		}
	}
	return true
}

// HasSeller reports whether sellerID owns at least one line
func (o *Order) HasSeller(sellerID primitive.ObjectID) bool {
	for _, item := range o.Items {
		if item.SellerID == sellerID {
			return true
		}
	}
	return false
}

// IsActive reports whether the order still blocks reordering its products
func (o *Order) IsActive() bool {
	return containsStatus(ActiveOrderStatuses, o.OrderStatus)
}

// IsDeletable reports whether the buyer may still delete the order
func (o *Order) IsDeletable() bool {
	return !containsStatus(UndeletableOrderStatuses, o.OrderStatus)
}

func containsStatus(set []OrderStatus, s OrderStatus) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}
