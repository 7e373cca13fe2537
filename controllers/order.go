package controllers

import (
	"context"
	"net/http"

	"plantify/models"
	"plantify/services"
	"plantify/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderWorkflow is the order lifecycle the handlers delegate to
type OrderWorkflow interface {
	PlaceOrder(ctx context.Context, buyerID primitive.ObjectID, in services.PlaceOrderInput) (*models.Order, error)
	UpdateItemStatus(ctx context.Context, requester *models.User, orderID, itemID primitive.ObjectID, status models.ItemStatus) (*models.Order, error)
	DeleteOrder(ctx context.Context, requester *models.User, orderID primitive.ObjectID) error
	GetOrder(ctx context.Context, requester *models.User, orderID primitive.ObjectID) (*models.Order, error)
	ListBuyerOrders(ctx context.Context, buyerID primitive.ObjectID) ([]models.Order, error)
	ListSellerOrders(ctx context.Context, sellerID primitive.ObjectID) ([]models.Order, error)
	ListAllOrders(ctx context.Context) ([]models.Order, error)
}

// OrderController handles order-related requests
type OrderController struct {
	orders OrderWorkflow
}

// NewOrderController creates a new OrderController
func NewOrderController(orders OrderWorkflow) *OrderController {
	return &OrderController{orders: orders}
}

// CreateOrder places an order for the caller
func (oc *OrderController) CreateOrder(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var in services.PlaceOrderInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	order, err := oc.orders.PlaceOrder(r.Context(), user.ID, in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Order placed successfully.", utils.Envelope{"order": order})
}

type itemStatusRequest struct {
	Status models.ItemStatus `json:"status"`
}

// UpdateItemStatus moves one order item through its lifecycle
func (oc *OrderController) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	orderID, err := pathID(r, "orderId", "order")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	itemID, err := pathID(r, "itemId", "item")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var req itemStatusRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	order, err := oc.orders.UpdateItemStatus(r.Context(), user, orderID, itemID, req.Status)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Item status updated to "+string(req.Status)+".", utils.Envelope{"order": order})
}

// DeleteOrder removes the caller's order and restores its stock
func (oc *OrderController) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	orderID, err := pathID(r, "orderId", "order")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if err := oc.orders.DeleteOrder(r.Context(), user, orderID); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Order deleted and stock restored.", nil)
}

// GetOrder returns one order to its buyer, a seller in it, or an admin
func (oc *OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	orderID, err := pathID(r, "orderId", "order")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	order, err := oc.orders.GetOrder(r.Context(), user, orderID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", utils.Envelope{"order": order})
}

// GetMyOrders lists the caller's orders
func (oc *OrderController) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	writeOrders(w, r, func(ctx context.Context) ([]models.Order, error) {
		return oc.orders.ListBuyerOrders(ctx, user.ID)
	})
}

// GetSellerOrders lists orders containing the caller's products
func (oc *OrderController) GetSellerOrders(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	writeOrders(w, r, func(ctx context.Context) ([]models.Order, error) {
		return oc.orders.ListSellerOrders(ctx, user.ID)
	})
}

// GetAllOrders lists every order (admin)
func (oc *OrderController) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	writeOrders(w, r, oc.orders.ListAllOrders)
}

func writeOrders(w http.ResponseWriter, r *http.Request, list func(context.Context) ([]models.Order, error)) {
	orders, err := list(r.Context())
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	utils.WriteSuccess(w, http.StatusOK, "", utils.Envelope{"count": len(orders), "orders": orders})
}
