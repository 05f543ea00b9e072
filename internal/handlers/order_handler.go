package handlers

import (
	"net/http"

	"ottsonly-backend/internal/models"
	"ottsonly-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// CreateOrder buys one unit of a product with wallet balance.
func (h *Handler) CreateOrder(c *gin.Context) {
	var input models.CreateOrderInput
	if !bind(c, &input) {
		return
	}

	order, err := h.Orders.Purchase(c.Request.Context(), currentUser(c), input.ProductID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Order completed", order)
}

func (h *Handler) GetMyOrders(c *gin.Context) {
	skip, limit := utils.Pagination(c)
	orders, err := h.Orders.ListForUser(c.Request.Context(), currentUser(c), skip, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	utils.APIResponse(c, http.StatusOK, true, "My orders", orders)
}

// GetOrderDetail returns one of the caller's orders; admins can read any.
func (h *Handler) GetOrderDetail(c *gin.Context) {
	order, err := h.Orders.Get(c.Request.Context(), currentUser(c), c.Param("id"), isAdmin(c))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Order", order)
}

// RefundOrder (admin)
func (h *Handler) RefundOrder(c *gin.Context) {
	var input models.RefundInput
	// body is optional
	if c.Request.ContentLength > 0 && !bind(c, &input) {
		return
	}

	order, err := h.Orders.Refund(c.Request.Context(), currentUser(c), c.Param("id"), input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Order refunded", order)
}

func (h *Handler) GetMySubscriptions(c *gin.Context) {
	subs, err := h.Subscriptions.ListForUser(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if subs == nil {
		subs = []models.Subscription{}
	}
	utils.APIResponse(c, http.StatusOK, true, "My subscriptions", subs)
}
