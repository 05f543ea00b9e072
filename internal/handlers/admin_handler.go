package handlers

import (
	"context"
	"net/http"
	"time"

	"ottsonly-backend/internal/models"
	"ottsonly-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// GetAllOrders lists every order, optionally filtered with ?status=.
func (h *Handler) GetAllOrders(c *gin.Context) {
	skip, limit := utils.Pagination(c)
	orders, err := h.Orders.ListAll(c.Request.Context(), c.Query("status"), skip, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	utils.APIResponse(c, http.StatusOK, true, "All orders", orders)
}

// Healthz reports whether the database answers.
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if h.Health != nil {
		if err := h.Health.Ping(ctx); err != nil {
			utils.APIResponse(c, http.StatusServiceUnavailable, false, "Database unavailable", nil)
			return
		}
	}
	utils.APIResponse(c, http.StatusOK, true, "OK", nil)
}
