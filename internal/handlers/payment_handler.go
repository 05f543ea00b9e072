package handlers

import (
	"net/http"

	"ottsonly-backend/internal/models"
	"ottsonly-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// AddMoney opens a gateway order for a wallet top-up.
func (h *Handler) AddMoney(c *gin.Context) {
	var input models.AddMoneyInput
	if !bind(c, &input) {
		return
	}
	order, err := h.Payments.Initiate(c.Request.Context(), currentUser(c), input.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Payment order created", order)
}

// VerifyPayment checks the gateway callback and credits the wallet once.
// Rejections carry a fixed message whatever the cause.
func (h *Handler) VerifyPayment(c *gin.Context) {
	var input models.VerifyPaymentInput
	if !bind(c, &input) {
		return
	}
	res, err := h.Payments.Verify(c.Request.Context(), currentUser(c), input.OrderID, input.PaymentID, input.Signature)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Payment verified, wallet credited", res)
}
