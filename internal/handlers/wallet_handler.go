package handlers

import (
	"net/http"

	"ottsonly-backend/internal/models"
	"ottsonly-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// GetWalletBalance returns both balances of the caller.
func (h *Handler) GetWalletBalance(c *gin.Context) {
	b, err := h.Ledger.Balance(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Wallet balance", b)
}

// GetWalletTransactions lists ledger entries, newest first.
func (h *Handler) GetWalletTransactions(c *gin.Context) {
	skip, limit := utils.Pagination(c)
	txns, err := h.Ledger.Transactions(c.Request.Context(), currentUser(c), skip, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if txns == nil {
		txns = []models.WalletTransaction{}
	}
	utils.APIResponse(c, http.StatusOK, true, "Wallet transactions", txns)
}

// AdminWalletCredit adds money to a user's wallet by hand.
func (h *Handler) AdminWalletCredit(c *gin.Context) {
	var input models.AdminWalletInput
	if !bind(c, &input) {
		return
	}
	res, err := h.Ledger.AdminCredit(c.Request.Context(), currentUser(c), c.Param("id"), input.Amount, input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Wallet credited", res)
}

func (h *Handler) AdminWalletDebit(c *gin.Context) {
	var input models.AdminWalletInput
	if !bind(c, &input) {
		return
	}
	res, err := h.Ledger.AdminDebit(c.Request.Context(), currentUser(c), c.Param("id"), input.Amount, input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Wallet debited", res)
}

// ReconcileWallet compares a user's stored balance with their ledger.
func (h *Handler) ReconcileWallet(c *gin.Context) {
	r, err := h.Ledger.Reconcile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Reconciliation", r)
}
