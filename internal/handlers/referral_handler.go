package handlers

import (
	"net/http"

	"ottsonly-backend/internal/models"
	"ottsonly-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetReferralDashboard(c *gin.Context) {
	d, err := h.Referrals.Dashboard(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Referral dashboard", d)
}

// ApplyReferralCode links the caller to a referrer after signup.
func (h *Handler) ApplyReferralCode(c *gin.Context) {
	var input models.ApplyReferralInput
	if !bind(c, &input) {
		return
	}
	referrer, err := h.Referrals.ApplyCode(c.Request.Context(), currentUser(c), input.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Referral code applied", gin.H{
		"referrer_name": referrer.Name,
	})
}

func (h *Handler) RequestWithdrawal(c *gin.Context) {
	var input models.WithdrawInput
	if !bind(c, &input) {
		return
	}
	w, err := h.Referrals.RequestWithdrawal(c.Request.Context(), currentUser(c), input.Amount, input.PayoutID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusCreated, true, "Withdrawal request submitted", w)
}

// GetReferralStats (admin)
func (h *Handler) GetReferralStats(c *gin.Context) {
	stats, err := h.Referrals.AdminStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Referral stats", stats)
}

// GetWithdrawals (admin) filters by ?status=.
func (h *Handler) GetWithdrawals(c *gin.Context) {
	list, err := h.Referrals.ListWithdrawals(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []models.WithdrawalRequest{}
	}
	utils.APIResponse(c, http.StatusOK, true, "Withdrawal requests", list)
}

// ProcessWithdrawal (admin) approves or rejects a pending request.
func (h *Handler) ProcessWithdrawal(c *gin.Context) {
	var input models.ProcessWithdrawalInput
	if !bind(c, &input) {
		return
	}
	w, err := h.Referrals.ProcessWithdrawal(c.Request.Context(), c.Param("id"), currentUser(c), input.Status, input.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Withdrawal "+input.Status, w)
}
