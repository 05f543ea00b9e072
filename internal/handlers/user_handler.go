package handlers

import (
	"net/http"

	"ottsonly-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// GetProfile returns the logged in user with balances and referral code.
func (h *Handler) GetProfile(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUser(c)

	if _, err := h.Referrals.EnsureCode(ctx, userID); err != nil {
		respondError(c, err)
		return
	}
	user, err := h.Users.GetUser(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Profile", user)
}
