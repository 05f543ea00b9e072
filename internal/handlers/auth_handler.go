package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"ottsonly-backend/internal/models"
	"ottsonly-backend/pkg/logger"
	"ottsonly-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Register creates a customer account, optionally under a referrer.
func (h *Handler) Register(c *gin.Context) {
	var input models.RegisterInput
	if !bind(c, &input) {
		return
	}
	ctx := c.Request.Context()

	// 1. Resolve the referral code before anything is written
	var referrerID *string
	if code := strings.TrimSpace(input.ReferralCode); code != "" {
		referrer, err := h.Referrals.ResolveCode(ctx, code)
		if err != nil {
			if errors.Is(err, models.ErrReferralCodeNotFound) {
				utils.APIResponse(c, http.StatusBadRequest, false, "Referral code '"+strings.ToUpper(code)+"' does not exist", nil)
				return
			}
			respondError(c, err)
			return
		}
		referrerID = &referrer.ID
	}

	// 2. Hash password
	hash, err := utils.HashPassword(input.Password, h.BcryptCost)
	if err != nil {
		respondError(c, err)
		return
	}

	// 3. Save
	user := &models.User{
		ID:           models.NewID(),
		RoleID:       models.RoleCustomer,
		Name:         input.Name,
		Email:        strings.ToLower(input.Email),
		Phone:        input.Phone,
		PasswordHash: hash,
		IsActive:     true,
	}
	if referrerID != nil {
		now := time.Now().UTC()
		user.ReferredBy = referrerID
		user.ReferralAppliedAt = &now
	}
	if err := h.Users.CreateUser(ctx, user); err != nil {
		respondError(c, err)
		return
	}

	// 4. Own referral code, failure does not block registration
	if _, err := h.Referrals.EnsureCode(ctx, user.ID); err != nil {
		logger.WithField("user_id", user.ID).WithError(err).Warn("referral code not generated")
	}

	token, err := utils.GenerateToken(h.JWTSecret, h.JWTTTL, user.ID, user.RoleID)
	if err != nil {
		respondError(c, err)
		return
	}
	created, err := h.Users.GetUser(ctx, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusCreated, true, "Registration successful", gin.H{
		"token": token,
		"user":  created,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var input models.LoginInput
	if !bind(c, &input) {
		return
	}

	user, err := h.Users.GetUserByEmail(c.Request.Context(), input.Email)
	if err != nil || !utils.CheckPassword(input.Password, user.PasswordHash) {
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			respondError(c, err)
			return
		}
		respondError(c, models.ErrInvalidCredentials)
		return
	}
	if !user.IsActive {
		utils.APIResponse(c, http.StatusForbidden, false, "Account is disabled", nil)
		return
	}

	token, err := utils.GenerateToken(h.JWTSecret, h.JWTTTL, user.ID, user.RoleID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Login successful", gin.H{
		"token": token,
		"user": gin.H{
			"id":      user.ID,
			"name":    user.Name,
			"email":   user.Email,
			"role_id": user.RoleID,
		},
	})
}
