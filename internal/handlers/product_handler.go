package handlers

import (
	"net/http"

	"ottsonly-backend/internal/models"
	"ottsonly-backend/pkg/logger"
	"ottsonly-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// ListProducts shows the active catalogue. Admins may pass ?all=true.
func (h *Handler) ListProducts(c *gin.Context) {
	activeOnly := !(c.Query("all") == "true" && isAdmin(c))
	products, err := h.Products.ListProducts(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	utils.APIResponse(c, http.StatusOK, true, "Products", products)
}

func (h *Handler) GetProduct(c *gin.Context) {
	p, err := h.Products.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !p.IsActive && !isAdmin(c) {
		respondError(c, models.ErrProductNotFound)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Product", p)
}

// CreateProduct (admin)
func (h *Handler) CreateProduct(c *gin.Context) {
	var input models.ProductInput
	if !bind(c, &input) {
		return
	}

	p := &models.Product{
		ID:           models.NewID(),
		PlatformName: input.PlatformName,
		PlanName:     input.PlanName,
		Description:  input.Description,
		Price:        input.Price,
		DurationDays: input.DurationDays,
		Stock:        input.Stock,
		IsActive:     true,
	}
	if input.RequiresCredential != nil {
		p.RequiresCredential = *input.RequiresCredential
	}
	if input.IsActive != nil {
		p.IsActive = *input.IsActive
	}
	if err := h.Products.CreateProduct(c.Request.Context(), p); err != nil {
		respondError(c, err)
		return
	}
	logger.WithField("product_id", p.ID).Infof("product created: %s", p.DisplayName())
	utils.APIResponse(c, http.StatusCreated, true, "Product created", p)
}

// UpdateProduct (admin) changes descriptive fields. Stock is not editable
// here; it only moves through the guarded counter.
func (h *Handler) UpdateProduct(c *gin.Context) {
	var input models.ProductUpdate
	if !bind(c, &input) {
		return
	}
	ctx := c.Request.Context()

	p, err := h.Products.GetProduct(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if input.PlanName != nil {
		p.PlanName = *input.PlanName
	}
	if input.Description != nil {
		p.Description = *input.Description
	}
	if input.Price != nil {
		p.Price = *input.Price
	}
	if input.DurationDays != nil {
		p.DurationDays = *input.DurationDays
	}
	if input.IsActive != nil {
		p.IsActive = *input.IsActive
	}
	if err := h.Products.UpdateProduct(ctx, p); err != nil {
		respondError(c, err)
		return
	}
	updated, err := h.Products.GetProduct(ctx, p.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Product updated", updated)
}

type restockInput struct {
	Quantity int64 `json:"quantity" binding:"required,gt=0"`
}

// RestockProduct (admin)
func (h *Handler) RestockProduct(c *gin.Context) {
	var input restockInput
	if !bind(c, &input) {
		return
	}
	stock, err := h.Stock.Restock(c.Request.Context(), c.Param("id"), input.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Stock updated", gin.H{
		"product_id": c.Param("id"),
		"stock":      stock,
	})
}

// AddCredential (admin) loads a login into the pool for a platform.
func (h *Handler) AddCredential(c *gin.Context) {
	var input models.CredentialInput
	if !bind(c, &input) {
		return
	}
	cred, err := h.Subscriptions.AddCredential(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusCreated, true, "Credential added", gin.H{
		"id":       cred.ID,
		"platform": cred.Platform,
		"username": cred.Username,
	})
}
