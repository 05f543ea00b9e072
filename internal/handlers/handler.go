package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ottsonly-backend/internal/ledger"
	"ottsonly-backend/internal/models"
	"ottsonly-backend/internal/orders"
	"ottsonly-backend/internal/payment"
	"ottsonly-backend/internal/referral"
	"ottsonly-backend/internal/saga"
	"ottsonly-backend/internal/stock"
	"ottsonly-backend/internal/subscriptions"
	"ottsonly-backend/pkg/logger"
	"ottsonly-backend/pkg/utils"
	"ottsonly-backend/pkg/validation"

	"github.com/gin-gonic/gin"
)

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type ProductStore interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP layer calls into.
type Deps struct {
	Users         UserStore
	Products      ProductStore
	Health        Pinger
	Ledger        *ledger.Service
	Stock         *stock.Service
	Orders        *orders.Service
	Subscriptions *subscriptions.Service
	Payments      *payment.Service
	Referrals     *referral.Service

	JWTSecret  string
	JWTTTL     time.Duration
	BcryptCost int
}

type Handler struct {
	Deps
}

func New(d Deps) *Handler {
	return &Handler{Deps: d}
}

// bind decodes the JSON body and answers 400 with field messages on failure.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		utils.ValidationResponse(c, http.StatusBadRequest, "Invalid input", validation.FormatValidationError(err))
		return false
	}
	return true
}

func currentUser(c *gin.Context) string {
	return c.GetString("userID")
}

func isAdmin(c *gin.Context) bool {
	return c.GetUint("roleID") == models.RoleAdmin
}

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvariant),
		errors.Is(err, models.ErrInvalidSignature),
		errors.Is(err, models.ErrAlreadyProcessed):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrExternal):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error envelope. Server errors are logged and
// answered with a generic message.
func respondError(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.WithField("path", c.FullPath()).WithError(err).Error("request failed")
		utils.APIResponse(c, code, false, "Internal server error", nil)
		return
	}

	msg := err.Error()
	var sagaErr *saga.Error
	if errors.As(err, &sagaErr) {
		msg = sagaErr.Err.Error()
	}
	switch {
	case errors.Is(err, models.ErrInvalidSignature):
		msg = models.ErrInvalidSignature.Error()
	case errors.Is(err, models.ErrAlreadyProcessed):
		msg = models.ErrAlreadyProcessed.Error()
	}
	utils.APIResponse(c, code, false, msg, nil)
}
