package payment

import (
	"context"
	"fmt"
	"strings"

	"ottsonly-backend/internal/models"
	"ottsonly-backend/pkg/money"

	"github.com/google/uuid"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

// OrderRequest is what the gateway needs to open a payment.
type OrderRequest struct {
	OrderID string
	Amount  money.Amount
	User    *models.User
}

// OrderHandle is what the client needs to complete the payment.
type OrderHandle struct {
	Token       string `json:"token,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// Gateway opens an external payment for an order id chosen by us.
type Gateway interface {
	Name() string
	CreateOrder(ctx context.Context, req OrderRequest) (OrderHandle, error)
}

// NewOrderID returns an external order id in the gateway's format.
func NewOrderID() string {
	return "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

// SnapClient is the part of the snap client the gateway calls.
type SnapClient interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

// MidtransGateway opens payments through Midtrans Snap.
type MidtransGateway struct {
	client SnapClient
}

func NewMidtransGateway(serverKey string, production bool) *MidtransGateway {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	var c snap.Client
	c.New(serverKey, env)
	return &MidtransGateway{client: &c}
}

func NewMidtransGatewayWithClient(client SnapClient) *MidtransGateway {
	return &MidtransGateway{client: client}
}

func (g *MidtransGateway) Name() string { return "midtrans" }

// CreateOrder sends whole currency units; Snap does not take fractions.
func (g *MidtransGateway) CreateOrder(_ context.Context, req OrderRequest) (OrderHandle, error) {
	if req.Amount%100 != 0 {
		return OrderHandle{}, fmt.Errorf("midtrans needs whole rupees, got %s: %w", req.Amount, models.ErrInvalidAmount)
	}
	gross := int64(req.Amount) / 100

	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: gross,
		},
		CreditCard: &snap.CreditCardDetails{
			Secure: true,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    "WALLET-TOPUP",
				Name:  "Wallet recharge",
				Price: gross,
				Qty:   1,
			},
		},
	}
	if req.User != nil {
		snapReq.CustomerDetail = &midtrans.CustomerDetails{
			FName: req.User.Name,
			Email: req.User.Email,
			Phone: req.User.Phone,
		}
	}

	resp, snapErr := g.client.CreateTransaction(snapReq)
	if snapErr != nil {
		return OrderHandle{}, fmt.Errorf("%w: %s", models.ErrGateway, snapErr.GetMessage())
	}
	return OrderHandle{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// SandboxGateway accepts every order locally. The client signs the
// confirmation with the shared secret, as the real checkout would.
type SandboxGateway struct{}

func (SandboxGateway) Name() string { return "sandbox" }

func (SandboxGateway) CreateOrder(_ context.Context, req OrderRequest) (OrderHandle, error) {
	return OrderHandle{Token: "sandbox_" + req.OrderID}, nil
}
