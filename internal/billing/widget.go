// Package billing drives credit purchases: order creation, checkout and verification.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/codeturtle/turtle-web/internal/backend"
	"github.com/codeturtle/turtle-web/internal/models/dto"
)

const (
	// ProductName is shown in the checkout overlay.
	ProductName = "Code Turtle"
	// DefaultCredits is the preset purchase quantity.
	DefaultCredits = 10

	msgOrderFailed  = "Failed to create order"
	msgVerifyFailed = "Payment verification failed"
)

var (
	// ErrInvalidCredits is returned for a quantity below one.
	ErrInvalidCredits = errors.New("credits must be a positive whole number")
	// ErrCheckoutUnavailable is returned when the checkout script is not loaded.
	ErrCheckoutUnavailable = errors.New("checkout script not configured")
)

// CheckoutOptions are handed to the checkout overlay.
type CheckoutOptions struct {
	Key         string `json:"key"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OrderID     string `json:"order_id"`
}

// Gateway opens the external checkout.
type Gateway interface {
	Available() bool
	Open(opts CheckoutOptions) error
}

// OrderAPI is the backend's payment surface. *backend.PaymentCalls satisfies it.
type OrderAPI interface {
	CreateOrder(ctx context.Context, credits int) (dto.CreateOrderResponse, error)
	Verify(ctx context.Context, req dto.VerifyPaymentRequest) (dto.VerifyPaymentResponse, error)
}

var _ OrderAPI = (*backend.PaymentCalls)(nil)

// PaymentResult carries the identifiers the checkout hands back on completion.
type PaymentResult struct {
	OrderID   string
	PaymentID string
	Signature string
}

// Widget buys credits through a Gateway.
type Widget struct {
	Orders  OrderAPI
	Gateway Gateway
	Name    string
}

// NewWidget returns a widget with the default product name.
func NewWidget(orders OrderAPI, gateway Gateway) *Widget {
	return &Widget{Orders: orders, Gateway: gateway, Name: ProductName}
}

// Buy creates an order for credits and opens the checkout. The gateway is only
// opened once the backend has accepted the order.
func (w *Widget) Buy(ctx context.Context, credits int) error {
	if credits < 1 {
		return ErrInvalidCredits
	}
	res, err := w.Orders.CreateOrder(ctx, credits)
	if err != nil {
		log.Error().Err(err).Int("credits", credits).Msg("[billing] create order failed")
		return errors.New(backend.Message(err, msgOrderFailed))
	}
	if !res.Success {
		msg := strings.TrimSpace(res.Error)
		if msg == "" {
			msg = msgOrderFailed
		}
		return errors.New(msg)
	}
	if w.Gateway == nil || !w.Gateway.Available() {
		log.Error().Str("order", res.OrderID).Msg("[billing] checkout not available")
		return ErrCheckoutUnavailable
	}

	name := w.Name
	if name == "" {
		name = ProductName
	}
	opts := CheckoutOptions{
		Key:         res.RazorpayKeyID,
		Amount:      res.Amount,
		Currency:    res.Currency,
		Name:        name,
		Description: fmt.Sprintf("%d credits", credits),
		OrderID:     res.OrderID,
	}
	if err := w.Gateway.Open(opts); err != nil {
		return fmt.Errorf("open checkout: %w", err)
	}
	return nil
}

// Verify forwards the checkout's identifiers to the backend. A rejected payment
// is reported but nothing local is rolled back.
func (w *Widget) Verify(ctx context.Context, p PaymentResult) error {
	res, err := w.Orders.Verify(ctx, dto.VerifyPaymentRequest{
		OrderID:   p.OrderID,
		PaymentID: p.PaymentID,
		Signature: p.Signature,
	})
	if err != nil {
		log.Error().Err(err).Str("order", p.OrderID).Msg("[billing] verify failed")
		return errors.New(msgVerifyFailed)
	}
	if !res.Success {
		return errors.New(msgVerifyFailed)
	}
	return nil
}
