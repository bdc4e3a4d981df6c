package backend

import (
	"context"

	"github.com/codeturtle/turtle-web/internal/models/dto"
)

// PaymentCalls groups the /payments endpoints.
type PaymentCalls struct {
	c *Client
}

func (p *PaymentCalls) CreateOrder(ctx context.Context, credits int) (dto.CreateOrderResponse, error) {
	var out dto.CreateOrderResponse
	err := p.c.postJSON(ctx, "/payments/create-order", dto.CreateOrderRequest{Credits: credits}, &out)
	return out, err
}

func (p *PaymentCalls) Verify(ctx context.Context, req dto.VerifyPaymentRequest) (dto.VerifyPaymentResponse, error) {
	var out dto.VerifyPaymentResponse
	err := p.c.postJSON(ctx, "/payments/verify", req, &out)
	return out, err
}
