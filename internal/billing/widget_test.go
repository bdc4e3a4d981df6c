package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeturtle/turtle-web/internal/backend"
	"github.com/codeturtle/turtle-web/internal/models/dto"
)

type fakeOrders struct {
	created   []int
	orderRes  dto.CreateOrderResponse
	orderErr  error
	verified  []dto.VerifyPaymentRequest
	verifyRes dto.VerifyPaymentResponse
	verifyErr error
}

func (f *fakeOrders) CreateOrder(_ context.Context, credits int) (dto.CreateOrderResponse, error) {
	f.created = append(f.created, credits)
	return f.orderRes, f.orderErr
}

func (f *fakeOrders) Verify(_ context.Context, req dto.VerifyPaymentRequest) (dto.VerifyPaymentResponse, error) {
	f.verified = append(f.verified, req)
	return f.verifyRes, f.verifyErr
}

type fakeGateway struct {
	available bool
	opened    []CheckoutOptions
}

func (g *fakeGateway) Available() bool { return g.available }

func (g *fakeGateway) Open(opts CheckoutOptions) error {
	g.opened = append(g.opened, opts)
	return nil
}

func okOrder() dto.CreateOrderResponse {
	return dto.CreateOrderResponse{Success: true, OrderID: "order_1", Amount: 5000, Currency: "INR", RazorpayKeyID: "rzp_test"}
}

func TestBuyOpensCheckout(t *testing.T) {
	orders := &fakeOrders{orderRes: okOrder()}
	gw := &fakeGateway{available: true}
	w := NewWidget(orders, gw)

	require.NoError(t, w.Buy(context.Background(), 10))

	want := CheckoutOptions{Key: "rzp_test", Amount: 5000, Currency: "INR", Name: "Code Turtle", Description: "10 credits", OrderID: "order_1"}
	assert.Equal(t, []CheckoutOptions{want}, gw.opened)
	assert.Equal(t, []int{10}, orders.created)
}

func TestBuyRejectedOrderNeverOpensCheckout(t *testing.T) {
	orders := &fakeOrders{orderRes: dto.CreateOrderResponse{Success: false, Error: "limit exceeded"}}
	gw := &fakeGateway{available: true}

	err := NewWidget(orders, gw).Buy(context.Background(), 10)

	require.Error(t, err)
	assert.Equal(t, "limit exceeded", err.Error())
	assert.Empty(t, gw.opened)
}

func TestBuyRejectedOrderFallbackMessage(t *testing.T) {
	orders := &fakeOrders{orderRes: dto.CreateOrderResponse{Success: false}}
	err := NewWidget(orders, &fakeGateway{available: true}).Buy(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, "Failed to create order", err.Error())
}

func TestBuyTransportFailureUsesBackendMessage(t *testing.T) {
	orders := &fakeOrders{orderErr: &backend.APIError{Status: 401, Message: "Not authenticated"}}
	gw := &fakeGateway{available: true}
	err := NewWidget(orders, gw).Buy(context.Background(), 3)
	require.Error(t, err)
	assert.Equal(t, "Not authenticated", err.Error())
	assert.Empty(t, gw.opened)
}

func TestBuyInvalidCredits(t *testing.T) {
	orders := &fakeOrders{}
	for _, n := range []int{0, -4} {
		err := NewWidget(orders, &fakeGateway{available: true}).Buy(context.Background(), n)
		assert.ErrorIs(t, err, ErrInvalidCredits)
	}
	assert.Empty(t, orders.created)
}

func TestBuyWithoutCheckoutScript(t *testing.T) {
	gw := &fakeGateway{available: false}
	orders := &fakeOrders{orderRes: okOrder()}
	err := NewWidget(orders, gw).Buy(context.Background(), 10)
	assert.ErrorIs(t, err, ErrCheckoutUnavailable)
	// The order is created before the gateway is checked.
	assert.Equal(t, []int{10}, orders.created)
	assert.Empty(t, gw.opened)

	err = NewWidget(&fakeOrders{orderRes: okOrder()}, nil).Buy(context.Background(), 10)
	assert.ErrorIs(t, err, ErrCheckoutUnavailable)
}

func TestVerify(t *testing.T) {
	orders := &fakeOrders{verifyRes: dto.VerifyPaymentResponse{Success: true}}
	w := NewWidget(orders, nil)

	require.NoError(t, w.Verify(context.Background(), PaymentResult{OrderID: "o", PaymentID: "p", Signature: "s"}))
	assert.Equal(t, []dto.VerifyPaymentRequest{{OrderID: "o", PaymentID: "p", Signature: "s"}}, orders.verified)

	orders.verifyRes.Success = false
	err := w.Verify(context.Background(), PaymentResult{})
	require.Error(t, err)
	assert.Equal(t, "Payment verification failed", err.Error())

	orders.verifyErr = errors.New("timeout")
	err = w.Verify(context.Background(), PaymentResult{})
	require.Error(t, err)
	assert.Equal(t, "Payment verification failed", err.Error())
}

func TestBuyThroughPageGateway(t *testing.T) {
	gw := NewPageGateway("https://checkout.example/checkout.js")
	require.NoError(t, NewWidget(&fakeOrders{orderRes: okOrder()}, gw).Buy(context.Background(), 5))

	opts, ok := gw.Opened()
	require.True(t, ok)
	assert.Equal(t, "order_1", opts.OrderID)
	assert.Equal(t, "5 credits", opts.Description)
}

func TestPageGateway(t *testing.T) {
	assert.False(t, NewPageGateway("").Available())

	gw := NewPageGateway("https://checkout.example/checkout.js")
	assert.True(t, gw.Available())
	_, ok := gw.Opened()
	assert.False(t, ok)

	require.NoError(t, gw.Open(CheckoutOptions{OrderID: "order_9", Amount: 100}))
	opts, ok := gw.Opened()
	require.True(t, ok)
	assert.Equal(t, "order_9", opts.OrderID)

	js, err := OptionsJSON(opts)
	require.NoError(t, err)
	assert.Contains(t, js, `"order_id":"order_9"`)
	assert.Contains(t, js, `"amount":100`)
}
