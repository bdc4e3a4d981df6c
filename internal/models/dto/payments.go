package dto

type CreateOrderRequest struct {
	Credits int `json:"credits"`
}

type CreateOrderResponse struct {
	Success       bool   `json:"success"`
	OrderID       string `json:"orderId"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	RazorpayKeyID string `json:"razorpayKeyId"`
	Error         string `json:"error,omitempty"`
}

// VerifyPaymentRequest carries the identifiers issued by the checkout overlay.
type VerifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type VerifyPaymentResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
