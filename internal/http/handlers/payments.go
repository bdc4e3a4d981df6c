package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/codeturtle/turtle-web/internal/billing"
	"github.com/codeturtle/turtle-web/internal/http/respond"
	"github.com/codeturtle/turtle-web/internal/http/views"
	"github.com/codeturtle/turtle-web/internal/models/dto"
)

const msgCheckoutUnavailable = "Razorpay checkout is not available. Make sure checkout script is loaded."

// pricingPage is the data of the pricing template.
type pricingPage struct {
	Tiers    []billing.Tier
	Credits  int
	Checkout string
}

// PaymentsHandler owns the pricing page, order creation and payment verification.
type PaymentsHandler struct {
	site *Site
}

// NewPaymentsHandler constructs the handler.
func NewPaymentsHandler(site *Site) *PaymentsHandler {
	return &PaymentsHandler{site: site}
}

// Register attaches the payment routes.
func (h *PaymentsHandler) Register(r chi.Router) {
	r.Get("/pricing", h.show)
	r.Post("/pricing/buy", h.buy)
	r.Post("/payments/verify", h.verify)
}

func (h *PaymentsHandler) show(w http.ResponseWriter, r *http.Request) {
	p := h.site.page(r, "Pricing")
	p.Data = pricingPage{Tiers: billing.Tiers, Credits: billing.DefaultCredits}
	h.site.Views.Render(w, http.StatusOK, views.PagePricing, p)
}

func (h *PaymentsHandler) buy(w http.ResponseWriter, r *http.Request) {
	v := mustVisitor(w, r)
	if v == nil {
		return
	}
	data := pricingPage{Tiers: billing.Tiers, Credits: billing.DefaultCredits}
	p := h.site.page(r, "Pricing")

	credits, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("credits")))
	if err != nil {
		credits = 0
	}
	if credits > 0 {
		data.Credits = credits
	}

	gateway := billing.NewPageGateway(h.site.CheckoutURL)
	widget := billing.NewWidget(v.Client.Payments(), gateway)
	err = widget.Buy(r.Context(), credits)
	opts, opened := gateway.Opened()
	status := http.StatusOK
	switch {
	case errors.Is(err, billing.ErrInvalidCredits):
		status = http.StatusBadRequest
		p.Error = "Please enter a positive number of credits"
	case errors.Is(err, billing.ErrCheckoutUnavailable):
		p.Error = msgCheckoutUnavailable
	case err != nil:
		p.Error = err.Error()
	case !opened:
		p.Error = "Failed to buy credits"
	default:
		js, err := billing.OptionsJSON(opts)
		if err != nil {
			log.Error().Err(err).Str("order", opts.OrderID).Msg("[billing] encode checkout options")
			p.Error = "Failed to buy credits"
			break
		}
		data.Checkout = js
		log.Info().Str("visitor", v.ID).Str("order", opts.OrderID).Int("credits", credits).Msg("[billing] checkout opened")
	}
	p.Data = data
	h.site.Views.Render(w, status, views.PagePricing, p)
}

// verify receives the checkout's completion callback from the browser.
func (h *PaymentsHandler) verify(w http.ResponseWriter, r *http.Request) {
	v := mustVisitor(w, r)
	if v == nil {
		return
	}
	var req dto.VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	widget := billing.NewWidget(v.Client.Payments(), nil)
	err := widget.Verify(r.Context(), billing.PaymentResult{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		respond.JSON(w, http.StatusOK, respond.Envelope{Error: err.Error()})
		return
	}
	v.Session.Refresh(r.Context())
	respond.OK(w)
}
