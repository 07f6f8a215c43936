package donation

import (
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
)

// CheckoutParams describes a one-time donation checkout session.
type CheckoutParams struct {
	Amount     int64  // Amount in cents
	Currency   string // ISO currency code, e.g. "pen"
	DonorID    string
	RecyclerID string
	SuccessURL string
	CancelURL  string
}

// Client is an interface for Stripe checkout operations to enable testing
// with mocks.
type Client interface {
	CreateCheckoutSession(params *CheckoutParams) (*stripe.CheckoutSession, error)
}

// StripeClient implements Client using the real Stripe SDK.
type StripeClient struct{}

// NewStripeClient creates a new Stripe client with the given API key.
func NewStripeClient(apiKey string) *StripeClient {
	stripe.Key = apiKey
	return &StripeClient{}
}

// CreateCheckoutSession creates a Stripe Checkout Session for a one-time
// donation with an inline price.
func (c *StripeClient) CreateCheckoutSession(params *CheckoutParams) (*stripe.CheckoutSession, error) {
	sessionParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(params.Currency),
					UnitAmount: stripe.Int64(params.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("EcoCiclo donation"),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		Metadata: map[string]string{
			"donor_id":    params.DonorID,
			"recycler_id": params.RecyclerID,
		},
	}

	return session.New(sessionParams)
}
