package payments

import (
	"github.com/stripe/stripe-go/v72"
	checkout "github.com/stripe/stripe-go/v72/checkout/session"

	"github.com/splunklabhq/splunklab/backend/services/metadata"
	"github.com/splunklabhq/splunklab/backend/services/utils"
)

// LabStripeClient abstracts the Stripe integration used for card checkout,
// the alternative to the gateway flow for regions it doesn't cover.
type LabStripeClient interface {
	configure(secret string, restrictedSecret string)
	createCheckoutSession(amountCents int64, currency string, productName string, successURL string, cancelURL string) (string, error)
}

// StripeClient interacts directly with the official Stripe client.
type StripeClient struct {
	key string
}

// configure sets the Stripe API key. Localdev uses the restricted key so a
// leaked dev environment can't move money.
func (sc *StripeClient) configure(secret string, restrictedSecret string) {
	if metadata.IsLocalEnv() {
		sc.key = restrictedSecret
	} else {
		sc.key = secret
	}

	stripe.Key = sc.key
}

// createCheckoutSession creates a one-time-payment checkout session for the
// cart total and returns its URL.
func (sc *StripeClient) createCheckoutSession(amountCents int64, currency string, productName string, successURL string, cancelURL string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					UnitAmount: stripe.Int64(amountCents),
					Currency:   stripe.String(currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(productName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentMethodTypes: []*string{
			stripe.String("card"),
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}

	s, err := checkout.New(params)
	if err != nil {
		return "", utils.MakeError("failed to create checkout session: %s", err)
	}

	return s.URL, nil
}
