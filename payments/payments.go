// Package payments implements order creation and payment verification for
// lab plan purchases. The primary flow goes through the payment gateway:
// the portal creates an order server-side, the browser widget completes the
// payment, and the callback is accepted only when its HMAC signature over
// `order_id|payment_id` checks out against the gateway key secret. Card
// checkout through Stripe is kept as the fallback flow.
package payments // import "github.com/splunklabhq/splunklab/backend/services/payments"

import (
	"context"

	"github.com/splunklabhq/splunklab/backend/services/subscriptions"
	"github.com/splunklabhq/splunklab/backend/services/utils"
	logger "github.com/splunklabhq/splunklab/backend/services/lablogger"
)

// PaymentsClient handles all portal payment flows. The concrete gateway and
// Stripe clients are injected so tests can mock them.
type PaymentsClient struct {
	gatewayClient LabGatewayClient
	stripeClient  LabStripeClient
}

// Initialize pulls the gateway and Stripe credentials from the config
// database and configures both clients.
func (pc *PaymentsClient) Initialize(graphQLClient subscriptions.LabGraphQLClient, gatewayClient LabGatewayClient, stripeClient LabStripeClient) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configs, err := subscriptions.GetConfigs(ctx, graphQLClient)
	if err != nil {
		return err
	}

	keyID, ok := configs["GATEWAY_KEY_ID"]
	if !ok {
		return utils.MakeError("couldn't find key GATEWAY_KEY_ID in configurations map")
	}
	keySecret, ok := configs["GATEWAY_KEY_SECRET"]
	if !ok {
		return utils.MakeError("couldn't find key GATEWAY_KEY_SECRET in configurations map")
	}

	gatewayClient.configure(keyID, keySecret)
	pc.gatewayClient = gatewayClient

	// Stripe credentials are optional: some deployments only run the
	// gateway flow.
	secret, hasSecret := configs["STRIPE_SECRET"]
	restricted := configs["STRIPE_RESTRICTED"]
	if hasSecret {
		stripeClient.configure(secret, restricted)
		pc.stripeClient = stripeClient
	} else {
		logger.Infof("No Stripe credentials in config database, card checkout disabled.")
	}

	return nil
}

// CreateOrder creates a gateway order for the given amount. The receipt is
// an opaque caller-side reference (typically the cart id).
func (pc *PaymentsClient) CreateOrder(amountCents int64, currency string, receipt string) (*Order, error) {
	if amountCents <= 0 {
		return nil, utils.MakeError("refusing to create order for non-positive amount %d", amountCents)
	}

	order, err := pc.gatewayClient.createOrder(amountCents, currency, receipt)
	if err != nil {
		return nil, utils.MakeError("couldn't create payment order: %s", err)
	}

	logger.Infof("Created payment order %s for %d %s", order.ID, amountCents, currency)
	return order, nil
}

// VerifyPayment reports whether the checkout callback for the given order
// carries a valid gateway signature. An invalid signature is not an error,
// just a rejected payment.
func (pc *PaymentsClient) VerifyPayment(orderID string, paymentID string, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}

	valid := pc.gatewayClient.verifySignature(orderID, paymentID, signature)
	if !valid {
		logger.Warningf("rejected payment callback with bad signature for order %s", orderID)
	}
	return valid
}

// CreateCheckoutSession returns a Stripe checkout URL for the given amount.
func (pc *PaymentsClient) CreateCheckoutSession(amountCents int64, currency string, productName string, successURL string, cancelURL string) (string, error) {
	if pc.stripeClient == nil {
		return "", utils.MakeError("card checkout is not configured")
	}
	return pc.stripeClient.createCheckoutSession(amountCents, currency, productName, successURL, cancelURL)
}
