package payments

import "github.com/splunklabhq/splunklab/backend/services/subscriptions"

// PaymentsHandler is the surface the HTTP layer uses to take payments.
type PaymentsHandler interface {
	Initialize(graphQLClient subscriptions.LabGraphQLClient, gatewayClient LabGatewayClient, stripeClient LabStripeClient) error
	CreateOrder(amountCents int64, currency string, receipt string) (*Order, error)
	VerifyPayment(orderID string, paymentID string, signature string) bool
	CreateCheckoutSession(amountCents int64, currency string, productName string, successURL string, cancelURL string) (string, error)
}
