package payments

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/splunklabhq/splunklab/backend/services/utils"
)

// LabGatewayClient abstracts the payment gateway so the order flow can be
// mocked for testing.
type LabGatewayClient interface {
	configure(keyID string, keySecret string)
	createOrder(amountCents int64, currency string, receipt string) (*Order, error)
	verifySignature(orderID string, paymentID string, signature string) bool
}

// Order is a payment order created at the gateway. Its ID is handed to the
// browser checkout widget and later signed together with the payment id.
type Order struct {
	ID          string `json:"id"`
	AmountCents int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
	Status      string `json:"status"`
}

// GatewayClient interacts directly with the payment gateway's REST API.
type GatewayClient struct {
	keyID     string
	keySecret string
	baseURL   string

	httpClient *http.Client
}

const defaultGatewayURL = "https://api.paygateway.io/v1"

// configure sets the gateway credentials. This method makes the client
// easier to mock for testing.
func (gc *GatewayClient) configure(keyID string, keySecret string) {
	gc.keyID = keyID
	gc.keySecret = keySecret
	if gc.baseURL == "" {
		gc.baseURL = defaultGatewayURL
	}
	if gc.httpClient == nil {
		gc.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
}

// createOrder creates an order at the gateway for the given amount.
func (gc *GatewayClient) createOrder(amountCents int64, currency string, receipt string) (*Order, error) {
	body, err := json.Marshal(map[string]interface{}{
		"amount":   amountCents,
		"currency": currency,
		"receipt":  receipt,
	})
	if err != nil {
		return nil, utils.MakeError("couldn't marshal order request: %s", err)
	}

	req, err := http.NewRequest(http.MethodPost, gc.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, utils.MakeError("couldn't create order request: %s", err)
	}
	req.SetBasicAuth(gc.keyID, gc.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := gc.httpClient.Do(req)
	if err != nil {
		return nil, utils.MakeError("order request to payment gateway failed: %s", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, utils.MakeError("payment gateway returned status %d creating order", resp.StatusCode)
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, utils.MakeError("couldn't decode order response: %s", err)
	}

	return &order, nil
}

// verifySignature checks the checkout callback signature. The gateway signs
// `order_id|payment_id` with the key secret using HMAC-SHA256 and sends the
// hex digest; comparison is constant-time.
func (gc *GatewayClient) verifySignature(orderID string, paymentID string, signature string) bool {
	mac := hmac.New(sha256.New, []byte(gc.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
