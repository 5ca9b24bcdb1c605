package httputils

import (
	"github.com/splunklabhq/splunklab/backend/services/types"
)

// Request types

// InstanceActionRequest defines the `/instances/{start|stop|reboot}`
// endpoints. A single instance action from one dashboard row.
type InstanceActionRequest struct {
	Action     string             `json:"action"`      // One of "start", "stop", "reboot"
	InstanceID types.InstanceID   `json:"instance_id"` // The id of the instance to act on
	Region     types.Region       `json:"region"`      // The region the instance lives in
	UserEmail  types.UserEmail    `json:"-"`           // Caller identity, set from the authenticated headers
	ResultChan chan RequestResult `json:"-"`           // Channel to pass the request result between goroutines
}

// ReturnResult is called to pass the result of a request back to the HTTP
// request handler.
func (s *InstanceActionRequest) ReturnResult(result interface{}, err error) {
	s.ResultChan <- RequestResult{Result: result, Err: err}
}

// CreateResultChan is called to create the Go channel to pass the request
// result back to the HTTP request handler via ReturnResult.
func (s *InstanceActionRequest) CreateResultChan() {
	if s.ResultChan == nil {
		s.ResultChan = make(chan RequestResult)
	}
}

// BulkActionRequest defines the `/instances/bulk` endpoint: the same action
// applied to every selected instance at once.
type BulkActionRequest struct {
	Action      string             `json:"action"`
	InstanceIDs []types.InstanceID `json:"instance_ids"`
	Region      types.Region       `json:"region"`
	UserEmail   types.UserEmail    `json:"-"`
	ResultChan  chan RequestResult `json:"-"`
}

func (s *BulkActionRequest) ReturnResult(result interface{}, err error) {
	s.ResultChan <- RequestResult{Result: result, Err: err}
}

func (s *BulkActionRequest) CreateResultChan() {
	if s.ResultChan == nil {
		s.ResultChan = make(chan RequestResult)
	}
}

// WindowsPasswordRequest defines the `/win-pass` endpoint. The click limiter
// is consulted before this request is forwarded upstream.
type WindowsPasswordRequest struct {
	InstanceID types.InstanceID   `json:"instance_id"`
	UserEmail  types.UserEmail    `json:"-"`
	ResultChan chan RequestResult `json:"-"`
}

func (s *WindowsPasswordRequest) ReturnResult(result interface{}, err error) {
	s.ResultChan <- RequestResult{Result: result, Err: err}
}

func (s *WindowsPasswordRequest) CreateResultChan() {
	if s.ResultChan == nil {
		s.ResultChan = make(chan RequestResult)
	}
}

// WindowsPasswordResult defines the data returned by the `/win-pass`
// endpoint.
type WindowsPasswordResult struct {
	Username string `json:"username"`
	Password string `json:"password"`
	PublicIP string `json:"publicIp,omitempty"`
}

// ClusterWizardRequest defines the cluster wizard endpoints (`/cluster/start`,
// `/cluster/retry` and `/cluster/cancel`). Op is derived from the URL, not
// the body.
type ClusterWizardRequest struct {
	ServiceType types.ServiceType  `json:"service_type"`
	Region      types.Region       `json:"region"`
	Op          string             `json:"-"`
	UserEmail   types.UserEmail    `json:"-"`
	ResultChan  chan RequestResult `json:"-"`
}

func (s *ClusterWizardRequest) ReturnResult(result interface{}, err error) {
	s.ResultChan <- RequestResult{Result: result, Err: err}
}

func (s *ClusterWizardRequest) CreateResultChan() {
	if s.ResultChan == nil {
		s.ResultChan = make(chan RequestResult)
	}
}

// CreateOrderRequest defines the `/payments/create-order` endpoint.
type CreateOrderRequest struct {
	AmountCents int64              `json:"amount_cents"`
	Currency    string             `json:"currency"`
	Receipt     string             `json:"receipt"`
	UserEmail   types.UserEmail    `json:"-"`
	ResultChan  chan RequestResult `json:"-"`
}

func (s *CreateOrderRequest) ReturnResult(result interface{}, err error) {
	s.ResultChan <- RequestResult{Result: result, Err: err}
}

func (s *CreateOrderRequest) CreateResultChan() {
	if s.ResultChan == nil {
		s.ResultChan = make(chan RequestResult)
	}
}

// VerifyPaymentRequest defines the `/payments/verify` endpoint, called after
// the gateway reports a completed payment.
type VerifyPaymentRequest struct {
	OrderID    string             `json:"order_id"`
	PaymentID  string             `json:"payment_id"`
	Signature  string             `json:"signature"`
	UserEmail  types.UserEmail    `json:"-"`
	ResultChan chan RequestResult `json:"-"`
}

func (s *VerifyPaymentRequest) ReturnResult(result interface{}, err error) {
	s.ResultChan <- RequestResult{Result: result, Err: err}
}

func (s *VerifyPaymentRequest) CreateResultChan() {
	if s.ResultChan == nil {
		s.ResultChan = make(chan RequestResult)
	}
}

// CartRequest defines the `/cart/add` and `/cart/remove` endpoints. Op is
// derived from the URL.
type CartRequest struct {
	ItemID        string             `json:"item_id,omitempty"`
	Name          string             `json:"name,omitempty"`
	ServiceType   types.ServiceType  `json:"service_type,omitempty"`
	PlanCode      string             `json:"plan_code,omitempty"`
	AmountCents   int64              `json:"amount_cents,omitempty"`
	Currency      string             `json:"currency,omitempty"`
	Hours         int                `json:"hours,omitempty"`
	PricingOption string             `json:"pricing_option,omitempty"`
	Components    []string           `json:"components,omitempty"`
	Op            string             `json:"-"`
	UserEmail     types.UserEmail    `json:"-"`
	ResultChan    chan RequestResult `json:"-"`
}

func (s *CartRequest) ReturnResult(result interface{}, err error) {
	s.ResultChan <- RequestResult{Result: result, Err: err}
}

func (s *CartRequest) CreateResultChan() {
	if s.ResultChan == nil {
		s.ResultChan = make(chan RequestResult)
	}
}

// QueryRequest defines the body-less GET endpoints (`/instances`, `/usage`,
// `/keys`, `/cluster/state`, `/win-pass/limit`) and the `/refresh` trigger.
// Resource is derived from the URL.
type QueryRequest struct {
	Resource   string             `json:"-"`
	UserEmail  types.UserEmail    `json:"-"`
	ResultChan chan RequestResult `json:"-"`
}

func (s *QueryRequest) ReturnResult(result interface{}, err error) {
	s.ResultChan <- RequestResult{Result: result, Err: err}
}

func (s *QueryRequest) CreateResultChan() {
	if s.ResultChan == nil {
		s.ResultChan = make(chan RequestResult)
	}
}
