package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/splunklabhq/splunklab/backend/services/httputils"
	"github.com/splunklabhq/splunklab/backend/services/utils"
	logger "github.com/splunklabhq/splunklab/backend/services/lablogger"
)

// PortToListen is the port the portal's HTTP server binds. TLS is terminated
// by the platform load balancer in front of it.
const PortToListen = 8080

// requestsPerSecond and requestBurst bound the request rate per portal
// process. The dashboard polls every 3 seconds, so a healthy client sits far
// below this.
const (
	requestsPerSecond = 25
	requestBurst      = 50
)

// throttleMiddleware rejects requests beyond the configured rate with a 429.
func throttleMiddleware(limiter *rate.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// processInstanceActionRequest handles a single lifecycle action from one
// dashboard row.
func processInstanceActionRequest(w http.ResponseWriter, r *http.Request, queue chan<- httputils.ServerRequest) {
	if err := httputils.VerifyRequestType(w, r, http.MethodPost); err != nil {
		return
	}

	var reqdata httputils.InstanceActionRequest
	email, err := httputils.AuthenticateRequest(w, r, &reqdata)
	if err != nil {
		logger.Error(err)
		return
	}
	reqdata.UserEmail = email

	queue <- &reqdata
	res := <-reqdata.ResultChan
	res.Send(w)
}

// processBulkActionRequest handles the same action applied to every selected
// instance at once.
func processBulkActionRequest(w http.ResponseWriter, r *http.Request, queue chan<- httputils.ServerRequest) {
	if err := httputils.VerifyRequestType(w, r, http.MethodPost); err != nil {
		return
	}

	var reqdata httputils.BulkActionRequest
	email, err := httputils.AuthenticateRequest(w, r, &reqdata)
	if err != nil {
		logger.Error(err)
		return
	}
	reqdata.UserEmail = email

	queue <- &reqdata
	res := <-reqdata.ResultChan
	res.Send(w)
}

// processWindowsPasswordRequest handles Windows credential retrieval. The
// click limiter is consulted in the event loop before the request is
// forwarded upstream.
func processWindowsPasswordRequest(w http.ResponseWriter, r *http.Request, queue chan<- httputils.ServerRequest) {
	if err := httputils.VerifyRequestType(w, r, http.MethodPost); err != nil {
		return
	}

	var reqdata httputils.WindowsPasswordRequest
	email, err := httputils.AuthenticateRequest(w, r, &reqdata)
	if err != nil {
		logger.Error(err)
		return
	}
	reqdata.UserEmail = email

	queue <- &reqdata
	res := <-reqdata.ResultChan
	res.Send(w)
}

// processClusterWizardRequest handles the wizard control endpoints. The
// operation comes from the URL, everything else from the body.
func processClusterWizardRequest(op string) func(http.ResponseWriter, *http.Request, chan<- httputils.ServerRequest) {
	return func(w http.ResponseWriter, r *http.Request, queue chan<- httputils.ServerRequest) {
		if err := httputils.VerifyRequestType(w, r, http.MethodPost); err != nil {
			return
		}

		var reqdata httputils.ClusterWizardRequest
		email, err := httputils.AuthenticateRequest(w, r, &reqdata)
		if err != nil {
			logger.Error(err)
			return
		}
		reqdata.Op = op
		reqdata.UserEmail = email

		queue <- &reqdata
		res := <-reqdata.ResultChan
		res.Send(w)
	}
}

// processCartRequest handles cart mutations. The operation comes from the
// URL.
func processCartRequest(op string) func(http.ResponseWriter, *http.Request, chan<- httputils.ServerRequest) {
	return func(w http.ResponseWriter, r *http.Request, queue chan<- httputils.ServerRequest) {
		if err := httputils.VerifyRequestType(w, r, http.MethodPost); err != nil {
			return
		}

		var reqdata httputils.CartRequest
		email, err := httputils.AuthenticateRequest(w, r, &reqdata)
		if err != nil {
			logger.Error(err)
			return
		}
		reqdata.Op = op
		reqdata.UserEmail = email

		queue <- &reqdata
		res := <-reqdata.ResultChan
		res.Send(w)
	}
}

// processCreateOrderRequest handles payment order creation.
func processCreateOrderRequest(w http.ResponseWriter, r *http.Request, queue chan<- httputils.ServerRequest) {
	if err := httputils.VerifyRequestType(w, r, http.MethodPost); err != nil {
		return
	}

	var reqdata httputils.CreateOrderRequest
	email, err := httputils.AuthenticateRequest(w, r, &reqdata)
	if err != nil {
		logger.Error(err)
		return
	}
	reqdata.UserEmail = email

	queue <- &reqdata
	res := <-reqdata.ResultChan
	res.Send(w)
}

// processVerifyPaymentRequest handles the checkout callback.
func processVerifyPaymentRequest(w http.ResponseWriter, r *http.Request, queue chan<- httputils.ServerRequest) {
	if err := httputils.VerifyRequestType(w, r, http.MethodPost); err != nil {
		return
	}

	var reqdata httputils.VerifyPaymentRequest
	email, err := httputils.AuthenticateRequest(w, r, &reqdata)
	if err != nil {
		logger.Error(err)
		return
	}
	reqdata.UserEmail = email

	queue <- &reqdata
	res := <-reqdata.ResultChan
	res.Send(w)
}

// processQueryRequest handles the body-less endpoints. The resource name
// comes from the route.
func processQueryRequest(method string, resource string) func(http.ResponseWriter, *http.Request, chan<- httputils.ServerRequest) {
	return func(w http.ResponseWriter, r *http.Request, queue chan<- httputils.ServerRequest) {
		if err := httputils.VerifyRequestType(w, r, method); err != nil {
			return
		}

		email, err := httputils.AuthenticateUser(w, r)
		if err != nil {
			logger.Error(err)
			return
		}

		reqdata := httputils.QueryRequest{
			Resource:  resource,
			UserEmail: email,
		}
		reqdata.CreateResultChan()

		queue <- &reqdata
		res := <-reqdata.ResultChan
		res.Send(w)
	}
}

// StartHTTPServer returns a channel of events from the dashboard as its
// first return value.
func StartHTTPServer(globalCtx context.Context, globalCancel context.CancelFunc, goroutineTracker *sync.WaitGroup) (<-chan httputils.ServerRequest, error) {
	logger.Info("Setting up HTTP server.")

	// Buffer up to 100 events so we don't block. This should be mostly
	// unnecessary, but we want to be able to handle a burst without blocking.
	events := make(chan httputils.ServerRequest, 100)

	createHandler := func(f func(http.ResponseWriter, *http.Request, chan<- httputils.ServerRequest)) func(http.ResponseWriter, *http.Request) {
		return func(w http.ResponseWriter, r *http.Request) {
			f(w, r, events)
		}
	}

	// Create a custom HTTP Request Multiplexer
	mux := http.NewServeMux()
	mux.Handle("/", http.NotFoundHandler())
	mux.HandleFunc("/instances", createHandler(processQueryRequest(http.MethodGet, "instances")))
	mux.HandleFunc("/instances/action", createHandler(processInstanceActionRequest))
	mux.HandleFunc("/instances/bulk", createHandler(processBulkActionRequest))
	mux.HandleFunc("/refresh", createHandler(processQueryRequest(http.MethodPost, "refresh")))
	mux.HandleFunc("/usage", createHandler(processQueryRequest(http.MethodGet, "usage")))
	mux.HandleFunc("/keys", createHandler(processQueryRequest(http.MethodGet, "keys")))
	mux.HandleFunc("/win-pass", createHandler(processWindowsPasswordRequest))
	mux.HandleFunc("/win-pass/limit", createHandler(processQueryRequest(http.MethodGet, "win-pass-limit")))
	mux.HandleFunc("/cluster/state", createHandler(processQueryRequest(http.MethodGet, "cluster-state")))
	mux.HandleFunc("/cluster/start", createHandler(processClusterWizardRequest("start")))
	mux.HandleFunc("/cluster/retry", createHandler(processClusterWizardRequest("retry")))
	mux.HandleFunc("/cluster/cancel", createHandler(processClusterWizardRequest("cancel")))
	mux.HandleFunc("/cart", createHandler(processQueryRequest(http.MethodGet, "cart")))
	mux.HandleFunc("/cart/add", createHandler(processCartRequest("add")))
	mux.HandleFunc("/cart/remove", createHandler(processCartRequest("remove")))
	mux.HandleFunc("/payments/create-order", createHandler(processCreateOrderRequest))
	mux.HandleFunc("/payments/verify", createHandler(processVerifyPaymentRequest))

	throttle := rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst)

	// Create the server itself
	server := &http.Server{
		Addr:              utils.Sprintf("0.0.0.0:%v", PortToListen),
		Handler:           throttleMiddleware(throttle, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start goroutine that shuts down `server` if the global context gets
	// cancelled.
	goroutineTracker.Add(1)
	go func() {
		defer goroutineTracker.Done()

		// Start goroutine that actually listens for requests
		goroutineTracker.Add(1)
		go func() {
			defer goroutineTracker.Done()

			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				close(events)
				logger.Panicf(globalCancel, "Error listening and serving in httpserver: %s", err)
			}
		}()

		// Listen for global context cancellation
		<-globalCtx.Done()

		logger.Infof("Shutting down httpserver...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			logger.Infof("Shut down httpserver with error %s", err)
		} else {
			logger.Info("Gracefully shut down httpserver.")
		}
	}()

	return events, nil
}
