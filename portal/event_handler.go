package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/splunklabhq/splunklab/backend/services/cart"
	"github.com/splunklabhq/splunklab/backend/services/clusterwizard"
	"github.com/splunklabhq/splunklab/backend/services/config"
	"github.com/splunklabhq/splunklab/backend/services/constants"
	"github.com/splunklabhq/splunklab/backend/services/eventlog"
	"github.com/splunklabhq/splunklab/backend/services/hosts/aws"
	"github.com/splunklabhq/splunklab/backend/services/httputils"
	"github.com/splunklabhq/splunklab/backend/services/instances"
	"github.com/splunklabhq/splunklab/backend/services/labclient"
	"github.com/splunklabhq/splunklab/backend/services/metadata"
	"github.com/splunklabhq/splunklab/backend/services/payments"
	"github.com/splunklabhq/splunklab/backend/services/poller"
	"github.com/splunklabhq/splunklab/backend/services/ratelimit"
	"github.com/splunklabhq/splunklab/backend/services/ratelimit/store"
	"github.com/splunklabhq/splunklab/backend/services/subscriptions"
	"github.com/splunklabhq/splunklab/backend/services/types"
	"github.com/splunklabhq/splunklab/backend/services/utils"
	logger "github.com/splunklabhq/splunklab/backend/services/lablogger"
)

// sessionState is the dashboard session this portal process serves: the
// authenticated user and the last instance snapshot the poller fetched.
type sessionState struct {
	mu        sync.Mutex
	email     types.UserEmail
	instances []labclient.Instance
}

func (s *sessionState) update(email types.UserEmail, list []labclient.Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = email
	s.instances = list
}

func (s *sessionState) snapshot() (types.UserEmail, []labclient.Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email, append([]labclient.Instance(nil), s.instances...)
}

// portalServices bundles every component the event loop dispatches into.
type portalServices struct {
	labClient  *labclient.Client
	source     instanceSource
	controller *instances.Controller
	pollc      *poller.Coordinator
	limiter    *ratelimit.Limiter
	wizard     *clusterwizard.Wizard
	cart       *cart.Cart
	recorder   *eventlog.Recorder
	session    *sessionState

	paymentsClient *payments.PaymentsClient
	paymentsOK     bool
}

func main() {
	// Flush Sentry and Logz.io on the way out so shutdown errors are not
	// lost.
	defer logger.Close()

	globalCtx, globalCancel := context.WithCancel(context.Background())
	goroutineTracker := &sync.WaitGroup{}

	logger.Infof("Starting lab portal in %s environment.", metadata.GetAppEnvironmentLowercase())

	// Portal configuration, with hot reload on file changes.
	configPath := os.Getenv("PORTAL_CONFIG_PATH")
	if err := config.Initialize(configPath); err != nil {
		logger.Panicf(globalCancel, "Failed to initialize portal config: %s", err)
	}
	if err := config.Watch(globalCtx, configPath); err != nil {
		logger.Errorf("Failed to watch portal config: %s", err)
	}

	services := &portalServices{
		cart:     cart.New(),
		recorder: eventlog.NewRecorder(),
		session:  &sessionState{},
	}

	// Lab backend client. Self-hosted deployments drive the cloud provider
	// directly instead.
	services.labClient = &labclient.Client{
		BaseURL:       os.Getenv("LAB_BACKEND_URL"),
		SigningSecret: os.Getenv("LAB_PROXY_SECRET"),
	}
	if metadata.IsLocalEnv() {
		if services.labClient.BaseURL == "" {
			services.labClient.BaseURL = "http://localhost:9000"
		}
		if services.labClient.SigningSecret == "" {
			services.labClient.SigningSecret = "localdev-proxy-secret"
			logger.Infof(utils.ColorRed("Using the default localdev proxy secret."))
		}
	}
	if err := services.labClient.Initialize(); err != nil {
		logger.Panicf(globalCancel, "Failed to initialize lab backend client: %s", err)
	}

	var dispatcher instances.Dispatcher = services.labClient
	services.source = services.labClient
	if os.Getenv("SELF_HOSTED") == "true" {
		host := &aws.AWSHost{}
		if err := host.Initialize(types.Region(os.Getenv("AWS_REGION"))); err != nil {
			logger.Panicf(globalCancel, "Failed to initialize AWS host handler: %s", err)
		}
		driver := &selfHostedDriver{host: host}
		dispatcher = driver
		services.source = driver
		logger.Info("Running in self-hosted mode, driving EC2 directly.")
	}

	// The click limiter behind Windows password retrieval, persisted across
	// reloads and restarts through the tiered store.
	tiers := []store.Tier{}
	pgTier, err := store.NewPostgresTier(globalCtx)
	if err != nil {
		logger.Warningf("Rate-limit database tier unavailable: %s", err)
	} else {
		defer pgTier.Close()
		tiers = append(tiers, pgTier)
	}
	tiers = append(tiers, store.NewSessionTier(), store.NewDerivedTier(constants.PasswordResetInterval))
	services.limiter = ratelimit.New(
		store.New(constants.PasswordResetInterval, tiers...),
		constants.MaxPasswordClicks,
		constants.PasswordResetInterval,
	)

	// Polling coordinator. Its poll cycle re-reads the session's instances
	// and keeps its own gates up to date. Embedded read-only views poll an
	// order of magnitude slower than the interactive dashboard.
	pollInterval := constants.DashboardPollInterval
	if os.Getenv("EMBED_VIEW") == "true" {
		pollInterval = constants.EmbedPollInterval
	}
	services.pollc = poller.New(globalCtx, pollInterval, func(ctx context.Context) {
		email, _ := services.session.snapshot()
		if email == "" {
			return
		}
		list, err := services.source.Instances(ctx, email)
		if err != nil {
			logger.Warningf("Polling instance state failed: %s", err)
			return
		}
		services.session.update(email, list)
		services.pollc.SetHasInstances(len(list) > 0)
	})

	freezes := instances.NewFreezeSet()
	services.controller = instances.NewController(dispatcher, services.pollc, freezes, constants.ActionCooldown)
	services.wizard = clusterwizard.New(services.labClient, freezes, services.pollc, constants.ClusterFreezeDuration)

	// Payments, configured from the config database when it is reachable.
	if subscriptions.Enabled() {
		graphqlClient := &subscriptions.GraphQLClient{}
		if err := graphqlClient.Initialize(); err != nil {
			logger.Errorf("Failed to start config GraphQL client: %s", err)
		} else {
			services.paymentsClient = &payments.PaymentsClient{}
			err := services.paymentsClient.Initialize(graphqlClient, &payments.GatewayClient{}, &payments.StripeClient{})
			if err != nil {
				logger.Errorf("Failed to initialize payments: %s", err)
			} else {
				services.paymentsOK = true
			}
		}
	} else {
		logger.Info("Config database disabled, payments are off.")
	}

	events, err := StartHTTPServer(globalCtx, globalCancel, goroutineTracker)
	if err != nil {
		logger.Panicf(globalCancel, "Failed to start HTTP server: %s", err)
	}

	go eventLoop(globalCtx, goroutineTracker, events, services)

	// Register a signal handler for Ctrl-C so that we clean up gracefully.
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Wait for either the global context to get cancelled by a worker
	// goroutine, or for us to receive an interrupt. This needs to be the
	// end of main().
	select {
	case <-sigChan:
		logger.Infof("Got an interrupt or SIGTERM")
	case <-globalCtx.Done():
		logger.Infof("Global context cancelled!")
	}

	globalCancel()
	services.pollc.Stop()
	goroutineTracker.Wait()
}

func eventLoop(globalCtx context.Context, goroutineTracker *sync.WaitGroup, events <-chan httputils.ServerRequest, services *portalServices) {
	for {
		select {
		case <-globalCtx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}

			// Each request is handled in its own goroutine so a slow
			// upstream call can't stall the loop.
			goroutineTracker.Add(1)
			go func() {
				defer goroutineTracker.Done()

				switch event := event.(type) {
				case *httputils.QueryRequest:
					handleQueryRequest(globalCtx, services, event)
				case *httputils.InstanceActionRequest:
					handleInstanceActionRequest(globalCtx, services, event)
				case *httputils.BulkActionRequest:
					handleBulkActionRequest(globalCtx, services, event)
				case *httputils.WindowsPasswordRequest:
					handleWindowsPasswordRequest(globalCtx, services, event)
				case *httputils.ClusterWizardRequest:
					handleClusterWizardRequest(globalCtx, services, event)
				case *httputils.CartRequest:
					handleCartRequest(services, event)
				case *httputils.CreateOrderRequest:
					handleCreateOrderRequest(services, event)
				case *httputils.VerifyPaymentRequest:
					handleVerifyPaymentRequest(services, event)
				default:
					if event != nil {
						event.ReturnResult(nil, utils.MakeError("unknown request type %T", event))
					}
				}
			}()
		}
	}
}

func handleQueryRequest(ctx context.Context, services *portalServices, req *httputils.QueryRequest) {
	switch req.Resource {
	case "instances":
		list, err := services.source.Instances(ctx, req.UserEmail)
		if err != nil {
			req.ReturnResult(nil, err)
			return
		}
		services.session.update(req.UserEmail, list)
		services.pollc.SetSessionActive(true)
		services.pollc.SetHasInstances(len(list) > 0)
		req.ReturnResult(list, nil)

	case "refresh":
		services.pollc.ManualRefresh()
		req.ReturnResult("refresh started", nil)

	case "usage":
		usage, err := services.labClient.UsageSummary(ctx, req.UserEmail)
		req.ReturnResult(usage, err)

	case "keys":
		if !config.GetCapabilities("Splunk").CredentialFiles {
			req.ReturnResult(nil, utils.MakeError("credential files are not enabled for this service"))
			return
		}
		keys, err := services.labClient.UserKeys(ctx, req.UserEmail)
		req.ReturnResult(keys, err)

	case "win-pass-limit":
		status, err := services.limiter.Status(ctx, req.UserEmail)
		if err != nil {
			req.ReturnResult(nil, err)
			return
		}
		req.ReturnResult(struct {
			RemainingClicks int    `json:"remaining_clicks"`
			RetryAfterSecs  int    `json:"retry_after_seconds"`
			Countdown       string `json:"countdown"`
		}{
			RemainingClicks: status.RemainingClicks,
			RetryAfterSecs:  int(status.RetryAfter.Seconds()),
			Countdown:       utils.FormatCountdown(status.RetryAfter),
		}, nil)

	case "cluster-state":
		_, list := services.session.snapshot()
		_, detected := clusterwizard.DetectClusterSet(list, config.GetRolePatterns())
		req.ReturnResult(struct {
			Wizard     clusterwizard.State `json:"wizard"`
			ClusterSet bool                `json:"cluster_set"`
		}{services.wizard.State(), detected}, nil)

	case "cart":
		req.ReturnResult(struct {
			Items      []cart.Item `json:"items"`
			TotalCents int64       `json:"total_cents"`
		}{services.cart.Items(), services.cart.TotalCents()}, nil)

	default:
		req.ReturnResult(nil, utils.MakeError("unknown query resource %s", req.Resource))
	}
}

func handleInstanceActionRequest(ctx context.Context, services *portalServices, req *httputils.InstanceActionRequest) {
	err := services.controller.PerformAction(ctx, req.UserEmail, req.Action, req.InstanceID, req.Region)
	services.recorder.Record(req.UserEmail, "instance_action",
		utils.Sprintf("%s %s", req.Action, req.InstanceID), errDetails(err))
	if err != nil {
		req.ReturnResult(nil, err)
		return
	}
	req.ReturnResult("dispatched", nil)
}

func handleBulkActionRequest(ctx context.Context, services *portalServices, req *httputils.BulkActionRequest) {
	_, snapshot := services.session.snapshot()
	byID := map[types.InstanceID]labclient.Instance{}
	for _, instance := range snapshot {
		byID[instance.ID] = instance
	}

	targets := make([]labclient.Instance, 0, len(req.InstanceIDs))
	for _, id := range utils.Dedup(req.InstanceIDs) {
		if instance, ok := byID[id]; ok {
			targets = append(targets, instance)
			continue
		}
		// Not in the snapshot yet, fall back to the request's region.
		targets = append(targets, labclient.Instance{ID: id, Region: req.Region})
	}

	result, err := services.controller.PerformBulkAction(ctx, req.UserEmail, req.Action, targets)
	services.recorder.Record(req.UserEmail, "bulk_action",
		utils.Sprintf("%s %d instances", req.Action, len(targets)), errDetails(err))
	if err != nil {
		req.ReturnResult(nil, err)
		return
	}

	failures := map[types.InstanceID]string{}
	for id, ferr := range result.Failures {
		failures[id] = ferr.Error()
	}
	req.ReturnResult(struct {
		Dispatched int                         `json:"dispatched"`
		Failures   map[types.InstanceID]string `json:"failures,omitempty"`
	}{result.Dispatched, failures}, nil)
}

func handleWindowsPasswordRequest(ctx context.Context, services *portalServices, req *httputils.WindowsPasswordRequest) {
	if !config.GetCapabilities("Splunk").WindowsCredentials {
		req.ReturnResult(nil, utils.MakeError("windows credentials are not enabled for this service"))
		return
	}

	decision, err := services.limiter.RegisterClick(ctx, req.UserEmail)
	if err != nil {
		req.ReturnResult(nil, err)
		return
	}
	if !decision.Allowed {
		services.recorder.Record(req.UserEmail, "win_pass", "Password click rate limited",
			utils.FormatCountdown(decision.RetryAfter))
		req.ReturnResult(nil, utils.MakeError("password retrieval limit reached, try again in %s",
			utils.FormatCountdown(decision.RetryAfter)))
		return
	}

	creds, err := services.labClient.WindowsPassword(ctx, req.UserEmail, req.InstanceID)
	services.recorder.Record(req.UserEmail, "win_pass",
		utils.Sprintf("Password retrieved for %s", req.InstanceID), errDetails(err))
	if err != nil {
		req.ReturnResult(nil, err)
		return
	}

	req.ReturnResult(httputils.WindowsPasswordResult{
		Username: creds.Username,
		Password: creds.Password,
		PublicIP: creds.PublicIP,
	}, nil)
}

func handleClusterWizardRequest(ctx context.Context, services *portalServices, req *httputils.ClusterWizardRequest) {
	var err error
	switch req.Op {
	case "start":
		if !config.GetCapabilities("Splunk").ClusterConfiguration {
			req.ReturnResult(nil, utils.MakeError("cluster configuration is not enabled for this service"))
			return
		}
		_, snapshot := services.session.snapshot()
		members, ok := clusterwizard.DetectClusterSet(snapshot, config.GetRolePatterns())
		if !ok {
			req.ReturnResult(nil, utils.MakeError("your lab doesn't contain a complete cluster set"))
			return
		}
		err = services.wizard.Start(ctx, req.UserEmail, members)
	case "retry":
		err = services.wizard.Retry(ctx)
	case "cancel":
		err = services.wizard.Cancel()
	default:
		err = utils.MakeError("unknown cluster wizard operation %s", req.Op)
	}

	services.recorder.Record(req.UserEmail, "cluster_wizard", req.Op, errDetails(err))
	if err != nil {
		req.ReturnResult(nil, err)
		return
	}
	req.ReturnResult(services.wizard.State(), nil)
}

func handleCartRequest(services *portalServices, req *httputils.CartRequest) {
	switch req.Op {
	case "add":
		added, replaced := services.cart.Add(cart.Item{
			Name:          req.Name,
			ServiceType:   req.ServiceType,
			PlanCode:      req.PlanCode,
			AmountCents:   req.AmountCents,
			Currency:      req.Currency,
			Hours:         req.Hours,
			PricingOption: req.PricingOption,
			Components:    req.Components,
		})
		req.ReturnResult(struct {
			Added    cart.Item  `json:"added"`
			Replaced *cart.Item `json:"replaced,omitempty"`
		}{added, replaced}, nil)
	case "remove":
		if err := services.cart.Remove(req.ItemID); err != nil {
			req.ReturnResult(nil, err)
			return
		}
		req.ReturnResult("removed", nil)
	default:
		req.ReturnResult(nil, utils.MakeError("unknown cart operation %s", req.Op))
	}
}

func handleCreateOrderRequest(services *portalServices, req *httputils.CreateOrderRequest) {
	if !services.paymentsOK {
		req.ReturnResult(nil, utils.MakeError("payments are not configured"))
		return
	}

	amount := req.AmountCents
	currency := req.Currency
	receipt := req.Receipt
	if amount == 0 {
		// No explicit amount means "charge the cart".
		amount = services.cart.TotalCents()
		if currency == "" {
			currency = "usd"
		}
		if receipt == "" {
			receipt = utils.Sprintf("cart-%s", services.recorder.Session())
		}
	}

	order, err := services.paymentsClient.CreateOrder(amount, currency, receipt)
	services.recorder.Record(req.UserEmail, "payment", "Order created", errDetails(err))
	req.ReturnResult(order, err)
}

func handleVerifyPaymentRequest(services *portalServices, req *httputils.VerifyPaymentRequest) {
	if !services.paymentsOK {
		req.ReturnResult(nil, utils.MakeError("payments are not configured"))
		return
	}

	if !services.paymentsClient.VerifyPayment(req.OrderID, req.PaymentID, req.Signature) {
		services.recorder.Record(req.UserEmail, "payment", "Payment rejected", req.OrderID)
		req.ReturnResult(nil, utils.MakeError("payment signature verification failed for order %s", req.OrderID))
		return
	}

	// A verified payment settles the cart.
	services.cart.Clear()
	services.recorder.Record(req.UserEmail, "payment", "Payment verified", req.OrderID)
	req.ReturnResult("verified", nil)
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
