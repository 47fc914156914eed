package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"a55pay-sdk/page"
	"a55pay-sdk/services/payment"
	"a55pay-sdk/services/report"
	"a55pay-sdk/types"
)

const (
	SDKScriptID      = "yuno-sdk-script"
	DefaultSDKURL    = "https://sdk-web.y.uno/v1.1/main.js"
	DefaultCountry   = "BR"
	actionFormSuffix = "-action"
)

// HostedConfig is handed to the provider when the checkout starts.
type HostedConfig struct {
	CheckoutSession string
	ElementSelector string
	ActionSelector  string
	CountryCode     string
	Language        string

	OnCreatePayment func(oneTimeToken string)
	OnResult        func(status string)
	OnError         func(message string)
	OnLoading       func(isLoading bool)
}

// HostedProvider is the hosted checkout SDK.
type HostedProvider interface {
	Initialize(ctx context.Context, apiKey string) error
	StartCheckout(ctx context.Context, cfg HostedConfig) error
	Mount() error
	ContinuePayment() error
	StartPayment() error
}

// HostedRequest is the input of a hosted checkout run.
type HostedRequest struct {
	Selector        string `json:"selector"`
	ChargeUUID      string `json:"charge_uuid"`
	CheckoutSession string `json:"checkout_session"`
	APIKey          string `json:"api_key"`
	CountryCode     string `json:"country_code,omitempty"`
}

// Validate checks the required parameters.
func (r HostedRequest) Validate() error {
	if r.Selector == "" || r.ChargeUUID == "" || r.CheckoutSession == "" || r.APIKey == "" {
		return types.NewValidationError("Missing required parameters: selector, chargeUuid, checkoutSession, or apiKey")
	}
	return nil
}

type HostedOptions struct {
	ScriptURL string
	Reporter  report.Reporter
}

// Hosted delegates the checkout UI to the provider but keeps payment
// creation and result mapping.
type Hosted struct {
	doc       page.Document
	provider  HostedProvider
	submitter payment.PaymentSubmitter
	scriptURL string
	reporter  report.Reporter

	mu      sync.Mutex
	mounted bool
}

func NewHosted(doc page.Document, provider HostedProvider, submitter payment.PaymentSubmitter, opts HostedOptions) *Hosted {
	if opts.ScriptURL == "" {
		opts.ScriptURL = DefaultSDKURL
	}
	return &Hosted{
		doc:       doc,
		provider:  provider,
		submitter: submitter,
		scriptURL: opts.ScriptURL,
		reporter:  report.OrLog(opts.Reporter),
	}
}

// Run loads the provider, starts and mounts its checkout and wires its
// callbacks to d. It returns once the checkout is mounted.
func (h *Hosted) Run(ctx context.Context, req HostedRequest, d *types.Delivery) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if h.doc.Query(req.Selector) == nil {
		return types.NewNotFoundError("Selector not found: %s", req.Selector)
	}
	country := strings.ToUpper(req.CountryCode)
	if country == "" {
		country = DefaultCountry
	}

	if err := h.loadSDK(ctx); err != nil {
		log.Printf("[Charge: %s] Failed to load hosted checkout SDK: %v", req.ChargeUUID, err)
		return types.NewNetworkError("Failed to load Yuno SDK", err)
	}
	if err := h.provider.Initialize(ctx, req.APIKey); err != nil {
		return providerError(err)
	}

	cfg := HostedConfig{
		CheckoutSession: req.CheckoutSession,
		ElementSelector: req.Selector,
		ActionSelector:  req.Selector + actionFormSuffix,
		CountryCode:     country,
		Language:        languageFor(country),
		OnCreatePayment: func(token string) { h.createPayment(ctx, req.ChargeUUID, token, d) },
		OnResult:        func(status string) { deliverResult(status, d) },
		OnError: func(message string) {
			if message == "" {
				message = "Error during payment process"
			}
			d.Fail(types.NewProviderError(message))
		},
		OnLoading: d.Loading,
	}
	if err := h.provider.StartCheckout(ctx, cfg); err != nil {
		return providerError(err)
	}
	if err := h.provider.Mount(); err != nil {
		return providerError(err)
	}

	h.mu.Lock()
	h.mounted = true
	h.mu.Unlock()

	d.Ready()
	return nil
}

// StartPayment asks the mounted checkout to start the payment.
func (h *Hosted) StartPayment() error {
	h.mu.Lock()
	mounted := h.mounted
	h.mu.Unlock()
	if !mounted {
		return types.NewValidationError("Hosted checkout is not ready to start the payment")
	}
	if err := h.provider.StartPayment(); err != nil {
		return providerError(err)
	}
	return nil
}

func (h *Hosted) loadSDK(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.doc.ElementByID(SDKScriptID) != nil {
		return nil
	}
	script := h.doc.CreateElement("script")
	script.SetAttr("id", SDKScriptID)
	script.SetAttr("src", h.scriptURL)
	script.SetAttr("defer", "true")
	if err := h.doc.LoadScript(ctx, h.doc.Head(), script); err != nil {
		script.Remove()
		return err
	}
	return nil
}

// createPayment pays the charge with the provider's one-time token and lets
// the provider continue. Only transport or input failures stop the flow; the
// final status comes from the provider's result callback.
func (h *Hosted) createPayment(ctx context.Context, chargeID, token string, d *types.Delivery) {
	d.Loading(true)
	_, err := h.submitter.Submit(ctx, chargeID, payment.TokenPayload(token))
	d.Loading(false)
	if err != nil && !errors.Is(err, types.ErrUnexpectedStatus) {
		h.reporter.ReportError(err, report.Fields{"charge_uuid": chargeID, "stage": "hosted_create_payment"})
		d.Fail(err)
		return
	}
	if err := h.provider.ContinuePayment(); err != nil {
		d.Fail(providerError(err))
	}
}

// ResultClass groups the provider's payment result statuses.
type ResultClass int

const (
	ResultUnknown ResultClass = iota
	ResultSucceeded
	ResultFailed
	ResultPending
)

func ClassifyResult(status string) ResultClass {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "SUCCEEDED", "APPROVED":
		return ResultSucceeded
	case "REJECTED", "ERROR", "DECLINED", "CANCELLED", "FAILED":
		return ResultFailed
	case "PENDING", "PROCESSING", "IN_PROGRESS":
		return ResultPending
	default:
		return ResultUnknown
	}
}

func deliverResult(status string, d *types.Delivery) {
	switch ClassifyResult(status) {
	case ResultSucceeded:
		d.Succeed(types.Result{Status: status})
	case ResultFailed:
		d.Fail(types.NewProviderError(fmt.Sprintf("Payment %s: %s", strings.ToLower(status), status)))
	case ResultPending:
		d.Event(types.Event{Name: "payment-result", Status: status, Pending: true})
	default:
		d.Event(types.Event{Name: "payment-result", Status: status})
	}
}

func languageFor(country string) string {
	if country == "BR" {
		return "pt"
	}
	return "es"
}

func providerError(err error) error {
	var typed *types.Error
	if errors.As(err, &typed) {
		return err
	}
	return types.NewProviderError(err.Error())
}
