// Package orchestrator exposes the payment flows: the legacy widget flow
// (Pay), the device-intelligence flow (PayV2) and the hosted checkout
// (Checkout), plus the checkout surface helpers.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"a55pay-sdk/models"
	"a55pay-sdk/page"
	"a55pay-sdk/services/authentication"
	"a55pay-sdk/services/challenge"
	"a55pay-sdk/services/checkout"
	"a55pay-sdk/services/payment"
	"a55pay-sdk/services/report"
	"a55pay-sdk/services/threeds"
	"a55pay-sdk/types"
	"a55pay-sdk/utils"
)

type ChargeFetcher interface {
	Fetch(ctx context.Context, chargeID string) (*models.ChargeRecord, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, card authentication.CardInfo) (*models.AuthenticationSession, error)
}

type FingerprintCollector interface {
	Collect(ctx context.Context, sessionID, knownIP string) *models.DeviceFingerprint
}

// Dependencies are the collaborators of one orchestrator. Each orchestrator
// owns its own challenge and checkout slots.
type Dependencies struct {
	Doc           page.Document
	Charges       ChargeFetcher
	Submitter     payment.PaymentSubmitter
	Authenticator Authenticator
	Fingerprints  FingerprintCollector
	Bridge        *threeds.Bridge
	Challenge     *challenge.Channel
	Checkout      *checkout.Channel
	Hosted        *checkout.Hosted
	Reporter      report.Reporter
}

type Options struct {
	// RedirectDelay is the pause before following a redirect_url of a
	// payment settled without challenge.
	RedirectDelay time.Duration
}

type Orchestrator struct {
	deps          Dependencies
	reporter      report.Reporter
	redirectDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	redirects []*utils.Task
}

func New(deps Dependencies, opts Options) *Orchestrator {
	if opts.RedirectDelay <= 0 {
		opts.RedirectDelay = challenge.DefaultRedirectDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		deps:          deps,
		reporter:      report.OrLog(deps.Reporter),
		redirectDelay: opts.RedirectDelay,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Shutdown cancels in-flight flows and pending redirects, then waits for
// the flow goroutines and challenge refreshes.
func (o *Orchestrator) Shutdown() {
	o.cancel()

	o.mu.Lock()
	for _, t := range o.redirects {
		t.Cancel()
	}
	o.redirects = nil
	o.mu.Unlock()

	if o.deps.Challenge != nil {
		o.deps.Challenge.Close()
	}
	o.wg.Wait()
}

// scheduleRedirect navigates to url after the redirect delay unless the
// orchestrator shuts down first.
func (o *Orchestrator) scheduleRedirect(url string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx.Err() != nil {
		return
	}
	o.redirects = append(o.redirects, utils.Schedule(o.redirectDelay, func() {
		if o.ctx.Err() == nil {
			o.deps.Doc.Navigate(url)
		}
	}))
}

// Wait blocks until every flow goroutine started so far returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// start runs fn on a flow goroutine. Any error or panic ends the flow through
// d exactly once.
func (o *Orchestrator) start(flowID, flow string, d *types.Delivery, fn func(ctx context.Context) error) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[FlowID: %s] PANIC in %s: %v\n%s", flowID, flow, r, debug.Stack())
				o.fail(flowID, flow, d, fmt.Errorf("internal error in %s flow: %v", flow, r))
			}
		}()
		if err := fn(o.ctx); err != nil {
			o.fail(flowID, flow, d, err)
		}
	}()
}

func (o *Orchestrator) fail(flowID, flow string, d *types.Delivery, err error) {
	log.Printf("[FlowID: %s] %s flow failed: %v", flowID, flow, err)
	o.reporter.ReportError(err, report.Fields{"flow_id": flowID, "flow": flow})
	d.Fail(err)
}

func newFlowID() string {
	return uuid.New().String()
}

// fetchCharge guards the no-submission-without-charge rule.
func (o *Orchestrator) fetchCharge(ctx context.Context, flowID, chargeID string) (*models.ChargeRecord, error) {
	charge, err := o.deps.Charges.Fetch(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	if charge == nil || charge.ChargeUUID == "" {
		return nil, types.NewNotFoundError("No charge data found for this charge_uuid")
	}
	log.Printf("[FlowID: %s] Charge %s loaded (%s %s)", flowID, charge.ChargeUUID, utils.Round(charge.Value), charge.Currency)
	return charge, nil
}
