// Package challenge owns the interactive 3DS challenge surface of the
// device-intelligence flow.
package challenge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"a55pay-sdk/messaging"
	"a55pay-sdk/models"
	"a55pay-sdk/page"
	"a55pay-sdk/services/report"
	"a55pay-sdk/types"
	"a55pay-sdk/utils"
)

const (
	OverlayID   = "a55pay-3ds-overlay"
	FrameID     = "a55pay-3ds-iframe"
	CloseButton = "a55pay-3ds-close"

	DefaultWindow        = 5 * time.Minute
	DefaultRedirectDelay = 2 * time.Second

	frameSandbox = "allow-scripts allow-forms allow-same-origin allow-top-navigation"
)

// ChargeFetcher re-reads a charge once the challenge reports completion.
type ChargeFetcher interface {
	Fetch(ctx context.Context, chargeID string) (*models.ChargeRecord, error)
}

type Options struct {
	Window        time.Duration
	RedirectDelay time.Duration
	// Origins allowed to post the completion message. Empty accepts any.
	Origins  []string
	Reporter report.Reporter
}

// Channel holds at most one live challenge slot. Opening a new challenge
// tears the previous one down first; the superseded flow gets no callback.
type Channel struct {
	doc           page.Document
	bus           *messaging.Bus
	charges       ChargeFetcher
	window        time.Duration
	redirectDelay time.Duration
	origins       []string
	reporter      report.Reporter

	mu          sync.Mutex
	slot        *slot
	unsubscribe func()
	redirect    *utils.Task
	closed      bool
	refreshes   sync.WaitGroup
}

type slot struct {
	chargeID string
	overlay  page.Element
	delivery *types.Delivery
	timeout  *utils.Task
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewChannel(doc page.Document, bus *messaging.Bus, charges ChargeFetcher, opts Options) *Channel {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.RedirectDelay <= 0 {
		opts.RedirectDelay = DefaultRedirectDelay
	}
	return &Channel{
		doc:           doc,
		bus:           bus,
		charges:       charges,
		window:        opts.Window,
		redirectDelay: opts.RedirectDelay,
		origins:       opts.Origins,
		reporter:      report.OrLog(opts.Reporter),
	}
}

// Open shows the challenge at url for chargeID and delivers its outcome to d.
func (c *Channel) Open(url, chargeID string, d *types.Delivery) error {
	if url == "" || chargeID == "" {
		return types.NewValidationError("challenge url and charge_uuid are required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return types.NewCancellationError("3DS challenge surface is closed")
	}

	if prev := c.slot; prev != nil {
		log.Printf("[Charge: %s] Challenge superseded by charge %s", prev.chargeID, chargeID)
		c.teardownLocked(prev)
		prev.delivery.Silence()
	}

	overlay := c.doc.CreateElement("div")
	overlay.SetAttr("id", OverlayID)
	overlay.SetAttr("class", "a55pay-overlay")
	overlay.SetAttr("data-charge-uuid", chargeID)

	frame := c.doc.CreateElement("iframe")
	frame.SetAttr("id", FrameID)
	frame.SetAttr("src", url)
	frame.SetAttr("sandbox", frameSandbox)
	frame.SetAttr("allow", "payment")
	overlay.AppendChild(frame)

	closeBtn := c.doc.CreateElement("button")
	closeBtn.SetAttr("id", CloseButton)
	closeBtn.SetAttr("type", "button")
	closeBtn.SetAttr("aria-label", "Fechar")
	overlay.AppendChild(closeBtn)

	c.doc.Body().AppendChild(overlay)

	ctx, cancel := context.WithCancel(context.Background())
	s := &slot{
		chargeID: chargeID,
		overlay:  overlay,
		delivery: d,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.timeout = utils.Schedule(c.window, func() { c.expire(s) })
	c.slot = s

	if c.unsubscribe == nil {
		c.unsubscribe = c.bus.Subscribe(messaging.AllowOrigins(c.handleMessage, c.origins...))
	}

	c.reporter.Report("challenge.opened", report.Fields{"charge_uuid": chargeID})
	return nil
}

// Cancel is the user closing the live surface.
func (c *Channel) Cancel() bool {
	c.mu.Lock()
	s := c.slot
	if s == nil {
		c.mu.Unlock()
		return false
	}
	c.teardownLocked(s)
	c.releaseListenerLocked()
	c.mu.Unlock()

	err := types.NewCancellationError("3DS challenge closed by the user")
	c.reporter.ReportError(err, report.Fields{"charge_uuid": s.chargeID})
	s.delivery.Fail(err)
	return true
}

// Active returns the charge of the live slot, empty when none is open.
func (c *Channel) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.slot == nil {
		return ""
	}
	return c.slot.chargeID
}

func (c *Channel) handleMessage(m messaging.Message) {
	env, ok := messaging.Decode(m.Data)
	if !ok || env.Event != messaging.EventChallengeComplete {
		return
	}

	c.mu.Lock()
	s := c.slot
	if s == nil || c.closed {
		c.mu.Unlock()
		return
	}
	if env.ChargeUUID != "" && env.ChargeUUID != s.chargeID {
		c.mu.Unlock()
		log.Printf("[Charge: %s] Ignoring completion for charge %s", s.chargeID, env.ChargeUUID)
		return
	}
	c.refreshes.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.refreshes.Done()
		c.refresh(s)
	}()
}

// refresh re-reads the charge after completion. Results for a slot that was
// torn down in the meantime are dropped.
func (c *Channel) refresh(s *slot) {
	charge, err := c.charges.Fetch(s.ctx, s.chargeID)

	c.mu.Lock()
	if c.slot != s {
		c.mu.Unlock()
		log.Printf("[Charge: %s] Discarding status for a closed challenge", s.chargeID)
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.reporter.ReportError(err, report.Fields{"charge_uuid": s.chargeID, "stage": "challenge_refresh"})
		return
	}

	status := models.ParsePaymentStatus(charge.Status)
	terminal := status.IsSuccess() || status.IsFailure()
	if terminal {
		c.teardownLocked(s)
		c.releaseListenerLocked()
	}
	c.mu.Unlock()

	data, _ := json.Marshal(charge)
	switch {
	case status.IsSuccess():
		log.Printf("[Charge: %s] Challenge completed with status %s", s.chargeID, status)
		s.delivery.Succeed(types.Result{
			Status:      string(status),
			ChargeUUID:  s.chargeID,
			RedirectURL: charge.RedirectURL,
			Data:        data,
		})
		if charge.RedirectURL != "" {
			c.scheduleRedirect(charge.RedirectURL)
		}
	case status.IsFailure():
		log.Printf("[Charge: %s] Challenge ended with status %s", s.chargeID, status)
		s.delivery.Fail(&types.Error{Kind: types.ErrProvider, Message: fmt.Sprintf("Payment %s", status), Raw: data})
	default:
		s.delivery.Event(types.Event{Name: "3ds-pending", Status: string(status), Pending: true, Data: data})
	}
}

func (c *Channel) scheduleRedirect(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.redirect.Cancel()
	c.redirect = utils.Schedule(c.redirectDelay, func() { c.doc.Navigate(url) })
}

// Close drops the live slot without a callback, cancels a pending redirect
// and waits for in-flight status refreshes. The channel accepts no new
// completions afterwards.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	if s := c.slot; s != nil {
		c.teardownLocked(s)
		s.delivery.Silence()
	}
	c.releaseListenerLocked()
	c.redirect.Cancel()
	c.redirect = nil
	c.mu.Unlock()

	c.refreshes.Wait()
}

func (c *Channel) expire(s *slot) {
	c.mu.Lock()
	if c.slot != s {
		c.mu.Unlock()
		return
	}
	c.teardownLocked(s)
	c.releaseListenerLocked()
	c.mu.Unlock()

	err := types.NewTimeoutError("3DS challenge timed out")
	c.reporter.ReportError(err, report.Fields{"charge_uuid": s.chargeID})
	s.delivery.Fail(err)
}

func (c *Channel) teardownLocked(s *slot) {
	s.timeout.Cancel()
	s.cancel()
	s.overlay.Remove()
	if c.slot == s {
		c.slot = nil
	}
}

// releaseListenerLocked drops the shared listener once no slot is live.
func (c *Channel) releaseListenerLocked() {
	if c.slot == nil && c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}
