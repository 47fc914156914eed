// Package checkout owns the hosted-checkout surfaces: the alternate checkout
// frame (Channel) and the hosted provider delegation (Hosted).
package checkout

import (
	"encoding/json"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"a55pay-sdk/messaging"
	"a55pay-sdk/page"
	"a55pay-sdk/services/report"
	"a55pay-sdk/types"
	"a55pay-sdk/utils"
)

type DisplayMode string

const (
	DisplayModal DisplayMode = "modal"
	DisplayEmbed DisplayMode = "embed"
)

const (
	OverlayID          = "a55pay-checkout-overlay"
	FrameID            = "a55pay-checkout-iframe"
	DefaultContainerID = "a55pay-checkout-container"
	DefaultWindow      = 15 * time.Minute
)

type Options struct {
	// TrustedOrigin validates checkout messages. When empty the origin of
	// the opened URL is trusted.
	TrustedOrigin string
	Window        time.Duration
	Reporter      report.Reporter
}

// OpenRequest describes the surface to show.
type OpenRequest struct {
	URL         string      `json:"url"`
	Mode        DisplayMode `json:"display_mode"`
	ContainerID string      `json:"container_id,omitempty"`
}

// Channel holds at most one live checkout surface.
type Channel struct {
	doc           page.Document
	bus           *messaging.Bus
	trustedOrigin string
	window        time.Duration
	reporter      report.Reporter

	mu   sync.Mutex
	slot *checkoutSlot
}

type checkoutSlot struct {
	root         page.Element
	container    page.Element
	ownContainer bool
	delivery     *types.Delivery
	unsubscribe  func()
	timeout      *utils.Task
}

func NewChannel(doc page.Document, bus *messaging.Bus, opts Options) *Channel {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	return &Channel{
		doc:           doc,
		bus:           bus,
		trustedOrigin: opts.TrustedOrigin,
		window:        opts.Window,
		reporter:      report.OrLog(opts.Reporter),
	}
}

// Open renders the checkout surface and delivers its outcome to d. A live
// surface is torn down first and its flow silenced.
func (c *Channel) Open(req OpenRequest, d *types.Delivery) error {
	origin, err := c.originFor(req.URL)
	if err != nil {
		return err
	}
	if req.Mode == "" {
		req.Mode = DisplayModal
	}
	if req.Mode != DisplayModal && req.Mode != DisplayEmbed {
		return types.NewValidationError("Invalid display mode: %s", req.Mode)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev := c.slot; prev != nil {
		c.teardownLocked(prev)
		prev.delivery.Silence()
	}

	frame := c.doc.CreateElement("iframe")
	frame.SetAttr("id", FrameID)
	frame.SetAttr("src", req.URL)
	frame.SetAttr("allow", "payment")

	s := &checkoutSlot{delivery: d}
	switch req.Mode {
	case DisplayEmbed:
		id := utils.FirstNonEmpty(req.ContainerID, DefaultContainerID)
		s.container = c.doc.ElementByID(id)
		if s.container == nil {
			s.container = c.doc.CreateElement("div")
			s.container.SetAttr("id", id)
			c.doc.Body().AppendChild(s.container)
			s.ownContainer = true
		}
		s.container.AppendChild(frame)
		s.root = frame
	default:
		overlay := c.doc.CreateElement("div")
		overlay.SetAttr("id", OverlayID)
		overlay.SetAttr("class", "a55pay-overlay")
		overlay.AppendChild(frame)
		c.doc.Body().AppendChild(overlay)
		s.root = overlay
	}

	s.unsubscribe = c.bus.Subscribe(messaging.AllowOrigins(func(m messaging.Message) {
		c.handleMessage(s, m)
	}, origin))
	s.timeout = utils.Schedule(c.window, func() {
		if c.finish(s) {
			err := types.NewTimeoutError("Checkout timed out")
			c.reporter.ReportError(err, report.Fields{"surface": "checkout"})
			s.delivery.Fail(err)
		}
	})
	c.slot = s

	log.Printf("[Checkout] Opened %s surface for %s", req.Mode, origin)
	return nil
}

// Cancel is the user closing the live surface.
func (c *Channel) Cancel() bool {
	c.mu.Lock()
	s := c.slot
	c.mu.Unlock()
	if s == nil || !c.finish(s) {
		return false
	}
	s.delivery.Fail(types.NewCancellationError("Checkout closed by the user"))
	return true
}

// Active reports whether a surface is live.
func (c *Channel) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slot != nil
}

func (c *Channel) handleMessage(s *checkoutSlot, m messaging.Message) {
	env, ok := messaging.Decode(m.Data)
	if !ok {
		return
	}

	if strings.EqualFold(env.Event, messaging.EventCheckoutClose) {
		if c.finish(s) {
			s.delivery.Close()
		}
		return
	}

	status := strings.ToLower(strings.TrimSpace(env.Status))
	switch status {
	case "paid", "confirmed", "ok":
		if c.finish(s) {
			s.delivery.Succeed(types.Result{Status: status, Data: env.Raw})
		}
	case "error":
		if c.finish(s) {
			s.delivery.Fail(&types.Error{Kind: types.ErrProvider, Message: errorMessage(env.Raw), Raw: env.Raw})
		}
	default:
		s.delivery.Event(types.Event{Name: "checkout-message", Status: env.Status, Data: env.Raw})
	}
}

// finish tears s down if it is still the live slot.
func (c *Channel) finish(s *checkoutSlot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.slot != s {
		return false
	}
	c.teardownLocked(s)
	return true
}

func (c *Channel) teardownLocked(s *checkoutSlot) {
	s.timeout.Cancel()
	s.unsubscribe()
	s.root.Remove()
	if s.ownContainer {
		s.container.Remove()
	}
	if c.slot == s {
		c.slot = nil
	}
}

func (c *Channel) originFor(raw string) (string, error) {
	if raw == "" {
		return "", types.NewValidationError("Checkout URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", types.NewValidationError("Invalid checkout URL: %s", raw)
	}
	if c.trustedOrigin != "" {
		return c.trustedOrigin, nil
	}
	return u.Scheme + "://" + u.Host, nil
}

func errorMessage(raw json.RawMessage) string {
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		return body.Message
	}
	return "Checkout payment failed"
}
