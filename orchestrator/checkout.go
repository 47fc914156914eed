package orchestrator

import (
	"context"
	"log"

	"a55pay-sdk/services/checkout"
	"a55pay-sdk/types"
)

// SurfaceKind names a closable surface.
type SurfaceKind string

const (
	SurfaceChallenge SurfaceKind = "challenge"
	SurfaceCheckout  SurfaceKind = "checkout"
)

// Checkout runs the hosted checkout provider inside req.Selector.
func (o *Orchestrator) Checkout(req checkout.HostedRequest, cb types.Callbacks) string {
	flowID := newFlowID()
	d := types.NewDelivery(cb)

	if err := req.Validate(); err != nil {
		o.fail(flowID, "checkout", d, err)
		return flowID
	}

	log.Printf("[FlowID: %s] Starting hosted checkout for charge %s", flowID, req.ChargeUUID)
	o.start(flowID, "checkout", d, func(ctx context.Context) error {
		return o.deps.Hosted.Run(ctx, req, d)
	})
	return flowID
}

// StartPayment asks the mounted hosted checkout to start paying.
func (o *Orchestrator) StartPayment() error {
	return o.deps.Hosted.StartPayment()
}

// OpenCheckout shows the alternate checkout surface.
func (o *Orchestrator) OpenCheckout(req checkout.OpenRequest, cb types.Callbacks) string {
	flowID := newFlowID()
	d := types.NewDelivery(cb)
	if err := o.deps.Checkout.Open(req, d); err != nil {
		o.fail(flowID, "checkout-surface", d, err)
		return flowID
	}
	d.Ready()
	return flowID
}

// CloseSurface is the user closing a live surface. It reports whether one
// was open.
func (o *Orchestrator) CloseSurface(kind SurfaceKind) bool {
	switch kind {
	case SurfaceChallenge:
		return o.deps.Challenge.Cancel()
	case SurfaceCheckout:
		return o.deps.Checkout.Cancel()
	default:
		return false
	}
}
