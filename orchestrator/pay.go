package orchestrator

import (
	"context"
	"log"

	"a55pay-sdk/models"
	"a55pay-sdk/services/payment"
	"a55pay-sdk/services/threeds"
	"a55pay-sdk/types"
)

// PayRequest configures the legacy widget flow.
type PayRequest struct {
	Selector   string                  `json:"selector"`
	ChargeUUID string                  `json:"charge_uuid"`
	UserData   *models.UserPaymentData `json:"userData"`
	// ForceThreeds defaults to true.
	ForceThreeds *bool `json:"forceThreeds,omitempty"`
}

func (r PayRequest) forceThreeds() bool {
	return r.ForceThreeds == nil || *r.ForceThreeds
}

// Pay fetches the charge, runs the authentication widget inside the
// selector's container and submits the payment from the widget's outcome.
// It never blocks; the returned flow id tags the flow's logs and reports.
//
// Any 2xx payment response reaches OnSuccess, including pending ones. When
// the issuer asks for a challenge, OnEvent first receives "3ds-challenge"
// and the result carries status pending; the merchant opens the challenge.
func (o *Orchestrator) Pay(req PayRequest, cb types.Callbacks) string {
	flowID := newFlowID()
	d := types.NewDelivery(cb)

	if req.Selector == "" || req.ChargeUUID == "" || req.UserData == nil {
		o.fail(flowID, "pay", d, types.NewValidationError("Missing selector, charge_uuid, or userData in config"))
		return flowID
	}
	container := o.deps.Doc.Query(req.Selector)
	if container == nil {
		o.fail(flowID, "pay", d, types.NewNotFoundError("Selector not found: %s", req.Selector))
		return flowID
	}
	if err := payment.ValidateCard(req.UserData); err != nil {
		o.fail(flowID, "pay", d, err)
		return flowID
	}

	log.Printf("[FlowID: %s] Starting pay flow for charge %s (forceThreeds=%v)", flowID, req.ChargeUUID, req.forceThreeds())
	o.start(flowID, "pay", d, func(ctx context.Context) error {
		charge, err := o.fetchCharge(ctx, flowID, req.ChargeUUID)
		if err != nil {
			return err
		}
		return o.deps.Bridge.Run(ctx, container, charge, req.UserData, threeds.RunOptions{ForceThreeds: req.forceThreeds()}, d)
	})
	return flowID
}
