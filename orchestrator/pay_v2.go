package orchestrator

import (
	"context"
	"log"

	"a55pay-sdk/models"
	"a55pay-sdk/services/authentication"
	"a55pay-sdk/services/payment"
	"a55pay-sdk/services/report"
	"a55pay-sdk/types"
	"a55pay-sdk/utils"
)

// PayV2Request configures the device-intelligence flow.
type PayV2Request struct {
	ChargeUUID string                  `json:"charge_uuid"`
	UserData   *models.UserPaymentData `json:"userData"`
}

// PayV2 authenticates the device, submits the payment with the device
// fingerprint and opens the challenge when the issuer asks for one.
//
// A failed authentication does not stop the flow: the payment goes out with
// an empty session id. A timed-out authentication is a normal session.
func (o *Orchestrator) PayV2(req PayV2Request, cb types.Callbacks) string {
	flowID := newFlowID()
	d := types.NewDelivery(cb)

	if req.ChargeUUID == "" || req.UserData == nil {
		o.fail(flowID, "payV2", d, types.NewValidationError("Missing charge_uuid or userData in config"))
		return flowID
	}
	if err := payment.ValidateCard(req.UserData); err != nil {
		o.fail(flowID, "payV2", d, err)
		return flowID
	}

	log.Printf("[FlowID: %s] Starting payV2 flow for charge %s", flowID, req.ChargeUUID)
	o.start(flowID, "payV2", d, func(ctx context.Context) error {
		d.Loading(true)
		defer d.Loading(false)

		charge, err := o.fetchCharge(ctx, flowID, req.ChargeUUID)
		if err != nil {
			return err
		}
		d.Ready()

		session := o.authenticate(ctx, flowID, charge, req.UserData)
		fingerprint := o.deps.Fingerprints.Collect(ctx, session.SessionID(), req.UserData.DeviceIPAddress)

		payload := payment.BuildPayload(charge, req.UserData, payment.PayloadOptions{Device: fingerprint})
		outcome, err := o.deps.Submitter.Submit(ctx, charge.ChargeUUID, payload)
		if err != nil {
			return err
		}

		if outcome.ChallengeRequired() {
			log.Printf("[FlowID: %s] Opening challenge for charge %s", flowID, charge.ChargeUUID)
			d.Event(types.Event{Name: "3ds-challenge", Status: string(outcome.Status), Pending: true, Data: outcome.Raw})
			return o.deps.Challenge.Open(outcome.ChallengeURL, charge.ChargeUUID, d)
		}

		d.Succeed(types.Result{
			Status:      string(outcome.Status),
			ChargeUUID:  charge.ChargeUUID,
			RedirectURL: outcome.RedirectURL,
			Data:        outcome.Raw,
		})
		if outcome.RedirectURL != "" {
			o.scheduleRedirect(outcome.RedirectURL)
		}
		return nil
	})
	return flowID
}

// authenticate never fails: errors degrade to an empty session.
func (o *Orchestrator) authenticate(ctx context.Context, flowID string, charge *models.ChargeRecord, user *models.UserPaymentData) *models.AuthenticationSession {
	card := authentication.CardInfo{
		TransactionReference: charge.ChargeUUID,
		Brand:                user.CardBrand,
		ExpiryMonth:          user.Month,
		ExpiryYear:           user.Year,
		Number:               utils.StripSpaces(user.Number),
	}
	session, err := o.deps.Authenticator.Authenticate(ctx, card)
	if err != nil {
		log.Printf("[FlowID: %s] Authentication failed, continuing without session: %v", flowID, err)
		o.reporter.ReportError(err, report.Fields{"flow_id": flowID, "flow": "payV2", "stage": "authentication"})
		return nil
	}
	if session.TimedOut {
		o.reporter.Report("authentication.timed_out", report.Fields{"flow_id": flowID, "charge_uuid": charge.ChargeUUID})
	}
	return session
}
