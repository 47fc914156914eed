package payment

import (
	"context"
	"encoding/json"
	"log"
	"net/url"

	"a55pay-sdk/models"
	"a55pay-sdk/services/a55"
	"a55pay-sdk/types"
)

// Submitter posts payments to the pay endpoint and interprets the tri-state
// answer: challenge required, settled, or anything else.
type Submitter struct {
	client *a55.Client
}

func NewSubmitter(client *a55.Client) *Submitter {
	return &Submitter{client: client}
}

// Submit returns the outcome when the payment settled or when a challenge is
// required. Any other status comes back as an ErrUnexpectedStatus error
// carrying the raw response, together with the decoded outcome.
func (s *Submitter) Submit(ctx context.Context, chargeID string, payload *models.PaymentPayload) (*models.PaymentOutcome, error) {
	if chargeID == "" {
		return nil, types.NewValidationError("charge_uuid is required")
	}
	if payload == nil {
		return nil, types.NewValidationError("payment payload is required")
	}

	log.Printf("[Charge: %s] Submitting payment (threeds=%v, device=%v)",
		chargeID, payload.ThreeDSAuth != nil, payload.DeviceInfo != nil)

	body, err := s.client.PostJSON(ctx, "/charge/"+url.PathEscape(chargeID)+"/pay", payload)
	if err != nil {
		log.Printf("[Charge: %s] Payment request failed: %v", chargeID, err)
		return nil, a55.AsNetworkError(err, "Payment failed")
	}

	var outcome models.PaymentOutcome
	if err := json.Unmarshal(body, &outcome); err != nil {
		return nil, types.NewUnexpectedStatusError("", body)
	}
	outcome.Status = models.ParsePaymentStatus(string(outcome.Status))
	outcome.Raw = append(json.RawMessage(nil), body...)

	switch {
	case outcome.ChallengeRequired():
		log.Printf("[Charge: %s] Payment requires a 3DS challenge", chargeID)
		return &outcome, nil
	case outcome.Status.IsSuccess():
		log.Printf("[Charge: %s] Payment settled with status %s", chargeID, outcome.Status)
		return &outcome, nil
	default:
		log.Printf("[Charge: %s] Payment returned status %q", chargeID, outcome.Status)
		return &outcome, types.NewUnexpectedStatusError(string(outcome.Status), outcome.Raw)
	}
}
