package payment

import (
	"context"

	"a55pay-sdk/models"
)

// PaymentSubmitter posts a normalized payment for a charge.
type PaymentSubmitter interface {
	Submit(ctx context.Context, chargeID string, payload *models.PaymentPayload) (*models.PaymentOutcome, error)
}
