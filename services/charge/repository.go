package charge

import (
	"context"
	"encoding/json"
	"log"
	"net/url"

	"a55pay-sdk/models"
	"a55pay-sdk/services/a55"
	"a55pay-sdk/types"
)

// Repository loads charge records from the public charge endpoint.
type Repository struct {
	client *a55.Client
}

func NewRepository(client *a55.Client) *Repository {
	return &Repository{client: client}
}

// Fetch returns the first record of the charge collection for chargeID.
func (r *Repository) Fetch(ctx context.Context, chargeID string) (*models.ChargeRecord, error) {
	if chargeID == "" {
		return nil, types.NewValidationError("charge_uuid is required")
	}

	body, err := r.client.Get(ctx, "/charge", url.Values{"charge_uuid": {chargeID}})
	if err != nil {
		log.Printf("[Charge: %s] Fetch failed: %v", chargeID, err)
		return nil, a55.AsNetworkError(err, "Failed to fetch charge data")
	}

	var records []models.ChargeRecord
	if err := json.Unmarshal(body, &records); err != nil || len(records) == 0 {
		log.Printf("[Charge: %s] Empty or malformed charge collection", chargeID)
		return nil, types.NewNotFoundError("No charge data found for this charge_uuid")
	}

	record := records[0]
	if record.ChargeUUID == "" {
		record.ChargeUUID = chargeID
	}
	return &record, nil
}
