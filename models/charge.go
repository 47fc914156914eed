package models

import (
	"github.com/shopspring/decimal"

	"a55pay-sdk/types"
)

// ChargeRecord is a charge as returned by the public charge endpoint.
// It is re-fetched for every flow invocation and never mutated.
type ChargeRecord struct {
	ChargeUUID       string           `json:"charge_uuid"`
	Value            decimal.Decimal  `json:"value"`
	Currency         string           `json:"currency"`
	TypeCharge       string           `json:"type_charge"`
	InstallmentCount int              `json:"installment_count"`
	Website          string           `json:"website"`
	Recurrence       types.FlexBool   `json:"recurrence"`
	Status           string           `json:"status,omitempty"`
	RedirectURL      string           `json:"redirect_url,omitempty"`
	Customer         Customer         `json:"customer"`
	ThreeDSMetadata  *ThreeDSMetadata `json:"threeds_metadata,omitempty"`
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ThreeDSMetadata struct {
	AccessToken string `json:"access_token"`
}

// AccessToken returns the widget access token, empty when the charge has no
// authentication metadata.
func (c *ChargeRecord) AccessToken() string {
	if c.ThreeDSMetadata == nil {
		return ""
	}
	return c.ThreeDSMetadata.AccessToken
}
