package models

import (
	"encoding/json"

	"a55pay-sdk/types"
)

// PaymentPayload is the normalized body posted to the pay endpoint.
type PaymentPayload struct {
	PayerName       string              `json:"payer_name,omitempty"`
	PayerEmail      string              `json:"payer_email,omitempty"`
	PayerTaxID      string              `json:"payer_tax_id,omitempty"`
	CellPhone       string              `json:"cell_phone,omitempty"`
	Card            CardPayload         `json:"card"`
	Address         *AddressPayload     `json:"address,omitempty"`
	ShippingAddress *AddressPayload     `json:"shipping_address,omitempty"`
	DeviceInfo      *DeviceFingerprint  `json:"device_info,omitempty"`
	ThreeDSAuth     *types.ThreeDSProof `json:"threeds_auth,omitempty"`
}

type CardPayload struct {
	HolderName  string `json:"holder_name,omitempty"`
	Number      string `json:"number,omitempty"`
	ExpiryMonth string `json:"expiry_month,omitempty"`
	ExpiryYear  string `json:"expiry_year,omitempty"`
	CCV         string `json:"ccv,omitempty"`
	Cryptogram  string `json:"cryptogram,omitempty"`
	CardToken   string `json:"card_token,omitempty"`
}

type AddressPayload struct {
	PostalCode    string `json:"postal_code"`
	Street        string `json:"street"`
	AddressNumber string `json:"address_number"`
	Complement    string `json:"complement"`
	Neighborhood  string `json:"neighborhood"`
	City          string `json:"city"`
	State         string `json:"state"`
	Country       string `json:"country"`
}

// PaymentOutcome is the pay endpoint's answer.
type PaymentOutcome struct {
	Status       PaymentStatus   `json:"status"`
	ChallengeURL string          `json:"url_3ds,omitempty"`
	RedirectURL  string          `json:"redirect_url,omitempty"`
	Raw          json.RawMessage `json:"-"`
}

// ChallengeRequired reports whether the issuer asked for an interactive
// challenge before the payment can complete.
func (o *PaymentOutcome) ChallengeRequired() bool {
	return o.Status == PaymentStatusPending && o.ChallengeURL != ""
}
