package models

import "a55pay-sdk/types"

// UserPaymentData is the card and contact data typed by the payer. It lives
// only for the duration of a flow.
type UserPaymentData struct {
	Holder     string `json:"holder"`
	Number     string `json:"number"`
	Month      string `json:"month"`
	Year       string `json:"year"`
	CVC        string `json:"cvc,omitempty"`
	Cryptogram string `json:"cryptogram,omitempty"`
	CardToken  string `json:"card_token,omitempty"`
	CardBrand  string `json:"card_brand,omitempty"`

	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
	TaxID string `json:"tax_id,omitempty"`

	Street1 string `json:"street1"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zipcode string `json:"zipcode"`
	Country string `json:"country,omitempty"`

	ShippingAddress *types.Address `json:"shipping_address,omitempty"`

	DefaultCard     string `json:"default_card,omitempty"`
	DeviceIPAddress string `json:"device_ipaddress,omitempty"`
}

// BillingAddress returns the billing address typed by the payer.
func (u *UserPaymentData) BillingAddress() types.Address {
	return types.Address{
		Street1: u.Street1,
		Street2: u.Street2,
		City:    u.City,
		State:   u.State,
		Zipcode: u.Zipcode,
		Country: u.Country,
	}
}
