package payment

import (
	"a55pay-sdk/models"
	"a55pay-sdk/types"
	"a55pay-sdk/utils"
)

const (
	notInformed    = "n/d"
	defaultCountry = "BR"
)

// PayloadOptions carries the optional parts of a payment payload.
type PayloadOptions struct {
	Proof  *types.ThreeDSProof
	Device *models.DeviceFingerprint
}

// BuildPayload normalizes charge and payer data into the pay endpoint body.
func BuildPayload(charge *models.ChargeRecord, user *models.UserPaymentData, opts PayloadOptions) *models.PaymentPayload {
	payload := &models.PaymentPayload{
		PayerName:  charge.Customer.Name,
		PayerEmail: utils.FirstNonEmpty(charge.Customer.Email, user.Email),
		PayerTaxID: utils.OnlyDigits(user.TaxID),
		CellPhone:  utils.OnlyDigits(user.Phone),
		Card: models.CardPayload{
			HolderName:  user.Holder,
			Number:      utils.StripSpaces(user.Number),
			ExpiryMonth: user.Month,
			ExpiryYear:  user.Year,
			CCV:         user.CVC,
			Cryptogram:  user.Cryptogram,
			CardToken:   user.CardToken,
		},
		DeviceInfo:  opts.Device,
		ThreeDSAuth: opts.Proof,
	}

	billing := user.BillingAddress()
	payload.Address = addressPayload(billing)
	if user.ShippingAddress != nil {
		payload.ShippingAddress = addressPayload(*user.ShippingAddress)
	}
	return payload
}

// TokenPayload builds the body used when a hosted checkout tokenized the card.
func TokenPayload(oneTimeToken string) *models.PaymentPayload {
	return &models.PaymentPayload{
		Card: models.CardPayload{CardToken: oneTimeToken},
	}
}

func addressPayload(a types.Address) *models.AddressPayload {
	return &models.AddressPayload{
		PostalCode:    utils.OnlyDigits(a.Zipcode),
		Street:        a.Street1,
		AddressNumber: utils.FirstNonEmpty(a.Number, notInformed),
		Complement:    utils.FirstNonEmpty(a.Street2, a.Street1),
		Neighborhood:  notInformed,
		City:          a.City,
		State:         a.State,
		Country:       utils.FirstNonEmpty(a.Country, defaultCountry),
	}
}
