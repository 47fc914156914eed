package threeds

import (
	"strconv"
	"strings"

	"a55pay-sdk/models"
	"a55pay-sdk/page"
	"a55pay-sdk/types"
	"a55pay-sdk/utils"
)

// FieldPrefix prefixes every field read by the widget.
const FieldPrefix = "bpmpi_"

// Field is one hidden input read by the widget.
type Field struct {
	Name  string
	Value string
}

// DeriveFields maps a charge and the payer's data to the widget's field set.
// The order is stable so injection is deterministic.
func DeriveFields(charge *models.ChargeRecord, user *models.UserPaymentData) ([]Field, error) {
	if charge == nil || user == nil {
		return nil, types.NewValidationError("charge and user data are required")
	}

	phone := utils.OnlyDigits(user.Phone)
	fields := []Field{
		{"bpmpi_accesstoken", charge.AccessToken()},
		{"bpmpi_ordernumber", charge.ChargeUUID},
		{"bpmpi_currency", utils.FirstNonEmpty(charge.Currency, "BRL")},
		{"bpmpi_default_card", utils.FirstNonEmpty(user.DefaultCard, "true")},
		{"bpmpi_totalamount", utils.ToMinorUnits(charge.Value)},
		{"bpmpi_cardnumber", utils.StripSpaces(user.Number)},
		{"bpmpi_cardexpirationmonth", user.Month},
		{"bpmpi_cardexpirationyear", user.Year},
		{"bpmpi_paymentmethod", PaymentMethod(charge.TypeCharge)},
		{"bpmpi_auth", "true"},
		{"bpmpi_shipto_sameasbillto", strconv.FormatBool(user.ShippingAddress == nil)},
		{"bpmpi_installments", strconv.Itoa(charge.InstallmentCount)},
		{"bpmpi_device_ipaddress", user.DeviceIPAddress},
		{"bpmpi_device_channel", "browser"},
		{"bpmpi_merchant_url", charge.Website},
		{"bpmpi_order_productcode", "PHY"},
		{"bpmpi_billto_contactname", charge.Customer.Name},
		{"bpmpi_billto_email", utils.FirstNonEmpty(charge.Customer.Email, user.Email)},
		{"bpmpi_billto_phonenumber", phone},
	}
	fields = append(fields, addressFields("billto", user.BillingAddress())...)
	if user.ShippingAddress != nil {
		fields = append(fields,
			Field{"bpmpi_shipto_addressee", utils.FirstNonEmpty(user.Holder, charge.Customer.Name)},
			Field{"bpmpi_shipto_phonenumber", phone},
		)
		fields = append(fields, addressFields("shipto", *user.ShippingAddress)...)
	}
	fields = append(fields, Field{"bpmpi_order_recurrence", charge.Recurrence.String()})

	for _, f := range fields {
		if requiredFields[f.Name] && f.Value == "" {
			return nil, types.NewValidationError("Missing required data for: %s", f.Name)
		}
	}
	return fields, nil
}

var requiredFields = map[string]bool{
	"bpmpi_ordernumber":         true,
	"bpmpi_cardnumber":          true,
	"bpmpi_cardexpirationmonth": true,
	"bpmpi_cardexpirationyear":  true,
	"bpmpi_paymentmethod":       true,
}

// PaymentMethod turns a charge type ("credit_card") into the widget's
// payment method ("credit").
func PaymentMethod(typeCharge string) string {
	return strings.Replace(typeCharge, "_card", "", 1)
}

func addressFields(kind string, a types.Address) []Field {
	p := FieldPrefix + kind + "_"
	return []Field{
		{p + "street1", a.Street1},
		{p + "street2", utils.FirstNonEmpty(a.Street2, a.Street1)},
		{p + "city", a.City},
		{p + "state", a.State},
		{p + "zipcode", utils.OnlyDigits(a.Zipcode)},
		{p + "country", utils.FirstNonEmpty(a.Country, "BR")},
	}
}

// InjectFields writes fields as hidden inputs into container. Inputs left
// by a previous injection, matched by name or class, are removed first so a
// field never appears twice.
func InjectFields(doc page.Document, container page.Element, fields []Field) {
	for _, f := range fields {
		for _, old := range container.QueryAll("input[name='" + f.Name + "']") {
			old.Remove()
		}
		for _, old := range container.QueryAll("input." + f.Name) {
			old.Remove()
		}
	}
	for _, f := range fields {
		input := doc.CreateElement("input")
		input.SetAttr("type", "hidden")
		input.SetAttr("name", f.Name)
		input.SetAttr("class", f.Name)
		input.SetAttr("value", f.Value)
		container.AppendChild(input)
	}
}
