// models/payment_status.go
package models

import "strings"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusError     PaymentStatus = "error"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusDeclined  PaymentStatus = "declined"
)

// ParsePaymentStatus normaliza o status vindo do backend
func ParsePaymentStatus(s string) PaymentStatus {
	return PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
}

func (ps PaymentStatus) String() string {
	return string(ps)
}

// IsSuccess reports a settled payment.
func (ps PaymentStatus) IsSuccess() bool {
	return ps == PaymentStatusConfirmed || ps == PaymentStatusPaid
}

// IsFailure reports a terminal failure.
func (ps PaymentStatus) IsFailure() bool {
	return ps == PaymentStatusError || ps == PaymentStatusFailed || ps == PaymentStatusDeclined
}

func (ps PaymentStatus) IsValid() bool {
	return ps == PaymentStatusPending || ps.IsSuccess() || ps.IsFailure()
}
