package payment

import (
	"log"
	"strconv"
	"strings"
	"time"

	"a55pay-sdk/models"
	"a55pay-sdk/types"
	"a55pay-sdk/utils"
)

// ValidateCard checks the typed card before any flow touches the network.
// Tokenized cards (card_token without a number) are not validated here.
func ValidateCard(user *models.UserPaymentData) error {
	if user == nil {
		return types.NewValidationError("userData is required")
	}
	number := utils.StripSpaces(user.Number)
	if number == "" && user.CardToken != "" {
		return nil
	}

	if len(number) < 13 || len(number) > 19 {
		log.Printf("Invalid card number length: %d", len(number))
		return types.NewValidationError("invalid card number")
	}
	if !validateLuhn(number) {
		log.Printf("Failed Luhn check for card number")
		return types.NewValidationError("invalid card number")
	}
	if !validateExpiry(user.Month, user.Year, time.Now()) {
		log.Printf("Invalid expiry date: %s/%s", user.Month, user.Year)
		return types.NewValidationError("invalid card expiry date")
	}
	// Cartões tokenizados por carteira trazem criptograma no lugar do CVV
	if user.Cryptogram == "" && (len(user.CVC) < 3 || len(user.CVC) > 4) {
		log.Printf("Invalid CVV length: %d", len(user.CVC))
		return types.NewValidationError("invalid card security code")
	}
	return nil
}

func validateLuhn(cardNumber string) bool {
	sum := 0
	isEven := len(cardNumber)%2 == 0

	for i, r := range cardNumber {
		digit := int(r - '0')

		if digit < 0 || digit > 9 {
			return false
		}

		if isEven == (i%2 == 0) {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
	}

	return sum%10 == 0
}

// validateExpiry accepts two or four digit years; the card is valid through
// the last day of its expiry month.
func validateExpiry(month, year string, now time.Time) bool {
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil || m < 1 || m > 12 {
		return false
	}
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil || y < 0 {
		return false
	}
	if y < 100 {
		y += 2000
	}

	expiryTime := time.Date(y, time.Month(m)+1, 0, 23, 59, 59, 0, time.UTC)
	return expiryTime.After(now)
}
