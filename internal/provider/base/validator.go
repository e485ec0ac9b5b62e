package base

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"storepay/internal/domain/payment"
	"storepay/internal/provider"
)

// PhoneValidator checks numbers against the local mobile-money numbering plan
type PhoneValidator struct {
	countryCode string
	pattern     *regexp.Regexp
	example     string
}

// NewPhoneValidator creates a validator for a specific country
func NewPhoneValidator(countryCode string) *PhoneValidator {
	switch countryCode {
	case "RW": // MTN, Airtel-Tigo: 07x xxx xxxx
		return &PhoneValidator{
			countryCode: countryCode,
			pattern:     regexp.MustCompile(`^07[0-9]{8}$`),
			example:     "0781234567",
		}
	default:
		return &PhoneValidator{countryCode: countryCode}
	}
}

// ValidatePhone validates a phone number. Numbers are not normalised: the
// provider expects exactly what the payer typed in local format.
func (v *PhoneValidator) ValidatePhone(phone string) error {
	if strings.TrimSpace(phone) == "" {
		return &provider.ValidationError{Field: "phone", Message: "phone number is required"}
	}
	if v.pattern == nil {
		return &provider.ValidationError{
			Field:   "phone",
			Message: fmt.Sprintf("no numbering plan for %s", v.countryCode),
		}
	}
	if !v.pattern.MatchString(phone) {
		return &provider.ValidationError{
			Field:   "phone",
			Message: fmt.Sprintf("please enter a valid phone number (e.g., %s)", v.example),
		}
	}
	return nil
}

// AmountValidator validates payment amounts
type AmountValidator struct {
	minAmount payment.Money
	maxAmount payment.Money
	currency  string
}

// NewAmountValidator creates an amount validator with limits. maxAmount 0 means no cap.
func NewAmountValidator(currency string, minAmount, maxAmount payment.Money) *AmountValidator {
	return &AmountValidator{minAmount: minAmount, maxAmount: maxAmount, currency: currency}
}

// ValidateAmount validates payment amount
func (v *AmountValidator) ValidateAmount(amount payment.Money) error {
	if amount <= 0 {
		return &provider.ValidationError{Field: "amount", Message: "please enter a valid amount"}
	}
	if amount < v.minAmount {
		return &provider.ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("minimum amount is %d %s", v.minAmount, v.currency),
		}
	}
	if v.maxAmount > 0 && amount > v.maxAmount {
		return &provider.ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("amount must not exceed %d %s", v.maxAmount, v.currency),
		}
	}
	return nil
}

// RequestValidator provides common request validation
type RequestValidator struct {
	phoneValidator  *PhoneValidator
	amountValidator *AmountValidator
}

// NewRequestValidator creates a new request validator
func NewRequestValidator(countryCode, currency string, minAmount, maxAmount payment.Money) *RequestValidator {
	return &RequestValidator{
		phoneValidator:  NewPhoneValidator(countryCode),
		amountValidator: NewAmountValidator(currency, minAmount, maxAmount),
	}
}

// ValidateCashInReq checks amount first, then phone, so the payer sees the
// amount problem before the number problem.
func (v *RequestValidator) ValidateCashInReq(req provider.CashInReq) error {
	if err := v.amountValidator.ValidateAmount(req.Amount); err != nil {
		return err
	}
	return v.phoneValidator.ValidatePhone(req.Phone)
}

// ParseAmount parses a whole-unit amount typed into a form ("1,500").
func ParseAmount(amountStr string) (payment.Money, error) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(amountStr, ",", ""))
	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, &provider.ValidationError{Field: "amount", Message: "please enter a valid amount"}
	}
	return payment.Money(n), nil
}
