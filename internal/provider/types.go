package provider

import (
	"encoding/json"

	"storepay/internal/domain/payment"
)

// CashInReq collects Amount from the payer's mobile-money account.
type CashInReq struct {
	Amount payment.Money
	Phone  string
}

// CashInResp is the provider's answer to a cash-in. Success=false is a
// failure the provider reported (insufficient balance, blocked number...):
// it is shown to the payer and not retried.
type CashInResp struct {
	Success   bool
	Reference string
	Status    payment.Status
	Message   string
	Raw       json.RawMessage
}

// Transaction is the provider's view of a payment attempt.
type Transaction struct {
	Reference string
	Status    payment.Status
	RawStatus string
	Amount    float64
	Kind      string
	Raw       json.RawMessage
}
