package payment

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Status is the provider-side state of a transaction.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusUnknown Status = "UNKNOWN"
)

// ParseStatus maps a provider status string onto Status. Anything the
// provider sends that we do not recognise becomes UNKNOWN.
func ParseStatus(s string) Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDING":
		return StatusPending
	case "SUCCESS", "SUCCESSFUL":
		return StatusSuccess
	case "FAILED":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

// IsTerminal is true for SUCCESS and FAILED only.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Money is an amount in the smallest currency unit (RWF has no minor unit).
type Money int64

// Request is a caller's intent to collect funds. It is validated before
// submission and not modified afterwards.
type Request struct {
	Amount  Money
	Phone   string
	OrderID string
}

// Payment is the locally persisted record of a submitted cash-in.
type Payment struct {
	Reference  string    `json:"reference"`
	OrderID    string    `json:"orderId,omitempty"`
	Amount     Money     `json:"amount"`
	MSISDNHash string    `json:"-"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// NewPending creates the record written right after the provider accepted a cash-in.
func NewPending(reference string, req Request, now time.Time) (*Payment, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, fmt.Errorf("reference is required")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive: %d", req.Amount)
	}
	return &Payment{
		Reference:  reference,
		OrderID:    req.OrderID,
		Amount:     req.Amount,
		MSISDNHash: HashMSISDN(req.Phone),
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Apply moves the record to status. Terminal records do not change again.
func (p *Payment) Apply(status Status, now time.Time) bool {
	if p.Status.IsTerminal() || status == p.Status {
		return false
	}
	if status == StatusUnknown {
		return false
	}
	p.Status = status
	p.UpdatedAt = now
	return true
}

// HashMSISDN returns a stable SHA256 hex of the phone number so it never
// sits in the database in clear.
func HashMSISDN(msisdn string) string {
	s := strings.TrimSpace(msisdn)
	if s == "" {
		return ""
	}
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
