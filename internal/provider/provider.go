package provider

import "context"

// Gateway is a mobile-money provider able to collect funds and report on
// the resulting transactions.
type Gateway interface {
	Name() string
	CashIn(ctx context.Context, req CashInReq) (*CashInResp, error)
	FindTransaction(ctx context.Context, ref string) (*Transaction, error)
}
