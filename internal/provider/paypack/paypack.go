// Package paypack integrates the Paypack mobile-money API: agent
// authentication, the shared credential session, cash-in and transaction
// lookup.
package paypack

import (
	"storepay/internal/config"
	"storepay/internal/domain/payment"
	"storepay/internal/provider/base"
)

// New wires a Client and its SessionManager from configuration. A nil store
// keeps the session in memory.
func New(cfg config.Cfg, store TokenStore) (*Client, *SessionManager) {
	httpClient := base.NewHTTPClient(providerName, cfg.Paypack.TimeoutSec)
	httpClient.SetBaseURL(cfg.Paypack.BaseURL)

	auth := NewAuth(httpClient, cfg.Paypack.ClientID, cfg.Paypack.ClientSecret, cfg.Paypack.RefreshTTL)
	sessions := NewSessionManager(auth, store, cfg.Paypack.TokenSkew)
	validator := base.NewRequestValidator("RW", "RWF", payment.Money(cfg.Payment.MinAmount), 0)

	return NewClient(httpClient, sessions, validator), sessions
}
