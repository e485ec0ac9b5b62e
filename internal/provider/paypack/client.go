package paypack

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"storepay/internal/domain/payment"
	"storepay/internal/provider"
	"storepay/internal/provider/base"

	"github.com/rs/zerolog/log"
)

const (
	providerName = "paypack"

	cashInPath      = "/transactions/cashin"
	transactionPath = "/transactions/find/"

	excerptLimit = 100
)

// TokenSource is what Client needs from the session manager.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate(ctx context.Context, token string)
}

// Client implements provider.Gateway for Paypack.
type Client struct {
	http      *base.HTTPClient
	tokens    TokenSource
	validator *base.RequestValidator
}

var _ provider.Gateway = (*Client)(nil)

func NewClient(http *base.HTTPClient, tokens TokenSource, validator *base.RequestValidator) *Client {
	return &Client{http: http, tokens: tokens, validator: validator}
}

func (c *Client) Name() string { return "Paypack" }

type cashInEnvelope struct {
	Ref     string  `json:"ref"`
	Status  string  `json:"status"`
	Amount  float64 `json:"amount"`
	Kind    string  `json:"kind"`
	Message string  `json:"message"`
}

// CashIn asks the payer to approve a debit of req.Amount. Invalid requests
// are rejected before a token is even looked at.
func (c *Client) CashIn(ctx context.Context, req provider.CashInReq) (*provider.CashInResp, error) {
	if err := c.validator.ValidateCashInReq(req); err != nil {
		return nil, err
	}

	resp, err := c.authorized(ctx, func(token string) (*base.HTTPResponse, error) {
		return c.http.PostJSON(ctx, cashInPath, map[string]any{
			"amount": req.Amount,
			"number": req.Phone,
		}, base.BearerHeader(token))
	})
	if err != nil {
		return nil, err
	}

	var env cashInEnvelope
	if err := resp.Decode(&env); err != nil {
		log.Error().
			Int("status_code", resp.StatusCode).
			Str("body", provider.Excerpt(resp.Body, excerptLimit)).
			Msg("cash-in response is not JSON")
		return nil, &provider.ProtocolError{Op: "cashin", Excerpt: provider.Excerpt(resp.Body, excerptLimit), Err: err}
	}

	if !resp.IsSuccess() {
		msg := env.Message
		if msg == "" {
			msg = "Payment failed"
		}
		log.Warn().
			Int("status_code", resp.StatusCode).
			Str("message", msg).
			Int64("amount", int64(req.Amount)).
			Msg("cash-in rejected by provider")
		return &provider.CashInResp{Success: false, Message: msg, Raw: resp.Body}, nil
	}

	if env.Ref == "" {
		return nil, &provider.ProtocolError{Op: "cashin", Excerpt: provider.Excerpt(resp.Body, excerptLimit), Err: fmt.Errorf("missing ref")}
	}
	status := payment.ParseStatus(env.Status)
	if !status.IsTerminal() {
		status = payment.StatusPending
	}

	log.Info().
		Str("provider", providerName).
		Str("ref", env.Ref).
		Int64("amount", int64(req.Amount)).
		Msg("cash-in submitted")

	return &provider.CashInResp{
		Success:   true,
		Reference: env.Ref,
		Status:    status,
		Message:   "Payment request sent successfully",
		Raw:       resp.Body,
	}, nil
}

// FindTransaction queries a transaction by reference.
func (c *Client) FindTransaction(ctx context.Context, ref string) (*provider.Transaction, error) {
	if ref == "" {
		return nil, &provider.ValidationError{Field: "ref", Message: "transaction reference is required"}
	}

	resp, err := c.authorized(ctx, func(token string) (*base.HTTPResponse, error) {
		return c.http.Get(ctx, transactionPath+url.PathEscape(ref), base.BearerHeader(token))
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, provider.ErrTransactionNotFound
	}

	var env cashInEnvelope
	if err := resp.Decode(&env); err != nil {
		return nil, &provider.ProtocolError{Op: "find", Excerpt: provider.Excerpt(resp.Body, excerptLimit), Err: err}
	}
	if !resp.IsSuccess() {
		msg := env.Message
		if msg == "" {
			msg = "Failed to get transaction"
		}
		return nil, &provider.APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if env.Ref == "" {
		if env.Message != "" {
			return nil, provider.ErrTransactionNotFound
		}
		return nil, &provider.ProtocolError{Op: "find", Excerpt: provider.Excerpt(resp.Body, excerptLimit), Err: fmt.Errorf("missing ref")}
	}

	return &provider.Transaction{
		Reference: env.Ref,
		Status:    payment.ParseStatus(env.Status),
		RawStatus: env.Status,
		Amount:    env.Amount,
		Kind:      env.Kind,
		Raw:       resp.Body,
	}, nil
}

// authorized runs call with a valid token. A 401 means the provider retired
// the token early: it is invalidated and the call is made once more.
func (c *Client) authorized(ctx context.Context, call func(token string) (*base.HTTPResponse, error)) (*base.HTTPResponse, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := call(token)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	log.Warn().Str("provider", providerName).Msg("provider rejected access token, renewing once")
	c.tokens.Invalidate(ctx, token)
	if token, err = c.tokens.Token(ctx); err != nil {
		return nil, err
	}
	return call(token)
}
