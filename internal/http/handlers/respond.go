package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"storepay/internal/provider"
	"storepay/internal/store/repositories"

	"github.com/rs/zerolog"
)

// envelope is the JSON shape of every payment API answer.
type envelope struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference,omitempty"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code and a message safe to show a
// shopper. Provider bodies never reach the response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := classify(err)
	ev := zerolog.Ctx(r.Context()).Warn()
	if code >= http.StatusInternalServerError {
		ev = zerolog.Ctx(r.Context()).Error()
	}
	ev.Err(err).Int("status_code", code).Str("path", r.URL.Path).Msg("request failed")
	writeJSON(w, code, envelope{Success: false, Message: msg})
}

func classify(err error) (int, string) {
	var (
		verr     *provider.ValidationError
		authErr  *provider.AuthenticationError
		acqErr   *provider.TokenAcquisitionError
		protoErr *provider.ProtocolError
		apiErr   *provider.APIError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.As(err, &acqErr), errors.As(err, &authErr):
		return http.StatusServiceUnavailable, "payment system unavailable, please try again later"
	case errors.As(err, &protoErr):
		return http.StatusBadGateway, "payment provider returned an unexpected response"
	case errors.Is(err, provider.ErrTransactionNotFound), errors.Is(err, repositories.ErrNotFound):
		return http.StatusNotFound, "Transaction not found"
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, "payment provider is not responding correctly"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// decodeJSON keeps validation errors raised by field decoders, anything else
// is reported as malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		if provider.IsValidation(err) {
			return err
		}
		return &provider.ValidationError{Field: "body", Message: "invalid JSON"}
	}
	return nil
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
