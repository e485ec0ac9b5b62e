package handlers

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"storepay/internal/domain/payment"
	"storepay/internal/provider/base"
	paymentsvc "storepay/internal/services/payment"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// amountField accepts 500 as well as "500", storefront forms send both.
type amountField payment.Money

func (a *amountField) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	m, err := base.ParseAmount(s)
	if err != nil {
		return err
	}
	*a = amountField(m)
	return nil
}

type payReq struct {
	Amount  amountField `json:"amount"`
	Phone   string      `json:"phone"`
	OrderID string      `json:"orderId,omitempty"`
}

func resultEnvelope(res paymentsvc.Result) envelope {
	return envelope{
		Success:   res.Success,
		Reference: res.Reference,
		Status:    string(res.Status),
		Message:   res.Message,
	}
}

// ProcessPayment handles POST /api/pay.
func ProcessPayment(svc *paymentsvc.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in payReq
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, err)
			return
		}

		// Short, bounded context for provider call
		ctx, cancel := context.WithTimeout(r.Context(), 45*time.Second)
		defer cancel()

		res, err := svc.ProcessPayment(ctx, payment.Request{
			Amount:  payment.Money(in.Amount),
			Phone:   in.Phone,
			OrderID: in.OrderID,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		code := http.StatusOK
		if !res.Success {
			code = http.StatusPaymentRequired
		}
		zerolog.Ctx(r.Context()).Info().
			Bool("success", res.Success).
			Str("ref", res.Reference).
			Str("order_id", in.OrderID).
			Msg("cash-in processed")
		writeJSON(w, code, resultEnvelope(res))
	}
}

// TransactionStatus handles GET /api/transaction/{ref} with a live provider query.
func TransactionStatus(svc *paymentsvc.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		res, err := svc.GetTransactionStatus(ctx, chi.URLParam(r, "ref"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resultEnvelope(res))
	}
}

// PaymentStatus handles GET /api/payments/{ref} from the local record only.
func PaymentStatus(svc *paymentsvc.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.Payment(r.Context(), chi.URLParam(r, "ref"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{
			Success:   true,
			Reference: p.Reference,
			Status:    string(p.Status),
			Message:   "Payment record retrieved",
			Data:      p,
		})
	}
}

// StopWatching handles DELETE /api/payments/{ref}/watch.
func StopWatching(svc *paymentsvc.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := chi.URLParam(r, "ref")
		if !svc.StopWatching(ref) {
			writeJSON(w, http.StatusOK, envelope{Success: true, Reference: ref, Message: "Not being watched"})
			return
		}
		writeJSON(w, http.StatusOK, envelope{Success: true, Reference: ref, Message: "Polling stopped"})
	}
}
