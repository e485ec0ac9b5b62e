package handlers

import (
	"net/http"

	paymentsvc "storepay/internal/services/payment"
)

// ListPayments handles GET /admin/payments?limit=&offset=.
func ListPayments(svc *paymentsvc.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := pagination(r)
		rows, err := svc.List(r.Context(), limit, offset)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data":     rows,
			"limit":    limit,
			"offset":   offset,
			"watching": svc.Watching(),
		})
	}
}
