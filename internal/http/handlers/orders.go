package handlers

import (
	"net/http"

	"storepay/internal/services/order"
)

type orderReq struct {
	Items           []order.Item `json:"items"`
	ShippingAddress string       `json:"shippingAddress"`
}

// CreateOrder handles POST /api/orders. The returned orderId is passed back
// with the payment.
func CreateOrder(svc *order.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in orderReq
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, err)
			return
		}

		o, err := svc.Create(in.Items, in.ShippingAddress)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, envelope{
			Success: true,
			Status:  o.Status,
			Message: "Order created successfully",
			Data:    o,
		})
	}
}
