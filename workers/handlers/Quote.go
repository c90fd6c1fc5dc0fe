package handlers

import (
	"net/http"

	"goaetherbridge/types"
)

// Quote computes the fee and estimated output for an amount and direction
// without persisting anything.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	amount := r.URL.Query().Get("amount")
	direction := types.Direction(r.URL.Query().Get("direction"))

	fee, err := h.Bridge.QuoteFee(amount, direction)
	if err != nil {
		h.responseError(w, err, "amount")
		return
	}

	estimated, err := h.Bridge.EstimateOutput(amount, direction)
	if err != nil {
		h.responseError(w, err, "amount")
		return
	}

	responseJSON(w, &APIQuoteResponse{
		Status:          "ok",
		Direction:       string(direction),
		Amount:          amount,
		Fee:             fee,
		EstimatedOutput: estimated,
	}, http.StatusOK)
}
