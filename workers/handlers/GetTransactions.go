package handlers

import (
	"net/http"

	"goaetherbridge/types"

	"github.com/go-chi/chi"
)

// GetTransaction returns one bridge transaction by id.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tx, err := h.Bridge.Get(r.Context(), id)
	if err != nil {
		h.responseError(w, err, "id")
		return
	}

	responseJSON(w, tx, http.StatusOK)
}

// GetUserTransactions returns a user's bridge transactions, newest first.
func (h *Handler) GetUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	txs, err := h.Bridge.ListByUser(r.Context(), userID)
	if err != nil {
		h.responseError(w, err, "userID")
		return
	}

	responseJSON(w, txs, http.StatusOK)
}

// GetFailedTransactions lists transactions parked in FAILED, for operators.
func (h *Handler) GetFailedTransactions(w http.ResponseWriter, r *http.Request) {
	failedTxs, err := h.Store.ListByStatus(r.Context(), types.StatusFailed)
	if err != nil {
		responseJSON(w, nil, http.StatusInternalServerError)
		return
	}

	responseJSON(w, failedTxs, http.StatusOK)
}
