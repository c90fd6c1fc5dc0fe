package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi"
)

type RevertRequest struct {
	Reason string `json:"reason"`
}

// Revert triggers the compensating action for a FAILED transaction.
func (h *Handler) Revert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		responseJSON(w, &APIResponse{
			Status:  "error",
			Message: "Error reading request body",
		}, http.StatusBadRequest)
		return
	}

	var req RevertRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			responseJSON(w, &APIResponse{
				Status:  "error",
				Message: "Cannot unmarshal input JSON",
			}, http.StatusBadRequest)
			return
		}
	}
	if req.Reason == "" {
		responseJSON(w, &APIResponse{
			Status:  "error",
			Field:   "reason",
			Message: "Revert reason not provided",
		}, http.StatusBadRequest)
		return
	}

	tx, err := h.Bridge.Revert(r.Context(), id, req.Reason)
	if err != nil {
		h.Logger.WithError(err).WithField("id", id).Error("error reverting bridge transaction")
		h.responseError(w, err, "id")
		return
	}

	responseJSON(w, tx, http.StatusOK)
}
