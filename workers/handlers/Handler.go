package handlers

import (
	"net/http"

	"goaetherbridge/bridge"
	"goaetherbridge/types"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Handler carries the collaborators the HTTP endpoints need. Constructed in
// main and handed to the router.
type Handler struct {
	Bridge *bridge.Orchestrator
	Store  types.TransactionStore
	Logger *logrus.Logger
}

func New(orch *bridge.Orchestrator, store types.TransactionStore, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{Bridge: orch, Store: store, Logger: logger}
}

// responseError maps core errors onto HTTP codes and the common error
// envelope.
func (h *Handler) responseError(w http.ResponseWriter, err error, field string) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, types.ErrUnsupportedPair),
		errors.Is(err, types.ErrAmountOutOfBounds):
		code = http.StatusBadRequest
	case errors.Is(err, types.ErrInvalidTransition),
		errors.Is(err, types.ErrConflict):
		code = http.StatusConflict
	}

	responseJSON(w, &APIResponse{
		Status:  "error",
		Field:   field,
		Message: err.Error(),
	}, code)
}
