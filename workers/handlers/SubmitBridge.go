package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"goaetherbridge/bridge"
	"goaetherbridge/types"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/ethereum/go-ethereum/common"
)

type BridgeSubmitRequest struct {
	UserID        string `json:"userId"`
	SourceAddress string `json:"sourceAddress"`
	DestAddress   string `json:"destAddress"`
	Amount        string `json:"amount"`
	Direction     string `json:"direction"`
	SourceTxHash  string `json:"sourceTxHash"`
}

// SubmitBridge creates a new bridge transaction from a transfer request.
func (h *Handler) SubmitBridge(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.Logger.WithError(err).Error("error reading request body")
		responseJSON(w, &APIResponse{
			Status:  "error",
			Message: "Error reading request body",
		}, http.StatusBadRequest)
		return
	}

	var req BridgeSubmitRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.Logger.WithError(err).Error("error unmarshalling request body")
		responseJSON(w, &APIResponse{
			Status:  "error",
			Message: "Cannot unmarshal input JSON",
		}, http.StatusBadRequest)
		return
	}

	if req.UserID == "" {
		responseJSON(w, &APIResponse{
			Status:  "error",
			Field:   "userId",
			Message: "User id not provided",
		}, http.StatusBadRequest)
		return
	}

	// verification polls this reference for confirmations; without it the
	// transaction could never leave INITIATED
	if req.SourceTxHash == "" {
		responseJSON(w, &APIResponse{
			Status:  "error",
			Field:   "sourceTxHash",
			Message: "Source transaction hash not provided",
		}, http.StatusBadRequest)
		return
	}

	direction := types.Direction(req.Direction)
	_, dest, ok := direction.Resolve()
	if !ok {
		responseJSON(w, &APIResponse{
			Status:  "error",
			Field:   "direction",
			Message: "Bridge direction not provided or not supported",
		}, http.StatusBadRequest)
		return
	}

	// Ethereum destinations get checksummed and validated; other networks
	// validate addresses on their own side.
	destAddress := req.DestAddress
	if dest == types.NetworkEthereum {
		if !common.IsHexAddress(req.DestAddress) {
			responseJSON(w, &APIResponse{
				Status:  "error",
				Field:   "destAddress",
				Message: "No ethereum address or invalid address provided",
			}, http.StatusBadRequest)
			return
		}
		destAddress = common.HexToAddress(req.DestAddress).Hex()
		if err := ethav.Validate(destAddress); err != nil {
			h.Logger.WithError(err).WithField("address", req.DestAddress).Error("error validating Ethereum address")
			responseJSON(w, &APIResponse{
				Status:  "error",
				Field:   "destAddress",
				Message: "No ethereum address or invalid address provided",
			}, http.StatusBadRequest)
			return
		}
	}
	if destAddress == "" {
		responseJSON(w, &APIResponse{
			Status:  "error",
			Field:   "destAddress",
			Message: "Destination address not provided",
		}, http.StatusBadRequest)
		return
	}

	tx, err := h.Bridge.Create(r.Context(), bridge.CreateParams{
		UserID:        req.UserID,
		SourceAddress: req.SourceAddress,
		DestAddress:   destAddress,
		Amount:        req.Amount,
		Direction:     direction,
		SourceTxHash:  req.SourceTxHash,
	})
	if err != nil {
		h.Logger.WithError(err).Error("error creating bridge transaction")
		h.responseError(w, err, "amount")
		return
	}

	responseJSON(w, tx, http.StatusOK)
}
