package handlers

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type APIStateResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type APIQuoteResponse struct {
	Status          string `json:"status"`
	Direction       string `json:"direction"`
	Amount          string `json:"amount"`
	Fee             string `json:"fee"`
	EstimatedOutput string `json:"estimatedOutput"`
}
