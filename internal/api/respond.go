package api

import (
	"encoding/json"
	"net/http"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// TransitionErrorResponse carries enough detail for a UI to explain why a
// status change was refused.
type TransitionErrorResponse struct {
	Error              string   `json:"error"`
	Details            string   `json:"details,omitempty"`
	CurrentStatus      string   `json:"current_status"`
	RequestedStatus    string   `json:"requested_status,omitempty"`
	AllowedTransitions []string `json:"allowed_transitions"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
