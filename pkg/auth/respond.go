package auth

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeProviderResponse relays the token endpoint's status and JSON body.
// A body that is not JSON is replaced so the caller always receives JSON.
func writeProviderResponse(w http.ResponseWriter, resp *TokenResponse) {
	if !json.Valid(resp.Body) {
		status := resp.StatusCode
		if status == http.StatusOK {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorResponse{Error: errorInvalidProviderResponse})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}
