package httptransport

import (
	"encoding/json"
	"net/http"
)

// WriteHTTPError writes {"error": code}. Codes are outcome names or
// transport level codes such as invalid_json.
func WriteHTTPError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"error": code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
