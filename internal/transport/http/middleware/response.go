package middleware

import (
	"encoding/json"
	"net/http"
)

// writeJSONError writes the failure envelope the API uses for every action.
// The status stays 200 like any other action result.
func writeJSONError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": msg})
}
