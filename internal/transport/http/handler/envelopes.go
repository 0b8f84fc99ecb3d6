package handler

import (
	"encoding/json"
	"net/http"
)

// FailureEnvelope is the body of every failed action.
type FailureEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Every action answers HTTP 200; success is reported in the body.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeOK writes {success:true} merged with fields.
func writeOK(w http.ResponseWriter, fields map[string]interface{}) {
	body := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	writeJSON(w, http.StatusOK, body)
}

func writeError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, FailureEnvelope{Success: false, Error: msg})
}
