package server

import (
	"encoding/json"
	"net/http"
)

const maxRequestBytes = 64 << 10

// MessageResponse is the error body the admin UI renders verbatim.
type MessageResponse struct {
	Message string `json:"message"`
}

// ResultResponse is the success/failure body used by the gate and login forms.
type ResultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Msg     string `json:"msg,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	return dec.Decode(v)
}
