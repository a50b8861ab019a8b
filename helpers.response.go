package main

import (
	"encoding/json"
	"net/http"
)

// APIError is the error body the service sends on rejections. The
// client parses the message field to surface conflict reasons.
type APIError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// WriteJSON sends a success payload exactly as the contract shapes
// it, with no extra envelope.
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

// WriteError sends a structured error body.
func WriteError(w http.ResponseWriter, status int, message string) error {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(&APIError{Status: status, Message: message})
}
