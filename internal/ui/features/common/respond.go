// Package common provides shared response helpers for UI features.
package common

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/leapstack-labs/mclineage/internal/state"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// Error writes an error response.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorBody{Error: msg})
}

// StoreError maps store failures to a status code.
func StoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, state.ErrRunNotFound) {
		Error(w, http.StatusNotFound, err.Error())
		return
	}
	Error(w, http.StatusInternalServerError, err.Error())
}
