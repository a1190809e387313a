package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/linkguard/internal/api/apierr"
	"github.com/mcoot/linkguard/internal/model"
)

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return apierr.NewInvalidRequestError(message)
}

// decode reads a JSON body into v
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return NewInvalidRequestError("invalid request body")
	}
	return nil
}

// playerParam validates a player id taken from the path or body
func playerParam(raw string) (model.PlayerID, error) {
	if raw == "" {
		return "", NewInvalidRequestError("player_id is required")
	}
	return model.ParsePlayerID(raw)
}

// addressParam validates an address taken from the path or body
func addressParam(raw string) (model.Address, error) {
	if raw == "" {
		return "", NewInvalidRequestError("address is required")
	}
	return model.ParseAddress(raw)
}
