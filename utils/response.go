package utils

import (
	"encoding/json"
	"net/http"
	"plantify/apperr"
	"plantify/logger"

	"go.uber.org/zap"
)

// Envelope is the JSON body every endpoint responds with. Resource fields are
// merged in by the caller.
type Envelope map[string]interface{}

// WriteJSON writes body with the given status
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteSuccess writes {success: true, message?, ...fields}
func WriteSuccess(w http.ResponseWriter, status int, message string, fields Envelope) {
	body := Envelope{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range fields {
		body[k] = v
	}
	WriteJSON(w, status, body)
}

// WriteError maps err to its status and writes {success: false, message}.
// Unexpected errors are logged and answered with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError && apperr.KindOf(err) == apperr.KindInternal {
		logger.FromContext(r.Context()).Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	body := Envelope{"success": false, "message": apperr.MessageOf(err)}
	if apperr.KindOf(err) != apperr.KindInternal {
		body["error"] = string(apperr.KindOf(err))
	}
	WriteJSON(w, status, body)
}

// DecodeJSON decodes the request body into dst
func DecodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, "Invalid input", err)
	}
	return nil
}
