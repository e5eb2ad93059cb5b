package apperr

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError answers {"error": msg} with the mapped status. Internal causes are logged.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	WriteJSON(w, status, map[string]interface{}{"error": Message(err)})
}

// WriteResult answers 200 {"error": null, ...fields}.
func WriteResult(w http.ResponseWriter, fields map[string]interface{}) {
	body := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["error"] = nil
	WriteJSON(w, http.StatusOK, body)
}

// DecodeJSON reads a request body into v, answering 400 on malformed input.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, r, Invalid("Invalid request body."))
		return false
	}
	return true
}
