package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/taskhive/taskhive/internal/apperr"
)

// errorBody is the stable wire shape for failures.
type errorBody struct {
	Type    apperr.Kind `json:"type"`
	Message string      `json:"message"`
	Field   string      `json:"field,omitempty"`
}

func decodeJSON(body io.ReadCloser, dst any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps a typed condition to its status code and tag. Untyped
// errors become a generic internal error; the underlying message is only
// exposed in dev mode.
func (h *handler) writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	body := errorBody{Type: apperr.KindOf(err)}

	if e := apperr.Get(err); e != nil && e.Kind != apperr.KindInternal {
		body.Message = e.Message
		body.Field = e.Field
	} else if h.dev {
		body.Message = err.Error()
	} else {
		body.Message = "internal error"
	}

	if status >= http.StatusInternalServerError {
		h.log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, map[string]errorBody{"error": body})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {
		Type:    apperr.KindValidation,
		Message: message,
	}})
}
