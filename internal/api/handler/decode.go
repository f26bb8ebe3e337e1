// Package handler provides HTTP handlers for the Spouty API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/spouty/spouty/internal/api/models"
	"github.com/spouty/spouty/internal/api/response"
)

// maxBodyBytes caps request bodies; the largest valid payload is well under 1 KiB.
const maxBodyBytes = 16 << 10

// decodeJSON reads a JSON body into dst. On failure it writes a 400 problem
// and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		detail := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			detail = "request body is empty"
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			response.BadRequest(w, r, detail, []models.FieldError{
				{Field: typeErr.Field, Message: "must be a " + typeErr.Type.String(), Code: models.CodeInvalid},
			})
			return false
		}
		response.BadRequest(w, r, detail, nil)
		return false
	}
	return true
}

// requireFields writes a 400 listing missing fields and returns false when
// any are missing.
func requireFields(w http.ResponseWriter, r *http.Request, missing []string) bool {
	if len(missing) == 0 {
		return true
	}
	errs := make([]models.FieldError, len(missing))
	for i, field := range missing {
		errs[i] = models.FieldError{Field: field, Message: "is required", Code: models.CodeRequired}
	}
	response.BadRequest(w, r, "missing required fields", errs)
	return false
}
