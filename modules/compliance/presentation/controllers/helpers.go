package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/meridian-grc/meridian/modules/compliance/services"
	"github.com/meridian-grc/meridian/pkg/composables"
	"github.com/meridian-grc/meridian/pkg/httpapi"
)

const codeInvalidQuery = "INVALID_QUERY"

func decodeJSON(body io.ReadCloser, out any) error {
	defer func() { _ = body.Close() }()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// validationMeta lists the failing fields of a validator error.
func validationMeta(err error) map[string]any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return map[string]any{"fields": fields}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	svcErr := services.AsServiceError(err)
	if svcErr.Status >= http.StatusInternalServerError {
		composables.UseLogger(r.Context()).WithError(err).Error("request failed")
	}
	meta := make(map[string]any, len(svcErr.Meta)+1)
	for k, v := range svcErr.Meta {
		meta[k] = v
	}
	writeAPIError(w, r, svcErr.Status, svcErr.Code, svcErr.Message, meta)
}

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, code, message string, meta map[string]any) {
	_ = httpapi.WriteError(w, status, composables.UseRequestID(r.Context()), code, message, meta)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	_ = httpapi.WriteJSON(w, status, payload)
}
