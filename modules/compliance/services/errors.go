package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/meridian-grc/meridian/modules/compliance/domain"
)

const (
	CodeImportInvalidBody      = "IMPORT_INVALID_BODY"
	CodeImportTooLarge         = "IMPORT_TOO_LARGE"
	CodeImportMappingInvalid   = "IMPORT_MAPPING_INVALID"
	CodeImportValidationFailed = "IMPORT_VALIDATION_FAILED"
	CodeImportCommitFailed     = "IMPORT_COMMIT_FAILED"

	CodeReportVersionNotFound = "REPORT_VERSION_NOT_FOUND"
	CodeReportVersionMismatch = "REPORT_VERSION_MISMATCH"
	CodeReportInvalidSnapshot = "REPORT_INVALID_SNAPSHOT"

	CodeNotFound = "NOT_FOUND"
	CodeInternal = "INTERNAL_SERVER_ERROR"
)

type ServiceError struct {
	Status  int
	Code    string
	Message string
	Meta    map[string]any
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

func (e *ServiceError) withMeta(key string, value any) *ServiceError {
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}
	e.Meta[key] = value
	return e
}

// AsServiceError unwraps err to a *ServiceError, treating anything else as
// an internal error.
func AsServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	if errors.Is(err, domain.ErrNotFound) {
		return newServiceError(http.StatusNotFound, CodeNotFound, "not found", err)
	}
	return newServiceError(http.StatusInternalServerError, CodeInternal, "internal error", err)
}
