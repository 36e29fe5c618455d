package main

import (
	"errors"
	"net/http"

	"github.com/meridian-grc/meridian/modules/compliance/services"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK         = 0
	exitValidation = 2
	exitUsage      = 3
	exitDB         = 4
	exitDBWrite    = 5
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}

// serviceExit reports client-side service failures as validation errors and
// everything else with fallback.
func serviceExit(err error, fallback int) error {
	if err == nil {
		return nil
	}
	if services.AsServiceError(err).Status < http.StatusInternalServerError {
		return withCode(exitValidation, err)
	}
	return withCode(fallback, err)
}
