package composables

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/meridian-grc/meridian/pkg/constants"
)

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the request-scoped logger, or an entry on the standard
// logger when none was installed (CLI and tests).
func UseLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(constants.LoggerKey).(*logrus.Entry); ok && logger != nil {
		return logger
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, constants.RequestIDKey, requestID)
}

// UseRequestID returns the id assigned by the logging middleware, if any.
func UseRequestID(ctx context.Context) string {
	id, _ := ctx.Value(constants.RequestIDKey).(string)
	return id
}

// UseQuery decodes the request's query string into v.
func UseQuery[T any](v T, r *http.Request) (T, error) {
	return v, constants.Decoder.Decode(v, r.URL.Query())
}
