package constants

type ContextKey string

const (
	LoggerKey    ContextKey = "logger"
	RequestStart ContextKey = "requestStart"
	RequestIDKey ContextKey = "requestID"
	TxKey        ContextKey = "tx"
	DBKey        ContextKey = "db"
	AppKey       ContextKey = "app"
)
