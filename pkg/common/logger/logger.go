package logger

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

var Log = logrus.New()

func Init() {
	Log.SetOutput(os.Stdout)
	Log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	Log.SetLevel(logLevel)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return Log.WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}

// ForComponent returns an entry pre-tagged with the owning component so
// repository and engine log lines stay attributable in aggregated output.
func ForComponent(name string) *logrus.Entry {
	return Log.WithField("component", name)
}

type contextKey string

const requestIDKey contextKey = "request_id"

// ContextWithRequestID stores the correlation id assigned by the HTTP layer.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// FromContext returns an entry carrying the request correlation id, if any.
func FromContext(ctx context.Context) *logrus.Entry {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return Log.WithField("request_id", id)
	}
	return logrus.NewEntry(Log)
}
