package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/roguepikachu/nibb/pkg/ctxutil"
	"github.com/sirupsen/logrus"
)

func init() {
	// The library runs inside a host process; keep stdout for the host.
	logrus.SetOutput(os.Stderr)
}

// InitLogging configures the logger from the given level and format.
// An empty level falls back to info, format "json" selects the JSON formatter.
func InitLogging(level, format string) {
	if level == "" {
		level = "info"
	}
	setLogLevel(level)
	if strings.ToLower(format) == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// SetOutput redirects log output.
func SetOutput(w io.Writer) {
	logrus.SetOutput(w)
}

func setLogLevel(level string) {
	switch strings.ToLower(level) {
	case "trace":
		logrus.SetLevel(logrus.TraceLevel)
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.Warnf("invalid LOG_LEVEL %q, defaulting to info", level)
		logrus.SetLevel(logrus.InfoLevel)
		return
	}
	logrus.Debugf("logging level set to %s", level)
}

// entry returns a logrus entry carrying the correlation fields found in ctx.
func entry(ctx context.Context) *logrus.Entry {
	e := logrus.NewEntry(logrus.StandardLogger())
	if ctx == nil {
		return e
	}
	if id := ctxutil.CallID(ctx); id != "" {
		e = e.WithField("call_id", id)
	}
	if op := ctxutil.Operation(ctx); op != "" {
		e = e.WithField("op", op)
	}
	return e
}

// With returns an entry with the context fields plus the given fields.
func With(ctx context.Context, fields map[string]any) *logrus.Entry {
	return entry(ctx).WithFields(logrus.Fields(fields))
}

// WithField returns an entry with the context fields plus one extra field.
func WithField(ctx context.Context, key string, value any) *logrus.Entry {
	return entry(ctx).WithField(key, value)
}

func Info(ctx context.Context, msg string, args ...any) {
	entry(ctx).Infof(msg, args...)
}

func Debug(ctx context.Context, msg string, args ...any) {
	entry(ctx).Debugf(msg, args...)
}

func Error(ctx context.Context, msg string, args ...any) {
	entry(ctx).Errorf(msg, args...)
}

func Trace(ctx context.Context, msg string, args ...any) {
	entry(ctx).Tracef(msg, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	entry(ctx).Warnf(msg, args...)
}
