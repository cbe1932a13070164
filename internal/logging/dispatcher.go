package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DispatcherLogger adapts zerolog to the dispatcher's key/value Logger.
// Every line carries component=dispatcher.
type DispatcherLogger struct {
	logger zerolog.Logger
}

func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{logger: logger.With().Str("component", "dispatcher").Logger()}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	write(l.logger.Debug(), msg, keysAndValues)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	write(l.logger.Info(), msg, keysAndValues)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	write(l.logger.Error(), msg, keysAndValues)
}

// write keeps pair order and pairs arguments the way slog does: a non-string
// key or a trailing key without value is logged under !BADKEY. An error
// under "error" goes through Err.
func write(e *zerolog.Event, msg string, kv []any) {
	if e == nil {
		return
	}
	for len(kv) > 0 {
		key, ok := kv[0].(string)
		if !ok || len(kv) == 1 {
			e = e.Interface("!BADKEY", kv[0])
			kv = kv[1:]
			continue
		}
		if err, isErr := kv[1].(error); isErr && key == "error" {
			e = e.Err(err)
		} else {
			e = e.Interface(key, kv[1])
		}
		kv = kv[2:]
	}
	e.Msg(msg)
}

// NewZerolog builds the zerolog logger used by the dispatcher, database and
// influx packages. It writes console-formatted lines at the given level.
func NewZerolog(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}
