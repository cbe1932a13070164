package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
)

// osStdout is the console sink, replaceable in tests.
var osStdout io.Writer = os.Stdout

// Options configures SlogManager.Setup.
type Options struct {
	Level string
	// File receives all records. When nil, records go to stdout instead.
	File io.Writer
	// GelfAddress enables shipping to Graylog over UDP when non-empty.
	GelfAddress string
	// Clock stamps every record with the simulation tick and time.
	Clock SimClock
}

// SlogManager manages slog-based logging with optional Graylog shipping.
type SlogManager struct {
	logger *slog.Logger
	level  slog.Level
	gelf   *gelf.Writer
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel accepts slog level names, case-insensitive and with an optional
// offset such as "warn+2". Unknown names fall back to info.
func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func utcTime(_ []string, a slog.Attr) slog.Attr {
	if t, ok := a.Value.Any().(time.Time); ok && a.Key == slog.TimeKey {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
	}
	return a
}

// Setup installs a new logger and closes the previous Graylog writer. When
// Graylog cannot be reached the error is returned, but the local sink is
// installed anyway.
func (m *SlogManager) Setup(opts Options) error {
	m.level = parseLevel(opts.Level)
	_ = m.Close()

	hopts := &slog.HandlerOptions{Level: m.level, ReplaceAttr: utcTime}
	local := opts.File
	if local == nil {
		local = osStdout
	}
	sinks := []slog.Handler{slog.NewTextHandler(local, hopts)}

	gelfErr := m.dialGelf(opts.GelfAddress)
	if m.gelf != nil {
		sinks = append(sinks, slog.NewJSONHandler(m.gelf, hopts))
	}

	handler := NewClockHandler(NewFanoutHandler(sinks...), opts.Clock)
	m.logger = slog.New(handler)
	m.logger.Info("Logging initialized", "level", m.level.String(), "graylog", m.gelf != nil)
	return gelfErr
}

func (m *SlogManager) dialGelf(addr string) error {
	if addr == "" {
		return nil
	}
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to graylog at %s: %w", addr, err)
	}
	w.Facility = "firearm-sim"
	m.gelf = w
	return nil
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Level returns the configured minimum level.
func (m *SlogManager) Level() slog.Level {
	return m.level
}

// Close releases the Graylog writer, if any.
func (m *SlogManager) Close() error {
	if m.gelf == nil {
		return nil
	}
	err := m.gelf.Close()
	m.gelf = nil
	if err != nil {
		return errors.Join(errors.New("failed to close graylog writer"), err)
	}
	return nil
}

// OpenLogFile creates the logs directory and opens a session log file in it.
func OpenLogFile(logsDir, name string, start time.Time) (*os.File, error) {
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	path := LogFilePath(logsDir, name, start)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}
