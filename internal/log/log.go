// Package log provides the structured loggers used across polywallet.
//
// Diagnostics go to stderr so command output on stdout stays clean.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the root logger. Component loggers derive from it.
var Logger zerolog.Logger

// Component loggers.
var (
	Wallet   zerolog.Logger
	Node     zerolog.Logger
	Explorer zerolog.Logger
	Cache    zerolog.Logger
	Keystore zerolog.Logger
	CLI      zerolog.Logger
)

func init() {
	setRoot(newConsole(os.Stderr), zerolog.InfoLevel)
}

// Init configures the root logger. Console output is colored unless
// jsonOutput is set. A non-empty file additionally receives JSON lines.
func Init(level string, jsonOutput bool, file string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stderr
	if !jsonOutput {
		out = newConsole(os.Stderr)
	}
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		out = zerolog.MultiLevelWriter(out, f)
	}

	setRoot(out, lvl)
	return nil
}

// New returns a standalone logger writing JSON to w, for tests and
// embedding.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// ParseLevel accepts zerolog level names plus "off" for disabled. An empty
// level means info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return zerolog.InfoLevel, nil
	case "off":
		return zerolog.Disabled, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
	return lvl, nil
}

func newConsole(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
}

func setRoot(w io.Writer, level zerolog.Level) {
	Logger = New(w, level)

	Wallet = component("wallet")
	Node = component("node")
	Explorer = component("explorer")
	Cache = component("cache")
	Keystore = component("keystore")
	CLI = component("cli")
}

func component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// WithAddress returns the wallet logger tagged with an address.
func WithAddress(address string) zerolog.Logger {
	return Wallet.With().Str("address", address).Logger()
}

// Benchmark logs the duration of an operation at debug level when the
// returned func is called.
func Benchmark(name string) func() {
	start := time.Now()
	return func() {
		Logger.Debug().
			Str("operation", name).
			Dur("duration", time.Since(start)).
			Msg("benchmark")
	}
}

// Printf adapts a zerolog logger to printf-style logging interfaces such as
// the one badger expects.
type Printf struct {
	L zerolog.Logger
}

func (p Printf) Errorf(format string, args ...interface{}) {
	p.L.Error().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (p Printf) Warningf(format string, args ...interface{}) {
	p.L.Warn().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (p Printf) Infof(format string, args ...interface{}) {
	p.L.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (p Printf) Debugf(format string, args ...interface{}) {
	p.L.Trace().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
