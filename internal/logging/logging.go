// Package logging wires the single process-wide structured logger,
// replacing the teacher's hand-rolled pkg/logger with the
// github.com/sirupsen/logrus dependency the teacher's go.mod already
// declared but never imported (see DESIGN.md).
package logging

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

// Format is the log rendering selected by --log-format, mirroring
// spec.md §6's "compact|full|pretty|json".
type Format string

const (
	FormatCompact Format = "compact"
	FormatFull    Format = "full"
	FormatPretty  Format = "pretty"
	FormatJSON    Format = "json"
)

// New builds the root logger for a given format and verbosity (0 = warn,
// 1 = info ("-v"), 2+ = debug ("-vv")).
func New(format Format, verbosity int) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	switch format {
	case FormatJSON:
		log.SetFormatter(&logrus.JSONFormatter{})
	case FormatFull:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	case FormatPretty:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	default: // compact
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}

	switch {
	case verbosity >= 2:
		log.SetLevel(logrus.DebugLevel)
	case verbosity == 1:
		log.SetLevel(logrus.InfoLevel)
	default:
		log.SetLevel(logrus.WarnLevel)
	}
	return log
}

// WithLogger returns a context carrying log, retrievable with From.
func WithLogger(ctx context.Context, log *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// From returns the logger stored in ctx, or a fallback logger writing
// warnings and above to stderr if none was attached -- this keeps every call site safe without a
// nil check, matching the teacher's habit of never letting a missing
// collaborator panic mid-operation.
func From(ctx context.Context) *logrus.Entry {
	if log, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok && log != nil {
		return log
	}
	fallback := logrus.New()
	fallback.SetOutput(os.Stderr)
	fallback.SetLevel(logrus.WarnLevel)
	return logrus.NewEntry(fallback)
}
