// Package logger holds the process-wide zap logger.
//
// The TUI owns stdout, so logs go to a file unless Stderr is requested
// (headless commands). Until Initialize runs, Logger is a no-op.
package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field names shared by every component.
const (
	FieldComponent  = "component"
	FieldSubject    = "subject"
	FieldTarget     = "target"
	FieldToken      = "token"
	FieldStatus     = "status"
	FieldError      = "error"
	FieldCount      = "count"
	FieldDurationMS = "duration_ms"
	FieldEndpoint   = "endpoint"
	FieldPath       = "path"
	FieldPort       = "port"
)

// Logger is the global sugared logger.
var Logger *zap.SugaredLogger

func init() {
	Logger = zap.NewNop().Sugar()
}

// Options controls where and how logs are written.
type Options struct {
	// File receives log output. Empty means stderr.
	File string
	// JSON switches to the production JSON encoder.
	JSON  bool
	Debug bool
}

// Initialize replaces the global logger.
func Initialize(opts Options) error {
	level := zap.InfoLevel
	if opts.Debug {
		level = zap.DebugLevel
	}

	var sink zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		sink = zapcore.AddSync(f)
	}

	var enc zapcore.Encoder
	if opts.JSON {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		enc = zapcore.NewConsoleEncoder(cfg)
	}

	Logger = zap.New(zapcore.NewCore(enc, sink, level)).Sugar()
	return nil
}

// ComponentLogger returns a named logger for dependency injection.
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// Cleanup flushes buffered entries.
func Cleanup() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}
