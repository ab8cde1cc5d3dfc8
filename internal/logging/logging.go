// Package logging builds the zap loggers used by the command line.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var textEncoderConfig = zapcore.EncoderConfig{
	MessageKey:     "M",
	LevelKey:       "L",
	TimeKey:        "T",
	NameKey:        "N",
	CallerKey:      zapcore.OmitKey,
	StacktraceKey:  zapcore.OmitKey,
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.ISO8601TimeEncoder,
	EncodeDuration: zapcore.StringDurationEncoder,
	EncodeName:     zapcore.FullNameEncoder,
}

var jsonEncoderConfig = zapcore.EncoderConfig{
	MessageKey:     "message",
	LevelKey:       "level",
	TimeKey:        "time",
	NameKey:        "logger",
	CallerKey:      zapcore.OmitKey,
	StacktraceKey:  zapcore.OmitKey,
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.LowercaseLevelEncoder,
	EncodeTime:     zapcore.ISO8601TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
	EncodeName:     zapcore.FullNameEncoder,
}

// New returns a logger writing to w at the given level. format is "text"
// or "json"; empty values mean info and text.
func New(w io.Writer, level string, format string) (*zap.Logger, error) {
	level = strings.TrimSpace(strings.ToLower(level))
	format = strings.TrimSpace(strings.ToLower(format))

	zapLevel := zapcore.InfoLevel
	if level != "" {
		l, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("unknown log level [debug,info,warn,error]: %q", level)
		}
		zapLevel = l
	}

	var encoder zapcore.Encoder
	switch format {
	case "text", "":
		encoder = zapcore.NewConsoleEncoder(textEncoderConfig)
	case "json":
		encoder = zapcore.NewJSONEncoder(jsonEncoderConfig)
	default:
		return nil, fmt.Errorf("unknown log format [text,json]: %q", format)
	}

	return zap.New(
		zapcore.NewCore(
			encoder,
			zapcore.Lock(zapcore.AddSync(w)),
			zap.NewAtomicLevelAt(zapLevel),
		),
	), nil
}

// Defer returns a function to defer that logs at the debug level how long
// the surrounding call took.
//
//	defer logging.Defer(logger, "import")()
func Defer(logger *zap.Logger, name string, fields ...zap.Field) func() {
	start := time.Now()
	return func() {
		fields = append(fields, zap.Duration("duration", time.Since(start)))
		logger.Debug(name, fields...)
	}
}
