package observability

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/auth-service/internal/config"
)

// NewLogger builds the service logger. Every entry carries the service name,
// version and environment so audit and request lines can be told apart from
// other services in a shared sink. Production mode samples repeated lines,
// which keeps a flood of rejected tokens from drowning the log.
func NewLogger(cfg config.LoggerConfig, app config.AppConfig) (*zap.Logger, error) {
	encoding := parseEncoding(cfg.Encoding)
	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(cfg.Level)),
		Development:      cfg.Development,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig(cfg.Development && encoding == "console"),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	if !cfg.Development {
		zapCfg.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(
		zap.String("service", app.Name),
		zap.String("version", app.Version),
		zap.String("env", app.Env),
	), nil
}

func parseLevel(raw string) zapcore.Level {
	level := zapcore.InfoLevel
	if err := level.Set(strings.ToLower(raw)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func parseEncoding(raw string) string {
	if strings.EqualFold(raw, "console") {
		return "console"
	}
	return "json"
}

func encoderConfig(colored bool) zapcore.EncoderConfig {
	enc := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "ts",
		NameKey:        "logger",
		CallerKey:      "caller",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	if colored {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc.StacktraceKey = "stacktrace"
	}
	return enc
}
