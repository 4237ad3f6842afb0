package util

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string
	// Format: console or json
	Format string
	// Outputs: stdout, stderr or file paths
	Outputs []string
	// Rotate enables lumberjack rotation for file outputs
	Rotate     bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// SetupLogFlags adds the logging flags to a command
func SetupLogFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("log-level", "info", WrapString("Log level (debug, info, warn, error)"))
	flags.String("log-format", "console", WrapString("Log format (console, json)"))
	flags.String("log-output", "stderr", WrapString("Comma-separated log outputs: stdout, stderr or file paths"))
	flags.Bool("log-rotate", false, WrapString("Rotate file outputs"))
	flags.Int("log-max-size", 50, WrapString("Maximum size in MB of a log file before rotation"))
}

// GetLogConfig reads the logging configuration from viper
func GetLogConfig() LogConfig {
	var outputs []string
	for _, o := range strings.Split(viper.GetString("log-output"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			outputs = append(outputs, o)
		}
	}
	return LogConfig{
		Level:      viper.GetString("log-level"),
		Format:     viper.GetString("log-format"),
		Outputs:    outputs,
		Rotate:     viper.GetBool("log-rotate"),
		MaxSizeMB:  viper.GetInt("log-max-size"),
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// SetupLogger builds a zap logger from c and returns it with a slog view
// for library code. The caller should defer logger.Sync().
func SetupLogger(c LogConfig) (*zap.Logger, *slog.Logger) {
	level := zap.NewAtomicLevelAt(parseLevel(c.Level))

	var encoder zapcore.Encoder
	if strings.ToLower(c.Format) == "json" {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	if len(c.Outputs) == 0 {
		c.Outputs = []string{"stderr"}
	}
	var cores []zapcore.Core
	for _, out := range c.Outputs {
		cores = append(cores, zapcore.NewCore(encoder, writerFor(out, c), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
	zap.ReplaceGlobals(logger)
	return logger, slog.New(zapslog.NewHandler(logger.Core(), zapslog.WithName("canclient")))
}

func writerFor(out string, c LogConfig) zapcore.WriteSyncer {
	switch strings.ToLower(out) {
	case "stdout":
		return zapcore.Lock(os.Stdout)
	case "stderr":
		return zapcore.Lock(os.Stderr)
	}
	if c.Rotate {
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   out,
			MaxSize:    max(c.MaxSizeMB, 10),
			MaxBackups: max(c.MaxBackups, 1),
			MaxAge:     max(c.MaxAgeDays, 7),
			Compress:   true,
		})
	}
	if dir := filepath.Dir(out); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	f, err := os.OpenFile(out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		// fall back to stderr rather than losing logs
		return zapcore.Lock(os.Stderr)
	}
	return zapcore.AddSync(f)
}
