package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Freedomtukun/free-yoga/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ConsoleLevel controls the console core and can be changed at runtime,
// e.g. when the configuration is reloaded.
var ConsoleLevel = zap.NewAtomicLevelAt(zapcore.DebugLevel)

// Init initializes and returns a new zap logger. Relative log directories are
// resolved against projectRoot.
func Init(projectRoot string, cfg config.LoggingConfig) (*zap.Logger, error) {
	// Base encoder configuration for file logs (JSON format)
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:   "message",
		LevelKey:     "level",
		TimeKey:      "time",
		CallerKey:    "caller",
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}

	logDir := cfg.Directory
	if !filepath.IsAbs(logDir) {
		logDir = filepath.Join(projectRoot, logDir)
	}
	if err := SetConsoleLevel(cfg.ConsoleLevel); err != nil {
		return nil, err
	}

	// Create a core for each level, which writes ONLY that level to a file.
	cores := make([]zapcore.Core, 0, 5)
	for _, level := range []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel} {
		core, err := newFileCore(logDir, level, encoderConfig, cfg)
		if err != nil {
			return nil, err
		}
		cores = append(cores, core)
	}

	// A separate core for the console with a more readable format.
	cores = append(cores, newConsoleCore())

	// A log entry is sent to every core, and each decides whether to
	// write it based on its LevelEnabler.
	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return logger, nil
}

// SetConsoleLevel changes the console verbosity. An empty level keeps the
// current one.
func SetConsoleLevel(level string) error {
	if level == "" {
		return nil
	}
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid console log level: %w", err)
	}
	ConsoleLevel.SetLevel(l)
	return nil
}

// newFileCore creates a core that writes a specific log level to a rotating file.
func newFileCore(logDir string, level zapcore.Level, encoderConfig zapcore.EncoderConfig, cfg config.LoggingConfig) (zapcore.Core, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create log directory: %w", err)
	}

	// Create a log file for each level, named like '2025-07-30-info.log'
	fileName := filepath.Join(logDir, fmt.Sprintf("%s-%s.log", time.Now().Format("2006-01-02"), level.String()))

	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   fileName,
		MaxSize:    cfg.MaxSize, // megabytes
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // days
		Compress:   cfg.Compress,
	})

	// This LevelEnablerFunc is the key to splitting logs. It ensures
	// that this core only handles logs of the exact specified level.
	levelEnabler := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l == level
	})

	return zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		writer,
		levelEnabler,
	), nil
}

// newConsoleCore creates a core that writes to the console at ConsoleLevel.
func newConsoleCore() zapcore.Core {
	// Use a more human-readable encoder for the console.
	consoleEncoderConfig := zap.NewDevelopmentEncoderConfig()
	consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder // Add color to levels

	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoderConfig),
		zapcore.AddSync(os.Stdout),
		ConsoleLevel,
	)
}
