package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

type Logger struct {
	sugar *zap.SugaredLogger
	file  *os.File
}

// New writes every enabled level to filePath. When includeStdout is set,
// Info and above are echoed to stdout as well; Debug stays in the file so it
// does not break the CLI progress line.
func New(filePath string, level Level, includeStdout bool) (*Logger, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	enc := zapcore.NewConsoleEncoder(encoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.AddSync(f), level.zapLevel()),
	}

	if includeStdout {
		stdoutLevel := level
		if stdoutLevel < LevelInfo {
			stdoutLevel = LevelInfo
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stdout), stdoutLevel.zapLevel()))
	}

	return &Logger{
		sugar: zap.New(zapcore.NewTee(cores...)).Sugar(),
		file:  f,
	}, nil
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.CallerKey = zapcore.OmitKey
	cfg.ConsoleSeparator = " "
	return cfg
}

func ParseLevel(lvl string) Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// With returns a child logger that tags every line with the given key/value pairs.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{sugar: l.sugar.With(args...), file: l.file}
}

func (l *Logger) Debug(f string, v ...any) { l.sugar.Debugf(f, v...) }
func (l *Logger) Info(f string, v ...any)  { l.sugar.Infof(f, v...) }
func (l *Logger) Warn(f string, v ...any)  { l.sugar.Warnf(f, v...) }
func (l *Logger) Error(f string, v ...any) { l.sugar.Errorf(f, v...) }
func (l *Logger) Fatal(f string, v ...any) { l.sugar.Fatalf(f, v...) }

func (l *Logger) Write(p []byte) (n int, err error) {
	// Echo and other libraries often include a newline at the end
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		l.Info("%s", msg)
	}
	return len(p), nil
}

// Close flushes buffered entries and releases the log file.
func (l *Logger) Close() error {
	_ = l.sugar.Sync()
	if l.file == nil {
		return nil
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}
