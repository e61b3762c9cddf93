// SPDX-FileCopyrightText: 2020 The Gnet Authors
// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0

// Package logging provides the logger used by gpiolib, powered by
// go.uber.org/zap.
//
// The library is silent by default.  Logging is enabled by setting the
// GPIOLIB_LOGGING_LEVEL environment variable to a zap level, as an integer
// (-1 for debug through 5 for fatal), and/or GPIOLIB_LOGGING_FILE to the
// path of a file to log into, which is rotated by lumberjack.  Invalid
// settings are reported once on stderr and leave the library silent.
//
// Applications may replace the logger with their own by implementing the
// Logger interface and passing it to SetDefaultLoggerAndFlusher.
package logging

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Flusher flushes any buffered log entries to the underlying writer.
type Flusher = func() error

// Level is the alias of zapcore.Level.
type Level = zapcore.Level

const (
	// DebugLevel logs are voluminous, and are usually disabled.
	DebugLevel = zapcore.DebugLevel

	// InfoLevel is the default logging priority once logging is enabled.
	InfoLevel = zapcore.InfoLevel

	// WarnLevel logs are more important than Info, but don't need individual
	// human review.
	WarnLevel = zapcore.WarnLevel

	// ErrorLevel logs are high-priority.
	ErrorLevel = zapcore.ErrorLevel
)

const (
	levelEnv = "GPIOLIB_LOGGING_LEVEL"
	fileEnv  = "GPIOLIB_LOGGING_FILE"
	prefix   = "[gpiolib]"
)

var (
	defaultLogger       Logger
	defaultLoggingLevel Level
	defaultFlusher      Flusher
)

func init() {
	defaultLogger, defaultFlusher, defaultLoggingLevel = defaultFromEnv(
		os.Getenv(levelEnv), os.Getenv(fileEnv), os.Stderr)
}

// defaultFromEnv builds the default logger from the environment settings,
// falling back to discarding everything if the settings are invalid.
func defaultFromEnv(lvl, fileName string, w io.Writer) (Logger, Flusher, Level) {
	logger, flush, level, err := loggerFromEnv(lvl, fileName)
	if err != nil {
		fmt.Fprintf(w, "%s logging disabled: %v\n", prefix, err)
		zl := zap.NewNop()
		return zl.Sugar(), zl.Sync, level
	}
	return logger, flush, level
}

// loggerFromEnv builds the logger described by the environment settings.
//
// With neither set the logger discards everything.
func loggerFromEnv(lvl, fileName string) (Logger, Flusher, Level, error) {
	level := InfoLevel
	if len(lvl) > 0 {
		l, err := strconv.ParseInt(lvl, 10, 8)
		if err != nil {
			return nil, nil, level, errors.Wrapf(err, "invalid %s", levelEnv)
		}
		level = Level(l)
	}
	if len(fileName) > 0 {
		logger, flush, err := CreateLoggerAsLocalFile(fileName, level)
		if err != nil {
			return nil, nil, level, errors.Wrapf(err, "invalid %s", fileEnv)
		}
		return logger, flush, level, nil
	}
	if len(lvl) == 0 {
		zl := zap.NewNop()
		return zl.Sugar(), zl.Sync, level, nil
	}
	core := zapcore.NewCore(getDevEncoder(), zapcore.Lock(os.Stderr), level)
	zl := zap.New(core,
		zap.Development(),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	return zl.Sugar(), zl.Sync, level, nil
}

type prefixEncoder struct {
	zapcore.Encoder

	prefix  string
	bufPool buffer.Pool
}

func (e *prefixEncoder) Clone() zapcore.Encoder {
	return &prefixEncoder{
		Encoder: e.Encoder.Clone(),
		prefix:  e.prefix,
		bufPool: e.bufPool,
	}
}

func (e *prefixEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	logEntry, err := e.Encoder.EncodeEntry(entry, fields)
	if err != nil {
		return nil, err
	}
	buf := e.bufPool.Get()
	buf.AppendString(e.prefix)
	buf.AppendString(" ")
	if _, err = buf.Write(logEntry.Bytes()); err != nil {
		return nil, err
	}
	logEntry.Free()
	return buf, nil
}

func newPrefixEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	cfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return &prefixEncoder{
		Encoder: zapcore.NewConsoleEncoder(cfg),
		prefix:  prefix,
		bufPool: buffer.NewPool(),
	}
}

func getDevEncoder() zapcore.Encoder {
	return newPrefixEncoder(zap.NewDevelopmentEncoderConfig())
}

func getProdEncoder() zapcore.Encoder {
	return newPrefixEncoder(zap.NewProductionEncoderConfig())
}

// GetDefaultLogger returns the default logger.
func GetDefaultLogger() Logger {
	return defaultLogger
}

// GetDefaultFlusher returns the default flusher.
func GetDefaultFlusher() Flusher {
	return defaultFlusher
}

var setupOnce sync.Once

// SetDefaultLoggerAndFlusher sets the default logger and its flusher.
//
// Only the first call has any effect, so this should be called once at the
// start of the program.
func SetDefaultLoggerAndFlusher(logger Logger, flusher Flusher) {
	setupOnce.Do(func() {
		defaultLogger, defaultFlusher = logger, flusher
	})
}

// LogLevel returns the default logging level.
func LogLevel() string {
	return defaultLoggingLevel.String()
}

// CreateLoggerAsLocalFile creates a logger that writes to the file, which is
// rotated once it grows beyond 100MB.
func CreateLoggerAsLocalFile(localFilePath string, logLevel Level) (logger Logger, flush Flusher, err error) {
	if len(localFilePath) == 0 {
		return nil, nil, errors.New("invalid local logger path")
	}
	// lumberjack.Logger is safe for concurrent use.
	lumberJackLogger := &lumberjack.Logger{
		Filename:   localFilePath,
		MaxSize:    100, // megabytes
		MaxBackups: 2,
		MaxAge:     15, // days
	}
	ws := zapcore.AddSync(lumberJackLogger)
	levelEnabler := zap.LevelEnablerFunc(func(level Level) bool {
		return level >= logLevel
	})
	core := zapcore.NewCore(getProdEncoder(), ws, levelEnabler)
	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(ErrorLevel))
	return zl.Sugar(), zl.Sync, nil
}

// Cleanup flushes the default logger.
func Cleanup() {
	if defaultFlusher != nil {
		_ = defaultFlusher()
	}
}

// Error logs err, if it is not nil, at ERROR level.
func Error(err error) {
	if err != nil {
		defaultLogger.Errorf("error occurs during runtime, %v", err)
	}
}

// Debugf logs messages at DEBUG level.
func Debugf(format string, args ...interface{}) {
	defaultLogger.Debugf(format, args...)
}

// Infof logs messages at INFO level.
func Infof(format string, args ...interface{}) {
	defaultLogger.Infof(format, args...)
}

// Warnf logs messages at WARN level.
func Warnf(format string, args ...interface{}) {
	defaultLogger.Warnf(format, args...)
}

// Errorf logs messages at ERROR level.
func Errorf(format string, args ...interface{}) {
	defaultLogger.Errorf(format, args...)
}

// Logger is used for logging formatted messages.
type Logger interface {
	// Debugf logs messages at DEBUG level.
	Debugf(format string, args ...interface{})
	// Infof logs messages at INFO level.
	Infof(format string, args ...interface{})
	// Warnf logs messages at WARN level.
	Warnf(format string, args ...interface{})
	// Errorf logs messages at ERROR level.
	Errorf(format string, args ...interface{})
}
