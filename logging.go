package main

import (
	"log"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SetupLogging initializes the logging module. All logs are saved to
// the configured file. With console enabled the same logs are printed
// to standard error as well in development; the interactive terminal
// views pass false since they own the terminal and a tee would garble
// their screen. Stacktraces are attached from error level. Every
// entry carries the commit and tag of the running build.
func SetupLogging(config *Config, logFile *os.File, console bool) (*zap.Logger, func()) {
	zapConfig := zap.NewProductionEncoderConfig()
	if !config.IsProduction {
		zapConfig = zap.NewDevelopmentEncoderConfig()
	}
	zapConfig.TimeKey = "timestamp"
	zapConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.LevelKey = "level"
	zapConfig.NameKey = "name"
	zapConfig.MessageKey = "msg"
	zapConfig.CallerKey = "caller"
	zapConfig.StacktraceKey = "stacktrace"

	fileEncoder := zapcore.NewJSONEncoder(zapConfig)
	cores := []zapcore.Core{
		zapcore.NewCore(fileEncoder, zapcore.AddSync(logFile), config.LogLevel),
	}
	if console && !config.IsProduction {
		consoleEncoder := zapcore.NewConsoleEncoder(zapConfig)
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), config.LogLevel))
	}
	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	logger = logger.With(zap.String("commit", config.GitCommit), zap.String("tag", config.GitTag))

	flusher := func() {
		if err := logger.Sync(); err != nil {
			log.Println("error during flushing any buffered log entries:", err)
		}
	}

	return logger, flusher
}

// SetupFileLogging creates the log folder and file then builds the
// logger. The returned cleanup flushes and closes the file.
func SetupFileLogging(config *Config, console bool) (*zap.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(config.LogFile), 0o700); err != nil {
		return nil, nil, err
	}
	logFile, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	logger, flusher := SetupLogging(config, logFile, console)
	cleanup := func() {
		flusher()
		if cerr := logFile.Close(); cerr != nil {
			log.Println("error during closing of log file:", cerr)
		}
	}
	return logger, cleanup, nil
}
