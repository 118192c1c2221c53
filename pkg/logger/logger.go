package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.SugaredLogger

// Init builds the global logger. env selects the zap preset
// ("production" or anything else for development); level overrides
// the preset's minimum level when non-empty.
func Init(env, level string) {
	var zapConfig zap.Config
	if env == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	switch level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	}

	logger, err := zapConfig.Build()
	if err != nil {
		panic(err)
	}
	log = logger.Sugar()
}

// Sync flushes buffered log entries.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}

func ensure() *zap.SugaredLogger {
	if log == nil {
		Init("development", "")
	}
	return log
}

func Debug(msg string, keysAndValues ...interface{}) {
	ensure().Debugw(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...interface{}) {
	ensure().Infow(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...interface{}) {
	ensure().Warnw(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...interface{}) {
	ensure().Errorw(msg, keysAndValues...)
}

func Fatal(msg string, keysAndValues ...interface{}) {
	ensure().Fatalw(msg, keysAndValues...)
}
