package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger and installs it as the zap global.
// Production uses the JSON encoder; anything else gets the console one.
func New(logLevel, appEnv string) *zap.Logger {
	config := zap.NewDevelopmentConfig()
	if appEnv == "production" {
		config = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	config.Level.SetLevel(level)

	log, err := config.Build()
	if err != nil {
		log = zap.NewNop()
	}
	zap.ReplaceGlobals(log)
	return log
}
