package uzap

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jirwin/quirc/pkg/config"
)

type Config struct {
	Dev   bool
	Level string
}

func NewConfig(settings *config.Settings) (Config, error) {
	c := Config{}

	if os.Getenv("DEV_MODE") != "" {
		c.Dev = true
	}
	c.Level = settings.Core().LoggingLevel

	return c, nil
}

// ParseLevel maps the logging_level setting onto a zap level. Unknown names fall back to info.
func ParseLevel(name string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "critical", "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func New(c Config) (*zap.Logger, error) {
	var cfg zap.Config
	if c.Dev {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	if c.Level != "" {
		cfg.Level = zap.NewAtomicLevelAt(ParseLevel(c.Level))
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return logger, nil
}
