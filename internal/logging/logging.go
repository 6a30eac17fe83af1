package logging

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/suPer8Hu/yt-assistant/internal/config"
)

// Version is set at build time with -ldflags "-X .../internal/logging.Version=...".
var Version = "dev"

// New builds a production (json) or development (console) logger tagged
// with the service name and build version.
func New(cfg config.LogConfig, service string) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zapConfig.Level = level

	zapConfig.InitialFields = map[string]interface{}{
		"service": service,
		"version": Version,
	}
	return zapConfig.Build()
}
