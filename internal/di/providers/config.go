// Package providers contains dependency injection providers for iemanjad.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/iemanja/iemanjad/internal/config"
	"github.com/iemanja/iemanjad/internal/logger"
)

// ProvideConfig returns a provider that loads the configuration from args
// (without the program name).
func ProvideConfig(args []string) do.Provider[*config.Config] {
	return func(do.Injector) (*config.Config, error) {
		return config.Load(args)
	}
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	logCfg := logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	}
	if cfg.Logger.File != "" {
		logCfg.File = &logger.FileConfig{Path: cfg.Logger.File}
	}

	log := logger.New(logCfg)

	log.Info("Starting iemanjad",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"api_bind", cfg.Server.APIBind.String(),
	)

	return log, nil
}
