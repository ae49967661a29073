// Package di provides dependency injection configuration for iemanjad.
package di

import (
	"github.com/samber/do/v2"

	"github.com/iemanja/iemanjad/internal/config"
	"github.com/iemanja/iemanjad/internal/di/providers"
	"github.com/iemanja/iemanjad/internal/logger"
	"github.com/iemanja/iemanjad/internal/store"
)

// NewContainer creates and configures the DI container with all providers.
// args are the command-line arguments without the program name.
func NewContainer(args []string) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig(args))
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideBackend)
	do.Provide(injector, providers.ProvideTagRepository)
	do.Provide(injector, providers.ProvidePostRepository)

	// Server
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and starts the HTTP server.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)

	if _, err := do.Invoke[*providers.BackendHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[store.TagRepository](injector)
	_ = do.MustInvoke[store.PostRepository](injector)

	_ = do.MustInvoke[*providers.RateLimiterHandle](injector)
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}

	return nil
}
