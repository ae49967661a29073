package providers

import "time"

const (
	// startupTimeout bounds opening the storage backend, migrations included.
	startupTimeout = 30 * time.Second

	// limiterCleanupInterval is how often idle rate limit keys are dropped.
	limiterCleanupInterval = time.Minute
)
