package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/iemanja/iemanjad/internal/config"
	"github.com/iemanja/iemanjad/internal/logger"
	"github.com/iemanja/iemanjad/internal/storage"
	"github.com/iemanja/iemanjad/internal/store"
)

// BackendHandle wraps the storage backend with shutdown capability.
type BackendHandle struct {
	store.Backend
}

// Shutdown implements do.Shutdownable.
func (h *BackendHandle) Shutdown() error {
	return h.Close()
}

// ProvideBackend opens the backend named by the configured database address,
// applying migrations first where the engine needs them.
func ProvideBackend(i do.Injector) (*BackendHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	backend, err := storage.Open(ctx, cfg.Database.Address, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	return &BackendHandle{Backend: backend}, nil
}

// ProvideTagRepository provides the tag repository of the open backend.
func ProvideTagRepository(i do.Injector) (store.TagRepository, error) {
	return do.MustInvoke[*BackendHandle](i).Tags(), nil
}

// ProvidePostRepository provides the post repository, which checks tags
// through the tag repository before writing.
func ProvidePostRepository(i do.Injector) (store.PostRepository, error) {
	backend := do.MustInvoke[*BackendHandle](i)
	tags := do.MustInvoke[store.TagRepository](i)
	log := do.MustInvoke[*logger.Logger](i)

	return store.NewPosts(backend.PostRows(), tags, backend.Relations(), log.Logger), nil
}
