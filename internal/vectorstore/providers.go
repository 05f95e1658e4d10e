package vectorstore

import (
	"context"
	"time"

	"labmatch/internal/config"
	"labmatch/internal/log"
)

// New probes the configured backend once at startup and commits to one
// variant for the life of the process. The boolean reports whether the
// native backend is serving.
func New(ctx context.Context, cfg config.Config, logger *log.Logger) (Store, bool) {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pg, err := NewPGVector(probeCtx, cfg.PostgresDSN, cfg.EmbeddingDim)
	if err != nil {
		logger.Warn("vector backend probe failed, using in-process fallback", "error", err.Error())
		return Unavailable{}, false
	}
	logger.Info("vector backend ready", "provider", "pgvector", "dim", cfg.EmbeddingDim)
	return pg, true
}
