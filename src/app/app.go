// Package app assembles the grading pipeline from configuration.
package app

import (
	"github.com/Protocol-Lattice/go-grader/src/chunking"
	"github.com/Protocol-Lattice/go-grader/src/config"
	"github.com/Protocol-Lattice/go-grader/src/grader"
	"github.com/Protocol-Lattice/go-grader/src/logging"
	"github.com/Protocol-Lattice/go-grader/src/models"
)

type App struct {
	Config      *config.Config
	Registry    *models.Registry
	Estimator   *chunking.Estimator
	Coordinator *grader.Coordinator
	Logger      logging.Logger
}

// New builds the provider registry, the estimator and the coordinator.
// Provider clients are created lazily on first use.
func New(cfg *config.Config, logger logging.Logger, opts ...models.RegistryOption) *App {
	if cfg.Cache.Size > 0 {
		opts = append([]models.RegistryOption{models.WithCache(cfg.Cache.Size, cfg.Cache.TTL)}, opts...)
	}
	registry := models.NewRegistry(cfg.ProviderSettings(), opts...)

	estimator := chunking.NewEstimator(cfg.Limits())
	estimator.Headroom = cfg.Pipeline.Headroom

	coordinator := grader.NewCoordinator(registry,
		grader.WithEstimator(estimator),
		grader.WithPriority(cfg.Pipeline.Priority...),
		grader.WithConcurrency(cfg.Pipeline.Concurrency),
		grader.WithCallTimeout(cfg.Pipeline.CallTimeout),
		grader.WithMaxDepth(cfg.Pipeline.MaxDepth),
		grader.WithCarryChars(cfg.Pipeline.CarryChars),
		grader.WithSynthesis(cfg.Pipeline.Synthesis),
		grader.WithLogger(logger),
	)

	return &App{
		Config:      cfg,
		Registry:    registry,
		Estimator:   estimator,
		Coordinator: coordinator,
		Logger:      logger,
	}
}
