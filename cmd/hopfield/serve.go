// cmd/hopfield/serve.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lumix-ai/hopfield/pkg/api"
)

const shutdownTimeout = 10 * time.Second

func cmdServe(ctx context.Context, a *app, args []string) error {
	if err := argCount(args, 0, 0); err != nil {
		return err
	}
	server, err := api.NewServer(a.config.API, api.Deps{
		Trainer:       a.trainer,
		Metrics:       a.metrics,
		Noise:         a.config.Noise,
		MaxIterations: a.config.Network.MaxIterations,
	})
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}
	printSystemInfo(ctx, a)

	errc := make(chan error, 1)
	go func() { errc <- server.ListenAndServe() }()

	log.Info().Msg("Hopfield memory is ready")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown API server gracefully")
		return err
	}
	if err := <-errc; err != nil {
		return err
	}
	log.Info().Msg("Shutdown complete")
	return nil
}

func printSystemInfo(ctx context.Context, a *app) {
	n := a.config.Network
	stored, err := a.store.Count(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count stored patterns")
	}
	log.Info().
		Int("size", n.Size).
		Str("grid", fmt.Sprintf("%dx%d", n.GridWidth, n.Size/n.GridWidth)).
		Int("max_iterations", n.MaxIterations).
		Msg("Network")
	log.Info().
		Str("path", a.config.Memory.Path).
		Int("patterns", stored).
		Bool("auto_retrain", a.config.Learning.AutoRetrain).
		Msg("Pattern store")
	if stored > 0 && float64(stored) > 0.138*float64(n.Size) {
		log.Warn().
			Int("patterns", stored).
			Float64("load", float64(stored)/float64(n.Size)).
			Msg("Stored load exceeds the ~0.138N capacity, expect spurious states")
	}
}
