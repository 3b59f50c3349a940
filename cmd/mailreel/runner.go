package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mailreel/internal/config"
	"mailreel/internal/daemon"
	"mailreel/internal/notifications"
	"mailreel/internal/pipeline"
	"mailreel/internal/store"
)

// withPipeline takes the batch lock, opens the store, and builds the
// pipeline for fn. SIGINT and SIGTERM cancel the context passed to fn.
func (c *commandContext) withPipeline(cmd *cobra.Command, fn func(context.Context, *config.Config, *pipeline.Pipeline) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	lock, err := daemon.AcquireLock(cfg.LockPath())
	if err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return fmt.Errorf("%w (lock %s); stop the server or wait for the running batch", err, cfg.LockPath())
		}
		return err
	}
	defer lock.Unlock()

	logger, err := c.logger()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}
	defer st.Close()

	built, err := pipeline.Build(cfg, st, notifications.NewService(cfg), logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return fn(ctx, cfg, built)
}
