package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vyrodovalexey/transitgw/internal/observability"
)

// run serves until ctx is canceled or a listener fails, then drains
// and releases every component.
func run(ctx context.Context, app *application, logger observability.Logger) error {
	if err := app.gateway.Start(ctx); err != nil {
		app.close(logger)
		return fmt.Errorf("failed to start gateway: %w", err)
	}
	if app.metricsListener != nil {
		if err := app.metricsListener.Listen(ctx); err != nil {
			_ = app.gateway.Stop(context.Background())
			app.close(logger)
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(app.gateway.Serve)
	if app.metricsListener != nil {
		g.Go(app.metricsListener.Serve)
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down",
			observability.Duration("drain_timeout", app.config.ShutdownTimeoutOrDefault()),
		)
		return shutdown(app, logger)
	})

	err := g.Wait()
	app.close(logger)
	logger.Info("gateway stopped")
	return err
}

// shutdown stops the listeners within the drain timeout.
func shutdown(app *application, logger observability.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeoutOrDefault())
	defer cancel()

	var errs []error

	if app.metricsListener != nil {
		if err := app.metricsListener.Shutdown(ctx); err != nil {
			logger.Error("failed to stop metrics server gracefully", observability.Error(err))
			errs = append(errs, err)
		}
	}

	if err := app.gateway.Stop(ctx); err != nil {
		logger.Error("failed to stop gateway gracefully", observability.Error(err))
		errs = append(errs, err)
	}

	if err := app.tracer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	return errors.Join(errs...)
}

// close releases stores and other resources held by the application.
func (a *application) close(logger observability.Logger) {
	for _, c := range a.closers {
		if err := c(); err != nil {
			logger.Warn("failed to release resource", observability.Error(err))
		}
	}
	a.closers = nil
}

// release undoes a partial initApplication.
func (a *application) release(logger observability.Logger) {
	a.close(logger)
	if a.tracer == nil {
		return
	}
	if err := a.tracer.Shutdown(context.Background()); err != nil {
		logger.Warn("failed to shutdown tracer", observability.Error(err))
	}
}
