package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/packwork/internal/core/events/bus"
	"github.com/zeusync/packwork/internal/core/observability/log"
	"github.com/zeusync/packwork/internal/core/redirect"
	"github.com/zeusync/packwork/internal/server"
)

type runOptions struct {
	scenario string
	ticks    uint64
	inspect  string
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the scenario and advance it tick by tick",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSim(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.scenario, "scenario", "s", "", "scenario file (.yaml or .json)")
	cmd.Flags().Uint64VarP(&opts.ticks, "ticks", "n", 2000, "number of ticks to run")
	cmd.Flags().StringVar(&opts.inspect, "inspect", "", "serve the event stream on this address")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func runSim(cmd *cobra.Command, opts runOptions) error {
	rt, sc, err := setup(opts.scenario)
	if err != nil {
		return err
	}
	logger := log.Provide()

	b := rt.Bus
	var redirects, fallbacks int
	_, _ = b.Subscribe(redirect.EventApplied, func(bus.Event) error { redirects++; return nil })
	_, _ = b.Subscribe(redirect.EventFallback, func(bus.Event) error { fallbacks++; return nil })

	if err = rt.Start(sc); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	g, ctx := errgroup.WithContext(cmd.Context())

	var insp *server.Inspector
	if opts.inspect != "" {
		insp = server.New(b, server.WithLogger(logger.With(log.String("component", "inspector"))))
		if err = insp.Start(ctx, opts.inspect); err != nil {
			return err
		}
	}

	var ran uint64
	g.Go(func() error {
		n, runErr := rt.Sim.Run(ctx, opts.ticks)
		ran = n
		if errors.Is(runErr, context.Canceled) {
			logger.Info("interrupted", log.Uint64("tick", rt.Scheduler.Now()))
			return nil
		}
		return runErr
	})
	err = g.Wait()
	if insp != nil {
		if stopErr := insp.Stop(context.Background()); stopErr != nil && !errors.Is(stopErr, server.ErrNotRunning) {
			logger.Warn("inspector shutdown", log.Error(stopErr))
		}
	}
	if err != nil {
		return err
	}

	logger.Info("simulation finished",
		log.Uint64("ticks", ran),
		log.Int("redirects", redirects),
		log.Int("fallbacks", fallbacks),
		log.Int("pending_tasks", rt.Scheduler.Pending()),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "ticks=%d redirects=%d fallbacks=%d things=%d\n",
		ran, redirects, fallbacks, len(rt.World.Things()))
	return nil
}
