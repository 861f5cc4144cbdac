package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/pkg/appctx"
)

func newScanCmd(load func() (*app, error)) *cobra.Command {
	var (
		withinDays   int
		includeFuzzy bool
		emit         bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one duplicate scan and print the groups as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load()
			if err != nil {
				return err
			}

			// unset flags fall back to the stored configuration
			var days *int
			if cmd.Flags().Changed("within-days") {
				days = &withinDays
			}
			var fuzzy *bool
			if cmd.Flags().Changed("include-fuzzy") {
				fuzzy = &includeFuzzy
			}

			return a.scan(cmd.Context(), days, fuzzy, emit, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&withinDays, "within-days", 0, "lookback window in days (1-365)")
	cmd.Flags().BoolVar(&includeFuzzy, "include-fuzzy", false, "run the weighted fuzzy pass")
	cmd.Flags().BoolVar(&emit, "emit", false, "publish a duplicates.detected event when Kafka is enabled")
	return cmd
}

func (a *app) scan(ctx context.Context, withinDays *int, includeFuzzy *bool, emit bool, out io.Writer) error {
	ctx = appctx.SetTrigger(ctx, appctx.TriggerCLI)
	ctx = appctx.SetRequestID(ctx, uuid.New().String())

	a.cfg.MonitorEnabled = false
	a.registerBackends()
	a.registerService()

	defer a.close(context.WithoutCancel(ctx))
	if err := a.startup.Start(ctx); err != nil {
		return err
	}

	resp, err := a.service.FindDuplicatesWithDefaults(ctx, withinDays, includeFuzzy)
	if err != nil {
		return err
	}

	if emit {
		if err := a.emitter.EmitDuplicatesDetected(ctx, resp); err != nil {
			return fmt.Errorf("failed to publish scan result: %w", err)
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
