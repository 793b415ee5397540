package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/nvandessel/neurogrow/internal/logging"
	"github.com/nvandessel/neurogrow/internal/simulation"
	"github.com/nvandessel/neurogrow/internal/store"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Play a scenario and record the run",
		Long: `Play a scenario file through a freshly built network.

The run is recorded to the configured store (store.backend). Use the
sqlite backend to keep snapshots for 'neurogrow snapshots'.

Examples:
  neurogrow run --scenario demo.yaml
  neurogrow run --scenario demo.yaml --ticks 500 --json
  neurogrow run --scenario demo.yaml --realtime`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			scenarioPath, _ := cmd.Flags().GetString("scenario")
			ticks, _ := cmd.Flags().GetInt64("ticks")
			realtime, _ := cmd.Flags().GetBool("realtime")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sc, err := simulation.LoadScenario(scenarioPath)
			if err != nil {
				return err
			}

			logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
			logDir := cfg.Logging.Dir
			if logDir == "" {
				if logDir, err = store.DataDir(); err != nil {
					return err
				}
			}
			decisions := logging.NewDecisionLogger(logDir, cfg.Logging.Level)
			defer decisions.Close()

			eng, err := simulation.NewEngine(cfg,
				simulation.WithLogger(logger),
				simulation.WithDecisionLogger(decisions),
				simulation.WithRealtime(realtime),
			)
			if err != nil {
				return err
			}
			defer eng.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			notifySignals(sigCh)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case <-sigCh:
					cancel()
				case <-ctx.Done():
				}
			}()

			res, runErr := eng.Run(ctx, sc, ticks)
			if res == nil {
				return runErr
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if err := writeJSON(out, res); err != nil {
					return err
				}
				return runErr
			}

			fmt.Fprintf(out, "Run %s (%s)\n", res.RunID, res.Scenario)
			fmt.Fprintf(out, "  ticks:       %d in %v\n", res.Ticks, res.Elapsed)
			fmt.Fprintf(out, "  fired:       %d\n", res.Fired)
			fmt.Fprintf(out, "  forgotten:   %d\n", res.Forgotten)
			fmt.Fprintf(out, "  connections: %d\n", res.Connections)
			fmt.Fprintf(out, "  signals:     %d dispatched, %d dropped, %d failed\n",
				res.Signals.Dispatched, res.Signals.Dropped, res.Signals.Failed)
			fmt.Fprintf(out, "  growth:      %d requested, %d reinforced, %d unroutable, %d completed, %d active\n",
				res.Growth.Requested, res.Growth.Reinforced, res.Growth.Unroutable,
				res.Growth.Completed, res.Growth.ActiveProcesses)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "%-6s %-9s %-9s %-8s %-12s %s\n", "LAYER", "ROLE", "HALFSIDE", "NEURONS", "CONNECTIONS", "MEMORIES")
			for _, l := range res.Layers {
				fmt.Fprintf(out, "%-6d %-9s %-9d %-8d %-12d %d\n",
					l.Index, l.Role, l.HalfSide, l.Neurons, l.Connections, l.Memories)
			}
			return runErr
		},
	}

	cmd.Flags().String("scenario", "", "Scenario file (YAML)")
	cmd.Flags().Int64("ticks", 0, "Ticks to run (default: the scenario's ticks)")
	cmd.Flags().Bool("realtime", false, "Advance growth on its own wall-clock tick")
	cmd.MarkFlagRequired("scenario")

	return cmd
}
