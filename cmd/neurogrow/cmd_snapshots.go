package main

import (
	"fmt"
	"time"

	"github.com/nvandessel/neurogrow/internal/config"
	"github.com/nvandessel/neurogrow/internal/store"
	"github.com/spf13/cobra"
)

// openRunStore opens the configured store for reading past runs. Only the
// sqlite backend outlives a process.
func openRunStore(cfg *config.Config) (store.Store, error) {
	if cfg.Store.Backend != store.BackendSQLite {
		return nil, fmt.Errorf("store backend %q does not keep runs; set store.backend to sqlite", cfg.Store.Backend)
	}
	return store.NewStore(cfg.Store.Backend, cfg.Store.Path)
}

func newRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openRunStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if runs == nil {
					runs = []store.Run{}
				}
				return writeJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			for _, r := range runs {
				status := "unfinished"
				if r.FinishedAt != nil {
					status = fmt.Sprintf("%d ticks", r.Ticks)
				}
				fmt.Fprintf(out, "%s  %s  %-20s %s\n", r.ID, r.StartedAt.Local().Format(time.DateTime), r.Scenario, status)
			}
			return nil
		},
	}
}

func newSnapshotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Show the layer snapshots of a run",
		Long: `Show the per-layer snapshots recorded during a run, ordered by tick.

Examples:
  neurogrow snapshots --run 6f1c...
  neurogrow snapshots --run 6f1c... --connections --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			runID, _ := cmd.Flags().GetString("run")
			withConns, _ := cmd.Flags().GetBool("connections")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openRunStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			run, err := s.GetRun(ctx, runID)
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("run not found: %s", runID)
			}
			snaps, err := s.Snapshots(ctx, runID)
			if err != nil {
				return err
			}
			var conns []store.Connection
			if withConns {
				if conns, err = s.Connections(ctx, runID); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if snaps == nil {
					snaps = []store.LayerSnapshot{}
				}
				result := map[string]any{
					"run":       run,
					"snapshots": snaps,
				}
				if withConns {
					if conns == nil {
						conns = []store.Connection{}
					}
					result["connections"] = conns
				}
				return writeJSON(out, result)
			}

			fmt.Fprintf(out, "Run %s (%s), %d ticks\n\n", run.ID, run.Scenario, run.Ticks)
			fmt.Fprintf(out, "%-6s %-6s %-9s %-9s %-8s %-12s %-9s %s\n",
				"TICK", "LAYER", "ROLE", "HALFSIDE", "NEURONS", "CONNECTIONS", "MEMORIES", "BACKLOG")
			for _, sn := range snaps {
				fmt.Fprintf(out, "%-6d %-6d %-9s %-9d %-8d %-12d %-9d %d\n",
					sn.Tick, sn.Layer, sn.Role, sn.HalfSide, sn.Neurons, sn.Connections, sn.Memories, sn.GrowthBacklog)
			}
			if withConns {
				fmt.Fprintf(out, "\nConnections (%d):\n", len(conns))
				for _, c := range conns {
					fmt.Fprintf(out, "  tick %-5d %s -> %s  %.4f\n", c.Tick, c.From, c.To, c.Distance)
				}
			}
			return nil
		},
	}

	cmd.Flags().String("run", "", "Run ID")
	cmd.Flags().Bool("connections", false, "Also list the connections grown during the run")
	cmd.MarkFlagRequired("run")

	return cmd
}
