package main

import (
	"fmt"

	"github.com/nvandessel/neurogrow/internal/visualization"
	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the connections grown during a run",
		Long: `Output the connection graph of a recorded run in DOT (Graphviz) or JSON format.

Examples:
  neurogrow graph --run 6f1c... | dot -Tsvg > run.svg
  neurogrow graph --run 6f1c... --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run")
			format, _ := cmd.Flags().GetString("format")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openRunStore(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
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
			g, err := visualization.BuildGraph(ctx, s, runID)
			if err != nil {
				return err
			}

			switch visualization.Format(format) {
			case visualization.FormatDOT:
				fmt.Fprint(cmd.OutOrStdout(), visualization.RenderDOT(g))
			case visualization.FormatJSON:
				if err := writeJSON(cmd.OutOrStdout(), g); err != nil {
					return fmt.Errorf("encode JSON: %w", err)
				}
			default:
				return fmt.Errorf("unsupported format %q (use 'dot' or 'json')", format)
			}
			return nil
		},
	}

	cmd.Flags().String("run", "", "Run ID")
	cmd.Flags().String("format", "dot", "Output format: dot or json")
	cmd.MarkFlagRequired("run")

	return cmd
}
