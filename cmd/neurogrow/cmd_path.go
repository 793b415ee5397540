package main

import (
	"fmt"

	"github.com/nvandessel/neurogrow/internal/models"
	"github.com/nvandessel/neurogrow/internal/pathfind"
	"github.com/spf13/cobra"
)

func newPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Find the cheapest growth path between two grid points",
		Long: `Find the cheapest path from one grid point to another, one hop per layer.

Points are given as layer,row,col in grid coordinates (0-based). The grid
defaults to the configured grid size.

Examples:
  neurogrow path --from 0,1,1 --to 4,1,1
  neurogrow path --from 0,0,0 --to 2,5,3 --layers 3 --rows 10 --cols 10 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			fromStr, _ := cmd.Flags().GetString("from")
			toStr, _ := cmd.Flags().GetString("to")

			from, err := parseGridPoint(fromStr)
			if err != nil {
				return err
			}
			to, err := parseGridPoint(toStr)
			if err != nil {
				return err
			}

			layers, rows, cols, err := gridSize(cmd)
			if err != nil {
				return err
			}
			finder, err := pathfind.New(layers, rows, cols)
			if err != nil {
				return err
			}

			path, cost, ok := finder.FindPath(from, to)
			if !ok {
				return fmt.Errorf("no path from %s to %s in a %dx%dx%d grid", from, to, layers, rows, cols)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, struct {
					Path []models.Position `json:"path"`
					Cost float64           `json:"cost"`
				}{path, cost})
			}
			fmt.Fprintf(out, "Path (%d points, cost %.4f):\n", len(path), cost)
			for _, p := range path {
				fmt.Fprintf(out, "  %s\n", p)
			}
			return nil
		},
	}

	cmd.Flags().String("from", "", "Start point as layer,row,col")
	cmd.Flags().String("to", "", "Goal point as layer,row,col")
	cmd.Flags().Int("layers", 0, "Grid layers (default: config grid.layers)")
	cmd.Flags().Int("rows", 0, "Grid rows (default: config grid.rows)")
	cmd.Flags().Int("cols", 0, "Grid columns (default: config grid.cols)")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")

	return cmd
}

// gridSize resolves the grid flags, falling back to the configuration.
func gridSize(cmd *cobra.Command) (layers, rows, cols int, err error) {
	layers, _ = cmd.Flags().GetInt("layers")
	rows, _ = cmd.Flags().GetInt("rows")
	cols, _ = cmd.Flags().GetInt("cols")
	if layers > 0 && rows > 0 && cols > 0 {
		return layers, rows, cols, nil
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return 0, 0, 0, err
	}
	if layers <= 0 {
		layers = cfg.Grid.Layers
	}
	if rows <= 0 {
		rows = cfg.Grid.Rows
	}
	if cols <= 0 {
		cols = cfg.Grid.Cols
	}
	return layers, rows, cols, nil
}
