package main

import (
	"fmt"

	"github.com/nvandessel/neurogrow/internal/pathfind"
	"github.com/spf13/cobra"
)

func newMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Assign inputs to outputs by minimum total distance",
		Long: `Compute a minimum-cost edge cover between two point sets on one plane.

Every input and every output ends up in at least one edge. Points are
row,col pairs separated by semicolons.

Examples:
  neurogrow match --inputs "0,0;10,10;20,20" --outputs "1,1;11,11;21,21;50,50"
  neurogrow match --inputs "0,0" --outputs "3,4" --width 10 --height 10 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			inStr, _ := cmd.Flags().GetString("inputs")
			outStr, _ := cmd.Flags().GetString("outputs")
			width, _ := cmd.Flags().GetInt("width")
			height, _ := cmd.Flags().GetInt("height")

			inputs, err := parsePlanePoints(inStr)
			if err != nil {
				return err
			}
			outputs, err := parsePlanePoints(outStr)
			if err != nil {
				return err
			}

			edges, total, err := pathfind.MatchPointsByMinCost(inputs, outputs, width, height)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if edges == nil {
					edges = []pathfind.Edge{}
				}
				return writeJSON(out, map[string]any{
					"edges": edges,
					"total": total,
				})
			}
			fmt.Fprintf(out, "%d edges, total cost %.4f\n", len(edges), total)
			for _, e := range edges {
				in, o := inputs[e.Input], outputs[e.Output]
				fmt.Fprintf(out, "  in[%d] (%d,%d) -> out[%d] (%d,%d)  %.4f\n",
					e.Input, in.Y, in.X, e.Output, o.Y, o.X, e.Cost)
			}
			return nil
		},
	}

	cmd.Flags().String("inputs", "", "Input points as row,col;row,col;...")
	cmd.Flags().String("outputs", "", "Output points as row,col;row,col;...")
	cmd.Flags().Int("width", 100, "Number of rows in the plane")
	cmd.Flags().Int("height", 100, "Number of columns in the plane")
	cmd.MarkFlagRequired("inputs")
	cmd.MarkFlagRequired("outputs")

	return cmd
}
