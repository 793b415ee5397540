package pathfind

import (
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/neurogrow/internal/models"
)

// ErrOutOfGrid is returned when a matcher point lies outside the grid.
var ErrOutOfGrid = errors.New("point outside grid")

// paddingCost fills the cells of the square cost matrix that pair a real
// point with a padding point.
const paddingCost = 1e9

// Edge assigns input Input to output Output.
type Edge struct {
	Input  int     `json:"input"`
	Output int     `json:"output"`
	Cost   float64 `json:"cost"`
}

// MatchPointsByMinCost returns a minimum-cost edge cover between inputs and
// outputs: a minimum-cost matching, extended with nearest-neighbour edges so
// that every input and every output appears in at least one edge. Rows (Y)
// must lie in [0, width) and columns (X) in [0, height). Cost is the 3D
// Euclidean distance. Empty inputs or outputs yield an empty cover.
func MatchPointsByMinCost(inputs, outputs []models.Position, width, height int) ([]Edge, float64, error) {
	if err := checkBounds(inputs, width, height, "input"); err != nil {
		return nil, 0, err
	}
	if err := checkBounds(outputs, width, height, "output"); err != nil {
		return nil, 0, err
	}
	m, n := len(inputs), len(outputs)
	if m == 0 || n == 0 {
		return nil, 0, nil
	}

	size := max(m, n)
	cost := make([][]float64, size)
	for i := range cost {
		cost[i] = make([]float64, size)
		for j := range cost[i] {
			if i < m && j < n {
				cost[i][j] = inputs[i].Distance(outputs[j])
			} else {
				cost[i][j] = paddingCost
			}
		}
	}

	match := hungarian(cost)
	edges := make([]Edge, 0, max(m, n))
	coveredIn := make([]bool, m)
	coveredOut := make([]bool, n)
	total := 0.0

	for i := 0; i < m; i++ {
		j := match[i]
		if j < 0 || j >= n {
			continue
		}
		edges = append(edges, Edge{Input: i, Output: j, Cost: cost[i][j]})
		coveredIn[i] = true
		coveredOut[j] = true
		total += cost[i][j]
	}
	for i := 0; i < m; i++ {
		if coveredIn[i] {
			continue
		}
		best := nearest(n, func(j int) float64 { return cost[i][j] })
		edges = append(edges, Edge{Input: i, Output: best, Cost: cost[i][best]})
		coveredOut[best] = true
		total += cost[i][best]
	}
	for j := 0; j < n; j++ {
		if coveredOut[j] {
			continue
		}
		best := nearest(m, func(i int) float64 { return cost[i][j] })
		edges = append(edges, Edge{Input: best, Output: j, Cost: cost[best][j]})
		total += cost[best][j]
	}
	return edges, total, nil
}

func checkBounds(pts []models.Position, width, height int, label string) error {
	for i, p := range pts {
		if p.Y < 0 || p.Y >= width || p.X < 0 || p.X >= height {
			return fmt.Errorf("%s[%d] %s not in 0..%d x 0..%d: %w", label, i, p, width-1, height-1, ErrOutOfGrid)
		}
	}
	return nil
}

func nearest(count int, costOf func(int) float64) int {
	best, bestCost := 0, math.Inf(1)
	for k := 0; k < count; k++ {
		if c := costOf(k); c < bestCost {
			best, bestCost = k, c
		}
	}
	return best
}

// hungarian solves the square assignment problem in O(n^3) with row and
// column potentials. It returns the column assigned to each row.
func hungarian(cost [][]float64) []int {
	n := len(cost)
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1)
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}
		used := make([]bool, n+1)
		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
			if j0 == 0 {
				break
			}
		}
	}

	match := make([]int, n)
	for i := range match {
		match[i] = -1
	}
	for j := 1; j <= n; j++ {
		if p[j] != 0 {
			match[p[j]-1] = j - 1
		}
	}
	return match
}
