// Package pathfind computes growth routes across stacked layer grids and
// assigns point sets to each other at minimum total distance.
//
// Grid coordinates are zero based: Z is the layer, Y the row and X the
// column. Edges exist only from a point on layer L to every point on layer
// L+1, so every path descends one layer per hop.
package pathfind

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/nvandessel/neurogrow/internal/models"
)

// Pathfinder runs A* over a layers x rows x cols grid.
type Pathfinder struct {
	layers int
	rows   int
	cols   int
}

// New creates a pathfinder for the given grid dimensions.
func New(layers, rows, cols int) (*Pathfinder, error) {
	if layers <= 0 || rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("grid dimensions must be positive, got %dx%dx%d", layers, rows, cols)
	}
	return &Pathfinder{layers: layers, rows: rows, cols: cols}, nil
}

// Layers returns the number of layers in the grid.
func (p *Pathfinder) Layers() int { return p.layers }

// Rows returns the number of rows per layer.
func (p *Pathfinder) Rows() int { return p.rows }

// Cols returns the number of columns per layer.
func (p *Pathfinder) Cols() int { return p.cols }

// InGrid reports whether pos is a grid point.
func (p *Pathfinder) InGrid(pos models.Position) bool {
	return pos.Z >= 0 && pos.Z < p.layers &&
		pos.Y >= 0 && pos.Y < p.rows &&
		pos.X >= 0 && pos.X < p.cols
}

// FindPath returns the cheapest path from start to goal and its cost. The
// path begins with start and ends with goal. It reports false when either
// point is off the grid or start is not on a shallower layer than goal.
// A path from a point to itself is just that point at zero cost.
func (p *Pathfinder) FindPath(start, goal models.Position) ([]models.Position, float64, bool) {
	if !p.InGrid(start) || !p.InGrid(goal) {
		return nil, 0, false
	}
	if start == goal {
		return []models.Position{start}, 0, true
	}
	if start.Z >= goal.Z {
		return nil, 0, false
	}

	closed := make(map[models.Position]bool)
	cameFrom := make(map[models.Position]models.Position)
	gScore := map[models.Position]float64{start: 0}
	entries := make(map[models.Position]*openEntry)

	open := &openSet{}
	push := func(pos models.Position, f float64) {
		e := &openEntry{pos: pos, f: f, seq: open.next}
		open.next++
		entries[pos] = e
		heap.Push(open, e)
	}
	push(start, heuristic(start, goal))

	for open.Len() > 0 {
		current := heap.Pop(open).(*openEntry).pos
		delete(entries, current)

		if current == goal {
			return reconstruct(cameFrom, current), gScore[goal], true
		}
		closed[current] = true

		// The last layer has no neighbours; goal is never beyond it.
		if current.Z >= goal.Z {
			continue
		}
		next := current.Z + 1
		for row := 0; row < p.rows; row++ {
			for col := 0; col < p.cols; col++ {
				neighbor := models.Position{X: col, Y: row, Z: next}
				if closed[neighbor] {
					continue
				}
				tentative := gScore[current] + stepCost(current, neighbor)
				if g, seen := gScore[neighbor]; seen && tentative >= g {
					continue
				}
				cameFrom[neighbor] = current
				gScore[neighbor] = tentative
				if e, queued := entries[neighbor]; queued {
					heap.Remove(open, e.index)
				}
				push(neighbor, tentative+heuristic(neighbor, goal))
			}
		}
	}
	return nil, 0, false
}

// stepCost is the cost of one hop between adjacent layers.
func stepCost(a, b models.Position) float64 {
	if b.Z-a.Z != 1 {
		return math.Inf(1)
	}
	dr := float64(a.Y - b.Y)
	dc := float64(a.X - b.X)
	return math.Sqrt(1 + dr*dr + dc*dc)
}

// heuristic is the straight-line distance, which never exceeds the true
// remaining cost.
func heuristic(a, b models.Position) float64 {
	return a.Distance(b)
}

func reconstruct(cameFrom map[models.Position]models.Position, current models.Position) []models.Position {
	path := []models.Position{current}
	for {
		prev, ok := cameFrom[current]
		if !ok {
			break
		}
		path = append(path, prev)
		current = prev
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

type openEntry struct {
	pos   models.Position
	f     float64
	seq   uint64
	index int
}

// openSet is a min-heap on f, ties broken by insertion order.
type openSet struct {
	items []*openEntry
	next  uint64
}

func (s *openSet) Len() int { return len(s.items) }

func (s *openSet) Less(i, j int) bool {
	a, b := s.items[i], s.items[j]
	if a.f != b.f {
		return a.f < b.f
	}
	return a.seq < b.seq
}

func (s *openSet) Swap(i, j int) {
	s.items[i], s.items[j] = s.items[j], s.items[i]
	s.items[i].index = i
	s.items[j].index = j
}

func (s *openSet) Push(x any) {
	e := x.(*openEntry)
	e.index = len(s.items)
	s.items = append(s.items, e)
}

func (s *openSet) Pop() any {
	old := s.items
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	s.items = old[:n-1]
	e.index = -1
	return e
}
