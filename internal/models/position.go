package models

import (
	"fmt"
	"math"
)

// Position is an immutable integer coordinate. In the growth subsystem Z is
// the layer index, Y the row and X the column.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

// Pos is shorthand for Position{X: x, Y: y, Z: z}.
func Pos(x, y, z int) Position {
	return Position{X: x, Y: y, Z: z}
}

// Distance returns the Euclidean distance between p and o.
func (p Position) Distance(o Position) float64 {
	dx := float64(p.X - o.X)
	dy := float64(p.Y - o.Y)
	dz := float64(p.Z - o.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// String renders the position as layer/row/column.
func (p Position) String() string {
	return fmt.Sprintf("P(L%d, R%d, C%d)", p.Z, p.Y, p.X)
}
