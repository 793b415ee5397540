package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nvandessel/neurogrow/internal/models"
)

// parseGridPoint parses "layer,row,col" into a grid position.
func parseGridPoint(s string) (models.Position, error) {
	v, err := parseInts(s, 3)
	if err != nil {
		return models.Position{}, fmt.Errorf("point %q: %w", s, err)
	}
	return models.Position{Z: v[0], Y: v[1], X: v[2]}, nil
}

// parsePlanePoints parses "row,col;row,col;..." into positions on plane 0.
func parsePlanePoints(s string) ([]models.Position, error) {
	var out []models.Position
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := parseInts(part, 2)
		if err != nil {
			return nil, fmt.Errorf("point %q: %w", part, err)
		}
		out = append(out, models.Position{Y: v[0], X: v[1]})
	}
	return out, nil
}

func parseInts(s string, n int) ([]int, error) {
	fields := strings.Split(s, ",")
	if len(fields) != n {
		return nil, fmt.Errorf("want %d comma-separated integers, got %d", n, len(fields))
	}
	out := make([]int, n)
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", f)
		}
		out[i] = v
	}
	return out, nil
}
