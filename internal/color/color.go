// Package color provides basic color definitions for a chess game
package color

import (
	"math/rand/v2"
	"strings"
)

// Color represent a chess color
type Color string

// Possible color variations in a chess game
const (
	White Color = "white"
	Black Color = "black"
)

// Opp returns the opposite color for the given color.
func (c Color) Opp() Color {
	if c == White {
		return Black
	}

	return White
}

// Valid reports whether c is one of the two side colors.
func (c Color) Valid() bool {
	return c == White || c == Black
}

// FEN returns the side-to-move field used in FEN strings.
func (c Color) FEN() string {
	if c == Black {
		return "b"
	}
	return "w"
}

// Parse accepts "white"/"black" as well as the FEN letters "w"/"b".
// Anything else yields the empty color.
func Parse(s string) Color {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White
	case "black", "b":
		return Black
	}
	return ""
}

// Random picks one of the two colors with equal probability.
func Random() Color {
	if rand.IntN(2) == 0 {
		return White
	}
	return Black
}
