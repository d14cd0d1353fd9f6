package chess

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/tecu23/chess-rooms/internal/color"
)

// StartingFEN is the standard initial position.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ErrInvalidFEN is returned for positions that cannot be parsed.
var ErrInvalidFEN = errors.New("invalid FEN")

// NormalizeFEN returns StartingFEN for blank input and the trimmed FEN
// otherwise.
func NormalizeFEN(fen string) string {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return StartingFEN
	}
	return fen
}

// ValidateFEN checks that fen describes a position the rules library can
// load.
func ValidateFEN(fen string) error {
	if len(strings.Fields(fen)) < 4 {
		return fmt.Errorf("%w: %q", ErrInvalidFEN, fen)
	}
	if _, err := nchess.FEN(fen); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	return nil
}

// PositionKey strips the move counters from fen, leaving piece placement,
// side to move, castling rights and the en-passant target. Two FENs with
// the same key describe the same position for repetition purposes.
func PositionKey(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.Join(fields, " ")
}

// SideToMove returns the color whose turn it is in fen.
func SideToMove(fen string) (color.Color, error) {
	fields := strings.Fields(fen)
	if len(fields) < 2 {
		return "", fmt.Errorf("%w: missing side to move", ErrInvalidFEN)
	}

	side := color.Parse(fields[1])
	if side == "" {
		return "", fmt.Errorf("%w: bad side to move %q", ErrInvalidFEN, fields[1])
	}
	return side, nil
}

// CountRepetitions returns how many entries of history share the position
// key of fen.
func CountRepetitions(fen string, history []string) int {
	key := PositionKey(fen)

	n := 0
	for _, h := range history {
		if PositionKey(h) == key {
			n++
		}
	}
	return n
}

// InsufficientMaterial reports whether the board holds only two bare kings,
// or a bare king against king and a single knight. King and bishop against
// king is deliberately not included. Unparsable positions report false.
func InsufficientMaterial(fen string) bool {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return false
	}
	board := nchess.NewGame(opt).Position().Board()

	var white, black []nchess.PieceType
	for _, piece := range board.SquareMap() {
		if piece == nchess.NoPiece || piece.Type() == nchess.King {
			continue
		}
		if piece.Color() == nchess.White {
			white = append(white, piece.Type())
		} else {
			black = append(black, piece.Type())
		}
	}

	switch {
	case len(white) == 0 && len(black) == 0:
		return true
	case len(white) == 0:
		return loneKnight(black)
	case len(black) == 0:
		return loneKnight(white)
	}
	return false
}

func loneKnight(pieces []nchess.PieceType) bool {
	return len(pieces) == 1 && pieces[0] == nchess.Knight
}
