package repository

import (
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"

	"github.com/tecu23/chess-rooms/internal/color"
	"github.com/tecu23/chess-rooms/pkg/chess"
	"github.com/tecu23/chess-rooms/pkg/game"
)

// pgnResult maps a result to the PGN result token.
func pgnResult(res game.Result) string {
	switch {
	case res.ResultType == game.ResultDraw || res.ResultType == game.ResultStalemate:
		return "1/2-1/2"
	case res.WinColor == color.White:
		return "1-0"
	case res.WinColor == color.Black:
		return "0-1"
	default:
		return "*"
	}
}

// sanMoves replays the recorded moves from the initial position and returns
// them in SAN. Replay stops at the first move the rules library rejects;
// the remaining moves are kept in coordinate form.
func sanMoves(rec *game.MatchRecord) []string {
	out := make([]string, 0, len(rec.Moves))

	opt, err := nchess.FEN(rec.InitialFEN)
	if err != nil {
		return coordinateMoves(rec.Moves)
	}
	g := nchess.NewGame(opt)

	for i, m := range rec.Moves {
		pos := g.Position()
		mv, err := nchess.UCINotation{}.Decode(pos, m.From+m.To+promotion(m))
		if err != nil {
			return append(out, coordinateMoves(rec.Moves[i:])...)
		}
		san := nchess.AlgebraicNotation{}.Encode(pos, mv)
		if err := g.Move(mv, nil); err != nil {
			return append(out, coordinateMoves(rec.Moves[i:])...)
		}
		out = append(out, san)
	}
	return out
}

// promotion guesses the promotion piece of a pawn reaching the last rank
// from the figure recorded by the client.
func promotion(m game.Move) string {
	if len(m.To) != 2 || (m.To[1] != '8' && m.To[1] != '1') {
		return ""
	}
	fig := strings.ToLower(m.Figure)
	switch fig {
	case "q", "r", "b", "n":
		return fig
	}
	return ""
}

func coordinateMoves(moves []game.Move) []string {
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = m.From + m.To
	}
	return out
}

// BuildPGN renders a finished match as PGN.
func BuildPGN(rec *game.MatchRecord) string {
	if rec == nil {
		return ""
	}

	var b strings.Builder
	date := rec.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	result := pgnResult(rec.Result)

	fmt.Fprintf(&b, "[Event \"Casual game\"]\n")
	fmt.Fprintf(&b, "[Site \"%s\"]\n", sanitizePGN(rec.RoomID))
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[White \"%s\"]\n", sanitizePGN(playerName(rec.White)))
	fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitizePGN(playerName(rec.Black)))
	fmt.Fprintf(&b, "[TimeControl \"%d+%d\"]\n", rec.TimeControl.WhiteTime, rec.TimeControl.WhiteIncrement)
	if rec.Result.Reason != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(rec.Result.Reason))
	}
	if chess.PositionKey(rec.InitialFEN) != chess.PositionKey(chess.StartingFEN) {
		fmt.Fprintf(&b, "[SetUp \"1\"]\n[FEN \"%s\"]\n", sanitizePGN(rec.InitialFEN))
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", result)

	moves := sanMoves(rec)
	blackFirst := len(rec.Moves) > 0 && rec.Moves[0].Color == color.Black
	turn := 1
	for i := 0; i < len(moves); i++ {
		switch {
		case i == 0 && blackFirst:
			fmt.Fprintf(&b, "%d... %s ", turn, moves[i])
			turn++
		case (i%2 == 0) != blackFirst:
			fmt.Fprintf(&b, "%d. %s ", turn, moves[i])
		default:
			fmt.Fprintf(&b, "%s ", moves[i])
			turn++
		}
	}
	b.WriteString(result)
	return b.String()
}

func playerName(p *game.PlayerRecord) string {
	if p == nil {
		return "?"
	}
	return p.UserName
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
