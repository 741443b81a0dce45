// Package position adapts github.com/notnil/chess into the move-legality
// oracle the core consumes (spec §6): given a FEN position descriptor, it
// enumerates legal moves with SAN rendering and detects terminal positions.
// The core never reimplements move generation; this is the one seam where an
// external collaborator is assumed to be correct.
package position

import (
	"fmt"

	"github.com/notnil/chess"
)

// Move is a legal move annotated with both machine (UCI) and human (SAN)
// notation, as required to build a Move Prediction (spec §3).
type Move struct {
	UCI        string
	SAN        string
	From       string
	To         string
	Promotion  string // "", "n", "b", "r", "q"
}

// LegalMoves enumerates every legal move from the FEN position. An empty,
// nil-error result means the position is terminal (checkmate or stalemate);
// callers must treat that as a terminal position, not an error (spec §4.3
// edge cases).
func LegalMoves(fen string) ([]Move, error) {
	game, err := newGame(fen)
	if err != nil {
		return nil, err
	}

	pos := game.Position()
	valid := pos.ValidMoves()

	algebraic := chess.AlgebraicNotation{}
	uci := chess.UCINotation{}

	moves := make([]Move, 0, len(valid))
	for _, m := range valid {
		moves = append(moves, Move{
			UCI:       uci.Encode(pos, m),
			SAN:       algebraic.Encode(pos, m),
			From:      m.S1().String(),
			To:        m.S2().String(),
			Promotion: promoLetter(m.Promo()),
		})
	}
	return moves, nil
}

// IsTerminal reports whether the position has no legal moves.
func IsTerminal(fen string) (bool, error) {
	moves, err := LegalMoves(fen)
	if err != nil {
		return false, err
	}
	return len(moves) == 0, nil
}

// Validate returns an error if fen does not parse as a legal chess position.
func Validate(fen string) error {
	_, err := newGame(fen)
	return err
}

func newGame(fen string) (*chess.Game, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("invalid fen %q: %w", fen, err)
	}
	return chess.NewGame(opt), nil
}

func promoLetter(pt chess.PieceType) string {
	switch pt {
	case chess.Queen:
		return "q"
	case chess.Rook:
		return "r"
	case chess.Bishop:
		return "b"
	case chess.Knight:
		return "n"
	default:
		return ""
	}
}
