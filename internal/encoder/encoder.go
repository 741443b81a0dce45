// Package encoder converts a chess position, plus a short history window,
// into the 112-plane LC0-style input tensor a Maia policy network expects
// (spec §4.2). It is pure and stateless: the same (position, history) pair
// always yields the same tensor.
//
// The FEN parsing here is deliberately independent of the move-legality
// oracle in internal/position: the encoder only needs piece placement,
// castling rights, en-passant, and the two move counters, and must control
// exactly how those become planes. It follows the manual field-by-field FEN
// scan idiom the teacher's own fen.Decode uses, not a general chess library.
package encoder

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// BoardSize is the width/height of the board in squares.
	BoardSize = 8
	// PlaneSquares is the number of floats in a single plane.
	PlaneSquares = BoardSize * BoardSize
	// Planes is the total number of planes LC0-family networks expect.
	Planes = 112
	// TensorLen is the flattened tensor length (112 * 8 * 8).
	TensorLen = Planes * PlaneSquares
	// TimeSteps is the number of history steps encoded, including the
	// current position.
	TimeSteps = 8
	// PlanesPerTimeStep is 6 of our pieces + 6 of theirs + 1 repetition plane.
	PlanesPerTimeStep = 13
	// MaxHistory is the largest number of prior positions the encoder
	// will consume (spec §3 invariant: history holds at most 7 entries).
	MaxHistory = TimeSteps - 1
)

type pieceKind uint8

const (
	noPiece pieceKind = iota
	pawnPiece
	knightPiece
	bishopPiece
	rookPiece
	queenPiece
	kingPiece
)

type square struct {
	color byte // 'w', 'b', or 0 if empty
	kind  pieceKind
}

type parsedPosition struct {
	board     [BoardSize][BoardSize]square // board[rank][file], rank 0 = rank "1"
	sideWTM   bool                         // true if white to move
	wKing     bool
	wQueen    bool
	bKing     bool
	bQueen    bool
	enPassant string
	halfmove  int
	fullmove  int
}

// parseFEN parses the subset of FEN fields the encoder needs, following the
// field-by-field scan of the teacher pack's fen.Decode.
func parseFEN(fen string) (*parsedPosition, error) {
	parts := strings.Split(strings.TrimSpace(fen), " ")
	if len(parts) != 6 {
		return nil, fmt.Errorf("invalid number of fields in FEN: %q", fen)
	}

	p := &parsedPosition{}

	rank := BoardSize - 1
	file := 0
	for _, r := range parts[0] {
		switch {
		case r == '/':
			rank--
			file = 0
		case r >= '1' && r <= '8':
			file += int(r - '0')
		default:
			color, kind, ok := pieceFromRune(r)
			if !ok {
				return nil, fmt.Errorf("invalid piece rune %q in FEN: %q", r, fen)
			}
			if rank < 0 || rank >= BoardSize || file < 0 || file >= BoardSize {
				return nil, fmt.Errorf("piece placement out of range in FEN: %q", fen)
			}
			p.board[rank][file] = square{color: color, kind: kind}
			file++
		}
	}

	switch parts[1] {
	case "w":
		p.sideWTM = true
	case "b":
		p.sideWTM = false
	default:
		return nil, fmt.Errorf("invalid active color in FEN: %q", fen)
	}

	if parts[2] != "-" {
		for _, r := range parts[2] {
			switch r {
			case 'K':
				p.wKing = true
			case 'Q':
				p.wQueen = true
			case 'k':
				p.bKing = true
			case 'q':
				p.bQueen = true
			default:
				return nil, fmt.Errorf("invalid castling field in FEN: %q", fen)
			}
		}
	}

	if parts[3] != "-" {
		p.enPassant = parts[3]
	}

	halfmove, err := strconv.Atoi(parts[4])
	if err != nil || halfmove < 0 {
		return nil, fmt.Errorf("invalid halfmove clock in FEN: %q", fen)
	}
	p.halfmove = halfmove

	fullmove, err := strconv.Atoi(parts[5])
	if err != nil || fullmove < 1 {
		return nil, fmt.Errorf("invalid fullmove number in FEN: %q", fen)
	}
	p.fullmove = fullmove

	return p, nil
}

func pieceFromRune(r rune) (byte, pieceKind, bool) {
	var color byte = 'w'
	lower := r
	if r >= 'a' && r <= 'z' {
		color = 'b'
	} else {
		lower = r + ('a' - 'A')
	}
	switch lower {
	case 'p':
		return color, pawnPiece, true
	case 'n':
		return color, knightPiece, true
	case 'b':
		return color, bishopPiece, true
	case 'r':
		return color, rookPiece, true
	case 'q':
		return color, queenPiece, true
	case 'k':
		return color, kingPiece, true
	default:
		return 0, 0, false
	}
}

// Encode builds the flattened 112x8x8 tensor for position fen, given a
// most-recent-first history of up to 7 prior FEN descriptors (spec §3 Data
// Model: "Position History ... index 0 = most recent").
func Encode(fen string, history []string) ([]float32, error) {
	current, err := parseFEN(fen)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if len(history) > MaxHistory {
		history = history[:MaxHistory]
	}

	tensor := make([]float32, TensorLen)
	orientBlack := !current.sideWTM

	// Planes 0-103: 8 time steps x 13 planes.
	steps := make([]*parsedPosition, 0, TimeSteps)
	steps = append(steps, current)
	for _, h := range history {
		parsed, err := parseFEN(h)
		if err != nil {
			return nil, fmt.Errorf("encode history: %w", err)
		}
		steps = append(steps, parsed)
	}

	for step := 0; step < TimeSteps; step++ {
		base := step * PlanesPerTimeStep
		if step >= len(steps) {
			continue // missing history: planes stay zero.
		}
		writePieceStep(tensor, base, steps[step], current.sideWTM, orientBlack)
		if repeatsCurrent(steps[step], current) {
			fillPlane(tensor, base+12, 1.0)
		}
	}

	// Planes 104-107: castling rights, our king/queen-side then their
	// king/queen-side, relative to the side to move.
	ourK, ourQ, theirK, theirQ := current.wKing, current.wQueen, current.bKing, current.bQueen
	if !current.sideWTM {
		ourK, ourQ, theirK, theirQ = current.bKing, current.bQueen, current.wKing, current.wQueen
	}
	setBoolPlane(tensor, 104, ourK)
	setBoolPlane(tensor, 105, ourQ)
	setBoolPlane(tensor, 106, theirK)
	setBoolPlane(tensor, 107, theirQ)

	// Plane 108: the LC0 "network calls black" convention plane.
	if orientBlack {
		fillPlane(tensor, 108, 1.0)
	}

	// Plane 109: halfmove (50-move) counter, normalized.
	fillPlane(tensor, 109, float32(current.halfmove)/99.0)

	// Plane 110: ply count, normalized. LC0 releases disagree on the exact
	// semantics here (spec §9 open question); this uses total plies played.
	ply := (current.fullmove - 1) * 2
	if !current.sideWTM {
		ply++
	}
	fillPlane(tensor, 110, float32(ply)/200.0)

	// Plane 111: constant bias plane.
	fillPlane(tensor, 111, 1.0)

	return tensor, nil
}

func writePieceStep(tensor []float32, base int, pos *parsedPosition, mover bool, orientBlack bool) {
	for rank := 0; rank < BoardSize; rank++ {
		for file := 0; file < BoardSize; file++ {
			sq := pos.board[rank][file]
			if sq.kind == noPiece {
				continue
			}

			or, of := rank, file
			if orientBlack {
				or, of = BoardSize-1-rank, BoardSize-1-file
			}

			isOurs := (sq.color == 'w') == mover
			plane := pieceChannel(sq.kind)
			if !isOurs {
				plane += 6
			}

			tensor[(base+plane)*PlaneSquares+or*BoardSize+of] = 1.0
		}
	}
}

func pieceChannel(k pieceKind) int {
	switch k {
	case pawnPiece:
		return 0
	case knightPiece:
		return 1
	case bishopPiece:
		return 2
	case rookPiece:
		return 3
	case queenPiece:
		return 4
	case kingPiece:
		return 5
	default:
		return 0
	}
}

// repeatsCurrent is a simplified repetition signal: it marks a history step
// as a repetition of the current position when every square matches. Full
// 3-fold repetition tracking needs the whole game, which the encoder's
// stateless contract (spec §4.2) does not have access to.
func repeatsCurrent(a, b *parsedPosition) bool {
	return a.board == b.board
}

func setBoolPlane(tensor []float32, plane int, set bool) {
	if set {
		fillPlane(tensor, plane, 1.0)
	}
}

func fillPlane(tensor []float32, plane int, value float32) {
	start := plane * PlaneSquares
	for i := start; i < start+PlaneSquares; i++ {
		tensor[i] = value
	}
}
