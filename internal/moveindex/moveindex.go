// Package moveindex implements the fixed bijection between UCI move strings
// and LC0 policy-vector indices used by Maia-family networks.
//
// The enumeration has no I/O and no state after construction: given a square,
// it lists every destination the policy head was trained to score, in a
// fixed, deterministic order. That order is part of the wire contract with
// the model artifact and must never change.
//
// LC0-family networks train a single table in the side-to-move's own
// orientation: White's moves are indexed in absolute board coordinates, and
// Black's moves reuse the exact same table after mirroring the board 180
// degrees, the same flip internal/encoder applies to its input planes when
// Black is to move. So the table only enumerates promotions landing on the
// 7th-to-8th-rank step once (case 6 below); a caller resolving a Black move
// must mirror its squares into that frame first (see ForMoveOriented).
package moveindex

import "fmt"

// Size is the maximum size of the LC0 policy vector this package enumerates.
const Size = 1858

// direction is a (file, rank) step.
type direction struct{ df, dr int }

// queenDirections lists the 8 compass directions in the order the policy
// vector was trained on: N, NE, E, SE, S, SW, W, NW.
var queenDirections = []direction{
	{0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1}, {-1, -1}, {-1, 0}, {-1, 1},
}

var knightOffsets = []direction{
	{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2},
}

// underpromotionPieces lists the under-promotion suffixes in wire order.
// Queen promotions are intentionally absent: they share the straight
// queen-like move index (see Index.ForMove).
var underpromotionPieces = []string{"n", "b", "r"}

// Index is the immutable uci<->policy-index bijection. Build it once with
// New and share it; it holds no mutable state after construction.
type Index struct {
	uciToIdx map[string]int
	idxToUCI []string
}

// New constructs the move index by the deterministic procedure in spec §4.1:
// for every origin square, emit queen-like rays, then knight jumps, then (on
// the 7th rank only) under-promotion variants.
func New() *Index {
	idx := &Index{
		uciToIdx: make(map[string]int, Size),
		idxToUCI: make([]string, 0, Size),
	}

	for rank := 0; rank < 8; rank++ {
		for file := 0; file < 8; file++ {
			idx.emitFromSquare(file, rank)
		}
	}
	return idx
}

func (idx *Index) emitFromSquare(file, rank int) {
	from := squareName(file, rank)

	for _, d := range queenDirections {
		for dist := 1; dist <= 7; dist++ {
			nf, nr := file+d.df*dist, rank+d.dr*dist
			if !onBoard(nf, nr) {
				break
			}
			idx.add(from + squareName(nf, nr))
		}
	}

	for _, k := range knightOffsets {
		nf, nr := file+k.df, rank+k.dr
		if onBoard(nf, nr) {
			idx.add(from + squareName(nf, nr))
		}
	}

	if rank == 6 { // 7th rank: promotions land on rank 8. Black's own
		// 2nd-to-1st-rank promotions are never enumerated separately; they
		// reuse these same entries once ForMoveOriented mirrors them in.
		idx.emitUnderpromotions(file, 7, from)
	}
}

func (idx *Index) emitUnderpromotions(file, targetRank int, from string) {
	for _, df := range [3]int{-1, 0, 1} {
		nf := file + df
		if !onBoard(nf, targetRank) {
			continue
		}
		to := squareName(nf, targetRank)
		for _, piece := range underpromotionPieces {
			idx.add(from + to + piece)
		}
	}
}

func (idx *Index) add(uci string) {
	if _, exists := idx.uciToIdx[uci]; exists {
		return
	}
	idx.uciToIdx[uci] = len(idx.idxToUCI)
	idx.idxToUCI = append(idx.idxToUCI, uci)
}

// Len returns the number of distinct UCI entries in the index.
func (idx *Index) Len() int {
	return len(idx.idxToUCI)
}

// GetIndex returns the policy index for an exact uci string (queen
// promotions must be looked up via ForMove, which drops the "q" suffix).
func (idx *Index) GetIndex(uci string) (int, bool) {
	i, ok := idx.uciToIdx[uci]
	return i, ok
}

// GetUci returns the uci string stored at a policy index.
func (idx *Index) GetUci(index int) (string, bool) {
	if index < 0 || index >= len(idx.idxToUCI) {
		return "", false
	}
	return idx.idxToUCI[index], true
}

// ForMove resolves the policy index for a played move, expressed as
// from/to squares and an optional promotion piece letter ("", "n", "b",
// "r", "q"). Queen promotions reuse the straight queen-like move index.
func (idx *Index) ForMove(from, to, promotion string) (int, bool) {
	if promotion == "q" {
		promotion = ""
	}
	return idx.GetIndex(from + to + promotion)
}

// MirrorSquare flips sq 180 degrees across the board center, turning an
// absolute square into the canonical orientation the table above was built
// in. This is the same flip internal/encoder applies to its planes when
// Black is to move (spec §4.2); ForMoveOriented uses it to resolve Black's
// moves against the single shared table.
func MirrorSquare(sq string) string {
	if len(sq) != 2 {
		return sq
	}
	file := int(sq[0] - 'a')
	rank := int(sq[1] - '1')
	if !onBoard(file, rank) {
		return sq
	}
	return squareName(7-file, 7-rank)
}

// ForMoveOriented resolves the policy index for a played move exactly like
// ForMove, except it first mirrors from/to into the table's canonical
// orientation when orientBlack is true. Callers holding moves in absolute
// board coordinates (as internal/position.LegalMoves returns them) must use
// this instead of ForMove whenever the move was made by Black, to read the
// same index the encoder wrote planes for.
func (idx *Index) ForMoveOriented(from, to, promotion string, orientBlack bool) (int, bool) {
	if orientBlack {
		from = MirrorSquare(from)
		to = MirrorSquare(to)
	}
	return idx.ForMove(from, to, promotion)
}

func onBoard(file, rank int) bool {
	return file >= 0 && file < 8 && rank >= 0 && rank < 8
}

func squareName(file, rank int) string {
	return fmt.Sprintf("%c%d", 'a'+file, rank+1)
}
