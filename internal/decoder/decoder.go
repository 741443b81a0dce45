// Package decoder implements the Policy Decoder (spec §4.3): it turns a raw
// policy vector from the network into move predictions restricted to the
// legal moves of the source position. It is stateless and has no knowledge
// of the network, the worker, or the cache above it.
package decoder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maia-engine/predictor/internal/moveindex"
	"github.com/maia-engine/predictor/internal/position"
)

// DefaultTopK is the number of predictions returned when the caller does not
// override it.
const DefaultTopK = 5

// Prediction is one decoded, legality-checked move with its renormalized
// probability.
type Prediction struct {
	UCI         string
	SAN         string
	From        string
	To          string
	Promotion   string
	Probability float64
}

// Decode enumerates the legal moves of fen, reads their policy weight out of
// policy using idx, renormalizes over the legal subset, and returns the
// top-K predictions sorted by descending probability (spec §4.3 steps 1-5).
// A position with no legal moves (checkmate or stalemate) yields an empty,
// nil-error slice; the caller is expected to treat that as terminal, not an
// error.
func Decode(policy []float64, fen string, idx *moveindex.Index, topK int) ([]Prediction, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	legal, err := position.LegalMoves(fen)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(legal) == 0 {
		return nil, nil
	}
	orientBlack, err := blackToMove(fen)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	weights := make([]float64, len(legal))
	var sum float64
	for i, m := range legal {
		pIdx, ok := idx.ForMoveOriented(m.From, m.To, m.Promotion, orientBlack)
		if !ok {
			continue // missing from the index: treat as zero weight.
		}
		if pIdx < 0 || pIdx >= len(policy) {
			continue
		}
		w := policy[pIdx]
		if w < 0 {
			w = 0
		}
		weights[i] = w
		sum += w
	}

	if sum <= 0 {
		uniform := 1.0 / float64(len(legal))
		for i := range weights {
			weights[i] = uniform
		}
		sum = 1.0
	}

	predictions := make([]Prediction, len(legal))
	for i, m := range legal {
		predictions[i] = Prediction{
			UCI:         m.UCI,
			SAN:         m.SAN,
			From:        m.From,
			To:          m.To,
			Promotion:   m.Promotion,
			Probability: weights[i] / sum,
		}
	}

	sort.SliceStable(predictions, func(a, b int) bool {
		if predictions[a].Probability != predictions[b].Probability {
			return predictions[a].Probability > predictions[b].Probability
		}
		pa, _ := idx.ForMoveOriented(predictions[a].From, predictions[a].To, predictions[a].Promotion, orientBlack)
		pb, _ := idx.ForMoveOriented(predictions[b].From, predictions[b].To, predictions[b].Promotion, orientBlack)
		return pa < pb
	})

	if len(predictions) > topK {
		predictions = predictions[:topK]
	}
	return predictions, nil
}

// blackToMove reads FEN's active-color field. The index table is built in a
// single canonical orientation (see moveindex's package doc); a move made by
// Black must be mirrored into that frame before lookup, the same flip
// internal/encoder applies to its planes for a Black-to-move position.
func blackToMove(fen string) (bool, error) {
	fields := strings.Fields(fen)
	if len(fields) < 2 {
		return false, fmt.Errorf("invalid fen %q: missing active color field", fen)
	}
	switch fields[1] {
	case "w":
		return false, nil
	case "b":
		return true, nil
	default:
		return false, fmt.Errorf("invalid active color %q in fen %q", fields[1], fen)
	}
}
