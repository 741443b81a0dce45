// Package fallback is the heuristic engine spec §7 requires to always be
// available, regardless of model state: a score-based ranking of legal
// moves (captures, then central-square occupation, then castling, then
// checks) shaped like a real prediction list, so the product can always
// present candidate moves even when Maia is permanently unavailable.
package fallback

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maia-engine/predictor/internal/position"
)

const (
	weightBase     = 1.0
	weightCheck    = 5.0
	weightCastling = 25.0
	weightCentral  = 100.0
	weightCapture  = 1000.0
)

var centralSquares = map[string]bool{
	"d4": true, "d5": true, "e4": true, "e5": true,
}

// Prediction mirrors decoder.Prediction's shape so callers can treat a
// fallback result the same way as a real inference result.
type Prediction struct {
	UCI         string
	SAN         string
	From        string
	To          string
	Promotion   string
	Probability float64
}

// Predict scores every legal move in fen by the capture > central-square >
// castling > check heuristic and returns a normalized, descending-sorted
// prediction list. An empty, nil-error result means the position is
// terminal, matching internal/decoder's contract.
func Predict(fen string) ([]Prediction, error) {
	legal, err := position.LegalMoves(fen)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}
	if len(legal) == 0 {
		return nil, nil
	}

	weights := make([]float64, len(legal))
	var sum float64
	for i, m := range legal {
		w := weightBase
		if strings.Contains(m.SAN, "x") {
			w += weightCapture
		}
		if centralSquares[m.To] {
			w += weightCentral
		}
		if strings.HasPrefix(m.SAN, "O-O") {
			w += weightCastling
		}
		if strings.HasSuffix(m.SAN, "+") || strings.HasSuffix(m.SAN, "#") {
			w += weightCheck
		}
		weights[i] = w
		sum += w
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
		return predictions[a].Probability > predictions[b].Probability
	})
	return predictions, nil
}
