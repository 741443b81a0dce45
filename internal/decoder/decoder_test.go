package decoder

import (
	"testing"

	"github.com/maia-engine/predictor/internal/moveindex"
)

const startingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestDecodeNormalizesOverLegalMoves(t *testing.T) {
	idx := moveindex.New()
	policy := make([]float64, moveindex.Size)
	e2e4, ok := idx.ForMove("e2", "e4", "")
	if !ok {
		t.Fatal("expected e2e4 to be indexed")
	}
	e2e3, ok := idx.ForMove("e2", "e3", "")
	if !ok {
		t.Fatal("expected e2e3 to be indexed")
	}
	policy[e2e4] = 3
	policy[e2e3] = 1

	preds, err := Decode(policy, startingFEN, idx, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(preds) != DefaultTopK {
		t.Fatalf("len(preds) = %d, want %d", len(preds), DefaultTopK)
	}
	if preds[0].UCI != "e2e4" {
		t.Errorf("top prediction = %v, want e2e4", preds[0].UCI)
	}

	var sum float64
	for _, p := range preds {
		sum += p.Probability
	}
	if sum <= 0 || sum > 1.0001 {
		t.Errorf("probabilities across top-K sum to %v, want in (0, 1]", sum)
	}
}

func TestDecodeUniformFallbackWhenAllWeightsZero(t *testing.T) {
	idx := moveindex.New()
	policy := make([]float64, moveindex.Size)

	preds, err := Decode(policy, startingFEN, idx, 3)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(preds) != 3 {
		t.Fatalf("len(preds) = %d, want 3", len(preds))
	}
	want := 1.0 / 20.0
	for _, p := range preds {
		if p.Probability != want {
			t.Errorf("probability = %v, want uniform %v", p.Probability, want)
		}
	}
}

func TestDecodeTerminalPositionIsEmptyNotError(t *testing.T) {
	idx := moveindex.New()
	policy := make([]float64, moveindex.Size)
	foolsMate := "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3"

	preds, err := Decode(policy, foolsMate, idx, 5)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(preds) != 0 {
		t.Errorf("expected no predictions for a terminal position, got %d", len(preds))
	}
}

func TestDecodeMirrorsIndexForBlackToMove(t *testing.T) {
	idx := moveindex.New()
	policy := make([]float64, moveindex.Size)
	afterE4 := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"

	e7e5, ok := idx.ForMoveOriented("e7", "e5", "", true)
	if !ok {
		t.Fatal("expected e7e5 to resolve via ForMoveOriented for black")
	}
	policy[e7e5] = 5

	preds, err := Decode(policy, afterE4, idx, 1)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(preds) != 1 || preds[0].UCI != "e7e5" {
		t.Fatalf("preds = %+v, want a single e7e5 prediction", preds)
	}
}

func TestDecodeTopKTruncatesAndSortsDescending(t *testing.T) {
	idx := moveindex.New()
	policy := make([]float64, moveindex.Size)
	e2e4, _ := idx.ForMove("e2", "e4", "")
	policy[e2e4] = 100

	preds, err := Decode(policy, startingFEN, idx, 1)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(preds) != 1 {
		t.Fatalf("len(preds) = %d, want 1", len(preds))
	}
	if preds[0].UCI != "e2e4" {
		t.Errorf("preds[0] = %v, want e2e4", preds[0].UCI)
	}
}
