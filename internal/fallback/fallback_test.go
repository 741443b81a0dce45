package fallback

import "testing"

const startingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestPredictSumsToOne(t *testing.T) {
	preds, err := Predict(startingFEN)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(preds) != 20 {
		t.Fatalf("len(preds) = %d, want 20", len(preds))
	}
	var sum float64
	for _, p := range preds {
		sum += p.Probability
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("probabilities sum to %v, want ~1.0", sum)
	}
}

func TestPredictPrefersCapturesOverQuietMoves(t *testing.T) {
	// White pawn on e5 can capture on d6; d2-d3 is a quiet developing move.
	fen := "rnbqkbnr/ppp2ppp/8/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 3"
	preds, err := Predict(fen)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if preds[0].UCI != "e5d6" {
		t.Errorf("top fallback move = %v, want the en-passant capture e5d6", preds[0].UCI)
	}
}

func TestPredictTerminalPositionIsEmpty(t *testing.T) {
	foolsMate := "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3"
	preds, err := Predict(foolsMate)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(preds) != 0 {
		t.Errorf("expected no predictions for a terminal position, got %d", len(preds))
	}
}

func TestPredictDescendingOrder(t *testing.T) {
	preds, err := Predict(startingFEN)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for i := 1; i < len(preds); i++ {
		if preds[i].Probability > preds[i-1].Probability {
			t.Fatalf("predictions not sorted descending at index %d", i)
		}
	}
}
