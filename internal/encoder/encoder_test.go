package encoder

import "testing"

const startingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestTensorShape(t *testing.T) {
	tensor, err := Encode(startingFEN, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(tensor) != TensorLen {
		t.Fatalf("tensor length = %d, want %d", len(tensor), TensorLen)
	}
}

func TestStartingPositionPieceCounts(t *testing.T) {
	tensor, err := Encode(startingFEN, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// 16 of our pieces + 16 of theirs in the time-step-0 planes.
	var ours, theirs float32
	for plane := 0; plane < 6; plane++ {
		ours += sumPlane(tensor, plane)
	}
	for plane := 6; plane < 12; plane++ {
		theirs += sumPlane(tensor, plane)
	}
	if ours != 16 || theirs != 16 {
		t.Errorf("piece counts = ours=%v theirs=%v, want 16 and 16", ours, theirs)
	}
}

func TestBiasPlaneIsAllOnes(t *testing.T) {
	tensor, err := Encode(startingFEN, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if sumPlane(tensor, 111) != PlaneSquares {
		t.Errorf("plane 111 is not all-ones")
	}
}

func TestSideToMovePlaneFlipsForBlack(t *testing.T) {
	whiteTensor, err := Encode(startingFEN, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	blackFEN := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR b KQkq - 0 1"
	blackTensor, err := Encode(blackFEN, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if sumPlane(whiteTensor, 108) != 0 {
		t.Errorf("white-to-move plane 108 should be zero")
	}
	if sumPlane(blackTensor, 108) != PlaneSquares {
		t.Errorf("black-to-move plane 108 should be all-ones")
	}
}

func TestCastlingPlanesReflectRights(t *testing.T) {
	fen := "r3k2r/8/8/8/8/8/8/R3K2R w Kq - 0 1"
	tensor, err := Encode(fen, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if sumPlane(tensor, 104) != PlaneSquares { // our king-side (white K)
		t.Errorf("expected our king-side castling plane set")
	}
	if sumPlane(tensor, 105) != 0 { // our queen-side (white has none)
		t.Errorf("expected our queen-side castling plane clear")
	}
	if sumPlane(tensor, 107) != PlaneSquares { // their queen-side (black q)
		t.Errorf("expected their queen-side castling plane set")
	}
}

func TestHistoryLongerThanBudgetIsTruncated(t *testing.T) {
	history := make([]string, MaxHistory+5)
	for i := range history {
		history[i] = startingFEN
	}
	if _, err := Encode(startingFEN, history); err != nil {
		t.Fatalf("Encode with oversized history: %v", err)
	}
}

func TestInvalidFenIsRejected(t *testing.T) {
	if _, err := Encode("not a fen", nil); err == nil {
		t.Error("expected an error for a malformed FEN")
	}
}

func sumPlane(tensor []float32, plane int) float32 {
	var total float32
	start := plane * PlaneSquares
	for i := start; i < start+PlaneSquares; i++ {
		total += tensor[i]
	}
	return total
}
