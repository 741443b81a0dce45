package policynet

import (
	"bytes"
	"testing"

	"github.com/maia-engine/predictor/internal/encoder"
)

func TestPredictReturnsPolicyVector(t *testing.T) {
	net, err := New(true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer net.Close()

	input := make([]float32, encoder.TensorLen)
	policy, err := net.Predict(input)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(policy) != outputSize {
		t.Fatalf("len(policy) = %d, want %d", len(policy), outputSize)
	}

	var sum float64
	for _, p := range policy {
		sum += p
	}
	if sum < 0.99 || sum > 1.01 {
		t.Errorf("softmax output sums to %v, want ~1.0", sum)
	}
}

func TestPredictRejectsWrongInputLength(t *testing.T) {
	net, err := New(true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer net.Close()

	if _, err := net.Predict(make([]float32, 10)); err == nil {
		t.Error("expected an error for a malformed input length")
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	net, err := New(true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer net.Close()

	var buf bytes.Buffer
	if err := net.SaveCheckpoint(&buf); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	loaded, err := New(true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer loaded.Close()

	if err := loaded.LoadCheckpoint(&buf); err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
}

func TestLoadCheckpointRejectsTruncatedData(t *testing.T) {
	net, err := New(true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer net.Close()

	if err := net.LoadCheckpoint(bytes.NewReader([]byte{0x01, 0x02})); err == nil {
		t.Error("expected an error decoding a truncated checkpoint")
	}
}
