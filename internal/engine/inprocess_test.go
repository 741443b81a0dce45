package engine

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/maia-engine/predictor/internal/config"
	"github.com/maia-engine/predictor/internal/engine/errs"
	"github.com/maia-engine/predictor/internal/moveindex"
	"github.com/maia-engine/predictor/internal/obs"
	"github.com/maia-engine/predictor/internal/policynet"
)

const startingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func validCheckpointServer(t *testing.T) *httptest.Server {
	t.Helper()
	net, err := policynet.New(true)
	if err != nil {
		t.Fatalf("policynet.New: %v", err)
	}
	defer net.Close()

	var buf bytes.Buffer
	if err := net.SaveCheckpoint(&buf); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	body := buf.Bytes()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(body)
	}))
}

func testModelConfig(baseURL string) config.ModelConfig {
	return config.ModelConfig{
		ArtifactBaseURL:  baseURL,
		FetchTimeout:     2 * time.Second,
		MinArtifactBytes: 1,
		EnableSIMD:       true,
	}
}

func TestInProcessStartsNotReady(t *testing.T) {
	e := NewInProcess(testModelConfig("http://example.invalid"), moveindex.New(), obs.NewNop(), 5)
	defer e.Dispose()

	if e.State().Ready {
		t.Error("fresh InProcess engine reports Ready")
	}
}

func TestInProcessPredictBeforeLoadIsNotLoaded(t *testing.T) {
	e := NewInProcess(testModelConfig("http://example.invalid"), moveindex.New(), obs.NewNop(), 5)
	defer e.Dispose()

	_, err := e.Predict(context.Background(), startingFEN)
	if err != errs.ErrNotLoaded {
		t.Errorf("Predict before load error = %v, want %v", err, errs.ErrNotLoaded)
	}
}

func TestInProcessLoadThenPredict(t *testing.T) {
	srv := validCheckpointServer(t)
	defer srv.Close()

	e := NewInProcess(testModelConfig(srv.URL), moveindex.New(), obs.NewNop(), 5)
	defer e.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.LoadModel(ctx, 1500); err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if !e.State().Ready {
		t.Fatal("engine not Ready after successful load")
	}

	result, err := e.Predict(ctx, startingFEN)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(result.Predictions) == 0 {
		t.Error("expected at least one prediction")
	}
	if result.Rating != 1500 {
		t.Errorf("result.Rating = %d, want 1500", result.Rating)
	}
}

func TestInProcessSameRatingLoadIsNoOp(t *testing.T) {
	srv := validCheckpointServer(t)
	defer srv.Close()

	e := NewInProcess(testModelConfig(srv.URL), moveindex.New(), obs.NewNop(), 5)
	defer e.Dispose()

	ctx := context.Background()
	if err := e.LoadModel(ctx, 1500); err != nil {
		t.Fatalf("first LoadModel: %v", err)
	}
	if err := e.LoadModel(ctx, 1500); err != nil {
		t.Fatalf("second LoadModel (same rating): %v", err)
	}
}

func TestInProcessHistoryTracksMoves(t *testing.T) {
	e := NewInProcess(testModelConfig("http://example.invalid"), moveindex.New(), obs.NewNop(), 5)
	defer e.Dispose()

	e.UpdateHistory(startingFEN)
	if len(e.hist.snapshot()) != 1 {
		t.Fatalf("history length = %d, want 1", len(e.hist.snapshot()))
	}
	e.ClearHistory()
	if len(e.hist.snapshot()) != 0 {
		t.Fatalf("history length after clear = %d, want 0", len(e.hist.snapshot()))
	}
}

func TestInProcessDisposeRejectsFurtherCalls(t *testing.T) {
	e := NewInProcess(testModelConfig("http://example.invalid"), moveindex.New(), obs.NewNop(), 5)
	e.Dispose()
	e.Dispose() // idempotent

	ctx := context.Background()
	if err := e.LoadModel(ctx, 1500); err != errs.ErrDisposed {
		t.Errorf("LoadModel after dispose = %v, want %v", err, errs.ErrDisposed)
	}
	if _, err := e.Predict(ctx, startingFEN); err != errs.ErrDisposed {
		t.Errorf("Predict after dispose = %v, want %v", err, errs.ErrDisposed)
	}
}

func TestInProcessGetAvailableAndClosestRatings(t *testing.T) {
	e := NewInProcess(testModelConfig("http://example.invalid"), moveindex.New(), obs.NewNop(), 5)
	defer e.Dispose()

	ratings := e.GetAvailableRatings()
	if len(ratings) == 0 {
		t.Fatal("expected a non-empty rating list")
	}
	if got := e.GetClosestRating(1550); got != 1500 {
		t.Errorf("GetClosestRating(1550) = %d, want 1500", got)
	}
}

func TestInProcessLoadFetch404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewInProcess(testModelConfig(srv.URL), moveindex.New(), obs.NewNop(), 5)
	defer e.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.LoadModel(ctx, 1500); err == nil {
		t.Fatal("expected an error for a 404 artifact response")
	}
	if e.State().Ready {
		t.Error("engine reports Ready after a failed load")
	}
}
