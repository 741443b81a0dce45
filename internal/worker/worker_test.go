package worker

import (
	"bytes"
	"context"
	"errors"
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

func testConfig(baseURL string) config.ModelConfig {
	return config.ModelConfig{
		ArtifactBaseURL:  baseURL,
		FetchTimeout:     2 * time.Second,
		MinArtifactBytes: 1,
		EnableSIMD:       true,
	}
}

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

func TestNewWorkerStartsUninitialized(t *testing.T) {
	w := New(testConfig("http://example.invalid"), moveindex.New(), obs.NewNop(), 5)
	defer w.Dispose()

	if got := w.Status().State; got != StateUninitialized {
		t.Errorf("initial state = %v, want %v", got, StateUninitialized)
	}
}

func TestPredictBeforeLoadIsRejected(t *testing.T) {
	w := New(testConfig("http://example.invalid"), moveindex.New(), obs.NewNop(), 5)
	defer w.Dispose()

	_, err := w.Predict(context.Background(), startingFEN, nil)
	if err != errs.ErrNotLoaded {
		t.Errorf("Predict before load error = %v, want %v", err, errs.ErrNotLoaded)
	}
}

func TestLoadThenPredictSucceeds(t *testing.T) {
	srv := validCheckpointServer(t)
	defer srv.Close()

	w := New(testConfig(srv.URL), moveindex.New(), obs.NewNop(), 5)
	defer w.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Load(ctx, 1500); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := w.Status().State; got != StateReady {
		t.Fatalf("state after load = %v, want %v", got, StateReady)
	}

	result, err := w.Predict(ctx, startingFEN, nil)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(result.Predictions) == 0 {
		t.Error("expected a non-empty prediction list")
	}
	if result.Rating != 1500 {
		t.Errorf("result.Rating = %d, want 1500", result.Rating)
	}
}

func TestLoadFetch404SurfacesModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	w := New(testConfig(srv.URL), moveindex.New(), obs.NewNop(), 5)
	defer w.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := w.Load(ctx, 1500)
	if err == nil {
		t.Fatal("expected an error for a 404 artifact response")
	}
	if !errors.Is(err, errs.ErrModelNotFound) {
		t.Errorf("Load error = %v, want one wrapping %v", err, errs.ErrModelNotFound)
	}

	if _, predictErr := w.Predict(ctx, startingFEN, nil); predictErr != errs.ErrNotLoaded {
		t.Errorf("Predict after failed load = %v, want %v", predictErr, errs.ErrNotLoaded)
	}
}

func TestDisposeRejectsFurtherCalls(t *testing.T) {
	w := New(testConfig("http://example.invalid"), moveindex.New(), obs.NewNop(), 5)
	w.Dispose()
	w.Dispose() // must be idempotent

	if got := w.Status().State; got != StateDisposed {
		t.Errorf("state after dispose = %v, want %v", got, StateDisposed)
	}

	ctx := context.Background()
	if err := w.Load(ctx, 1500); err != errs.ErrDisposed {
		t.Errorf("Load after dispose = %v, want %v", err, errs.ErrDisposed)
	}
	if _, err := w.Predict(ctx, startingFEN, nil); err != errs.ErrDisposed {
		t.Errorf("Predict after dispose = %v, want %v", err, errs.ErrDisposed)
	}
}
