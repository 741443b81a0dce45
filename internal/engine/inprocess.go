package engine

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/maia-engine/predictor/internal/config"
	"github.com/maia-engine/predictor/internal/decoder"
	"github.com/maia-engine/predictor/internal/encoder"
	"github.com/maia-engine/predictor/internal/engine/errs"
	"github.com/maia-engine/predictor/internal/moveindex"
	"github.com/maia-engine/predictor/internal/policynet"
)

// InProcess is the simplest Engine implementation: it runs load and
// predict directly on the calling goroutine, serialized by a mutex, with
// no background worker. It is the facade's fallback when a worker-backed
// engine fails to initialize (spec §4.5), and is also the natural choice
// for short-lived callers such as tests and the CLI demo.
type InProcess struct {
	cfg    config.ModelConfig
	idx    *moveindex.Index
	logger *zap.Logger
	topK   int

	loadMu sync.Mutex // held for the whole of LoadModel

	mu       sync.Mutex
	net      *policynet.Network
	rating   int
	loading  bool
	lastErr  error
	hist     history
	disposed bool
}

// NewInProcess builds an InProcess engine. idx is shared process-wide, per
// the Move Index's "built once, immutable" lifecycle (spec §3). topK
// controls how many predictions Predict returns; a value <= 0 falls back
// to decoder.DefaultTopK.
func NewInProcess(cfg config.ModelConfig, idx *moveindex.Index, logger *zap.Logger, topK int) *InProcess {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InProcess{cfg: cfg, idx: idx, logger: logger, topK: topK}
}

// State implements Engine.
func (e *InProcess) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Loading:       e.loading,
		Ready:         e.net != nil,
		CurrentRating: e.rating,
		LastError:     e.lastErr,
	}
}

// LoadModel implements Engine. It runs synchronously on the caller's
// goroutine; only one load can be in flight at a time per instance.
func (e *InProcess) LoadModel(ctx context.Context, rating int) error {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return errs.ErrDisposed
	}
	if e.net != nil && e.rating == rating {
		e.mu.Unlock()
		return nil // spec §4.4 Ready(r) row: same rating is a no-op.
	}
	e.loading = true
	e.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()

	body, err := policynet.FetchArtifact(fetchCtx, e.cfg.ArtifactBaseURL, rating, e.cfg.MinArtifactBytes)
	if err != nil {
		return e.failLoad(classifyFetchErr(err))
	}

	net, err := policynet.New(e.cfg.EnableSIMD)
	if err != nil {
		return e.failLoad(fmt.Errorf("%w: %v", errs.ErrRuntimeIncompatible, err))
	}
	if err := net.LoadCheckpoint(bytes.NewReader(body)); err != nil {
		net.Close()
		if e.cfg.EnableSIMD {
			retryNet, retryErr := policynet.New(false)
			if retryErr == nil {
				if loadErr := retryNet.LoadCheckpoint(bytes.NewReader(body)); loadErr == nil {
					net = retryNet
					goto loaded
				}
				retryNet.Close()
			}
		}
		return e.failLoad(fmt.Errorf("%w: %v", errs.ErrRuntimeIncompatible, err))
	}

loaded:
	e.mu.Lock()
	if e.net != nil {
		e.net.Close()
	}
	e.net = net
	e.rating = rating
	e.loading = false
	e.lastErr = nil
	e.hist.clear()
	e.mu.Unlock()
	e.logger.Info("in-process engine loaded model", zap.Int("rating", rating))
	return nil
}

func (e *InProcess) failLoad(err error) error {
	e.mu.Lock()
	e.loading = false
	e.lastErr = err
	e.mu.Unlock()
	e.logger.Warn("in-process engine load failed", zap.Error(err))
	return err
}

// Predict implements Engine.
func (e *InProcess) Predict(ctx context.Context, fen string) (InferenceResult, error) {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return InferenceResult{}, errs.ErrDisposed
	}
	net := e.net
	rating := e.rating
	hist := e.hist.snapshot()
	e.mu.Unlock()

	if net == nil {
		return InferenceResult{}, errs.ErrNotLoaded
	}

	start := time.Now()
	tensor, err := encoder.Encode(fen, hist)
	if err != nil {
		return InferenceResult{}, fmt.Errorf("engine: encode: %w", err)
	}
	policy, err := net.Predict(tensor)
	if err != nil {
		return InferenceResult{}, fmt.Errorf("engine: predict: %w", err)
	}
	predictions, err := decoder.Decode(policy, fen, e.idx, e.topK)
	if err != nil {
		return InferenceResult{}, fmt.Errorf("engine: decode: %w", err)
	}

	return InferenceResult{
		Predictions:     predictions,
		Rating:          rating,
		InferenceTimeMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}, nil
}

// GetAvailableRatings implements Engine.
func (e *InProcess) GetAvailableRatings() []int {
	return GetAvailableRatings()
}

// GetClosestRating implements Engine.
func (e *InProcess) GetClosestRating(target int) int {
	return GetClosestRating(target)
}

// UpdateHistory implements Engine.
func (e *InProcess) UpdateHistory(fen string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hist.update(fen)
}

// ClearHistory implements Engine.
func (e *InProcess) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hist.clear()
}

// Dispose implements Engine.
func (e *InProcess) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.disposed = true
	if e.net != nil {
		e.net.Close()
		e.net = nil
	}
	e.hist.clear()
}

func classifyFetchErr(err error) error {
	if err == policynet.ErrHTMLSentinel {
		return fmt.Errorf("%w: %v", errs.ErrModelNotFound, err)
	}
	return fmt.Errorf("%w: %v", errs.ErrLoadTimeout, err)
}
