// Package lifecycle implements the Engine Lifecycle Coordinator (spec §4.5):
// it owns exactly one Engine at a time, picks the worker-backed
// implementation by default and falls back to the in-process one if the
// worker fails to settle within its init budget, debounces rapid rating
// changes, and always has the heuristic fallback (internal/fallback) ready
// behind it for when Maia itself is permanently unavailable.
//
// The single-owner-with-a-mutex shape mirrors the teacher's
// internal/decision/async_engine.go, generalized from one hardcoded engine
// to a pair of interchangeable Engine implementations plus a debounced
// rating switch.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/maia-engine/predictor/internal/cache"
	"github.com/maia-engine/predictor/internal/config"
	"github.com/maia-engine/predictor/internal/decoder"
	"github.com/maia-engine/predictor/internal/engine"
	"github.com/maia-engine/predictor/internal/fallback"
	"github.com/maia-engine/predictor/internal/moveindex"
)

// Coordinator is the top-level object the host application talks to. It
// satisfies the same shape as engine.Engine for load/predict, plus a
// SelectRating entry point that debounces repeated rating changes.
type Coordinator struct {
	cfg    config.Config
	idx    *moveindex.Index
	logger *zap.Logger

	mu       sync.Mutex
	eng      engine.Engine
	debounce *cache.Debouncer

	predictionCache *cache.Cache[engine.InferenceResult]
}

// New builds a Coordinator and selects its initial engine implementation
// per EngineConfig.UseWorker, but does not load any rating yet.
func New(cfg config.Config, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := moveindex.New()
	c := &Coordinator{
		cfg:             cfg,
		idx:             idx,
		logger:          logger,
		debounce:        cache.NewDebouncer(cfg.Cache.DebounceDelay),
		predictionCache: cache.New[engine.InferenceResult](cfg.Cache.TTL, cfg.Cache.MaxEntries),
	}
	c.eng = c.buildEngine()
	return c
}

func (c *Coordinator) buildEngine() engine.Engine {
	if c.cfg.Engine.UseWorker {
		return engine.NewWorkerBacked(c.cfg.Model, c.cfg.Engine, c.idx, c.logger)
	}
	return engine.NewInProcess(c.cfg.Model, c.idx, c.logger, c.cfg.Engine.TopK)
}

// SelectRating debounces rapid rating changes (e.g. a UI slider) and loads
// at most one rating at a time: a change arriving before the debounce delay
// elapses cancels the pending load and restarts the timer (spec §4.6).
// onDone, if non-nil, is invoked with the load's outcome once it runs.
func (c *Coordinator) SelectRating(rating int, onDone func(error)) {
	c.debounce.Trigger(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.loadTimeout())
		defer cancel()
		err := c.LoadModel(ctx, rating)
		if onDone != nil {
			onDone(err)
		}
	})
}

func (c *Coordinator) loadTimeout() time.Duration {
	if c.cfg.Engine.LoadTimeout > 0 {
		return c.cfg.Engine.LoadTimeout
	}
	return 30 * time.Second
}

// LoadModel loads rating synchronously against the current engine. If the
// current engine is worker-backed and does not reach Ready or a terminal
// failure within WorkerInitWait, the coordinator demotes to an in-process
// engine and retries the load there (spec §4.5's worker-init-failure
// fallback).
func (c *Coordinator) LoadModel(ctx context.Context, rating int) error {
	c.mu.Lock()
	eng := c.eng
	wb, isWorkerBacked := eng.(*engine.WorkerBacked)
	c.mu.Unlock()

	if isWorkerBacked {
		initCtx, cancel := context.WithTimeout(ctx, c.cfg.Engine.WorkerInitWait)
		err := wb.LoadModel(initCtx, rating)
		cancel()
		if err == engine.ErrLoadTimeout || err == context.DeadlineExceeded {
			c.logger.Warn("worker-backed engine did not settle in time, falling back to in-process",
				zap.Int("rating", rating))
			return c.demoteToInProcess(ctx, rating)
		}
		return err
	}

	return eng.LoadModel(ctx, rating)
}

func (c *Coordinator) demoteToInProcess(ctx context.Context, rating int) error {
	c.mu.Lock()
	old := c.eng
	inProc := engine.NewInProcess(c.cfg.Model, c.idx, c.logger, c.cfg.Engine.TopK)
	c.eng = inProc
	c.mu.Unlock()

	old.Dispose()
	return inProc.LoadModel(ctx, rating)
}

// Predict returns predictions for fen, preferring the cache, then the
// current engine, then the always-available heuristic fallback if the
// engine reports the model is unavailable (spec §7's permanent-failure
// contract: the product must still suggest moves).
func (c *Coordinator) Predict(ctx context.Context, fen string) (engine.InferenceResult, error) {
	if cached, ok := c.predictionCache.Get(fen, time.Now()); ok {
		return cached, nil
	}

	c.mu.Lock()
	eng := c.eng
	c.mu.Unlock()

	result, err := eng.Predict(ctx, fen)
	if err == nil {
		c.predictionCache.Set(fen, result, time.Now())
		return result, nil
	}
	if !isPermanentUnavailability(err) {
		return engine.InferenceResult{}, err
	}

	c.logger.Warn("engine unavailable, using heuristic fallback", zap.Error(err))
	predictions, fbErr := fallback.Predict(fen)
	if fbErr != nil {
		return engine.InferenceResult{}, fmt.Errorf("lifecycle: fallback predict: %w", fbErr)
	}

	result = engine.InferenceResult{
		Predictions: toDecoderPredictions(predictions),
		Rating:      0,
		Fallback:    true,
	}
	return result, nil
}

// toDecoderPredictions adapts fallback.Prediction (a deliberate structural
// copy of decoder.Prediction, see internal/fallback) into the decoder type
// InferenceResult carries, so callers never need to type-switch on whether
// a result came from the network or the heuristic.
func toDecoderPredictions(in []fallback.Prediction) []decoder.Prediction {
	out := make([]decoder.Prediction, len(in))
	for i, p := range in {
		out[i] = decoder.Prediction{
			UCI:         p.UCI,
			SAN:         p.SAN,
			From:        p.From,
			To:          p.To,
			Promotion:   p.Promotion,
			Probability: p.Probability,
		}
	}
	return out
}

func isPermanentUnavailability(err error) bool {
	return errors.Is(err, engine.ErrNotLoaded) ||
		errors.Is(err, engine.ErrModelNotFound) ||
		errors.Is(err, engine.ErrRuntimeIncompatible)
}

// UpdateHistory forwards a played position to the current engine.
func (c *Coordinator) UpdateHistory(fen string) {
	c.mu.Lock()
	eng := c.eng
	c.mu.Unlock()
	eng.UpdateHistory(fen)
	c.predictionCache.Clear()
}

// ClearHistory forwards a new-game reset to the current engine.
func (c *Coordinator) ClearHistory() {
	c.mu.Lock()
	eng := c.eng
	c.mu.Unlock()
	eng.ClearHistory()
	c.predictionCache.Clear()
}

// GetAvailableRatings returns the Maia rating bands artifacts are published
// for (spec §6).
func (c *Coordinator) GetAvailableRatings() []int {
	return engine.GetAvailableRatings()
}

// GetClosestRating returns the supported rating nearest target, so callers
// (e.g. a UI slider) can snap an arbitrary value to one LoadModel accepts.
func (c *Coordinator) GetClosestRating(target int) int {
	return engine.GetClosestRating(target)
}

// State reports the current engine's state.
func (c *Coordinator) State() engine.State {
	c.mu.Lock()
	eng := c.eng
	c.mu.Unlock()
	return eng.State()
}

// Dispose releases the current engine and cancels any pending debounced
// load.
func (c *Coordinator) Dispose() {
	c.debounce.Cancel()
	c.mu.Lock()
	eng := c.eng
	c.mu.Unlock()
	eng.Dispose()
}
