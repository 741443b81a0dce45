package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maia-engine/predictor/internal/config"
	"github.com/maia-engine/predictor/internal/engine/errs"
	"github.com/maia-engine/predictor/internal/moveindex"
	"github.com/maia-engine/predictor/internal/worker"
)

// WorkerBacked is the Engine implementation that delegates load and
// predict to a background internal/worker.Worker, so a slow fetch or a
// long forward pass never blocks the caller's goroutine. It adds two
// things the raw worker does not provide: a per-call request id for log
// correlation (spec §4.5) and same-rating load debounce, so repeated
// slider drags during rating selection collapse into a single fetch.
type WorkerBacked struct {
	w      *worker.Worker
	cfg    config.EngineConfig
	logger *zap.Logger

	mu         sync.Mutex
	lastRating int
	hasLoaded  bool
	hist       history
}

// NewWorkerBacked starts the underlying worker and returns a facade over
// it. The worker itself begins in StateUninitialized; call LoadModel to
// bring it up.
func NewWorkerBacked(modelCfg config.ModelConfig, engineCfg config.EngineConfig, idx *moveindex.Index, logger *zap.Logger) *WorkerBacked {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerBacked{
		w:      worker.New(modelCfg, idx, logger, engineCfg.TopK),
		cfg:    engineCfg,
		logger: logger,
	}
}

// State implements Engine.
func (e *WorkerBacked) State() State {
	status := e.w.Status()
	return State{
		Loading:       status.State == worker.StateLoading,
		Ready:         status.State == worker.StateReady,
		CurrentRating: status.Rating,
		LastError:     status.Err,
	}
}

// LoadModel implements Engine. A request for the rating already loaded or
// already in flight is a no-op, per spec §4.4's Ready(r)/Loading(r) rows.
func (e *WorkerBacked) LoadModel(ctx context.Context, rating int) error {
	requestID := uuid.New().String()
	log := e.logger.With(zap.String("request_id", requestID), zap.Int("rating", rating))

	e.mu.Lock()
	if e.hasLoaded && e.lastRating == rating {
		status := e.w.Status()
		if status.State == worker.StateReady || status.State == worker.StateLoading {
			e.mu.Unlock()
			log.Debug("load debounced: rating already loaded or in flight")
			return nil
		}
	}
	e.lastRating = rating
	e.hasLoaded = true
	e.mu.Unlock()

	loadCtx := ctx
	var cancel context.CancelFunc
	if e.cfg.LoadTimeout > 0 {
		loadCtx, cancel = context.WithTimeout(ctx, e.cfg.LoadTimeout)
		defer cancel()
	}

	err := e.w.Load(loadCtx, rating)
	if err != nil {
		if err == context.DeadlineExceeded {
			err = errs.ErrLoadTimeout
		}
		log.Warn("worker-backed load failed", zap.Error(err))
		return err
	}
	log.Info("worker-backed load succeeded")
	return nil
}

// Predict implements Engine. Each call is bounded by EngineConfig.PredictTimeout
// and tagged with its own request id for log correlation.
func (e *WorkerBacked) Predict(ctx context.Context, fen string) (InferenceResult, error) {
	requestID := uuid.New().String()
	log := e.logger.With(zap.String("request_id", requestID))

	predictCtx := ctx
	var cancel context.CancelFunc
	if e.cfg.PredictTimeout > 0 {
		predictCtx, cancel = context.WithTimeout(ctx, e.cfg.PredictTimeout)
		defer cancel()
	}

	e.mu.Lock()
	hist := e.hist.snapshot()
	e.mu.Unlock()

	result, err := e.w.Predict(predictCtx, fen, hist)
	if err != nil {
		if err == context.DeadlineExceeded {
			err = errs.ErrPredictTimeout
		}
		log.Warn("worker-backed predict failed", zap.Error(err))
		return InferenceResult{}, err
	}

	return InferenceResult{
		Predictions:     result.Predictions,
		Rating:          result.Rating,
		InferenceTimeMs: result.InferenceTimeMs,
		Fallback:        result.Fallback,
	}, nil
}

// GetAvailableRatings implements Engine.
func (e *WorkerBacked) GetAvailableRatings() []int {
	return GetAvailableRatings()
}

// GetClosestRating implements Engine.
func (e *WorkerBacked) GetClosestRating(target int) int {
	return GetClosestRating(target)
}

// UpdateHistory implements Engine.
func (e *WorkerBacked) UpdateHistory(fen string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hist.update(fen)
}

// ClearHistory implements Engine.
func (e *WorkerBacked) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hist.clear()
}

// Dispose implements Engine.
func (e *WorkerBacked) Dispose() {
	e.w.Dispose()
}

// Underlying exposes the wrapped worker for callers (notably
// internal/lifecycle) that need to watch its state machine directly, e.g.
// to decide whether to fall back to an in-process engine.
func (e *WorkerBacked) Underlying() *worker.Worker {
	return e.w
}
