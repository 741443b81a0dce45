// Package worker implements the Inference Worker (spec §4.4): a single
// background execution context that owns one loaded Maia policy network,
// serializes load/predict/dispose requests through channels, and follows
// the Uninitialized/Loading/Ready/Loading-failed/Disposed state machine.
//
// The goroutine-plus-channel shape is grounded on the teacher's own
// concurrency idiom: internal/decision/async_engine.go serializes access to
// shared engine state behind a mutex from a single owner, and this package
// extends that single-owner idea to a dedicated goroutine so load and
// predict requests never race on the underlying gorgonia VM.
package worker

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

// State is one state in the Inference Worker state machine (spec §4.4).
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateLoadingFailed
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateLoadingFailed:
		return "loading-failed"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot of the worker's state machine.
type Status struct {
	State  State
	Rating int
	Err    error
}

// Result is what a successful Predict call returns (spec §4.4 step 5).
type Result struct {
	Predictions     []decoder.Prediction
	Rating          int
	InferenceTimeMs float64
	Fallback        bool
}

type loadRequest struct {
	rating   int
	resultCh chan error
}

type loadOutcome struct {
	generation uint64
	rating     int
	net        *policynet.Network
	err        error
}

type predictRequest struct {
	fen      string
	history  []string
	resultCh chan predictOutcome
}

type predictOutcome struct {
	result Result
	err    error
}

// Worker owns the loaded policy network and the single goroutine that
// serializes every operation against it.
type Worker struct {
	cfg    config.ModelConfig
	idx    *moveindex.Index
	logger *zap.Logger
	topK   int

	loadCh     chan loadRequest
	predictCh  chan predictRequest
	disposeCh  chan chan struct{}
	loadDoneCh chan loadOutcome

	statusMu sync.Mutex
	status   Status
}

// New starts a worker goroutine and returns immediately; the worker begins
// in StateUninitialized. topK controls how many predictions Decode returns
// per call; a value <= 0 falls back to decoder.DefaultTopK.
func New(cfg config.ModelConfig, idx *moveindex.Index, logger *zap.Logger, topK int) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker{
		cfg:        cfg,
		idx:        idx,
		logger:     logger,
		topK:       topK,
		loadCh:     make(chan loadRequest),
		predictCh:  make(chan predictRequest),
		disposeCh:  make(chan chan struct{}),
		loadDoneCh: make(chan loadOutcome),
		status:     Status{State: StateUninitialized},
	}
	go w.run()
	return w
}

// Status returns a snapshot of the worker's current state.
func (w *Worker) Status() Status {
	w.statusMu.Lock()
	defer w.statusMu.Unlock()
	return w.status
}

func (w *Worker) setStatus(s Status) {
	w.statusMu.Lock()
	w.status = s
	w.statusMu.Unlock()
}

// Load requests rating be loaded. It blocks until the load resolves,
// fails, is superseded, or ctx is cancelled.
func (w *Worker) Load(ctx context.Context, rating int) error {
	resultCh := make(chan error, 1)
	select {
	case w.loadCh <- loadRequest{rating: rating, resultCh: resultCh}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resultCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Predict requests inference over fen with history. It blocks until the
// result is ready, the worker rejects it, or ctx is cancelled.
func (w *Worker) Predict(ctx context.Context, fen string, history []string) (Result, error) {
	resultCh := make(chan predictOutcome, 1)
	select {
	case w.predictCh <- predictRequest{fen: fen, history: history, resultCh: resultCh}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case out := <-resultCh:
		return out.result, out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Dispose releases the session, cancels in-flight fetches, and rejects all
// pending requests with errs.ErrDisposed. It is safe to call more than
// once.
func (w *Worker) Dispose() {
	done := make(chan struct{})
	w.disposeCh <- done
	<-done
}

func (w *Worker) run() {
	var net *policynet.Network
	var pendingLoad *loadRequest
	var pendingPredicts []predictRequest
	var cancelLoad context.CancelFunc
	var generation uint64
	disposed := false

	rejectPredict := func(req predictRequest, err error) {
		req.resultCh <- predictOutcome{err: err}
	}
	rejectAllPending := func(err error) {
		for _, req := range pendingPredicts {
			rejectPredict(req, err)
		}
		pendingPredicts = nil
	}

	for {
		select {
		case req := <-w.loadCh:
			if disposed {
				req.resultCh <- errs.ErrDisposed
				continue
			}
			if pendingLoad != nil {
				if cancelLoad != nil {
					cancelLoad()
				}
				pendingLoad.resultCh <- errs.ErrSuperseded
			}
			if net != nil {
				net.Close()
				net = nil
			}
			generation++
			gen := generation
			ctx, cancel := context.WithCancel(context.Background())
			cancelLoad = cancel
			reqCopy := req
			pendingLoad = &reqCopy
			w.setStatus(Status{State: StateLoading, Rating: req.rating})
			go w.performLoad(ctx, gen, req.rating)

		case out := <-w.loadDoneCh:
			if disposed || out.generation != generation {
				if out.net != nil {
					out.net.Close()
				}
				continue // superseded or disposed after this load started.
			}
			cancelLoad = nil
			if out.err != nil {
				w.setStatus(Status{State: StateLoadingFailed, Err: out.err})
				if pendingLoad != nil {
					pendingLoad.resultCh <- out.err
					pendingLoad = nil
				}
				rejectAllPending(out.err)
				continue
			}
			net = out.net
			w.setStatus(Status{State: StateReady, Rating: out.rating})
			if pendingLoad != nil {
				pendingLoad.resultCh <- nil
				pendingLoad = nil
			}
			for _, req := range pendingPredicts {
				w.runPredict(net, out.rating, req)
			}
			pendingPredicts = nil

		case req := <-w.predictCh:
			if disposed {
				rejectPredict(req, errs.ErrDisposed)
				continue
			}
			status := w.Status()
			switch status.State {
			case StateReady:
				w.runPredict(net, status.Rating, req)
			case StateLoading:
				pendingPredicts = append(pendingPredicts, req)
			default:
				rejectPredict(req, errs.ErrNotLoaded)
			}

		case done := <-w.disposeCh:
			if !disposed {
				disposed = true
				if cancelLoad != nil {
					cancelLoad()
				}
				if net != nil {
					net.Close()
					net = nil
				}
				if pendingLoad != nil {
					pendingLoad.resultCh <- errs.ErrDisposed
					pendingLoad = nil
				}
				rejectAllPending(errs.ErrDisposed)
				w.setStatus(Status{State: StateDisposed})
			}
			close(done)
		}
	}
}

func (w *Worker) performLoad(ctx context.Context, generation uint64, rating int) {
	fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	defer cancel()

	body, err := policynet.FetchArtifact(fetchCtx, w.cfg.ArtifactBaseURL, rating, w.cfg.MinArtifactBytes)
	if err != nil {
		w.logger.Warn("artifact fetch failed", zap.Int("rating", rating), zap.Error(err))
		w.sendLoadOutcome(ctx, loadOutcome{generation: generation, rating: rating, err: classifyFetchErr(err)})
		return
	}

	net, err := buildAndLoad(body, w.cfg.EnableSIMD)
	if err != nil {
		w.logger.Error("policy network load failed", zap.Int("rating", rating), zap.Error(err))
		w.sendLoadOutcome(ctx, loadOutcome{generation: generation, rating: rating, err: fmt.Errorf("%w: %v", errs.ErrRuntimeIncompatible, err)})
		return
	}

	w.logger.Info("policy network loaded", zap.Int("rating", rating))
	w.sendLoadOutcome(ctx, loadOutcome{generation: generation, rating: rating, net: net})
}

// buildAndLoad builds the graph and installs the checkpoint, retrying once
// without SIMD if the checkpoint fails to decode while SIMD was enabled
// (spec §4.4 step 4: "if creation fails with a protobuf-parse error AND
// SIMD was enabled, disable SIMD and retry once").
func buildAndLoad(artifact []byte, simd bool) (*policynet.Network, error) {
	net, err := policynet.New(simd)
	if err != nil {
		return nil, err
	}
	if err := net.LoadCheckpoint(bytes.NewReader(artifact)); err != nil {
		net.Close()
		if !simd {
			return nil, err
		}
		fallbackNet, fallbackErr := policynet.New(false)
		if fallbackErr != nil {
			return nil, fallbackErr
		}
		if err := fallbackNet.LoadCheckpoint(bytes.NewReader(artifact)); err != nil {
			fallbackNet.Close()
			return nil, err
		}
		return fallbackNet, nil
	}
	return net, nil
}

func (w *Worker) sendLoadOutcome(ctx context.Context, out loadOutcome) {
	select {
	case w.loadDoneCh <- out:
	case <-ctx.Done():
		if out.net != nil {
			out.net.Close()
		}
	}
}

func (w *Worker) runPredict(net *policynet.Network, rating int, req predictRequest) {
	start := time.Now()
	tensor, err := encoder.Encode(req.fen, req.history)
	if err != nil {
		req.resultCh <- predictOutcome{err: fmt.Errorf("worker: encode: %w", err)}
		return
	}

	policy, err := net.Predict(tensor)
	if err != nil {
		req.resultCh <- predictOutcome{err: fmt.Errorf("worker: predict: %w", err)}
		return
	}

	predictions, err := decoder.Decode(policy, req.fen, w.idx, w.topK)
	if err != nil {
		req.resultCh <- predictOutcome{err: fmt.Errorf("worker: decode: %w", err)}
		return
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	req.resultCh <- predictOutcome{result: Result{
		Predictions:     predictions,
		Rating:          rating,
		InferenceTimeMs: elapsed,
	}}
}

func classifyFetchErr(err error) error {
	if err == policynet.ErrHTMLSentinel {
		return fmt.Errorf("%w: %v", errs.ErrModelNotFound, err)
	}
	return fmt.Errorf("%w: %v", errs.ErrLoadTimeout, err)
}
