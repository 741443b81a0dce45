// Package engine is the Engine Facade (spec §4.5): the typed interface the
// rest of the app calls, available in two interchangeable implementations
// (in-process and worker-backed) sharing one capability set.
package engine

import (
	"context"

	"github.com/maia-engine/predictor/internal/decoder"
	"github.com/maia-engine/predictor/internal/engine/errs"
	"github.com/maia-engine/predictor/internal/policynet"
)

// Re-exported so callers only need to import this package and compare with
// errors.Is against these values.
var (
	ErrModelNotFound       = errs.ErrModelNotFound
	ErrLoadTimeout         = errs.ErrLoadTimeout
	ErrRuntimeIncompatible = errs.ErrRuntimeIncompatible
	ErrNotLoaded           = errs.ErrNotLoaded
	ErrPredictTimeout      = errs.ErrPredictTimeout
	ErrSuperseded          = errs.ErrSuperseded
	ErrDisposed            = errs.ErrDisposed
)

// State is the Engine State entity from the Data Model (spec §3).
type State struct {
	Loading       bool
	Ready         bool
	CurrentRating int // 0 means no rating is loaded.
	LastError     error
}

// InferenceResult is the Inference Result entity from the Data Model.
type InferenceResult struct {
	Predictions     []decoder.Prediction
	Rating          int
	InferenceTimeMs float64
	Fallback        bool
}

// Engine is the capability set both implementations provide (spec §4.5).
type Engine interface {
	State() State
	LoadModel(ctx context.Context, rating int) error
	Predict(ctx context.Context, fen string) (InferenceResult, error)
	UpdateHistory(fen string)
	ClearHistory()
	Dispose()

	// GetAvailableRatings and GetClosestRating expose the facade's rating
	// catalog (spec §6); both implementations share the same static list,
	// so neither needs its own state to answer them.
	GetAvailableRatings() []int
	GetClosestRating(target int) int
}

// GetAvailableRatings returns the Maia rating bands artifacts are published
// for, in ascending order.
func GetAvailableRatings() []int {
	out := make([]int, len(policynet.SupportedRatings))
	copy(out, policynet.SupportedRatings)
	return out
}

// GetClosestRating returns the supported rating nearest target.
func GetClosestRating(target int) int {
	return policynet.ClosestRating(target)
}

const maxHistory = 7

// history is the Position History entity (spec §3): a single-writer,
// most-recent-first ring buffer of up to 7 prior descriptors. It is shared
// by both Engine implementations rather than duplicated.
type history struct {
	entries []string
}

func (h *history) update(fen string) {
	h.entries = append([]string{fen}, h.entries...)
	if len(h.entries) > maxHistory {
		h.entries = h.entries[:maxHistory]
	}
}

func (h *history) clear() {
	h.entries = nil
}

func (h *history) snapshot() []string {
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}
