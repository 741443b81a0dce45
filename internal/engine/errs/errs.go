// Package errs holds the sentinel errors from the taxonomy in spec §7, in
// their own leaf package so both internal/engine and internal/worker can
// depend on them without an import cycle.
package errs

import "errors"

var (
	// ErrModelNotFound means the artifact fetch returned a 404 or an
	// HTML sentinel page instead of model bytes.
	ErrModelNotFound = errors.New("model not found")
	// ErrLoadTimeout means a fetch or session create exceeded its budget.
	ErrLoadTimeout = errors.New("load timed out")
	// ErrRuntimeIncompatible means session creation failed even after the
	// SIMD-fallback retry.
	ErrRuntimeIncompatible = errors.New("runtime incompatible")
	// ErrNotLoaded means predict was called before a successful load.
	ErrNotLoaded = errors.New("model not loaded")
	// ErrPredictTimeout means the worker did not respond within budget.
	ErrPredictTimeout = errors.New("predict timed out")
	// ErrSuperseded means a pending load was replaced by a newer request.
	// Not user-facing; surfaced only to internal callers (spec §7).
	ErrSuperseded = errors.New("superseded by a newer load")
	// ErrDisposed means the engine was disposed while a request was
	// pending, or any further call was made after disposal.
	ErrDisposed = errors.New("disposed")
)
