package core

import (
	"time"
)

// Engine orchestrates scope generation, conversion, and reporting over the
// persistence and generation collaborators.
type Engine struct {
	store Store
	gen   Generator
	ids   IDGenerator
	now   func() time.Time
}

// EngineDeps holds dependencies for constructing an Engine.
type EngineDeps struct {
	Store     Store
	Generator Generator
	IDs       IDGenerator
	Now       func() time.Time
}

// NewEngine creates an engine with default ID generation and wall-clock time.
func NewEngine(store Store, gen Generator) *Engine {
	return NewEngineWithDeps(EngineDeps{Store: store, Generator: gen})
}

// NewEngineWithDeps creates an engine with explicit dependencies (for testing).
func NewEngineWithDeps(deps EngineDeps) *Engine {
	e := &Engine{
		store: deps.Store,
		gen:   deps.Generator,
		ids:   deps.IDs,
		now:   deps.Now,
	}
	if e.ids == nil {
		e.ids = NewIDGenerator()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// today returns the current date truncated to day granularity.
func (e *Engine) today() time.Time {
	year, month, day := e.now().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
