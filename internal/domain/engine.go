package domain

import (
	"fmt"
	"log/slog"
)

// Engine estimates damage percentages for field samples. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	tables *TableStore
	router StageRouter
	logger *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithStrictStages makes unmapped stage codes unroutable instead of falling
// back to the crop default.
func WithStrictStages(strict bool) EngineOption {
	return func(e *Engine) { e.router.Strict = strict }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an Engine over the given tables. A nil store uses the
// embedded tables.
func NewEngine(tables *TableStore, opts ...EngineOption) *Engine {
	if tables == nil {
		tables = DefaultTables()
	}
	e := &Engine{tables: tables, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Assessment is a damage estimate together with how it was reached.
type Assessment struct {
	Crop       Crop     `json:"crop"`
	Stage      Stage    `json:"stage"`
	Fallback   bool     `json:"fallback,omitempty"`
	Damage     Result   `json:"damage"`
	Factors    []Factor `json:"factors,omitempty"`
	Diagnostic string   `json:"diagnostic,omitempty"`
}

// Estimate returns the damage percentage of a sample. It never fails: an
// unroutable stage or an internal error yields Percentage(0).
func (e *Engine) Estimate(m Measurement, stageCode, crop string) Result {
	return e.Assess(m, stageCode, crop).Damage
}

// Assess is Estimate with the routed stage and the per-factor breakdown.
// Diagnostic is set whenever the result is a substitute for a real estimate.
func (e *Engine) Assess(m Measurement, stageCode, crop string) (a Assessment) {
	c := ParseCrop(crop)
	a.Crop = c

	defer func() {
		if r := recover(); r != nil {
			a.Damage = Percentage(0)
			a.Factors = nil
			a.Diagnostic = fmt.Sprintf("internal error: %v", r)
			e.logger.Error("damage estimate panicked",
				"crop", c,
				"stage_code", stageCode,
				"panic", r,
			)
		}
	}()

	stage, fallback, err := e.router.Route(c, stageCode)
	if err != nil {
		a.Diagnostic = err.Error()
		e.logger.Warn("stage not routable",
			"crop", c,
			"stage_code", stageCode,
			"error", err,
		)
		return a
	}
	a.Stage = stage
	a.Fallback = fallback
	if fallback {
		e.logger.Warn("unmapped stage code, using crop default",
			"crop", c,
			"stage_code", stageCode,
			"stage", stage.Label,
		)
	}

	formula, ok := FormulaFor(stage.Group)
	if !ok {
		a.Diagnostic = fmt.Sprintf("no formula for group %s", stage.Group)
		e.logger.Error("missing formula", "group", stage.Group)
		return a
	}

	result, factors := formula.Evaluate(m, stage.Label, e.tables)
	a.Damage = result.clamped()
	a.Factors = factors
	return a
}

// Router returns the stage router the engine routes with.
func (e *Engine) Router() StageRouter {
	return e.router
}
