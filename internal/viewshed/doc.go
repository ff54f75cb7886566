// Package viewshed computes which cells of an elevation grid are visible
// from a single observer.
//
// Responsibilities: line-of-sight evaluation against interpolated terrain,
// sector sweep scheduling with per-sector horizon tracking, and assembly of
// the visibility-margin output grid.
// Key types: Observer, Evaluator, Config, Result.
//
// Two strategies are available. StrategyExact evaluates every target with a
// full sight profile and is the reference semantics. StrategySweep groups
// targets into angular sectors processed in distance order. Each sector
// keeps an upper bound on the terrain slope nearer than its current target;
// targets that clear it by the full observer height are resolved from the
// bound and the rest get a full profile, so both strategies produce
// identical grids.
//
// Output cells hold the visibility margin of visible targets and NaN for
// targets that are hidden or indeterminate.
package viewshed
