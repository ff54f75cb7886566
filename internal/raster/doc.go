// Package raster owns the elevation grid model and the bilinear sampler.
//
// Responsibilities: grid validation, world-to-index mapping, interpolated
// elevation sampling at arbitrary world coordinates, and ESRI ASCII grid
// encoding for command-line tooling.
// Key types: Grid, Transform, Sampler, Sample.
//
// Dependency rule: raster never depends on viewshed. Every algorithm that
// needs terrain access builds on the read-only view exposed here.
package raster
