// Package app provides the application service layer.
//
// Orchestrates the vote-integrity use cases: fingerprinting, quota checks,
// vote-pattern screening, delta computation and counter updates, plus
// fire-and-forget view/copy tracking. Depends on domain interfaces, not on
// concrete stores.
package app
