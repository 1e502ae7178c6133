// Package memory provides in-process implementations of the rate limiter and
// counter store. State is lost on restart and not shared between replicas, so
// these back local development and tests.
package memory
