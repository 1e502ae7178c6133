// Package domain defines the vote-integrity types and the contracts of the
// stores the application layer depends on.
//
// Concept-oriented files (vote.go, item.go, counters.go, ratelimit.go, errors.go)
// hold value types, pure functions and interfaces. Implementations live in
// internal/app and internal/adapter.
package domain
