// Package voteclient talks to the rulehub HTTP API and keeps optimistic,
// server-reconciled vote state for rendered items.
package voteclient
