// Package scheduler implements the scheduling loop. Each round
// refreshes the node view, readies buffered offers, considers running
// executions before cleanup tasks before queued executions, persists
// the admitted batch atomically, and launches tasks grouped by node.
package scheduler
