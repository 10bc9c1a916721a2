// Package events provides an in-process publish/subscribe broker for
// scheduler and ingest lifecycle events.
package events
