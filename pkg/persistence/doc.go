// Package persistence owns durable state: the job execution queue, job
// types, strike and scan processes, and ingest records. Two backends
// implement the Store interface: an embedded BoltDB store for
// single-binary deployments and a PostgreSQL store for shared setups.
// The atomic queue-to-running transition lives here so the scheduler
// never observes a half-scheduled batch.
package persistence
