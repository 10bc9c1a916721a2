/*
Package types defines the core data structures used throughout
Stevedore.

This package contains the fundamental records of the domain model:
nodes and their agent identities, resource offers, broker tasks, queued
job executions, job types, and the ingest records (strikes, scans,
ingests) produced by the ingest subsystem.

All types are plain data. Managers that own mutable state live in their
own packages (offers, cleanup, execution, nodes) and hand out defensive
copies of these records; consumers must never mutate a snapshot they
were given.

Key invariants encoded here:

  - Node.ID is immutable for the lifetime of the worker, while
    Node.AgentID churns whenever the broker agent re-registers.
  - Offers are immutable after receipt and referenced by at most one
    node slot at a time.
  - A Task ID is launched at most once; re-sending is forbidden.
  - An Ingest belongs to either a strike or a scan, never both.
*/
package types
