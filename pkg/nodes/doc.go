// Package nodes maintains the in-memory registry of worker nodes and
// the mapping from ephemeral broker agent IDs to stable node IDs. The
// registry is rebuilt wholesale from external snapshots; callbacks for
// agents that are no longer in the mapping are dropped by their
// consumers.
package nodes
