/*
Package cleanup tracks the per-node queues of cleanup work left behind
by finished job executions: workspace files to delete and containers to
remove.

Each node has at most one cleanup task in flight. A synthesized task
drains a bounded batch of queue entries; a FINISHED update drops them,
while FAILED, KILLED, LOST, or a timeout puts them back at the front of
the queue for the next attempt.

Status updates are keyed by agent ID. When an agent re-registers, the
mapping is rebuilt on the next node snapshot and updates bearing the
old agent ID are silently dropped; the node's queue survives because it
is keyed by the stable node ID.
*/
package cleanup
