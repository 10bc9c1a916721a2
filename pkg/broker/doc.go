// Package broker defines the outbound driver interface to the cluster
// resource broker and the dispatcher that routes its asynchronous
// callbacks (offers, status updates, timeouts, lost agents) into the
// scheduler's managers.
package broker
