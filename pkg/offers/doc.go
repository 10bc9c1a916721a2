/*
Package offers holds the per-node resource offers received from the
broker and accumulates the admission decisions made against them during
a scheduling round.

Lifecycle of an offer: it arrives in the new buffer via AddOffers,
becomes visible to admission when ReadyNewOffers merges it into its
node's slot, and leaves the manager through exactly one pop path,
either as part of a launch group (PopOffersWithAcceptedJobExes) or as a
decline batch at the end of a barren round (PopAllOffers). No offer ID
is ever returned by both paths.

Admission order within a round matters: running-execution next tasks
are considered before queued executions, so in-flight work has priority
for a node's resources. Tie-breaking for queued executions is
best-fit-descending: the qualifying node left with the most memory
slack after the reservation wins, then cpu slack, then lowest node ID.
*/
package offers
