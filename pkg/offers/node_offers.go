package offers

import (
	"github.com/harborline/stevedore/pkg/execution"
	"github.com/harborline/stevedore/pkg/types"
)

// NodeOffers aggregates the active offers for one node together with
// the admission decisions accumulated against them during a round.
// Invariant: available equals the sum of the held offers' resources
// minus everything reserved by accepted work, and never goes negative.
type NodeOffers struct {
	node            types.Node
	offers          map[string]types.Offer
	available       types.Resources
	acceptedNew     []*types.QueuedJobExe
	acceptedRunning []*execution.RunningJobExe
	acceptedCleanup []*types.Task
}

func newNodeOffers(node types.Node) *NodeOffers {
	return &NodeOffers{
		node:   node,
		offers: make(map[string]types.Offer),
	}
}

// Node returns the node this aggregation belongs to.
func (n *NodeOffers) Node() types.Node {
	return n.node
}

// OfferIDs returns the IDs of the offers held for this node.
func (n *NodeOffers) OfferIDs() []string {
	ids := make([]string, 0, len(n.offers))
	for id := range n.offers {
		ids = append(ids, id)
	}
	return ids
}

// Available returns the resources still unreserved on this node.
func (n *NodeOffers) Available() types.Resources {
	return n.available
}

// AcceptedNewJobExes returns the queued executions admitted onto this
// node during the current round.
func (n *NodeOffers) AcceptedNewJobExes() []*types.QueuedJobExe {
	return n.acceptedNew
}

// AcceptedRunningJobExes returns the running executions whose next task
// was admitted onto this node during the current round.
func (n *NodeOffers) AcceptedRunningJobExes() []*execution.RunningJobExe {
	return n.acceptedRunning
}

// AcceptedCleanupTasks returns the cleanup tasks admitted onto this
// node during the current round.
func (n *NodeOffers) AcceptedCleanupTasks() []*types.Task {
	return n.acceptedCleanup
}

func (n *NodeOffers) addOffer(offer types.Offer) {
	if _, ok := n.offers[offer.ID]; ok {
		return
	}
	n.offers[offer.ID] = offer
	n.available = n.available.Add(offer.Resources)
}

func (n *NodeOffers) hasOffers() bool {
	return len(n.offers) > 0
}

func (n *NodeOffers) hasAccepted() bool {
	return len(n.acceptedNew) > 0 || len(n.acceptedRunning) > 0 || len(n.acceptedCleanup) > 0
}

func (n *NodeOffers) reserve(resources types.Resources) {
	n.available = n.available.Subtract(resources)
	if n.available.IsNegative() {
		panic("offer manager: node availability went negative after reservation")
	}
}
