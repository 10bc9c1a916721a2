package offers

import (
	"sort"
	"sync"

	"github.com/harborline/stevedore/pkg/execution"
	"github.com/harborline/stevedore/pkg/types"
)

// Decision is the result of an admission query.
type Decision int

const (
	Rejected Decision = iota
	Accepted
)

// Manager accumulates resource offers per node and answers admission
// queries for queued and running job executions. Offers land in a new
// buffer first and only become visible to admission after
// ReadyNewOffers. Reservations survive exactly one round: they either
// ride out as a launch or are thrown away by a pop. The manager never
// retries internally. All methods are safe for concurrent use.
type Manager struct {
	mu        sync.Mutex
	newOffers map[string]types.Offer
	nodes     map[string]*NodeOffers
}

// NewManager creates an empty offer manager.
func NewManager() *Manager {
	return &Manager{
		newOffers: make(map[string]types.Offer),
		nodes:     make(map[string]*NodeOffers),
	}
}

// UpdateNodes synchronizes the per-node slots with the given node
// snapshot. Nodes that disappeared release their held offers; the
// returned offer IDs must be declined by the caller.
func (m *Manager) UpdateNodes(nodes []types.Node) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := make(map[string]types.Node, len(nodes))
	for _, node := range nodes {
		current[node.ID] = node
	}

	var declined []string
	for nodeID, slot := range m.nodes {
		node, ok := current[nodeID]
		if !ok {
			declined = append(declined, slot.OfferIDs()...)
			delete(m.nodes, nodeID)
			continue
		}
		slot.node = node
	}
	for nodeID, node := range current {
		if _, ok := m.nodes[nodeID]; !ok {
			m.nodes[nodeID] = newNodeOffers(node)
		}
	}
	return declined
}

// AddOffers places offers into the new buffer. They are not visible to
// admission until ReadyNewOffers is called.
func (m *Manager) AddOffers(offers []types.Offer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, offer := range offers {
		m.newOffers[offer.ID] = offer
	}
}

// ReadyNewOffers atomically merges the new buffer into the per-node
// active sets, summing resources. Offers for nodes the manager does not
// know are returned for decline.
func (m *Manager) ReadyNewOffers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var declined []string
	for id, offer := range m.newOffers {
		slot, ok := m.nodes[offer.NodeID]
		if !ok {
			declined = append(declined, id)
			delete(m.newOffers, id)
			continue
		}
		slot.addOffer(offer)
		delete(m.newOffers, id)
	}
	return declined
}

// ConsiderNewJobExe evaluates a queued execution for placement. The
// execution is accepted when at least one node passes the node-level
// filters and has sufficient availability; among qualifying nodes the
// one leaving the largest post-reservation slack wins (memory, then
// cpu, then node ID for determinism). On acceptance the execution is
// bound to the node and its resources are reserved.
func (m *Manager) ConsiderNewJobExe(qe *types.QueuedJobExe) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	required := qe.RequiredResources
	var best *NodeOffers
	var bestSlack types.Resources
	for _, slot := range m.nodes {
		if !slot.node.IsOnline || slot.node.IsPaused || !slot.hasOffers() {
			continue
		}
		if !required.FitsWithin(slot.available) {
			continue
		}
		slack := slot.available.Subtract(required)
		if best == nil || betterSlack(slack, slot.node.ID, bestSlack, best.node.ID) {
			best = slot
			bestSlack = slack
		}
	}
	if best == nil {
		return Rejected
	}

	qe.Accepted(best.node.ID, best.node.AgentID, required)
	best.acceptedNew = append(best.acceptedNew, qe)
	best.reserve(required)
	return Accepted
}

// betterSlack reports whether slack a on node aID beats slack b on node
// bID under best-fit-descending ordering.
func betterSlack(a types.Resources, aID string, b types.Resources, bID string) bool {
	if a.MemMB != b.MemMB {
		return a.MemMB > b.MemMB
	}
	if a.Cpus != b.Cpus {
		return a.Cpus > b.Cpus
	}
	return aID < bID
}

// ConsiderNextTask peeks the running execution's next task and reserves
// its resources on the execution's already-bound node when they fit.
func (m *Manager) ConsiderNextTask(re *execution.RunningJobExe) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.nodes[re.NodeID]
	if !ok {
		return Rejected
	}
	required, ok := re.NextTaskResources()
	if !ok {
		return Rejected
	}
	if !slot.hasOffers() || !required.FitsWithin(slot.available) {
		return Rejected
	}

	slot.acceptedRunning = append(slot.acceptedRunning, re)
	slot.reserve(required)
	return Accepted
}

// ConsiderCleanupTask reserves the cleanup task's resources on the
// given node when they fit.
func (m *Manager) ConsiderCleanupTask(nodeID string, task *types.Task) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.nodes[nodeID]
	if !ok {
		return Rejected
	}
	if !slot.hasOffers() || !task.Resources.FitsWithin(slot.available) {
		return Rejected
	}

	slot.acceptedCleanup = append(slot.acceptedCleanup, task)
	slot.reserve(task.Resources)
	return Accepted
}

// PopOffersWithAcceptedJobExes returns and clears only the node entries
// that accumulated at least one accepted execution or task. The
// returned groups are sorted by node ID for deterministic launching.
func (m *Manager) PopOffersWithAcceptedJobExes() []*NodeOffers {
	m.mu.Lock()
	defer m.mu.Unlock()

	var popped []*NodeOffers
	for nodeID, slot := range m.nodes {
		if !slot.hasAccepted() {
			continue
		}
		popped = append(popped, slot)
		m.nodes[nodeID] = newNodeOffers(slot.node)
	}
	sortByNodeID(popped)
	return popped
}

// PopAllOffers returns and clears every node entry that holds at least
// one offer. Used when the round produced no schedule; the caller
// declines everything returned.
func (m *Manager) PopAllOffers() []*NodeOffers {
	m.mu.Lock()
	defer m.mu.Unlock()

	var popped []*NodeOffers
	for nodeID, slot := range m.nodes {
		if !slot.hasOffers() {
			continue
		}
		popped = append(popped, slot)
		m.nodes[nodeID] = newNodeOffers(slot.node)
	}
	sortByNodeID(popped)
	return popped
}

func sortByNodeID(groups []*NodeOffers) {
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].node.ID < groups[j].node.ID
	})
}
