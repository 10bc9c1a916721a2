package nodes

import (
	"sync"

	"github.com/harborline/stevedore/pkg/types"
)

// Registry is the authoritative in-memory mapping of node identity. It
// tracks the stable node ID to node record mapping and the derived
// agent ID to node ID mapping. All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]types.Node
	byAgent map[string]string
}

// NewRegistry creates an empty node registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[string]types.Node),
		byAgent: make(map[string]string),
	}
}

// UpdateFromSnapshot atomically replaces the node set with the given
// snapshot and fully recomputes the agent mapping. Nodes absent from
// the snapshot are evicted; a node re-appearing with a new agent ID is
// honored.
func (r *Registry) UpdateFromSnapshot(nodes []types.Node) {
	byID := make(map[string]types.Node, len(nodes))
	byAgent := make(map[string]string, len(nodes))
	for _, node := range nodes {
		byID[node.ID] = node
		byAgent[node.AgentID] = node.ID
	}

	r.mu.Lock()
	r.byID = byID
	r.byAgent = byAgent
	r.mu.Unlock()
}

// GetNodes returns a snapshot copy of the current node set.
func (r *Registry) GetNodes() []types.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]types.Node, 0, len(r.byID))
	for _, node := range r.byID {
		nodes = append(nodes, node)
	}
	return nodes
}

// GetNode returns the node with the given ID.
func (r *Registry) GetNode(nodeID string) (types.Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, ok := r.byID[nodeID]
	return node, ok
}

// LookupByAgent returns the node ID for the given agent ID, or false if
// the agent is unknown.
func (r *Registry) LookupByAgent(agentID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodeID, ok := r.byAgent[agentID]
	return nodeID, ok
}
