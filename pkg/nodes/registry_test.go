package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/stevedore/pkg/types"
)

// TestUpdateFromSnapshot tests the atomic snapshot replacement
func TestUpdateFromSnapshot(t *testing.T) {
	r := NewRegistry()
	r.UpdateFromSnapshot([]types.Node{
		{ID: "n1", AgentID: "a1"},
		{ID: "n2", AgentID: "a2"},
	})

	assert.Len(t, r.GetNodes(), 2)

	node, ok := r.GetNode("n1")
	require.True(t, ok)
	assert.Equal(t, "a1", node.AgentID)

	nodeID, ok := r.LookupByAgent("a2")
	require.True(t, ok)
	assert.Equal(t, "n2", nodeID)
}

// TestSnapshotEvictsAbsentNodes tests that nodes missing from a
// snapshot are removed along with their agent mapping
func TestSnapshotEvictsAbsentNodes(t *testing.T) {
	r := NewRegistry()
	r.UpdateFromSnapshot([]types.Node{
		{ID: "n1", AgentID: "a1"},
		{ID: "n2", AgentID: "a2"},
	})
	r.UpdateFromSnapshot([]types.Node{
		{ID: "n1", AgentID: "a1"},
	})

	_, ok := r.GetNode("n2")
	assert.False(t, ok)
	_, ok = r.LookupByAgent("a2")
	assert.False(t, ok)
}

// TestAgentReRegistration tests that a node re-appearing with a new
// agent ID drops the stale agent mapping
func TestAgentReRegistration(t *testing.T) {
	r := NewRegistry()
	r.UpdateFromSnapshot([]types.Node{{ID: "n1", AgentID: "a1"}})
	r.UpdateFromSnapshot([]types.Node{{ID: "n1", AgentID: "a1-new"}})

	_, ok := r.LookupByAgent("a1")
	assert.False(t, ok)

	nodeID, ok := r.LookupByAgent("a1-new")
	require.True(t, ok)
	assert.Equal(t, "n1", nodeID)
}
