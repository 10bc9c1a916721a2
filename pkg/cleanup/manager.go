package cleanup

import (
	"sync"

	"github.com/harborline/stevedore/pkg/execution"
	"github.com/harborline/stevedore/pkg/types"
)

// DefaultMaxEntriesPerTask caps how many finished executions a single
// cleanup task may drain from a node's queue.
const DefaultMaxEntriesPerTask = 25

// NodeTask pairs a synthesized cleanup task with the node it targets.
type NodeTask struct {
	NodeID string
	Task   *types.Task
}

// Manager tracks the per-node queues of cleanup work produced by
// completed job executions. All methods are safe for concurrent
// callers; the critical sections are map lookups and list edits, never
// blocking I/O.
type Manager struct {
	mu                sync.Mutex
	agentIDs          map[string]string
	nodes             map[string]*nodeCleanup
	maxEntriesPerTask int
}

// NewManager creates an empty cleanup manager.
func NewManager() *Manager {
	return &Manager{
		agentIDs:          make(map[string]string),
		nodes:             make(map[string]*nodeCleanup),
		maxEntriesPerTask: DefaultMaxEntriesPerTask,
	}
}

// AddJobExecution queues the execution's cleanup requirements on the
// node it ran on. Fails silently when the node is unknown, since the
// node may have just disappeared from a snapshot.
func (m *Manager) AddJobExecution(exe *execution.RunningJobExe) {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, ok := m.nodes[exe.NodeID]
	if !ok {
		return
	}
	paths, container := exe.CleanupRequirements()
	if len(paths) == 0 && container == "" {
		return
	}
	node.entries = append(node.entries, &entry{
		exeID:          exe.ID,
		workspacePaths: paths,
		containerName:  container,
	})
}

// GetNextTasks synthesizes the next cleanup task for every node that
// has queued work and nothing in flight, and returns them for launch.
func (m *Manager) GetNextTasks() []NodeTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tasks []NodeTask
	for nodeID, node := range m.nodes {
		if task := node.nextTask(m.maxEntriesPerTask); task != nil {
			tasks = append(tasks, NodeTask{NodeID: nodeID, Task: task})
		}
	}
	return tasks
}

// AbandonTask returns a synthesized task that was never launched; its
// entries go back to the front of the node's queue.
func (m *Manager) AbandonTask(task *types.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, node := range m.nodes {
		if node.outbound != nil && node.outbound.task.ID == task.ID {
			node.requeueOutbound()
			return
		}
	}
}

// UpdateNodes updates the manager with the latest node snapshot. The
// agent mapping is fully recomputed because agent IDs churn over time;
// per-node queues are preserved by node ID. Nodes absent from the
// snapshot are evicted along with their queues.
func (m *Manager) UpdateNodes(nodes []types.Node) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.agentIDs = make(map[string]string, len(nodes))
	current := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		current[node.ID] = true
		existing, ok := m.nodes[node.ID]
		if !ok {
			m.nodes[node.ID] = newNodeCleanup(node)
		} else {
			existing.node = node
		}
		m.agentIDs[node.AgentID] = node.ID
	}
	for nodeID := range m.nodes {
		if !current[nodeID] {
			delete(m.nodes, nodeID)
		}
	}
}

// HandleTaskUpdate handles a status update for a cleanup task. Updates
// bearing an agent ID that is no longer mapped are dropped, because
// the agent re-registered since the task launched.
func (m *Manager) HandleTaskUpdate(update types.TaskStatusUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	nodeID, ok := m.agentIDs[update.AgentID]
	if !ok {
		return
	}
	if node, ok := m.nodes[nodeID]; ok {
		node.handleUpdate(update)
	}
}

// HandleTaskTimeout handles the timeout of a cleanup task; the task is
// treated as failed and its entries are requeued.
func (m *Manager) HandleTaskTimeout(task *types.Task) {
	m.HandleTaskUpdate(types.TaskStatusUpdate{
		TaskID:  task.ID,
		AgentID: task.AgentID,
		Status:  types.TaskFailed,
	})
}

// TotalEntries returns the number of queued cleanup entries across all
// nodes, excluding entries drained into in-flight tasks.
func (m *Manager) TotalEntries() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, node := range m.nodes {
		total += len(node.entries)
	}
	return total
}
