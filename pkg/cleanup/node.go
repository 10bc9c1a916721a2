package cleanup

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/harborline/stevedore/pkg/types"
)

// taskIDPrefix marks broker task IDs owned by the cleanup manager.
const taskIDPrefix = "cleanup_"

// Resource footprint of a cleanup task. Deleting workspace files and
// removing a container is cheap.
var taskResources = types.Resources{Cpus: 0.1, MemMB: 32, DiskMB: 0}

// IsCleanupTask reports whether the task ID belongs to a cleanup task.
func IsCleanupTask(taskID string) bool {
	return strings.HasPrefix(taskID, taskIDPrefix)
}

// entry is the cleanup work left behind by one finished job execution.
type entry struct {
	exeID          string
	workspacePaths []string
	containerName  string
}

// inFlight tracks the single cleanup task currently outstanding on a
// node and the queue entries it drained.
type inFlight struct {
	task    *types.Task
	entries []*entry
}

// nodeCleanup is the per-node cleanup queue plus the zero-or-one
// in-flight task descriptor.
type nodeCleanup struct {
	node     types.Node
	entries  []*entry
	outbound *inFlight
}

func newNodeCleanup(node types.Node) *nodeCleanup {
	return &nodeCleanup{node: node}
}

// nextTask synthesizes the next cleanup task for this node, draining up
// to maxEntries queue entries into a single task. Returns nil when a
// task is already in flight or the queue is empty.
func (n *nodeCleanup) nextTask(maxEntries int) *types.Task {
	if n.outbound != nil || len(n.entries) == 0 {
		return nil
	}

	count := len(n.entries)
	if count > maxEntries {
		count = maxEntries
	}
	drained := n.entries[:count]
	n.entries = n.entries[count:]

	task := &types.Task{
		ID:        taskIDPrefix + uuid.New().String(),
		Name:      fmt.Sprintf("cleanup %s", n.node.Hostname),
		AgentID:   n.node.AgentID,
		Resources: taskResources,
		Payload:   buildPayload(drained),
	}
	n.outbound = &inFlight{task: task, entries: drained}
	return task
}

// buildPayload renders the shell commands that delete workspace files
// and remove containers for the drained entries.
func buildPayload(entries []*entry) string {
	var cmds []string
	for _, e := range entries {
		for _, path := range e.workspacePaths {
			cmds = append(cmds, fmt.Sprintf("rm -rf %s", path))
		}
		if e.containerName != "" {
			cmds = append(cmds, fmt.Sprintf("docker rm %s", e.containerName))
		}
	}
	return strings.Join(cmds, " && ")
}

// handleUpdate applies a status update for this node's in-flight task.
func (n *nodeCleanup) handleUpdate(update types.TaskStatusUpdate) {
	if n.outbound == nil || n.outbound.task.ID != update.TaskID {
		return
	}

	switch update.Status {
	case types.TaskStaged, types.TaskRunning:
		// Still in progress
	case types.TaskFinished:
		n.outbound = nil
	case types.TaskFailed, types.TaskKilled, types.TaskLost:
		n.requeueOutbound()
	}
}

// requeueOutbound puts the in-flight task's entries back at the front
// of the queue so they are retried by the next synthesized task.
func (n *nodeCleanup) requeueOutbound() {
	if n.outbound == nil {
		return
	}
	n.entries = append(n.outbound.entries, n.entries...)
	n.outbound = nil
}
