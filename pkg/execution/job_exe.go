package execution

import (
	"fmt"
	"strings"
	"sync"

	"github.com/harborline/stevedore/pkg/types"
)

// Task type suffixes used to build task IDs. A task ID is
// "<exe id>_<task type>"; exe IDs never contain an underscore.
const (
	TaskTypePre  = "pre"
	TaskTypeMain = "main"
	TaskTypePost = "post"
)

// RunningJobExe is a job execution that has been scheduled onto a node.
// Its task list is finite, ordered, and known at schedule time. At most
// one task is outstanding on the driver at any time and the task index
// only moves forward.
type RunningJobExe struct {
	mu sync.Mutex

	ID        string
	JobTypeID string
	NodeID    string
	// AgentID is the agent identity at schedule time.
	AgentID string

	tasks       []*types.Task
	next        int
	outstanding string
	failed      bool

	workspacePaths []string
	containerName  string
}

// NewRunningJobExe creates a running execution with its pre-computed
// task list and cleanup requirements.
func NewRunningJobExe(id, jobTypeID, nodeID, agentID string, tasks []*types.Task,
	workspacePaths []string, containerName string) *RunningJobExe {
	return &RunningJobExe{
		ID:             id,
		JobTypeID:      jobTypeID,
		NodeID:         nodeID,
		AgentID:        agentID,
		tasks:          tasks,
		workspacePaths: workspacePaths,
		containerName:  containerName,
	}
}

// TaskID builds the broker task ID for the given execution and task
// type.
func TaskID(exeID, taskType string) string {
	return fmt.Sprintf("%s_%s", exeID, taskType)
}

// ExeIDFromTaskID extracts the execution ID from a task ID, or false if
// the ID is not in the expected form.
func ExeIDFromTaskID(taskID string) (string, bool) {
	idx := strings.LastIndex(taskID, "_")
	if idx <= 0 {
		return "", false
	}
	return taskID[:idx], true
}

// NextTaskResources peeks at the resources the next task needs. It
// returns false when no task is ready: a task is still outstanding, the
// task list is exhausted, or the execution has failed.
func (e *RunningJobExe) NextTaskResources() (types.Resources, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.outstanding != "" || e.failed || e.next >= len(e.tasks) {
		return types.Resources{}, false
	}
	return e.tasks[e.next].Resources, true
}

// StartNextTask returns the next task to launch and marks it as
// outstanding. Returns nil when no task is ready.
func (e *RunningJobExe) StartNextTask() *types.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.outstanding != "" || e.failed || e.next >= len(e.tasks) {
		return nil
	}
	task := e.tasks[e.next]
	e.next++
	e.outstanding = task.ID
	return task
}

// HandleTaskUpdate applies a status update for this execution's
// outstanding task. It returns true when the update is terminal for the
// whole execution (all tasks finished, or a task failed or was lost).
func (e *RunningJobExe) HandleTaskUpdate(update types.TaskStatusUpdate) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if update.TaskID != e.outstanding {
		// Stale update for a task already resolved
		return false
	}

	switch update.Status {
	case types.TaskStaged, types.TaskRunning:
		return false
	case types.TaskFinished:
		e.outstanding = ""
		return e.next >= len(e.tasks)
	case types.TaskFailed, types.TaskKilled, types.TaskLost:
		e.outstanding = ""
		e.failed = true
		return true
	}
	return false
}

// IsFinished reports whether every task has run to completion.
func (e *RunningJobExe) IsFinished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.failed && e.outstanding == "" && e.next >= len(e.tasks)
}

// IsFailed reports whether a task failure ended this execution.
func (e *RunningJobExe) IsFailed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failed
}

// CleanupRequirements returns the workspace paths to delete and the
// container name to remove once this execution completes.
func (e *RunningJobExe) CleanupRequirements() ([]string, string) {
	paths := make([]string, len(e.workspacePaths))
	copy(paths, e.workspacePaths)
	return paths, e.containerName
}
