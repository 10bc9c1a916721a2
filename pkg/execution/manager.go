package execution

import (
	"sync"

	"github.com/harborline/stevedore/pkg/types"
)

// Manager is the registry of running job executions. Removal is the
// only way an execution leaves the set; requeuing a failed execution is
// a persistence concern, not the manager's.
type Manager struct {
	mu   sync.RWMutex
	exes map[string]*RunningJobExe
}

// NewManager creates an empty running-execution manager.
func NewManager() *Manager {
	return &Manager{
		exes: make(map[string]*RunningJobExe),
	}
}

// AddJobExes registers newly scheduled executions.
func (m *Manager) AddJobExes(exes []*RunningJobExe) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, exe := range exes {
		m.exes[exe.ID] = exe
	}
}

// GetAllJobExes returns the current set of running executions.
func (m *Manager) GetAllJobExes() []*RunningJobExe {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exes := make([]*RunningJobExe, 0, len(m.exes))
	for _, exe := range m.exes {
		exes = append(exes, exe)
	}
	return exes
}

// GetJobExe returns the execution with the given ID.
func (m *Manager) GetJobExe(exeID string) (*RunningJobExe, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exe, ok := m.exes[exeID]
	return exe, ok
}

// Remove drops the execution with the given ID from the set.
func (m *Manager) Remove(exeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.exes, exeID)
}

// Count returns the number of running executions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.exes)
}

// HandleTaskUpdate routes a status update to the owning execution. It
// returns the execution and true when the update was terminal for it;
// the caller removes the execution and hands it to the cleanup manager.
func (m *Manager) HandleTaskUpdate(update types.TaskStatusUpdate) (*RunningJobExe, bool) {
	exeID, ok := ExeIDFromTaskID(update.TaskID)
	if !ok {
		return nil, false
	}

	m.mu.RLock()
	exe, ok := m.exes[exeID]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	terminal := exe.HandleTaskUpdate(update)
	return exe, terminal
}
