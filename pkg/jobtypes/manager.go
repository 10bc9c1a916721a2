package jobtypes

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/harborline/stevedore/pkg/log"
	"github.com/harborline/stevedore/pkg/persistence"
	"github.com/harborline/stevedore/pkg/types"
)

// Manager caches job type definitions for the scheduling loop. The loop
// takes one snapshot per round so a mid-round pause cannot split a
// batch.
type Manager struct {
	mu       sync.RWMutex
	jobTypes map[string]types.JobType
	logger   zerolog.Logger
}

// NewManager returns an empty manager. Call Sync before the first
// scheduling round.
func NewManager() *Manager {
	return &Manager{
		jobTypes: make(map[string]types.JobType),
		logger:   log.WithComponent("jobtypes"),
	}
}

// Sync reloads all job type definitions from the store.
func (m *Manager) Sync(store persistence.Store) error {
	jobTypes, err := store.ListJobTypes()
	if err != nil {
		return err
	}

	fresh := make(map[string]types.JobType, len(jobTypes))
	for _, jt := range jobTypes {
		fresh[jt.ID] = jt
	}

	m.mu.Lock()
	m.jobTypes = fresh
	m.mu.Unlock()

	m.logger.Debug().Int("count", len(fresh)).Msg("Synced job types")
	return nil
}

// Snapshot returns a point-in-time copy of the job type table keyed by
// job type ID.
func (m *Manager) Snapshot() map[string]types.JobType {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[string]types.JobType, len(m.jobTypes))
	for id, jt := range m.jobTypes {
		snapshot[id] = jt
	}
	return snapshot
}

// Get returns the job type with the given ID from the cache.
func (m *Manager) Get(id string) (types.JobType, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jt, ok := m.jobTypes[id]
	return jt, ok
}
