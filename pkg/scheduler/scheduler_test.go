package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/stevedore/pkg/cleanup"
	"github.com/harborline/stevedore/pkg/config"
	"github.com/harborline/stevedore/pkg/events"
	"github.com/harborline/stevedore/pkg/execution"
	"github.com/harborline/stevedore/pkg/jobtypes"
	"github.com/harborline/stevedore/pkg/nodes"
	"github.com/harborline/stevedore/pkg/offers"
	"github.com/harborline/stevedore/pkg/persistence"
	"github.com/harborline/stevedore/pkg/types"
)

// fakeDriver records launches and declines.
type fakeDriver struct {
	mu       sync.Mutex
	launched []*types.Task
	declined []string
}

func (d *fakeDriver) LaunchTasks(offerIDs []string, tasks []*types.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.launched = append(d.launched, tasks...)
	return nil
}

func (d *fakeDriver) DeclineOffer(offerID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.declined = append(d.declined, offerID)
	return nil
}

func (d *fakeDriver) launchedTasks() []*types.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*types.Task(nil), d.launched...)
}

func (d *fakeDriver) declinedOffers() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.declined...)
}

// fakeStore implements persistence.Store in memory with failure
// injection for the schedule call.
type fakeStore struct {
	mu            sync.Mutex
	queue         []*types.QueuedJobExe
	jobTypes      map[string]types.JobType
	scheduleFails int
	scheduleCalls int
	failWith      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobTypes: make(map[string]types.JobType)}
}

func (s *fakeStore) addJobType(jt types.JobType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobTypes[jt.ID] = jt
}

func (s *fakeStore) enqueue(qe *types.QueuedJobExe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, qe)
}

func (s *fakeStore) GetQueue() ([]*types.QueuedJobExe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.QueuedJobExe(nil), s.queue...), nil
}

func (s *fakeStore) Enqueue(qe *types.QueuedJobExe) error {
	s.enqueue(qe)
	return nil
}

func (s *fakeStore) ScheduleJobExecutions(batch []*types.QueuedJobExe) ([]*execution.RunningJobExe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scheduleCalls++
	if s.scheduleFails > 0 {
		s.scheduleFails--
		if s.failWith != nil {
			return nil, s.failWith
		}
		return nil, fmt.Errorf("connection reset: %w", persistence.ErrTransient)
	}

	var scheduled []*execution.RunningJobExe
	for _, qe := range batch {
		jt, ok := s.jobTypes[qe.JobTypeID]
		if !ok {
			return nil, persistence.ErrNotFound
		}
		exeID := uuid.New().String()
		tasks := execution.BuildTasks(exeID, qe.ProvidedAgentID, jt, qe.ConfigurationRef, nil)
		scheduled = append(scheduled, execution.NewRunningJobExe(
			exeID, jt.ID, qe.ProvidedNodeID, qe.ProvidedAgentID, tasks, nil, ""))

		for i, queued := range s.queue {
			if queued.QueueID == qe.QueueID {
				s.queue = append(s.queue[:i], s.queue[i+1:]...)
				break
			}
		}
	}
	return scheduled, nil
}

func (s *fakeStore) QueueNewJob(jobType *types.JobType, data types.JobData, event *types.TriggerEvent) (*types.Job, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) CreateJobType(jt *types.JobType) error { s.addJobType(*jt); return nil }
func (s *fakeStore) GetJobType(name, version string) (*types.JobType, error) {
	return nil, persistence.ErrNotFound
}
func (s *fakeStore) ListJobTypes() ([]types.JobType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []types.JobType
	for _, jt := range s.jobTypes {
		list = append(list, jt)
	}
	return list, nil
}

func (s *fakeStore) CreateStrike(*types.Strike) error          { return nil }
func (s *fakeStore) GetStrike(string) (*types.Strike, error)   { return nil, persistence.ErrNotFound }
func (s *fakeStore) UpdateStrike(*types.Strike) error          { return nil }
func (s *fakeStore) CreateScan(*types.Scan) error              { return nil }
func (s *fakeStore) GetScan(string) (*types.Scan, error)       { return nil, persistence.ErrNotFound }
func (s *fakeStore) UpdateScan(*types.Scan) error              { return nil }
func (s *fakeStore) CreateIngest(*types.Ingest) error          { return nil }
func (s *fakeStore) UpdateIngest(*types.Ingest) error          { return nil }
func (s *fakeStore) Close() error                              { return nil }
func (s *fakeStore) ListStrikes(started, ended *time.Time, names []string) ([]*types.Strike, error) {
	return nil, nil
}
func (s *fakeStore) ListScans(started, ended *time.Time, names []string) ([]*types.Scan, error) {
	return nil, nil
}
func (s *fakeStore) ListIngests(persistence.IngestFilter) ([]*types.Ingest, error) { return nil, nil }
func (s *fakeStore) GetIngestsByScan(string, []string) ([]*types.Ingest, error)    { return nil, nil }

type fixture struct {
	sched      *Scheduler
	store      *fakeStore
	driver     *fakeDriver
	registry   *nodes.Registry
	offerMgr   *offers.Manager
	cleanupMgr *cleanup.Manager
	exeMgr     *execution.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newFakeStore()
	driver := &fakeDriver{}
	registry := nodes.NewRegistry()
	offerMgr := offers.NewManager()
	cleanupMgr := cleanup.NewManager()
	exeMgr := execution.NewManager()
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	cfg := config.SchedulerConfig{
		Delay:                      time.Millisecond,
		MaxNewJobExes:              500,
		ScheduleLoopWarnThreshold:  time.Second,
		ScheduleQueryWarnThreshold: 100 * time.Millisecond,
		Retry: config.RetryConfig{
			MaxTries:  3,
			BaseDelay: time.Millisecond,
			MaxDelay:  5 * time.Millisecond,
		},
	}
	sched := New(cfg, store, driver, registry, offerMgr, cleanupMgr, exeMgr,
		jobtypes.NewManager(), broker)
	return &fixture{
		sched:      sched,
		store:      store,
		driver:     driver,
		registry:   registry,
		offerMgr:   offerMgr,
		cleanupMgr: cleanupMgr,
		exeMgr:     exeMgr,
	}
}

func (f *fixture) addNode(id string, cpus, memMB float64) {
	node := types.Node{ID: id, AgentID: "agent-" + id, Hostname: id, IsOnline: true}
	f.registry.UpdateFromSnapshot(append(f.registry.GetNodes(), node))
	f.offerMgr.AddOffers([]types.Offer{{
		ID:        "offer-" + id,
		NodeID:    id,
		AgentID:   "agent-" + id,
		Resources: types.Resources{Cpus: cpus, MemMB: memMB, DiskMB: 10240},
	}})
}

func (f *fixture) addJobType(id string, paused bool) types.JobType {
	jt := types.JobType{
		ID:        id,
		Name:      id,
		Version:   "1.0",
		IsPaused:  paused,
		Resources: types.Resources{Cpus: 1, MemMB: 512},
	}
	f.store.addJobType(jt)
	return jt
}

func (f *fixture) enqueue(queueID int64, jobTypeID string) *types.QueuedJobExe {
	qe := &types.QueuedJobExe{
		QueueID:           queueID,
		JobTypeID:         jobTypeID,
		Priority:          100,
		RequiredResources: types.Resources{Cpus: 1, MemMB: 512},
	}
	f.store.enqueue(qe)
	return qe
}

// TestRoundSchedulesQueuedExecution tests the happy path: a queued
// execution lands on a node and its pre task launches
func TestRoundSchedulesQueuedExecution(t *testing.T) {
	f := newFixture(t)
	f.addNode("n1", 4, 4096)
	f.addJobType("jt-1", false)
	f.enqueue(1, "jt-1")

	launched := f.sched.performScheduling()
	assert.Equal(t, 1, launched)

	tasks := f.driver.launchedTasks()
	require.Len(t, tasks, 1)
	assert.Contains(t, tasks[0].ID, "_pre")
	assert.Equal(t, "agent-n1", tasks[0].AgentID)

	// The execution is now tracked and the queue is empty
	assert.Equal(t, 1, f.exeMgr.Count())
	queue, _ := f.store.GetQueue()
	assert.Empty(t, queue)
}

// TestIdleRoundProducesNothing tests a round with offers but no work
func TestIdleRoundProducesNothing(t *testing.T) {
	f := newFixture(t)
	f.addNode("n1", 4, 4096)

	launched := f.sched.performScheduling()
	assert.Equal(t, 0, launched)
	assert.Empty(t, f.driver.launchedTasks())
}

// TestRunningExecutionGetsNextTask tests that a running execution's
// next task is considered before queued work
func TestRunningExecutionGetsNextTask(t *testing.T) {
	f := newFixture(t)
	f.addNode("n1", 1.25, 1024)
	jt := f.addJobType("jt-1", false)
	f.enqueue(1, "jt-1")

	// A running execution bound to n1 whose pre task already finished
	tasks := execution.BuildTasks("exe-run", "agent-n1", jt, "cfg", nil)
	exe := execution.NewRunningJobExe("exe-run", "jt-1", "n1", "agent-n1", tasks, nil, "")
	pre := exe.StartNextTask()
	require.NotNil(t, pre)
	exe.HandleTaskUpdate(types.TaskStatusUpdate{TaskID: pre.ID, Status: types.TaskFinished})
	f.exeMgr.AddJobExes([]*execution.RunningJobExe{exe})

	launched := f.sched.performScheduling()

	// The main task (1 cpu) consumed the offer; the queued exe (1 cpu)
	// no longer fit beside it
	require.Equal(t, 1, launched)
	tasks2 := f.driver.launchedTasks()
	require.Len(t, tasks2, 1)
	assert.Equal(t, "exe-run_main", tasks2[0].ID)
	queue, _ := f.store.GetQueue()
	assert.Len(t, queue, 1)
}

// TestPausedSchedulerSkipsQueue tests the pause gate
func TestPausedSchedulerSkipsQueue(t *testing.T) {
	f := newFixture(t)
	f.addNode("n1", 4, 4096)
	f.addJobType("jt-1", false)
	f.enqueue(1, "jt-1")

	f.sched.Pause()
	assert.True(t, f.sched.IsPaused())
	launched := f.sched.performScheduling()
	assert.Equal(t, 0, launched)
	assert.Equal(t, 0, f.store.scheduleCalls)

	f.sched.Resume()
	// Re-adding the same offer is a no-op; the node still has capacity
	f.addNode("n1", 4, 4096)
	launched = f.sched.performScheduling()
	assert.Equal(t, 1, launched)
}

// TestPausedJobTypeSkipped tests that paused and unknown job types are
// never scheduled
func TestPausedJobTypeSkipped(t *testing.T) {
	f := newFixture(t)
	f.addNode("n1", 4, 4096)
	f.addJobType("jt-paused", true)
	f.enqueue(1, "jt-paused")
	f.enqueue(2, "jt-ghost")

	launched := f.sched.performScheduling()
	assert.Equal(t, 0, launched)
	queue, _ := f.store.GetQueue()
	assert.Len(t, queue, 2)
}

// TestMaxNewJobExesCap tests the per-round admission cap
func TestMaxNewJobExesCap(t *testing.T) {
	f := newFixture(t)
	f.addNode("n1", 100, 102400)
	f.addJobType("jt-1", false)
	for i := int64(1); i <= 5; i++ {
		f.enqueue(i, "jt-1")
	}
	f.sched.cfg.MaxNewJobExes = 3

	launched := f.sched.performScheduling()
	assert.Equal(t, 3, launched)
	queue, _ := f.store.GetQueue()
	assert.Len(t, queue, 2)
}

// TestTransientFailureRetried tests the retry envelope around the
// schedule call
func TestTransientFailureRetried(t *testing.T) {
	f := newFixture(t)
	f.addNode("n1", 4, 4096)
	f.addJobType("jt-1", false)
	f.enqueue(1, "jt-1")
	f.store.scheduleFails = 2

	launched := f.sched.performScheduling()
	assert.Equal(t, 1, launched)
	assert.Equal(t, 3, f.store.scheduleCalls)
}

// TestPersistentFailureAbandonsAdmissions tests that exhausted retries
// leave the queue intact and decline the node's offers
func TestPersistentFailureAbandonsAdmissions(t *testing.T) {
	f := newFixture(t)
	f.addNode("n1", 4, 4096)
	f.addJobType("jt-1", false)
	f.enqueue(1, "jt-1")
	f.store.scheduleFails = 100

	launched := f.sched.performScheduling()
	assert.Equal(t, 0, launched)
	assert.Equal(t, 3, f.store.scheduleCalls, "retries must stop at the configured cap")
	assert.Equal(t, 0, f.exeMgr.Count())

	queue, _ := f.store.GetQueue()
	assert.Len(t, queue, 1)
	assert.Equal(t, []string{"offer-n1"}, f.driver.declinedOffers())
}

// TestNonTransientFailureNotRetried tests that permanent errors fail
// fast
func TestNonTransientFailureNotRetried(t *testing.T) {
	f := newFixture(t)
	f.addNode("n1", 4, 4096)
	f.addJobType("jt-1", false)
	f.enqueue(1, "jt-1")
	f.store.scheduleFails = 1
	f.store.failWith = errors.New("constraint violation")

	launched := f.sched.performScheduling()
	assert.Equal(t, 0, launched)
	assert.Equal(t, 1, f.store.scheduleCalls)
}

// TestCleanupTaskRidesTheRound tests that cleanup work launches
// alongside regular scheduling
func TestCleanupTaskRidesTheRound(t *testing.T) {
	f := newFixture(t)
	f.addNode("n1", 4, 4096)

	// Cleanup managers learn nodes from the round itself; prime it
	f.cleanupMgr.UpdateNodes(f.registry.GetNodes())
	f.cleanupMgr.AddJobExecution(execution.NewRunningJobExe(
		"exe-done", "jt-1", "n1", "agent-n1", nil,
		[]string{"/data/exes/exe-done"}, "stevedore-exe-done"))

	launched := f.sched.performScheduling()
	require.Equal(t, 1, launched)
	tasks := f.driver.launchedTasks()
	require.Len(t, tasks, 1)
	assert.True(t, cleanup.IsCleanupTask(tasks[0].ID))
}

// TestVanishedNodeOffersDeclined tests that offers held for a node
// that left the snapshot are declined
func TestVanishedNodeOffersDeclined(t *testing.T) {
	f := newFixture(t)
	f.addNode("n1", 4, 4096)
	// Make the offer active, then evict the node
	f.sched.performScheduling()
	f.addNode("n1", 4, 4096)
	f.sched.performScheduling()

	f.registry.UpdateFromSnapshot(nil)
	f.sched.performScheduling()

	assert.Contains(t, f.driver.declinedOffers(), "offer-n1")
}

// TestShutdownStopsLoop tests Run/Shutdown lifecycle
func TestShutdownStopsLoop(t *testing.T) {
	f := newFixture(t)

	done := make(chan struct{})
	go func() {
		f.sched.Run()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	f.sched.Shutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduling loop did not stop")
	}
}
