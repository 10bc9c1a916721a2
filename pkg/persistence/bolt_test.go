package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/stevedore/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testJobType(t *testing.T, store *BoltStore) *types.JobType {
	t.Helper()
	jt := &types.JobType{
		Name:      "test-job",
		Version:   "1.0",
		Resources: types.Resources{Cpus: 2, MemMB: 1024, DiskMB: 512},
	}
	require.NoError(t, store.CreateJobType(jt))
	return jt
}

// TestQueueOrdering tests priority-then-FIFO queue ordering
func TestQueueOrdering(t *testing.T) {
	store := newTestStore(t)
	jt := testJobType(t, store)

	for _, priority := range []int{200, 100, 300, 100} {
		qe := &types.QueuedJobExe{
			JobTypeID:         jt.ID,
			Priority:          priority,
			RequiredResources: jt.Resources,
		}
		require.NoError(t, store.Enqueue(qe))
		assert.NotZero(t, qe.QueueID)
	}

	queue, err := store.GetQueue()
	require.NoError(t, err)
	require.Len(t, queue, 4)

	// Lower priority value first; FIFO within a priority
	assert.Equal(t, 100, queue[0].Priority)
	assert.Equal(t, 100, queue[1].Priority)
	assert.Less(t, queue[0].QueueID, queue[1].QueueID)
	assert.Equal(t, 200, queue[2].Priority)
	assert.Equal(t, 300, queue[3].Priority)
}

// TestScheduleJobExecutions tests the atomic queued-to-running
// transition
func TestScheduleJobExecutions(t *testing.T) {
	store := newTestStore(t)
	jt := testJobType(t, store)

	qe := &types.QueuedJobExe{
		JobTypeID:         jt.ID,
		Priority:          100,
		RequiredResources: jt.Resources,
		ConfigurationRef:  "cfg-1",
	}
	require.NoError(t, store.Enqueue(qe))
	qe.Accepted("n1", "a1", jt.Resources)

	exes, err := store.ScheduleJobExecutions([]*types.QueuedJobExe{qe})
	require.NoError(t, err)
	require.Len(t, exes, 1)

	exe := exes[0]
	assert.Equal(t, "n1", exe.NodeID)
	assert.Equal(t, "a1", exe.AgentID)
	assert.Equal(t, jt.ID, exe.JobTypeID)

	// The first launchable task is the pre task
	task := exe.StartNextTask()
	require.NotNil(t, task)
	assert.Contains(t, task.ID, exe.ID)
	assert.Equal(t, "a1", task.AgentID)

	// The queue entry is gone
	queue, err := store.GetQueue()
	require.NoError(t, err)
	assert.Empty(t, queue)
}

// TestScheduleJobExecutionsAtomicFailure tests that a missing queue
// entry fails the whole batch with no state change
func TestScheduleJobExecutionsAtomicFailure(t *testing.T) {
	store := newTestStore(t)
	jt := testJobType(t, store)

	good := &types.QueuedJobExe{JobTypeID: jt.ID, Priority: 100, RequiredResources: jt.Resources}
	require.NoError(t, store.Enqueue(good))
	good.Accepted("n1", "a1", jt.Resources)

	// Never enqueued; simulates another scheduler grabbing it
	missing := &types.QueuedJobExe{QueueID: 9999, JobTypeID: jt.ID, Priority: 100}
	missing.Accepted("n2", "a2", jt.Resources)

	_, err := store.ScheduleJobExecutions([]*types.QueuedJobExe{good, missing})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	// The good entry must still be queued
	queue, err := store.GetQueue()
	require.NoError(t, err)
	assert.Len(t, queue, 1)
}

// TestQueueNewJob tests job creation with its trigger event and queue
// entry
func TestQueueNewJob(t *testing.T) {
	store := newTestStore(t)
	jt := testJobType(t, store)

	var data types.JobData
	data.AddProperty("STRIKE_ID", "strike-1")
	event := &types.TriggerEvent{
		Type:        "strike.created",
		Description: map[string]string{"strike_id": "strike-1"},
		Occurred:    time.Now().UTC(),
	}

	job, err := store.QueueNewJob(jt, data, event)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, jt.ID, job.JobTypeID)
	assert.NotEmpty(t, job.EventID)

	queue, err := store.GetQueue()
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, job.ID, queue[0].ConfigurationRef)
	assert.Equal(t, jt.Resources, queue[0].RequiredResources)
}

// TestJobTypeLookup tests job type storage and name/version lookup
func TestJobTypeLookup(t *testing.T) {
	store := newTestStore(t)
	jt := testJobType(t, store)

	got, err := store.GetJobType("test-job", "1.0")
	require.NoError(t, err)
	assert.Equal(t, jt.ID, got.ID)
	assert.Equal(t, jt.Resources, got.Resources)

	_, err = store.GetJobType("test-job", "2.0")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.ListJobTypes()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// TestStrikeCRUD tests strike persistence and name filtering
func TestStrikeCRUD(t *testing.T) {
	store := newTestStore(t)

	strike := &types.Strike{
		ID:   "strike-1",
		Name: "alpha",
		Configuration: types.StrikeConfiguration{
			MonitorDir:  "/ingest",
			WorkspaceID: "raw",
		},
		Created:      time.Now().UTC(),
		LastModified: time.Now().UTC(),
	}
	require.NoError(t, store.CreateStrike(strike))
	require.NoError(t, store.CreateStrike(&types.Strike{
		ID: "strike-2", Name: "beta",
		Created: time.Now().UTC(), LastModified: time.Now().UTC(),
	}))

	got, err := store.GetStrike("strike-1")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Name)
	assert.Equal(t, "/ingest", got.Configuration.MonitorDir)

	_, err = store.GetStrike("ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	filtered, err := store.ListStrikes(nil, nil, []string{"beta"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "strike-2", filtered[0].ID)

	got.Title = "Alpha Strike"
	require.NoError(t, store.UpdateStrike(got))
	updated, err := store.GetStrike("strike-1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha Strike", updated.Title)
}

// TestScanCRUD tests scan persistence
func TestScanCRUD(t *testing.T) {
	store := newTestStore(t)

	scan := &types.Scan{
		ID:   "scan-1",
		Name: "bucket-scan",
		Configuration: types.ScanConfiguration{
			WorkspaceID: "raw",
			Scanner:     types.ScannerConfig{Type: "s3", Bucket: "my-bucket"},
		},
		Created:      time.Now().UTC(),
		LastModified: time.Now().UTC(),
	}
	require.NoError(t, store.CreateScan(scan))

	got, err := store.GetScan("scan-1")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", got.Configuration.Scanner.Bucket)
	assert.False(t, got.DryRun)

	got.DryRun = true
	got.JobID = "job-1"
	require.NoError(t, store.UpdateScan(got))

	updated, err := store.GetScan("scan-1")
	require.NoError(t, err)
	assert.True(t, updated.DryRun)
	assert.Equal(t, "job-1", updated.JobID)
}

// TestIngestFilters tests ingest listing with filters
func TestIngestFilters(t *testing.T) {
	store := newTestStore(t)

	records := []*types.Ingest{
		{FileName: "a.h5", ScanID: "scan-1", Status: types.IngestTransferred, FileSize: 10},
		{FileName: "b.h5", ScanID: "scan-1", Status: types.IngestIngested, FileSize: 20},
		{FileName: "c.h5", StrikeID: "strike-1", Status: types.IngestIngested, FileSize: 30},
	}
	for _, in := range records {
		require.NoError(t, store.CreateIngest(in))
		assert.NotZero(t, in.ID)
	}

	byScan, err := store.GetIngestsByScan("scan-1", nil)
	require.NoError(t, err)
	assert.Len(t, byScan, 2)

	named, err := store.GetIngestsByScan("scan-1", []string{"b.h5"})
	require.NoError(t, err)
	require.Len(t, named, 1)
	assert.Equal(t, "b.h5", named[0].FileName)

	ingested, err := store.ListIngests(IngestFilter{
		Statuses: []types.IngestStatus{types.IngestIngested},
	})
	require.NoError(t, err)
	assert.Len(t, ingested, 2)

	byStrike, err := store.ListIngests(IngestFilter{StrikeIDs: []string{"strike-1"}})
	require.NoError(t, err)
	require.Len(t, byStrike, 1)
	assert.Equal(t, "c.h5", byStrike[0].FileName)

	// Update round-trips
	rec := byStrike[0]
	rec.Status = types.IngestErrored
	require.NoError(t, store.UpdateIngest(rec))
	errored, err := store.ListIngests(IngestFilter{
		Statuses: []types.IngestStatus{types.IngestErrored},
	})
	require.NoError(t, err)
	assert.Len(t, errored, 1)
}
