package persistence

import (
	"time"

	"github.com/harborline/stevedore/pkg/execution"
	"github.com/harborline/stevedore/pkg/types"
)

// IngestFilter narrows ingest listings. Nil/empty fields match
// everything.
type IngestFilter struct {
	Started   *time.Time
	Ended     *time.Time
	Statuses  []types.IngestStatus
	StrikeIDs []string
	ScanIDs   []string
	FileName  string
}

// Store is the narrow repository interface the scheduler core and the
// ingest subsystem depend on. The core never assumes a particular query
// language; schemas are owned by the implementations.
type Store interface {
	// GetQueue returns the queued job executions in priority order.
	GetQueue() ([]*types.QueuedJobExe, error)

	// Enqueue places a new job execution on the queue.
	Enqueue(qe *types.QueuedJobExe) error

	// ScheduleJobExecutions atomically transitions every queued
	// execution in the batch to RUNNING and returns the resulting
	// running executions with their task lists built. Either the whole
	// batch transitions or the call fails with no state change.
	// Transient failures are retryable; use IsTransient.
	ScheduleJobExecutions(batch []*types.QueuedJobExe) ([]*execution.RunningJobExe, error)

	// QueueNewJob creates a job of the given type, records the trigger
	// event, and places an execution on the queue.
	QueueNewJob(jobType *types.JobType, data types.JobData, event *types.TriggerEvent) (*types.Job, error)

	// Job types
	CreateJobType(jt *types.JobType) error
	GetJobType(name, version string) (*types.JobType, error)
	ListJobTypes() ([]types.JobType, error)

	// Strike processes
	CreateStrike(strike *types.Strike) error
	GetStrike(id string) (*types.Strike, error)
	ListStrikes(started, ended *time.Time, names []string) ([]*types.Strike, error)
	UpdateStrike(strike *types.Strike) error

	// Scan processes
	CreateScan(scan *types.Scan) error
	GetScan(id string) (*types.Scan, error)
	ListScans(started, ended *time.Time, names []string) ([]*types.Scan, error)
	UpdateScan(scan *types.Scan) error

	// Ingests
	CreateIngest(ingest *types.Ingest) error
	UpdateIngest(ingest *types.Ingest) error
	ListIngests(filter IngestFilter) ([]*types.Ingest, error)
	GetIngestsByScan(scanID string, fileNames []string) ([]*types.Ingest, error)

	Close() error
}
