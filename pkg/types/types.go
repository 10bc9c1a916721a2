package types

import (
	"time"
)

// Resources is a bag of schedulable node resources. Memory and disk are
// tracked in megabytes to match what the resource broker advertises.
type Resources struct {
	Cpus   float64
	MemMB  float64
	DiskMB float64
}

// Add returns the componentwise sum of r and other.
func (r Resources) Add(other Resources) Resources {
	return Resources{
		Cpus:   r.Cpus + other.Cpus,
		MemMB:  r.MemMB + other.MemMB,
		DiskMB: r.DiskMB + other.DiskMB,
	}
}

// Subtract returns r minus other componentwise.
func (r Resources) Subtract(other Resources) Resources {
	return Resources{
		Cpus:   r.Cpus - other.Cpus,
		MemMB:  r.MemMB - other.MemMB,
		DiskMB: r.DiskMB - other.DiskMB,
	}
}

// FitsWithin reports whether r fits componentwise within available.
func (r Resources) FitsWithin(available Resources) bool {
	return r.Cpus <= available.Cpus && r.MemMB <= available.MemMB && r.DiskMB <= available.DiskMB
}

// IsNegative reports whether any component has gone below zero. A
// negative availability after a reservation is a programming error.
func (r Resources) IsNegative() bool {
	return r.Cpus < 0 || r.MemMB < 0 || r.DiskMB < 0
}

// Node is a worker node in the cluster. ID is the stable identity
// assigned by persistence; AgentID is the broker agent currently running
// on the node and changes whenever the agent re-registers.
type Node struct {
	ID        string
	AgentID   string
	Hostname  string
	Resources Resources
	IsPaused  bool
	IsOnline  bool
}

// Offer is a short-lived promise of resources on a single node from the
// resource broker. Offers are immutable after receipt.
type Offer struct {
	ID        string
	NodeID    string
	AgentID   string
	Resources Resources
	Received  time.Time
}

// TaskStatus represents the state of a broker task.
type TaskStatus string

const (
	TaskStaged   TaskStatus = "STAGED"
	TaskRunning  TaskStatus = "RUNNING"
	TaskFinished TaskStatus = "FINISHED"
	TaskFailed   TaskStatus = "FAILED"
	TaskKilled   TaskStatus = "KILLED"
	TaskLost     TaskStatus = "LOST"
)

// IsTerminal reports whether the status ends the task's lifecycle.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskFinished, TaskFailed, TaskKilled, TaskLost:
		return true
	}
	return false
}

// Task is a unit of work handed to the broker driver. The scheduler
// treats the payload as opaque; launch is idempotent by task ID and a
// task ID is never re-sent.
type Task struct {
	ID        string
	Name      string
	AgentID   string
	Resources Resources
	Payload   string
}

// TaskStatusUpdate is a status callback delivered by the broker driver.
type TaskStatusUpdate struct {
	TaskID  string
	AgentID string
	Status  TaskStatus
	Message string
	When    time.Time
}

// JobType describes a category of jobs that can be queued and run.
type JobType struct {
	ID        string
	Name      string
	Version   string
	IsPaused  bool
	Resources Resources
}

// QueuedJobExe is a job execution waiting for placement. Read-only
// within a scheduling round; the Provided* fields are filled in by the
// offer manager when the execution is accepted onto a node.
type QueuedJobExe struct {
	QueueID           int64
	JobTypeID         string
	Priority          int
	RequiredResources Resources
	ConfigurationRef  string
	Queued            time.Time

	ProvidedNodeID    string
	ProvidedAgentID   string
	ProvidedResources Resources
}

// Accepted records the node and resources the offer manager bound this
// queued execution to.
func (q *QueuedJobExe) Accepted(nodeID, agentID string, resources Resources) {
	q.ProvidedNodeID = nodeID
	q.ProvidedAgentID = agentID
	q.ProvidedResources = resources
}

// TriggerEvent records why a job was queued (strike created, scan
// created, file ingested).
type TriggerEvent struct {
	ID          string
	Type        string
	Description map[string]string
	Occurred    time.Time
}

// PropertyInput is a named input value handed to a queued job.
type PropertyInput struct {
	Name  string
	Value string
}

// JobData carries the input values for a queued job.
type JobData struct {
	Properties []PropertyInput
}

// AddProperty appends a property input to the job data.
func (d *JobData) AddProperty(name, value string) {
	d.Properties = append(d.Properties, PropertyInput{Name: name, Value: value})
}

// Job is a queued or running job owned by the persistence layer.
type Job struct {
	ID        string
	JobTypeID string
	Status    string
	Data      JobData
	EventID   string
	Created   time.Time
}
