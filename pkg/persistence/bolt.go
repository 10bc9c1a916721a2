package persistence

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/harborline/stevedore/pkg/execution"
	"github.com/harborline/stevedore/pkg/types"
)

var (
	// Bucket names
	bucketJobTypes = []byte("job_types")
	bucketQueue    = []byte("queue")
	bucketJobs     = []byte("jobs")
	bucketJobExes  = []byte("job_exes")
	bucketStrikes  = []byte("strikes")
	bucketScans    = []byte("scans")
	bucketIngests  = []byte("ingests")
	bucketEvents   = []byte("trigger_events")
)

// jobExeRecord is the durable form of a scheduled job execution.
type jobExeRecord struct {
	ID        string
	JobTypeID string
	NodeID    string
	AgentID   string
	Status    string
	Started   time.Time
}

// BoltStore implements Store using an embedded BoltDB database.
type BoltStore struct {
	db      *bolt.DB
	dataDir string
}

// NewBoltStore opens (or creates) the database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "stevedore.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketJobTypes,
			bucketQueue,
			bucketJobs,
			bucketJobExes,
			bucketStrikes,
			bucketScans,
			bucketIngests,
			bucketEvents,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, dataDir: dataDir}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// queueKey orders queue entries by priority first (lower value is
// scheduled first), then by queue ID for FIFO within a priority.
func queueKey(priority int, queueID int64) []byte {
	return []byte(fmt.Sprintf("%05d_%019d", priority, queueID))
}

// GetQueue returns the queued job executions in priority order.
func (s *BoltStore) GetQueue() ([]*types.QueuedJobExe, error) {
	var queue []*types.QueuedJobExe
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueue)
		return b.ForEach(func(k, v []byte) error {
			var qe types.QueuedJobExe
			if err := json.Unmarshal(v, &qe); err != nil {
				return err
			}
			queue = append(queue, &qe)
			return nil
		})
	})
	return queue, err
}

// Enqueue places a new job execution on the queue.
func (s *BoltStore) Enqueue(qe *types.QueuedJobExe) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueue)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		qe.QueueID = int64(seq)
		if qe.Queued.IsZero() {
			qe.Queued = time.Now().UTC()
		}
		data, err := json.Marshal(qe)
		if err != nil {
			return err
		}
		return b.Put(queueKey(qe.Priority, qe.QueueID), data)
	})
}

// ScheduleJobExecutions atomically promotes the batch from queued to
// running. The whole batch transitions in one transaction; a missing
// queue entry aborts everything.
func (s *BoltStore) ScheduleJobExecutions(batch []*types.QueuedJobExe) ([]*execution.RunningJobExe, error) {
	var scheduled []*execution.RunningJobExe
	err := s.db.Update(func(tx *bolt.Tx) error {
		queueBucket := tx.Bucket(bucketQueue)
		exeBucket := tx.Bucket(bucketJobExes)

		for _, qe := range batch {
			key := queueKey(qe.Priority, qe.QueueID)
			if queueBucket.Get(key) == nil {
				return fmt.Errorf("queue entry %d: %w", qe.QueueID, ErrNotFound)
			}

			jt, err := getJobTypeTx(tx, qe.JobTypeID)
			if err != nil {
				return err
			}

			exe := buildRunningJobExe(qe, jt, s.dataDir)
			record := jobExeRecord{
				ID:        exe.ID,
				JobTypeID: exe.JobTypeID,
				NodeID:    exe.NodeID,
				AgentID:   exe.AgentID,
				Status:    "RUNNING",
				Started:   time.Now().UTC(),
			}
			data, err := json.Marshal(record)
			if err != nil {
				return err
			}
			if err := exeBucket.Put([]byte(exe.ID), data); err != nil {
				return err
			}
			if err := queueBucket.Delete(key); err != nil {
				return err
			}
			scheduled = append(scheduled, exe)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scheduled, nil
}

// QueueNewJob creates a job of the given type, records the trigger
// event, and enqueues an execution.
func (s *BoltStore) QueueNewJob(jobType *types.JobType, data types.JobData, event *types.TriggerEvent) (*types.Job, error) {
	job := &types.Job{
		ID:        uuid.New().String(),
		JobTypeID: jobType.ID,
		Status:    "QUEUED",
		Data:      data,
		Created:   time.Now().UTC(),
	}
	if event != nil {
		if event.ID == "" {
			event.ID = uuid.New().String()
		}
		job.EventID = event.ID
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		if event != nil {
			eventData, err := json.Marshal(event)
			if err != nil {
				return err
			}
			if err := tx.Bucket(bucketEvents).Put([]byte(event.ID), eventData); err != nil {
				return err
			}
		}
		jobData, err := json.Marshal(job)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketJobs).Put([]byte(job.ID), jobData)
	})
	if err != nil {
		return nil, err
	}

	qe := &types.QueuedJobExe{
		JobTypeID:         jobType.ID,
		Priority:          100,
		RequiredResources: jobType.Resources,
		ConfigurationRef:  job.ID,
	}
	if err := s.Enqueue(qe); err != nil {
		return nil, err
	}
	return job, nil
}

func getJobTypeTx(tx *bolt.Tx, id string) (*types.JobType, error) {
	data := tx.Bucket(bucketJobTypes).Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("job type %s: %w", id, ErrNotFound)
	}
	var jt types.JobType
	if err := json.Unmarshal(data, &jt); err != nil {
		return nil, err
	}
	return &jt, nil
}

// CreateJobType stores a job type definition.
func (s *BoltStore) CreateJobType(jt *types.JobType) error {
	if jt.ID == "" {
		jt.ID = fmt.Sprintf("%s-%s", jt.Name, jt.Version)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(jt)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketJobTypes).Put([]byte(jt.ID), data)
	})
}

// GetJobType returns the job type with the given name and version.
func (s *BoltStore) GetJobType(name, version string) (*types.JobType, error) {
	var found *types.JobType
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobTypes).ForEach(func(k, v []byte) error {
			var jt types.JobType
			if err := json.Unmarshal(v, &jt); err != nil {
				return err
			}
			if jt.Name == name && jt.Version == version {
				found = &jt
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("job type %s %s: %w", name, version, ErrNotFound)
	}
	return found, nil
}

// ListJobTypes returns all job type definitions.
func (s *BoltStore) ListJobTypes() ([]types.JobType, error) {
	var jobTypes []types.JobType
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobTypes).ForEach(func(k, v []byte) error {
			var jt types.JobType
			if err := json.Unmarshal(v, &jt); err != nil {
				return err
			}
			jobTypes = append(jobTypes, jt)
			return nil
		})
	})
	return jobTypes, err
}

// Strike operations

func (s *BoltStore) CreateStrike(strike *types.Strike) error {
	return s.putJSON(bucketStrikes, strike.ID, strike)
}

func (s *BoltStore) GetStrike(id string) (*types.Strike, error) {
	var strike types.Strike
	if err := s.getJSON(bucketStrikes, id, &strike); err != nil {
		return nil, err
	}
	return &strike, nil
}

func (s *BoltStore) ListStrikes(started, ended *time.Time, names []string) ([]*types.Strike, error) {
	var strikes []*types.Strike
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStrikes).ForEach(func(k, v []byte) error {
			var strike types.Strike
			if err := json.Unmarshal(v, &strike); err != nil {
				return err
			}
			if !matchTimeRange(strike.LastModified, started, ended) {
				return nil
			}
			if len(names) > 0 && !containsString(names, strike.Name) {
				return nil
			}
			strikes = append(strikes, &strike)
			return nil
		})
	})
	return strikes, err
}

func (s *BoltStore) UpdateStrike(strike *types.Strike) error {
	strike.LastModified = time.Now().UTC()
	return s.putJSON(bucketStrikes, strike.ID, strike)
}

// Scan operations

func (s *BoltStore) CreateScan(scan *types.Scan) error {
	return s.putJSON(bucketScans, scan.ID, scan)
}

func (s *BoltStore) GetScan(id string) (*types.Scan, error) {
	var scan types.Scan
	if err := s.getJSON(bucketScans, id, &scan); err != nil {
		return nil, err
	}
	return &scan, nil
}

func (s *BoltStore) ListScans(started, ended *time.Time, names []string) ([]*types.Scan, error) {
	var scans []*types.Scan
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketScans).ForEach(func(k, v []byte) error {
			var scan types.Scan
			if err := json.Unmarshal(v, &scan); err != nil {
				return err
			}
			if !matchTimeRange(scan.LastModified, started, ended) {
				return nil
			}
			if len(names) > 0 && !containsString(names, scan.Name) {
				return nil
			}
			scans = append(scans, &scan)
			return nil
		})
	})
	return scans, err
}

func (s *BoltStore) UpdateScan(scan *types.Scan) error {
	scan.LastModified = time.Now().UTC()
	return s.putJSON(bucketScans, scan.ID, scan)
}

// Ingest operations

func (s *BoltStore) CreateIngest(ingest *types.Ingest) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIngests)
		if ingest.ID == 0 {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			ingest.ID = int64(seq)
		}
		now := time.Now().UTC()
		if ingest.Created.IsZero() {
			ingest.Created = now
		}
		ingest.LastModified = now
		data, err := json.Marshal(ingest)
		if err != nil {
			return err
		}
		return b.Put(ingestKey(ingest.ID), data)
	})
}

func (s *BoltStore) UpdateIngest(ingest *types.Ingest) error {
	ingest.LastModified = time.Now().UTC()
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(ingest)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketIngests).Put(ingestKey(ingest.ID), data)
	})
}

func (s *BoltStore) ListIngests(filter IngestFilter) ([]*types.Ingest, error) {
	var ingests []*types.Ingest
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIngests).ForEach(func(k, v []byte) error {
			var ingest types.Ingest
			if err := json.Unmarshal(v, &ingest); err != nil {
				return err
			}
			if matchIngest(&ingest, filter) {
				ingests = append(ingests, &ingest)
			}
			return nil
		})
	})
	return ingests, err
}

func (s *BoltStore) GetIngestsByScan(scanID string, fileNames []string) ([]*types.Ingest, error) {
	filter := IngestFilter{ScanIDs: []string{scanID}}
	ingests, err := s.ListIngests(filter)
	if err != nil {
		return nil, err
	}
	if len(fileNames) == 0 {
		return ingests, nil
	}
	var matched []*types.Ingest
	for _, ingest := range ingests {
		if containsString(fileNames, ingest.FileName) {
			matched = append(matched, ingest)
		}
	}
	return matched, nil
}

// Helpers

func ingestKey(id int64) []byte {
	return []byte(fmt.Sprintf("%019d", id))
}

func (s *BoltStore) putJSON(bucket []byte, key string, v interface{}) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (s *BoltStore) getJSON(bucket []byte, key string, v interface{}) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s %s: %w", bucket, key, ErrNotFound)
		}
		return json.Unmarshal(data, v)
	})
}

func matchTimeRange(t time.Time, started, ended *time.Time) bool {
	if started != nil && t.Before(*started) {
		return false
	}
	if ended != nil && t.After(*ended) {
		return false
	}
	return true
}

func matchIngest(ingest *types.Ingest, filter IngestFilter) bool {
	if !matchTimeRange(ingest.LastModified, filter.Started, filter.Ended) {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if ingest.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.StrikeIDs) > 0 && !containsString(filter.StrikeIDs, ingest.StrikeID) {
		return false
	}
	if len(filter.ScanIDs) > 0 && !containsString(filter.ScanIDs, ingest.ScanID) {
		return false
	}
	if filter.FileName != "" && ingest.FileName != filter.FileName {
		return false
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
