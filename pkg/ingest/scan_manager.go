package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harborline/stevedore/pkg/events"
	"github.com/harborline/stevedore/pkg/log"
	"github.com/harborline/stevedore/pkg/persistence"
	"github.com/harborline/stevedore/pkg/types"
)

// Job type identifying the one-shot scan process job.
const (
	ScanJobTypeName    = "stevedore-scan"
	ScanJobTypeVersion = "1.0"
)

// ErrScanJobAlreadyLaunched is returned when a scan's ingest job has
// already been queued and the operation would conflict with it.
var ErrScanJobAlreadyLaunched = errors.New("scan ingest job already launched")

// ScanManager owns the lifecycle of scan processes. Unlike strikes, a
// scan's job is not queued at creation; QueueScanIngestJob launches it
// explicitly, once.
type ScanManager struct {
	store  persistence.Store
	broker *events.Broker
	logger zerolog.Logger
}

// NewScanManager returns a manager backed by the given store.
func NewScanManager(store persistence.Store, broker *events.Broker) *ScanManager {
	return &ScanManager{
		store:  store,
		broker: broker,
		logger: log.WithComponent("scan"),
	}
}

// CreateScan validates the configuration and stores the scan.
func (m *ScanManager) CreateScan(name, title, description string, cfg types.ScanConfiguration) (*types.Scan, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidConfiguration)
	}
	if err := ValidateScanConfiguration(&cfg); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	scan := &types.Scan{
		ID:            uuid.New().String(),
		Name:          name,
		Title:         title,
		Description:   description,
		Configuration: cfg,
		Created:       now,
		LastModified:  now,
	}
	if err := m.store.CreateScan(scan); err != nil {
		return nil, fmt.Errorf("failed to create scan: %w", err)
	}

	m.logger.Info().Str("scan_id", scan.ID).Str("name", scan.Name).Msg("Created scan process")
	m.broker.Publish(&events.Event{
		Type:     events.EventScanCreated,
		Message:  fmt.Sprintf("Scan %s created", scan.Name),
		Metadata: map[string]string{"scan_id": scan.ID},
	})
	return scan, nil
}

// EditScan updates the mutable fields of a scan. Edits are refused once
// the ingest job has been launched.
func (m *ScanManager) EditScan(id, title, description string, cfg *types.ScanConfiguration) (*types.Scan, error) {
	scan, err := m.store.GetScan(id)
	if err != nil {
		return nil, err
	}
	if scan.JobID != "" {
		return nil, ErrScanJobAlreadyLaunched
	}

	if title != "" {
		scan.Title = title
	}
	if description != "" {
		scan.Description = description
	}
	if cfg != nil {
		if err := ValidateScanConfiguration(cfg); err != nil {
			return nil, err
		}
		scan.Configuration = *cfg
	}

	if err := m.store.UpdateScan(scan); err != nil {
		return nil, err
	}
	m.logger.Info().Str("scan_id", scan.ID).Msg("Edited scan process")
	return scan, nil
}

// QueueScanIngestJob queues the job that enumerates the scan's source
// and ingests matching files. A dry run enumerates and records files
// without queueing ingests.
func (m *ScanManager) QueueScanIngestJob(id string, dryRun bool) (*types.Scan, error) {
	scan, err := m.store.GetScan(id)
	if err != nil {
		return nil, err
	}
	if scan.JobID != "" {
		return nil, ErrScanJobAlreadyLaunched
	}

	jobType, err := m.store.GetJobType(ScanJobTypeName, ScanJobTypeVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to look up scan job type: %w", err)
	}

	var data types.JobData
	data.AddProperty("SCAN_ID", scan.ID)
	data.AddProperty("DRY_RUN", strconv.FormatBool(dryRun))

	event := &types.TriggerEvent{
		Type:        string(events.EventScanCreated),
		Description: map[string]string{"scan_id": scan.ID, "scan_name": scan.Name},
		Occurred:    time.Now().UTC(),
	}
	job, err := m.store.QueueNewJob(jobType, data, event)
	if err != nil {
		return nil, fmt.Errorf("failed to queue scan job: %w", err)
	}

	scan.JobID = job.ID
	scan.DryRun = dryRun
	if err := m.store.UpdateScan(scan); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("scan_id", scan.ID).
		Str("job_id", job.ID).
		Bool("dry_run", dryRun).
		Msg("Queued scan ingest job")
	return scan, nil
}

// GetScans lists scans modified within the optional time range,
// filtered by name when names is non-empty.
func (m *ScanManager) GetScans(started, ended *time.Time, names []string) ([]*types.Scan, error) {
	return m.store.ListScans(started, ended, names)
}

// GetScanDetails returns a single scan by ID.
func (m *ScanManager) GetScanDetails(id string) (*types.Scan, error) {
	return m.store.GetScan(id)
}
