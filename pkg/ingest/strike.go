package ingest

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harborline/stevedore/pkg/events"
	"github.com/harborline/stevedore/pkg/log"
	"github.com/harborline/stevedore/pkg/persistence"
	"github.com/harborline/stevedore/pkg/types"
)

// Job type identifying the long-running strike process job.
const (
	StrikeJobTypeName    = "stevedore-strike"
	StrikeJobTypeVersion = "1.0"
)

// StrikeManager owns the lifecycle of strike processes: creation,
// edits, and listing. Creating a strike queues the system job that runs
// the directory watcher.
type StrikeManager struct {
	store  persistence.Store
	broker *events.Broker
	logger zerolog.Logger
}

// NewStrikeManager returns a manager backed by the given store.
func NewStrikeManager(store persistence.Store, broker *events.Broker) *StrikeManager {
	return &StrikeManager{
		store:  store,
		broker: broker,
		logger: log.WithComponent("strike"),
	}
}

// CreateStrike validates the configuration, stores the strike, and
// queues its watcher job. The trigger event recording why the job was
// queued is persisted with the job.
func (m *StrikeManager) CreateStrike(name, title, description string, cfg types.StrikeConfiguration) (*types.Strike, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidConfiguration)
	}
	if err := ValidateStrikeConfiguration(&cfg); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	strike := &types.Strike{
		ID:            uuid.New().String(),
		Name:          name,
		Title:         title,
		Description:   description,
		Configuration: cfg,
		Created:       now,
		LastModified:  now,
	}
	if err := m.store.CreateStrike(strike); err != nil {
		return nil, fmt.Errorf("failed to create strike: %w", err)
	}

	jobType, err := m.store.GetJobType(StrikeJobTypeName, StrikeJobTypeVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to look up strike job type: %w", err)
	}

	var data types.JobData
	data.AddProperty("STRIKE_ID", strike.ID)

	event := &types.TriggerEvent{
		Type:        string(events.EventStrikeCreated),
		Description: map[string]string{"strike_id": strike.ID, "strike_name": strike.Name},
		Occurred:    now,
	}
	job, err := m.store.QueueNewJob(jobType, data, event)
	if err != nil {
		return nil, fmt.Errorf("failed to queue strike job: %w", err)
	}

	strike.JobID = job.ID
	if err := m.store.UpdateStrike(strike); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("strike_id", strike.ID).
		Str("name", strike.Name).
		Str("job_id", job.ID).
		Msg("Created strike process")

	m.broker.Publish(&events.Event{
		Type:     events.EventStrikeCreated,
		Message:  fmt.Sprintf("Strike %s created", strike.Name),
		Metadata: map[string]string{"strike_id": strike.ID},
	})
	return strike, nil
}

// EditStrike updates the mutable fields of a strike. A nil cfg leaves
// the configuration untouched.
func (m *StrikeManager) EditStrike(id, title, description string, cfg *types.StrikeConfiguration) (*types.Strike, error) {
	strike, err := m.store.GetStrike(id)
	if err != nil {
		return nil, err
	}

	if title != "" {
		strike.Title = title
	}
	if description != "" {
		strike.Description = description
	}
	if cfg != nil {
		if err := ValidateStrikeConfiguration(cfg); err != nil {
			return nil, err
		}
		strike.Configuration = *cfg
	}

	if err := m.store.UpdateStrike(strike); err != nil {
		return nil, err
	}
	m.logger.Info().Str("strike_id", strike.ID).Msg("Edited strike process")
	return strike, nil
}

// GetStrikes lists strikes modified within the optional time range,
// filtered by name when names is non-empty.
func (m *StrikeManager) GetStrikes(started, ended *time.Time, names []string) ([]*types.Strike, error) {
	return m.store.ListStrikes(started, ended, names)
}

// GetStrikeDetails returns a single strike by ID.
func (m *StrikeManager) GetStrikeDetails(id string) (*types.Strike, error) {
	return m.store.GetStrike(id)
}
