package scheduler

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"

	"github.com/harborline/stevedore/pkg/broker"
	"github.com/harborline/stevedore/pkg/cleanup"
	"github.com/harborline/stevedore/pkg/config"
	"github.com/harborline/stevedore/pkg/events"
	"github.com/harborline/stevedore/pkg/execution"
	"github.com/harborline/stevedore/pkg/jobtypes"
	"github.com/harborline/stevedore/pkg/log"
	"github.com/harborline/stevedore/pkg/metrics"
	"github.com/harborline/stevedore/pkg/nodes"
	"github.com/harborline/stevedore/pkg/offers"
	"github.com/harborline/stevedore/pkg/persistence"
	"github.com/harborline/stevedore/pkg/types"
)

// Scheduler runs the scheduling loop: one round considers running
// executions first, then cleanup tasks, then queued executions, and
// launches everything accepted in per-node groups. When a round
// produces no tasks, all held offers are declined and the loop sleeps.
type Scheduler struct {
	cfg         config.SchedulerConfig
	store       persistence.Store
	driver      broker.Driver
	registry    *nodes.Registry
	offerMgr    *offers.Manager
	cleanupMgr  *cleanup.Manager
	exeMgr      *execution.Manager
	jobTypeMgr  *jobtypes.Manager
	eventBroker *events.Broker
	logger      zerolog.Logger

	running atomic.Bool
	paused  atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New assembles a scheduler from its collaborators.
func New(cfg config.SchedulerConfig, store persistence.Store, driver broker.Driver,
	registry *nodes.Registry, offerMgr *offers.Manager, cleanupMgr *cleanup.Manager,
	exeMgr *execution.Manager, jobTypeMgr *jobtypes.Manager, eventBroker *events.Broker) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		store:       store,
		driver:      driver,
		registry:    registry,
		offerMgr:    offerMgr,
		cleanupMgr:  cleanupMgr,
		exeMgr:      exeMgr,
		jobTypeMgr:  jobTypeMgr,
		eventBroker: eventBroker,
		logger:      log.WithComponent("scheduler"),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Run executes scheduling rounds until Shutdown is called. It blocks;
// run it on its own goroutine.
func (s *Scheduler) Run() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	defer close(s.doneCh)

	s.logger.Info().Msg("Scheduling loop started")
	for {
		select {
		case <-s.stopCh:
			s.logger.Info().Msg("Scheduling loop stopped")
			return
		default:
		}

		timer := metrics.NewTimer()
		launched := s.performScheduling()
		elapsed := timer.ObserveDuration(metrics.SchedulingLatency)

		if elapsed > s.cfg.ScheduleLoopWarnThreshold {
			s.logger.Warn().
				Dur("elapsed", elapsed).
				Int("tasks", launched).
				Msg("Scheduling round took too long")
		}

		if launched == 0 {
			s.declineAllOffers()
			s.eventBroker.Publish(&events.Event{
				Type:    events.EventRoundIdle,
				Message: "Scheduling round produced no tasks",
			})
			s.sleep(s.cfg.Delay)
		}
	}
}

// Shutdown stops the loop and waits for the current round to finish.
func (s *Scheduler) Shutdown() {
	if !s.running.Load() {
		return
	}
	close(s.stopCh)
	<-s.doneCh
}

// Pause stops queued executions from being considered. Running
// executions and cleanup tasks continue to be scheduled.
func (s *Scheduler) Pause() {
	s.paused.Store(true)
	s.logger.Info().Msg("New job execution scheduling paused")
}

// Resume re-enables consideration of queued executions.
func (s *Scheduler) Resume() {
	s.paused.Store(false)
	s.logger.Info().Msg("New job execution scheduling resumed")
}

// IsPaused reports whether queued-execution scheduling is paused.
func (s *Scheduler) IsPaused() bool {
	return s.paused.Load()
}

// performScheduling runs one round and returns the number of tasks
// launched.
func (s *Scheduler) performScheduling() int {
	snapshot := s.registry.GetNodes()
	s.cleanupMgr.UpdateNodes(snapshot)
	s.declineOffers(s.offerMgr.UpdateNodes(snapshot))
	s.declineOffers(s.offerMgr.ReadyNewOffers())

	if err := s.jobTypeMgr.Sync(s.store); err != nil {
		// Stale job type data is usable; pausing information just lags.
		s.logger.Warn().Err(err).Msg("Failed to sync job types")
	}
	jobTypes := s.jobTypeMgr.Snapshot()

	s.considerRunningJobExes()
	s.considerCleanupTasks()
	accepted := s.considerQueuedJobExes(jobTypes)

	launched := s.scheduleAcceptedTasks(accepted)

	metrics.RunningJobExes.Set(float64(s.exeMgr.Count()))
	metrics.CleanupQueueEntries.Set(float64(s.cleanupMgr.TotalEntries()))
	return launched
}

// considerRunningJobExes asks the offer manager to reserve resources
// for the next task of every running execution that has one ready.
func (s *Scheduler) considerRunningJobExes() {
	for _, exe := range s.exeMgr.GetAllJobExes() {
		s.offerMgr.ConsiderNextTask(exe)
	}
}

// considerCleanupTasks pulls the next cleanup task for each node with
// queued work and tries to reserve resources for it. Rejected tasks go
// straight back so their entries are not stranded in flight.
func (s *Scheduler) considerCleanupTasks() {
	for _, nt := range s.cleanupMgr.GetNextTasks() {
		if s.offerMgr.ConsiderCleanupTask(nt.NodeID, nt.Task) == offers.Rejected {
			s.cleanupMgr.AbandonTask(nt.Task)
		}
	}
}

// considerQueuedJobExes walks the queue in priority order and admits up
// to MaxNewJobExes executions. Entries whose job type is unknown or
// paused are skipped. Returns the admitted entries in queue order.
func (s *Scheduler) considerQueuedJobExes(jobTypes map[string]types.JobType) []*types.QueuedJobExe {
	if s.paused.Load() {
		return nil
	}

	queue, err := s.store.GetQueue()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read the queue")
		return nil
	}
	metrics.QueueDepth.Set(float64(len(queue)))

	var accepted []*types.QueuedJobExe
	for _, qe := range queue {
		if len(accepted) >= s.cfg.MaxNewJobExes {
			break
		}
		jt, ok := jobTypes[qe.JobTypeID]
		if !ok || jt.IsPaused {
			continue
		}
		if s.offerMgr.ConsiderNewJobExe(qe) == offers.Accepted {
			accepted = append(accepted, qe)
		}
	}
	return accepted
}

// scheduleAcceptedTasks pops the per-node admission groups, persists
// the newly admitted executions, and launches every ready task grouped
// by node. A persistence failure after retries abandons the new
// admissions for this round; tasks for running executions and cleanup
// still launch.
func (s *Scheduler) scheduleAcceptedTasks(acceptedNew []*types.QueuedJobExe) int {
	groups := s.offerMgr.PopOffersWithAcceptedJobExes()
	if len(groups) == 0 {
		return 0
	}

	scheduledByNode := s.persistNewJobExes(acceptedNew)

	total := 0
	for _, group := range groups {
		nodeID := group.Node().ID
		var tasks []*types.Task

		for _, exe := range group.AcceptedRunningJobExes() {
			if task := exe.StartNextTask(); task != nil {
				tasks = append(tasks, task)
				metrics.TasksLaunched.WithLabelValues("job").Inc()
			}
		}
		for _, exe := range scheduledByNode[nodeID] {
			if task := exe.StartNextTask(); task != nil {
				tasks = append(tasks, task)
				metrics.TasksLaunched.WithLabelValues("job").Inc()
			}
		}
		for _, task := range group.AcceptedCleanupTasks() {
			tasks = append(tasks, task)
			metrics.TasksLaunched.WithLabelValues("cleanup").Inc()
			metrics.CleanupTasksLaunched.Inc()
		}

		if len(tasks) == 0 {
			s.declineOffers(group.OfferIDs())
			continue
		}
		if err := s.driver.LaunchTasks(group.OfferIDs(), tasks); err != nil {
			s.logger.Error().Err(err).
				Str("node_id", nodeID).
				Int("tasks", len(tasks)).
				Msg("Failed to launch tasks")
			continue
		}
		total += len(tasks)
	}

	if total > 0 {
		s.eventBroker.Publish(&events.Event{
			Type:    events.EventTasksLaunched,
			Message: "Launched tasks",
			Metadata: map[string]string{
				"count": strconv.Itoa(total),
			},
		})
	}
	return total
}

// persistNewJobExes drives the atomic queued-to-running transition for
// this round's admitted batch inside the retry envelope, and returns
// the resulting running executions grouped by node. On final failure
// the batch is dropped; the entries stay queued and are reconsidered
// next round.
func (s *Scheduler) persistNewJobExes(batch []*types.QueuedJobExe) map[string][]*execution.RunningJobExe {
	byNode := make(map[string][]*execution.RunningJobExe)
	if len(batch) == 0 {
		return byNode
	}

	var scheduled []*execution.RunningJobExe
	err := retry.Do(
		func() error {
			timer := metrics.NewTimer()
			var err error
			scheduled, err = s.store.ScheduleJobExecutions(batch)
			elapsed := timer.ObserveDuration(metrics.ScheduleQueryDuration)
			if elapsed > s.cfg.ScheduleQueryWarnThreshold {
				s.logger.Warn().
					Dur("elapsed", elapsed).
					Int("batch", len(batch)).
					Msg("Schedule query took too long")
			}
			return err
		},
		retry.Attempts(uint(s.cfg.Retry.MaxTries)),
		retry.Delay(s.cfg.Retry.BaseDelay),
		retry.MaxDelay(s.cfg.Retry.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(persistence.IsTransient),
		retry.OnRetry(func(n uint, err error) {
			metrics.ScheduleRetries.Inc()
			s.logger.Warn().Err(err).Uint("attempt", n+1).Msg("Retrying schedule query")
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		s.logger.Error().Err(err).
			Int("batch", len(batch)).
			Msg("Failed to schedule queued job executions; leaving them on the queue")
		return byNode
	}

	s.exeMgr.AddJobExes(scheduled)
	for _, exe := range scheduled {
		byNode[exe.NodeID] = append(byNode[exe.NodeID], exe)
	}
	return byNode
}

// declineAllOffers pops every held offer and declines it.
func (s *Scheduler) declineAllOffers() {
	for _, group := range s.offerMgr.PopAllOffers() {
		s.declineOffers(group.OfferIDs())
	}
}

func (s *Scheduler) declineOffers(offerIDs []string) {
	for _, id := range offerIDs {
		if err := s.driver.DeclineOffer(id); err != nil {
			s.logger.Warn().Err(err).Str("offer_id", id).Msg("Failed to decline offer")
			continue
		}
		metrics.OffersDeclined.Inc()
	}
}

// sleep waits for d or until Shutdown, whichever comes first.
func (s *Scheduler) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-s.stopCh:
	}
}
