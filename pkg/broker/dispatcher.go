package broker

import (
	"github.com/rs/zerolog"

	"github.com/harborline/stevedore/pkg/cleanup"
	"github.com/harborline/stevedore/pkg/events"
	"github.com/harborline/stevedore/pkg/execution"
	"github.com/harborline/stevedore/pkg/log"
	"github.com/harborline/stevedore/pkg/metrics"
	"github.com/harborline/stevedore/pkg/nodes"
	"github.com/harborline/stevedore/pkg/offers"
	"github.com/harborline/stevedore/pkg/types"
)

// Dispatcher routes asynchronous broker callbacks into the managers.
// Callbacks arrive on driver threads concurrently with the scheduling
// loop; every target manager is internally synchronized.
type Dispatcher struct {
	offerMgr   *offers.Manager
	cleanupMgr *cleanup.Manager
	exeMgr     *execution.Manager
	registry   *nodes.Registry
	broker     *events.Broker
	logger     zerolog.Logger
}

// NewDispatcher creates a dispatcher wired to the given managers.
func NewDispatcher(offerMgr *offers.Manager, cleanupMgr *cleanup.Manager,
	exeMgr *execution.Manager, registry *nodes.Registry, broker *events.Broker) *Dispatcher {
	return &Dispatcher{
		offerMgr:   offerMgr,
		cleanupMgr: cleanupMgr,
		exeMgr:     exeMgr,
		registry:   registry,
		broker:     broker,
		logger:     log.WithComponent("broker"),
	}
}

// ResourceOffers handles a batch of offers pushed by the broker. Offers
// from agents that are not in the registry are dropped; the broker will
// rescind or re-offer them.
func (d *Dispatcher) ResourceOffers(incoming []types.Offer) {
	accepted := make([]types.Offer, 0, len(incoming))
	for _, offer := range incoming {
		if offer.NodeID == "" {
			nodeID, ok := d.registry.LookupByAgent(offer.AgentID)
			if !ok {
				d.logger.Debug().Str("agent_id", offer.AgentID).Str("offer_id", offer.ID).
					Msg("Dropping offer from unknown agent")
				continue
			}
			offer.NodeID = nodeID
		}
		accepted = append(accepted, offer)
	}

	metrics.OffersReceived.Add(float64(len(accepted)))
	d.offerMgr.AddOffers(accepted)
}

// StatusUpdate handles a task status update. Cleanup task updates go to
// the cleanup manager; execution task updates go to the owning running
// execution, and a terminal update moves the execution into the cleanup
// queue of the node it ran on.
func (d *Dispatcher) StatusUpdate(update types.TaskStatusUpdate) {
	if cleanup.IsCleanupTask(update.TaskID) {
		d.cleanupMgr.HandleTaskUpdate(update)
		if update.Status == types.TaskFinished {
			d.broker.Publish(&events.Event{
				Type:    events.EventCleanupFinished,
				Message: "cleanup task finished",
				Metadata: map[string]string{
					"task_id":  update.TaskID,
					"agent_id": update.AgentID,
				},
			})
		}
		return
	}

	exe, terminal := d.exeMgr.HandleTaskUpdate(update)
	if exe == nil || !terminal {
		return
	}
	d.exeMgr.Remove(exe.ID)
	d.cleanupMgr.AddJobExecution(exe)
	d.logger.Info().Str("exe_id", exe.ID).Str("status", string(update.Status)).
		Msg("Job execution reached terminal state")
}

// TaskTimeout handles a task that exceeded its deadline. Only cleanup
// tasks have scheduler-side timeouts; execution task deadlines belong
// to the persistence layer.
func (d *Dispatcher) TaskTimeout(task *types.Task) {
	if cleanup.IsCleanupTask(task.ID) {
		d.cleanupMgr.HandleTaskTimeout(task)
	}
}

// AgentLost handles the broker reporting an agent as gone. Node state
// is rebuilt from the next snapshot; this only records the event.
func (d *Dispatcher) AgentLost(agentID string) {
	d.logger.Warn().Str("agent_id", agentID).Msg("Agent lost")
	d.broker.Publish(&events.Event{
		Type:     events.EventAgentLost,
		Message:  "agent lost",
		Metadata: map[string]string{"agent_id": agentID},
	})
}
