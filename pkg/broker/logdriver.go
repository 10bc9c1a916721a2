package broker

import (
	"github.com/rs/zerolog"

	"github.com/harborline/stevedore/pkg/log"
	"github.com/harborline/stevedore/pkg/types"
)

// LogDriver is a Driver that records launches and declines without
// talking to a broker. It stands in when the process runs without a
// broker SDK attached, for dry runs and local development.
type LogDriver struct {
	logger zerolog.Logger
}

// NewLogDriver returns a driver that only logs.
func NewLogDriver() *LogDriver {
	return &LogDriver{logger: log.WithComponent("driver")}
}

func (d *LogDriver) LaunchTasks(offerIDs []string, tasks []*types.Task) error {
	for _, task := range tasks {
		d.logger.Info().
			Str("task_id", task.ID).
			Str("agent_id", task.AgentID).
			Int("offers", len(offerIDs)).
			Msg("Would launch task")
	}
	return nil
}

func (d *LogDriver) DeclineOffer(offerID string) error {
	d.logger.Debug().Str("offer_id", offerID).Msg("Would decline offer")
	return nil
}
