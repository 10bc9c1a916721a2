package broker

import (
	"github.com/harborline/stevedore/pkg/types"
)

// Driver is the outbound surface of the resource broker SDK. Launching
// is idempotent by task ID; the scheduler never re-sends a task ID.
// Long RPCs are bounded by the broker SDK, not by the scheduler.
type Driver interface {
	LaunchTasks(offerIDs []string, tasks []*types.Task) error
	DeclineOffer(offerID string) error
}
