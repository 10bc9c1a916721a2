package persistence

import (
	"path"

	"github.com/google/uuid"
	"github.com/harborline/stevedore/pkg/execution"
	"github.com/harborline/stevedore/pkg/types"
	"github.com/harborline/stevedore/pkg/volume"
)

// buildRunningJobExe turns an accepted queued execution into a running
// execution with its task list and cleanup requirements. Each execution
// gets a private workspace directory on its node, mounted read-write
// into the container; the cleanup task deletes it afterwards.
func buildRunningJobExe(qe *types.QueuedJobExe, jt *types.JobType, workDir string) *execution.RunningJobExe {
	exeID := uuid.New().String()
	wsPath := path.Join(workDir, "exes", exeID)
	containerName := "stevedore-" + exeID

	vols := []*volume.Volume{
		volume.NewHostVolume("/workspace", volume.ModeRW, wsPath),
	}
	tasks := execution.BuildTasks(exeID, qe.ProvidedAgentID, *jt, qe.ConfigurationRef, vols)

	return execution.NewRunningJobExe(exeID, jt.ID, qe.ProvidedNodeID, qe.ProvidedAgentID,
		tasks, []string{wsPath}, containerName)
}
