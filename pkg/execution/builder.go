package execution

import (
	"fmt"
	"strings"

	"github.com/harborline/stevedore/pkg/types"
	"github.com/harborline/stevedore/pkg/volume"
)

// Resource footprints for the pre and post tasks, which stage inputs
// into the workspace and move results out. The main task uses the job
// type's declared requirements.
var (
	preTaskResources  = types.Resources{Cpus: 0.25, MemMB: 128, DiskMB: 0}
	postTaskResources = types.Resources{Cpus: 0.25, MemMB: 128, DiskMB: 0}
)

// BuildTasks constructs the ordered pre/main/post task list for a job
// execution. The container parameters (volume mounts) are rendered into
// each task payload up front; the scheduler never mutates them later.
func BuildTasks(exeID, agentID string, jobType types.JobType, configRef string, volumes []*volume.Volume) []*types.Task {
	params := make([]string, 0, len(volumes))
	for _, v := range volumes {
		p := v.ToDockerParam()
		params = append(params, fmt.Sprintf("--%s %s", p.Flag, p.Value))
	}
	dockerParams := strings.Join(params, " ")

	pre := &types.Task{
		ID:        TaskID(exeID, TaskTypePre),
		Name:      fmt.Sprintf("%s %s", jobType.Name, TaskTypePre),
		AgentID:   agentID,
		Resources: preTaskResources,
		Payload:   fmt.Sprintf("pre-task config=%s %s", configRef, dockerParams),
	}
	main := &types.Task{
		ID:        TaskID(exeID, TaskTypeMain),
		Name:      fmt.Sprintf("%s %s", jobType.Name, TaskTypeMain),
		AgentID:   agentID,
		Resources: jobType.Resources,
		Payload:   fmt.Sprintf("main-task config=%s %s", configRef, dockerParams),
	}
	post := &types.Task{
		ID:        TaskID(exeID, TaskTypePost),
		Name:      fmt.Sprintf("%s %s", jobType.Name, TaskTypePost),
		AgentID:   agentID,
		Resources: postTaskResources,
		Payload:   fmt.Sprintf("post-task config=%s %s", configRef, dockerParams),
	}

	return []*types.Task{pre, main, post}
}
