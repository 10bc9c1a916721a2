/*
Package execution tracks job executions that have been scheduled onto
nodes.

A RunningJobExe owns a finite, ordered task list (pre-task, main-task,
post-task) computed at schedule time. The invariants it enforces:

  - at most one task per execution is outstanding on the driver
  - the task index only moves forward
  - a failed or lost task ends the execution; requeuing is handled by
    the persistence layer, never here

The Manager is the registry the scheduling loop iterates when asking
the offer manager whether each execution's next task fits on its bound
node.
*/
package execution
