package emitter

import (
	"time"

	"github.com/agentstation/boardstream/pkg/events"
)

// TaskCreated announces a new task.
func (e *Emitter) TaskCreated(task events.Task) {
	e.Publish(events.TaskCreated, task, nil)
}

// TaskUpdated announces an edited task.
func (e *Emitter) TaskUpdated(task events.Task) {
	e.Publish(events.TaskUpdated, task, nil)
}

// TaskStatusChanged announces a status move. Consumers receive the generic
// task.updated first, then task.status_changed with both statuses.
func (e *Emitter) TaskStatusChanged(previous string, task events.Task) {
	e.Publish(events.TaskUpdated, task, nil)
	e.Publish(events.TaskStatusChanged, events.StatusChange{
		TaskID:         task.ID,
		PreviousStatus: previous,
		NewStatus:      task.Status,
		Task:           task,
	}, nil)
}

// TaskDeleted announces a removed task.
func (e *Emitter) TaskDeleted(task events.Task) {
	e.Publish(events.TaskDeleted, task, nil)
}

// CommentCreated announces a new comment.
func (e *Emitter) CommentCreated(comment events.Comment) {
	e.Publish(events.CommentCreated, comment, nil)
}

// CronJobStarted announces a job run starting.
func (e *Emitter) CronJobStarted(run events.CronJobRun) {
	e.Publish(events.CronJobStarted, run, nil)
}

// CronJobCompleted announces a successful job run.
func (e *Emitter) CronJobCompleted(run events.CronJobRun, finishedAt time.Time) {
	e.Publish(events.CronJobCompleted, finish(run, finishedAt), nil)
}

// CronJobFailed announces a failed job run.
func (e *Emitter) CronJobFailed(run events.CronJobRun, finishedAt time.Time, cause error) {
	run = finish(run, finishedAt)
	if cause != nil {
		run.Error = cause.Error()
	}
	e.Publish(events.CronJobFailed, run, nil)
}

// ActivityCreated announces an activity log entry.
func (e *Emitter) ActivityCreated(activity events.Activity) {
	e.Publish(events.ActivityCreated, activity, nil)
}

func finish(run events.CronJobRun, at time.Time) events.CronJobRun {
	at = at.UTC()
	run.FinishedAt = &at
	run.DurationMs = at.Sub(run.StartedAt).Milliseconds()
	return run
}
