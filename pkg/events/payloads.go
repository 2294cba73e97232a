package events

import "time"

// Established is the payload of connection.established.
type Established struct {
	ConnectionID string    `json:"connectionId"`
	Subject      string    `json:"subject"`
	Timestamp    time.Time `json:"timestamp"`
}

// Task is the payload of task.created, task.updated and task.deleted.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Assignee    string    `json:"assignee,omitempty"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// StatusChange is the payload of task.status_changed.
type StatusChange struct {
	TaskID         string `json:"taskId"`
	PreviousStatus string `json:"previousStatus"`
	NewStatus      string `json:"newStatus"`
	Task           Task   `json:"task"`
}

// Comment is the payload of comment.created.
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// CronJobRun is the payload of the cron_job.* events.
type CronJobRun struct {
	JobID      string     `json:"jobId"`
	Name       string     `json:"name"`
	RunID      string     `json:"runId"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	DurationMs int64      `json:"durationMs,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Activity is the payload of activity.created.
type Activity struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	EntityID  string    `json:"entityId,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
