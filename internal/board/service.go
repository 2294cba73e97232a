package board

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentstation/boardstream/pkg/errors"
	"github.com/agentstation/boardstream/pkg/events"
)

// Task statuses, in board column order.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusReview     = "review"
	StatusDone       = "done"
)

// Statuses lists the valid task statuses.
var Statuses = []string{StatusTodo, StatusInProgress, StatusReview, StatusDone}

// Publisher receives committed mutations. *emitter.Emitter implements it;
// every method must return without waiting on delivery.
type Publisher interface {
	TaskCreated(events.Task)
	TaskUpdated(events.Task)
	TaskStatusChanged(previous string, task events.Task)
	TaskDeleted(events.Task)
	CommentCreated(events.Comment)
	CronJobStarted(events.CronJobRun)
	CronJobCompleted(run events.CronJobRun, finishedAt time.Time)
	CronJobFailed(run events.CronJobRun, finishedAt time.Time, cause error)
	ActivityCreated(events.Activity)
}

// NewTask is the input of CreateTask.
type NewTask struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Assignee    string `json:"assignee,omitempty"`
}

// TaskPatch is the input of UpdateTask. Nil fields are left unchanged.
type TaskPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Assignee    *string `json:"assignee,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// Service applies board mutations and publishes them once committed.
type Service struct {
	store     *Store
	publisher Publisher
	now       func() time.Time
	logger    *zerolog.Logger
}

// NewService creates a service over store.
func NewService(store *Store, publisher Publisher, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{store: store, publisher: publisher, now: time.Now, logger: logger}
}

// Tasks lists all tasks.
func (s *Service) Tasks(context.Context) []events.Task {
	return s.store.Tasks()
}

// Task returns one task.
func (s *Service) Task(_ context.Context, id string) (events.Task, error) {
	return s.store.Task(id)
}

// CreateTask adds a task created by actor.
func (s *Service) CreateTask(_ context.Context, actor string, in NewTask) (events.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return events.Task{}, errors.NewValidationError("title", in.Title, "title is required")
	}
	status := in.Status
	if status == "" {
		status = StatusTodo
	}
	if err := validateStatus(status); err != nil {
		return events.Task{}, err
	}

	now := s.now().UTC()
	task := events.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: in.Description,
		Status:      status,
		Assignee:    in.Assignee,
		CreatedBy:   actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.store.PutTask(task)

	s.publisher.TaskCreated(task)
	s.activity(actor, "task.created", task.ID, task.Title)
	return task, nil
}

// UpdateTask edits a task. A status change in the patch is published as a
// status change in addition to the update.
func (s *Service) UpdateTask(_ context.Context, actor, id string, patch TaskPatch) (events.Task, error) {
	if patch.Status != nil {
		if err := validateStatus(*patch.Status); err != nil {
			return events.Task{}, err
		}
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return events.Task{}, errors.NewValidationError("title", *patch.Title, "title cannot be empty")
	}

	before, after, err := s.store.UpdateTask(id, func(t *events.Task) error {
		if patch.Title != nil {
			t.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			t.Description = *patch.Description
		}
		if patch.Assignee != nil {
			t.Assignee = *patch.Assignee
		}
		if patch.Status != nil {
			t.Status = *patch.Status
		}
		t.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return events.Task{}, err
	}

	if before.Status != after.Status {
		s.publisher.TaskStatusChanged(before.Status, after)
		s.activity(actor, "task.status_changed", after.ID, before.Status+" -> "+after.Status)
	} else {
		s.publisher.TaskUpdated(after)
		s.activity(actor, "task.updated", after.ID, after.Title)
	}
	return after, nil
}

// SetStatus moves a task to another column.
func (s *Service) SetStatus(ctx context.Context, actor, id, status string) (events.Task, error) {
	return s.UpdateTask(ctx, actor, id, TaskPatch{Status: &status})
}

// DeleteTask removes a task and its comments.
func (s *Service) DeleteTask(_ context.Context, actor, id string) error {
	task, err := s.store.DeleteTask(id)
	if err != nil {
		return err
	}
	s.publisher.TaskDeleted(task)
	s.activity(actor, "task.deleted", task.ID, task.Title)
	return nil
}

// AddComment comments on a task.
func (s *Service) AddComment(_ context.Context, actor, taskID, body string) (events.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return events.Comment{}, errors.NewValidationError("body", body, "comment body is required")
	}
	comment := events.Comment{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Author:    actor,
		Body:      body,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AddComment(comment); err != nil {
		return events.Comment{}, err
	}
	s.publisher.CommentCreated(comment)
	s.activity(actor, "comment.created", taskID, "")
	return comment, nil
}

// Comments lists the comments on a task.
func (s *Service) Comments(_ context.Context, taskID string) ([]events.Comment, error) {
	if _, err := s.store.Task(taskID); err != nil {
		return nil, err
	}
	return s.store.Comments(taskID), nil
}

// StartCronRun records a cron job run starting.
func (s *Service) StartCronRun(_ context.Context, jobID, name string) (events.CronJobRun, error) {
	if jobID == "" {
		return events.CronJobRun{}, errors.NewValidationError("jobId", jobID, "job id is required")
	}
	run := events.CronJobRun{
		JobID:     jobID,
		Name:      name,
		RunID:     uuid.NewString(),
		StartedAt: s.now().UTC(),
	}
	if err := s.store.PutRun(run); err != nil {
		return events.CronJobRun{}, err
	}
	s.publisher.CronJobStarted(run)
	return run, nil
}

// FinishCronRun records the outcome of a run. A non-empty failure marks
// the run failed.
func (s *Service) FinishCronRun(_ context.Context, runID, failure string) (events.CronJobRun, error) {
	run, err := s.store.TakeRun(runID)
	if err != nil {
		return events.CronJobRun{}, err
	}

	finished := s.now().UTC()
	run.FinishedAt = &finished
	run.DurationMs = finished.Sub(run.StartedAt).Milliseconds()

	if failure != "" {
		run.Error = failure
		s.publisher.CronJobFailed(run, finished, errors.New(failure))
		s.activity("cron", "cron_job.failed", run.JobID, failure)
		return run, nil
	}
	s.publisher.CronJobCompleted(run, finished)
	s.activity("cron", "cron_job.completed", run.JobID, "")
	return run, nil
}

func (s *Service) activity(actor, action, entityID, message string) {
	s.publisher.ActivityCreated(events.Activity{
		ID:        uuid.NewString(),
		Actor:     actor,
		Action:    action,
		EntityID:  entityID,
		Message:   message,
		CreatedAt: s.now().UTC(),
	})
}

func validateStatus(status string) error {
	if !slices.Contains(Statuses, status) {
		return errors.NewValidationError("status", status, "must be one of "+strings.Join(Statuses, ", "))
	}
	return nil
}
