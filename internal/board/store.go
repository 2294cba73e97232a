// Package board is the minimal task board the dashboard streams about:
// tasks, comments and cron job runs kept in memory, with every committed
// mutation announced through the event emitter.
package board

import (
	"sort"
	"strings"
	"sync"

	gocache "github.com/patrickmn/go-cache"

	"github.com/agentstation/boardstream/pkg/errors"
	"github.com/agentstation/boardstream/pkg/events"
)

const (
	taskPrefix    = "task:"
	commentPrefix = "comment:"
	runPrefix     = "run:"
)

// Store keeps board records in go-cache without expiry. Writes that read
// then modify a record hold mu so concurrent edits cannot interleave.
type Store struct {
	mu    sync.Mutex
	items *gocache.Cache
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{items: gocache.New(gocache.NoExpiration, 0)}
}

// Task returns the task with id.
func (s *Store) Task(id string) (events.Task, error) {
	v, ok := s.items.Get(taskPrefix + id)
	if !ok {
		return events.Task{}, errors.NewNotFoundError("task", id)
	}
	return v.(events.Task), nil
}

// Tasks returns every task ordered by creation time.
func (s *Store) Tasks() []events.Task {
	var tasks []events.Task
	for key, item := range s.items.Items() {
		if strings.HasPrefix(key, taskPrefix) {
			tasks = append(tasks, item.Object.(events.Task))
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks
}

// PutTask inserts or replaces a task.
func (s *Store) PutTask(task events.Task) {
	s.items.Set(taskPrefix+task.ID, task, gocache.NoExpiration)
}

// UpdateTask applies fn to the stored task under the store lock and
// returns the previous and updated values.
func (s *Store) UpdateTask(id string, fn func(*events.Task) error) (before, after events.Task, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, err = s.Task(id)
	if err != nil {
		return events.Task{}, events.Task{}, err
	}
	after = before
	if err := fn(&after); err != nil {
		return events.Task{}, events.Task{}, err
	}
	s.PutTask(after)
	return before, after, nil
}

// DeleteTask removes a task and its comments.
func (s *Store) DeleteTask(id string) (events.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.Task(id)
	if err != nil {
		return events.Task{}, err
	}
	s.items.Delete(taskPrefix + id)
	for key := range s.items.Items() {
		if strings.HasPrefix(key, commentPrefix+id+":") {
			s.items.Delete(key)
		}
	}
	return task, nil
}

// AddComment stores a comment on an existing task.
func (s *Store) AddComment(c events.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.Task(c.TaskID); err != nil {
		return err
	}
	s.items.Set(commentPrefix+c.TaskID+":"+c.ID, c, gocache.NoExpiration)
	return nil
}

// Comments returns the comments on a task ordered by creation time.
func (s *Store) Comments(taskID string) []events.Comment {
	prefix := commentPrefix + taskID + ":"
	var out []events.Comment
	for key, item := range s.items.Items() {
		if strings.HasPrefix(key, prefix) {
			out = append(out, item.Object.(events.Comment))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// PutRun records a cron job run. Add fails if the run id is taken.
func (s *Store) PutRun(run events.CronJobRun) error {
	return s.items.Add(runPrefix+run.RunID, run, gocache.NoExpiration)
}

// TakeRun removes and returns an in-flight run.
func (s *Store) TakeRun(runID string) (events.CronJobRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items.Get(runPrefix + runID)
	if !ok {
		return events.CronJobRun{}, errors.NewNotFoundError("cron job run", runID)
	}
	s.items.Delete(runPrefix + runID)
	return v.(events.CronJobRun), nil
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	return s.items.ItemCount()
}
