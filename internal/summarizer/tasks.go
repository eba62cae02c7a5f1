package summarizer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"docqa/internal/models"
)

// Token is a cooperative cancellation flag. Work checks it at stage
// boundaries; nothing is interrupted mid-call.
type Token struct {
	canceled atomic.Bool
	once     sync.Once
	done     chan struct{}
}

func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Cancel sets the flag. It is safe to call more than once.
func (t *Token) Cancel() {
	t.once.Do(func() {
		t.canceled.Store(true)
		close(t.done)
	})
}

func (t *Token) Canceled() bool {
	return t.canceled.Load()
}

// Done is closed once Cancel has been called.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Task is one running summarization.
type Task struct {
	ID        string
	UserID    int64
	FileID    int64
	StartedAt time.Time
	Token     *Token
}

// TaskInfo is the public view of a running task.
type TaskInfo struct {
	TaskID     string    `json:"task_id"`
	DocumentID int64     `json:"document_id"`
	StartedAt  time.Time `json:"started_at"`
	Canceled   bool      `json:"canceled"`
}

// NewTaskID is "<user>_<file>_<unix nanos>".
func NewTaskID(userID, fileID int64, at time.Time) string {
	return fmt.Sprintf("%d_%d_%d", userID, fileID, at.UnixNano())
}

// Registry tracks running tasks by id.
type Registry struct {
	tasks *xsync.MapOf[string, *Task]
}

func NewRegistry() *Registry {
	return &Registry{tasks: xsync.NewMapOf[string, *Task]()}
}

// Start registers a new task for (user, file).
func (r *Registry) Start(userID, fileID int64) *Task {
	now := time.Now()
	for {
		task := &Task{
			ID:        NewTaskID(userID, fileID, now),
			UserID:    userID,
			FileID:    fileID,
			StartedAt: now,
			Token:     NewToken(),
		}
		if _, loaded := r.tasks.LoadOrStore(task.ID, task); !loaded {
			activeTasks.Inc()
			return task
		}
		now = now.Add(time.Nanosecond)
	}
}

// Cancel flags the task if userID owns it. The task id must start with the
// user's id; anything else is reported as not found.
func (r *Registry) Cancel(userID int64, taskID string) error {
	if !strings.HasPrefix(taskID, strconv.FormatInt(userID, 10)+"_") {
		return fmt.Errorf("task %s %w", taskID, models.ErrNotFound)
	}
	task, ok := r.tasks.Load(taskID)
	if !ok {
		return fmt.Errorf("task %s %w", taskID, models.ErrNotFound)
	}
	task.Token.Cancel()
	return nil
}

// Finish removes the task. It is a no-op for unknown ids.
func (r *Registry) Finish(taskID string) {
	if _, ok := r.tasks.LoadAndDelete(taskID); ok {
		activeTasks.Dec()
	}
}

// List returns userID's running tasks, oldest first.
func (r *Registry) List(userID int64) []TaskInfo {
	out := []TaskInfo{}
	r.tasks.Range(func(_ string, t *Task) bool {
		if t.UserID == userID {
			out = append(out, TaskInfo{
				TaskID:     t.ID,
				DocumentID: t.FileID,
				StartedAt:  t.StartedAt,
				Canceled:   t.Token.Canceled(),
			})
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func (r *Registry) Len() int {
	return r.tasks.Size()
}
