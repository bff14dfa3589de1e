package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kdimtricp/humetube/internal/storage"
)

// QueuePrefix is the key namespace of the queue. Tasks are stored under
// reanalysis/<dueUnixNano:020d>/<id>, so listing the prefix yields them in
// due order.
const QueuePrefix = "reanalysis/"

type Task struct {
	ID         string    `json:"id"`
	VideoID    string    `json:"videoID"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	DueAt      time.Time `json:"dueAt"`
	Attempts   int       `json:"attempts"`

	key string
}

// Queue is a durable delay queue kept in the same store as the pipeline data.
// It survives restarts; a task is removed only after it was handled.
type Queue struct {
	store storage.Store
	now   func() time.Time
}

func NewQueue(store storage.Store) *Queue {
	return &Queue{store: store, now: time.Now}
}

// Enqueue schedules a reanalysis of videoID after delay.
func (q *Queue) Enqueue(ctx context.Context, videoID string, delay time.Duration) error {
	if videoID == "" {
		return fmt.Errorf("enqueue: empty video ID")
	}
	if delay < 0 {
		delay = 0
	}

	now := q.now().UTC()
	task := Task{
		ID:         uuid.New().String(),
		VideoID:    videoID,
		EnqueuedAt: now,
		DueAt:      now.Add(delay),
	}
	if err := q.put(ctx, &task); err != nil {
		return err
	}

	log.Printf("[SCHEDULER] Reanalysis of %s scheduled for %s", videoID, task.DueAt.Format(time.RFC3339))
	return nil
}

// Due returns every task whose due time is not after now, oldest first.
func (q *Queue) Due(ctx context.Context, now time.Time) ([]Task, error) {
	entries, err := q.store.List(ctx, QueuePrefix)
	if err != nil {
		return nil, fmt.Errorf("listing reanalysis tasks: %w", err)
	}

	cutoff := now.UnixNano()
	tasks := make([]Task, 0)
	for _, entry := range entries {
		due, ok := dueFromKey(entry.Key)
		if !ok {
			log.Printf("[SCHEDULER] Dropping task with malformed key %q", entry.Key)
			q.drop(ctx, entry.Key)
			continue
		}
		if due > cutoff {
			break
		}

		var task Task
		if err := json.Unmarshal(entry.Value, &task); err != nil {
			log.Printf("[SCHEDULER] Dropping unreadable task %s: %v", entry.Key, err)
			q.drop(ctx, entry.Key)
			continue
		}
		task.key = entry.Key
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// drop removes an entry Due cannot use. A failed delete leaves it for the
// next poll.
func (q *Queue) drop(ctx context.Context, key string) {
	if err := q.store.Delete(ctx, key); err != nil {
		log.Printf("[SCHEDULER] Failed to drop %s: %v", key, err)
	}
}

// Complete removes a handled task.
func (q *Queue) Complete(ctx context.Context, task Task) error {
	if task.key == "" {
		return fmt.Errorf("complete: task %s was not loaded from the queue", task.ID)
	}
	if err := q.store.Delete(ctx, task.key); err != nil {
		return fmt.Errorf("deleting task %s: %w", task.ID, err)
	}
	return nil
}

// Retry moves a task to a new due time and counts the attempt. The new copy
// is written before the old one is removed, so a crash in between can only
// duplicate the task.
func (q *Queue) Retry(ctx context.Context, task Task, delay time.Duration) error {
	old := task.key
	task.Attempts++
	task.DueAt = q.now().UTC().Add(delay)
	if err := q.put(ctx, &task); err != nil {
		return err
	}
	if old != "" && old != task.key {
		if err := q.store.Delete(ctx, old); err != nil {
			return fmt.Errorf("deleting task %s: %w", task.ID, err)
		}
	}
	return nil
}

func (q *Queue) Pending(ctx context.Context) (int, error) {
	entries, err := q.store.List(ctx, QueuePrefix)
	if err != nil {
		return 0, fmt.Errorf("listing reanalysis tasks: %w", err)
	}
	return len(entries), nil
}

func (q *Queue) put(ctx context.Context, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encoding task: %w", err)
	}

	key := taskKey(task.DueAt, task.ID)
	if err := q.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("storing task for %s: %w", task.VideoID, err)
	}
	task.key = key
	return nil
}

func taskKey(due time.Time, id string) string {
	return fmt.Sprintf("%s%020d/%s", QueuePrefix, due.UnixNano(), id)
}

func dueFromKey(key string) (int64, bool) {
	rest := strings.TrimPrefix(key, QueuePrefix)
	digits, _, found := strings.Cut(rest, "/")
	if !found {
		return 0, false
	}
	due, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return due, true
}
