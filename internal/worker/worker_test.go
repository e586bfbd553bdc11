package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pickitchen/pickitchen-backend/internal/models"
	"github.com/pickitchen/pickitchen-backend/internal/provider"
	"github.com/pickitchen/pickitchen-backend/internal/queue"
)

type fakeStore struct {
	mu    sync.Mutex
	tasks map[int64]*models.EmojiTask
}

func newFakeStore(tasks ...*models.EmojiTask) *fakeStore {
	s := &fakeStore{tasks: make(map[int64]*models.EmojiTask)}
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	return s
}

func (s *fakeStore) Get(taskID int64) (*models.EmojiTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskGone
	}
	cp := *t
	return &cp, nil
}

func (s *fakeStore) MarkProcessing(taskID int64) error {
	return s.update(taskID, func(t *models.EmojiTask) {
		t.Status = models.EmojiTaskProcessing
	})
}

func (s *fakeStore) SetRemoteID(taskID int64, remoteID string) error {
	return s.update(taskID, func(t *models.EmojiTask) {
		t.AliyunTaskID = &remoteID
	})
}

func (s *fakeStore) Complete(taskID int64, resultURL string) error {
	return s.update(taskID, func(t *models.EmojiTask) {
		t.Status = models.EmojiTaskCompleted
		t.ResultURL = &resultURL
	})
}

func (s *fakeStore) Fail(taskID int64, message string) error {
	return s.update(taskID, func(t *models.EmojiTask) {
		t.Status = models.EmojiTaskFailed
		t.ErrorMessage = &message
	})
}

func (s *fakeStore) update(taskID int64, fn func(*models.EmojiTask)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return ErrTaskGone
	}
	fn(t)
	return nil
}

type fakePipeline struct {
	createCalls int
	createErr   error
	remoteID    string
	statuses    []*provider.TaskStatus
	getCalls    int
}

func (p *fakePipeline) Detect(context.Context, string) (*provider.DetectResult, error) {
	return &provider.DetectResult{Passed: true, FaceBBox: []int{0, 0, 1, 1}, ExtBBox: []int{0, 0, 2, 2}}, nil
}

func (p *fakePipeline) CreateTask(context.Context, provider.CreateTaskRequest) (string, error) {
	p.createCalls++
	if p.createErr != nil {
		return "", p.createErr
	}
	return p.remoteID, nil
}

func (p *fakePipeline) GetTask(context.Context, string) (*provider.TaskStatus, error) {
	idx := p.getCalls
	p.getCalls++
	if idx >= len(p.statuses) {
		idx = len(p.statuses) - 1
	}
	return p.statuses[idx], nil
}

type fakeUploader struct {
	calls int
	err   error
}

func (u *fakeUploader) Upload(_ context.Context, key string, _ io.Reader, _ string) (string, error) {
	u.calls++
	return "https://cdn.example.com/" + key, u.err
}

func (u *fakeUploader) UploadFromURL(_ context.Context, key, _ string) (string, error) {
	u.calls++
	if u.err != nil {
		return "", u.err
	}
	return "https://cdn.example.com/" + key, nil
}

type fakeConsumer struct {
	acked []string
}

func (c *fakeConsumer) EnsureGroup(context.Context) error { return nil }
func (c *fakeConsumer) Fetch(context.Context) ([]queue.Message, error) { return nil, nil }
func (c *fakeConsumer) Ack(_ context.Context, id string) error {
	c.acked = append(c.acked, id)
	return nil
}

func newTestWorker(store TaskStore, pipeline provider.Client, uploader *fakeUploader) (*Worker, *fakeConsumer) {
	consumer := &fakeConsumer{}
	w := New(consumer, store, pipeline, uploader, Options{
		PollInterval: time.Millisecond,
		PollTimeout:  100 * time.Millisecond,
		ResultPrefix: "results",
	})
	return w, consumer
}

func detection() provider.DetectResult {
	return provider.DetectResult{Passed: true, FaceBBox: []int{0, 0, 1, 1}, ExtBBox: []int{0, 0, 2, 2}}
}

func pendingTask(id int64) *models.EmojiTask {
	return &models.EmojiTask{ID: id, UserID: 7, Status: models.EmojiTaskPending}
}

func message(taskID int64) queue.Message {
	return queue.Message{
		ID: fmt.Sprintf("1-%d", taskID),
		Task: queue.TaskMessage{
			TaskID:   taskID,
			UserID:   7,
			ImageURL: "https://img.example.com/a.jpg",
			DrivenID: "mengwa_kaixin",
			Detect:   detection(),
		},
	}
}

func TestProcessMessageSuccess(t *testing.T) {
	store := newFakeStore(pendingTask(1))
	pipeline := &fakePipeline{
		remoteID: "remote-1",
		statuses: []*provider.TaskStatus{
			{Status: provider.StatusRunning},
			{Status: provider.StatusSucceeded, VideoURL: "https://vendor.example.com/v.mp4"},
		},
	}
	uploader := &fakeUploader{}
	w, consumer := newTestWorker(store, pipeline, uploader)

	msg := message(1)
	w.processMessage(context.Background(), &msg)

	task, err := store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, models.EmojiTaskCompleted, task.Status)
	require.NotNil(t, task.ResultURL)
	assert.Equal(t, "https://cdn.example.com/results/7/1.mp4", *task.ResultURL)
	require.NotNil(t, task.AliyunTaskID)
	assert.Equal(t, "remote-1", *task.AliyunTaskID)
	assert.Equal(t, 1, uploader.calls)
	assert.Equal(t, []string{"1-1"}, consumer.acked)
}

func TestProcessMessageRemoteFailure(t *testing.T) {
	store := newFakeStore(pendingTask(2))
	pipeline := &fakePipeline{
		remoteID: "remote-2",
		statuses: []*provider.TaskStatus{
			{Status: provider.StatusFailed, ErrorMessage: "synthesis failed"},
		},
	}
	uploader := &fakeUploader{}
	w, consumer := newTestWorker(store, pipeline, uploader)

	msg := message(2)
	w.processMessage(context.Background(), &msg)

	task, _ := store.Get(2)
	assert.Equal(t, models.EmojiTaskFailed, task.Status)
	require.NotNil(t, task.ErrorMessage)
	assert.Contains(t, *task.ErrorMessage, "synthesis failed")
	assert.Zero(t, uploader.calls)
	assert.Len(t, consumer.acked, 1)
}

func TestRedeliveryOfTerminalTaskIsNoOp(t *testing.T) {
	done := pendingTask(3)
	done.Status = models.EmojiTaskCompleted
	store := newFakeStore(done)
	pipeline := &fakePipeline{remoteID: "remote-3", statuses: []*provider.TaskStatus{{Status: provider.StatusSucceeded, VideoURL: "x"}}}
	uploader := &fakeUploader{}
	w, consumer := newTestWorker(store, pipeline, uploader)

	msg := message(3)
	w.processMessage(context.Background(), &msg)

	assert.Zero(t, pipeline.createCalls)
	assert.Zero(t, pipeline.getCalls)
	assert.Zero(t, uploader.calls)
	assert.Len(t, consumer.acked, 1)
}

func TestRedeliveryDoesNotResubmitRemoteJob(t *testing.T) {
	existing := "remote-4"
	task := pendingTask(4)
	task.Status = models.EmojiTaskProcessing
	task.AliyunTaskID = &existing
	store := newFakeStore(task)
	pipeline := &fakePipeline{
		statuses: []*provider.TaskStatus{
			{Status: provider.StatusSucceeded, VideoURL: "https://vendor.example.com/v.mp4"},
		},
	}
	uploader := &fakeUploader{}
	w, _ := newTestWorker(store, pipeline, uploader)

	msg := message(4)
	w.processMessage(context.Background(), &msg)

	assert.Zero(t, pipeline.createCalls)
	got, _ := store.Get(4)
	assert.Equal(t, models.EmojiTaskCompleted, got.Status)
}

func TestUploadFailureMarksTaskFailed(t *testing.T) {
	store := newFakeStore(pendingTask(5))
	pipeline := &fakePipeline{
		remoteID: "remote-5",
		statuses: []*provider.TaskStatus{
			{Status: provider.StatusSucceeded, VideoURL: "https://vendor.example.com/v.mp4"},
		},
	}
	uploader := &fakeUploader{err: errors.New("bucket unreachable")}
	w, _ := newTestWorker(store, pipeline, uploader)

	msg := message(5)
	w.processMessage(context.Background(), &msg)

	task, _ := store.Get(5)
	assert.Equal(t, models.EmojiTaskFailed, task.Status)
	require.NotNil(t, task.ErrorMessage)
	assert.Contains(t, *task.ErrorMessage, "bucket unreachable")
}

func TestPollTimeoutFailsTask(t *testing.T) {
	store := newFakeStore(pendingTask(6))
	pipeline := &fakePipeline{
		remoteID: "remote-6",
		statuses: []*provider.TaskStatus{{Status: provider.StatusRunning}},
	}
	uploader := &fakeUploader{}
	w, _ := newTestWorker(store, pipeline, uploader)
	w.opts.PollTimeout = 5 * time.Millisecond

	msg := message(6)
	w.processMessage(context.Background(), &msg)

	task, _ := store.Get(6)
	assert.Equal(t, models.EmojiTaskFailed, task.Status)
	require.NotNil(t, task.ErrorMessage)
	assert.Contains(t, *task.ErrorMessage, "timed out")
}

func TestShutdownMidTaskLeavesMessagePending(t *testing.T) {
	store := newFakeStore(pendingTask(7))
	pipeline := &fakePipeline{
		remoteID: "remote-7",
		statuses: []*provider.TaskStatus{{Status: provider.StatusRunning}},
	}
	w, consumer := newTestWorker(store, pipeline, &fakeUploader{})
	w.opts.PollInterval = time.Second
	w.opts.PollTimeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	msg := message(7)
	w.processMessage(ctx, &msg)

	task, _ := store.Get(7)
	assert.Equal(t, models.EmojiTaskProcessing, task.Status)
	require.NotNil(t, task.AliyunTaskID)
	assert.Equal(t, "remote-7", *task.AliyunTaskID)
	assert.Nil(t, task.ErrorMessage)
	assert.Empty(t, consumer.acked)
}

func TestMissingTaskRowDropsMessage(t *testing.T) {
	store := newFakeStore()
	pipeline := &fakePipeline{remoteID: "x", statuses: []*provider.TaskStatus{{Status: provider.StatusSucceeded}}}
	w, consumer := newTestWorker(store, pipeline, &fakeUploader{})

	msg := message(99)
	w.processMessage(context.Background(), &msg)

	assert.Zero(t, pipeline.createCalls)
	assert.Len(t, consumer.acked, 1)
}
