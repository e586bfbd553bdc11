// Package worker consumes generation tasks from the queue and drives
// each one through the remote pipeline to a terminal state. Delivery is
// at least once; the terminal-status guard in processMessage makes a
// redelivery a no-op.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pickitchen/pickitchen-backend/internal/models"
	"github.com/pickitchen/pickitchen-backend/internal/provider"
	"github.com/pickitchen/pickitchen-backend/internal/queue"
	"github.com/pickitchen/pickitchen-backend/internal/storage"
)

// Fetcher is the consumer side of the task queue.
type Fetcher interface {
	EnsureGroup(ctx context.Context) error
	Fetch(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, id string) error
}

type Options struct {
	// PollInterval is how often a remote job's status is checked.
	PollInterval time.Duration
	// PollTimeout bounds the whole poll loop for one task.
	PollTimeout time.Duration
	// ResultPrefix is the object storage prefix for relocated videos.
	ResultPrefix string
}

type Worker struct {
	consumer Fetcher
	store    TaskStore
	pipeline provider.Client
	uploader storage.Uploader
	opts     Options
}

func New(consumer Fetcher, store TaskStore, pipeline provider.Client, uploader storage.Uploader, opts Options) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 15 * time.Second
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 10 * time.Minute
	}
	if opts.ResultPrefix == "" {
		opts.ResultPrefix = "results"
	}
	return &Worker{
		consumer: consumer,
		store:    store,
		pipeline: pipeline,
		uploader: uploader,
		opts:     opts,
	}
}

// Run consumes until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.consumer.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}
	slog.Info("worker started",
		"poll_interval", w.opts.PollInterval,
		"poll_timeout", w.opts.PollTimeout)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msgs, err := w.consumer.Fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			slog.Error("queue fetch failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for i := range msgs {
			w.processMessage(ctx, &msgs[i])
		}
	}
}

// processMessage drives one delivery. The message is acknowledged only
// after the task reached a durably committed terminal state (or turned
// out to be unprocessable), so a crash before that point leaves it
// pending for reclaim.
func (w *Worker) processMessage(ctx context.Context, msg *queue.Message) {
	log := slog.With("task_id", msg.Task.TaskID, "message_id", msg.ID)

	task, err := w.store.Get(msg.Task.TaskID)
	if errors.Is(err, ErrTaskGone) {
		log.Warn("task row missing, dropping message")
		w.ack(ctx, msg.ID)
		return
	}
	if err != nil {
		// Leave unacknowledged; the message will be redelivered.
		log.Error("load task failed", "error", err)
		return
	}

	if task.Status.Terminal() {
		// Redelivered after a crash between terminal write and ack.
		log.Info("task already terminal, acking", "status", task.Status)
		w.ack(ctx, msg.ID)
		return
	}

	if err := w.processTask(ctx, task, &msg.Task); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Shutdown mid-task. The remote job id is already persisted,
			// so a reclaiming consumer resumes the poll instead of
			// resubmitting; the task must not be marked failed.
			log.Info("interrupted mid-task, leaving message pending")
			return
		}
		log.Error("task processing failed", "error", err)
		if failErr := w.store.Fail(task.ID, err.Error()); failErr != nil {
			log.Error("fail-state write failed, leaving message pending", "error", failErr)
			return
		}
	}
	w.ack(ctx, msg.ID)
}

// processTask runs the remote job to completion. Returning an error
// means the task should be marked failed; nil means a terminal state
// was already written.
func (w *Worker) processTask(ctx context.Context, task *models.EmojiTask, msg *queue.TaskMessage) error {
	if err := w.store.MarkProcessing(task.ID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	remoteID, err := w.ensureRemoteJob(ctx, task, msg)
	if err != nil {
		return err
	}

	status, err := w.pollRemote(ctx, task.ID, remoteID)
	if err != nil {
		return err
	}

	if status.Status != provider.StatusSucceeded {
		detail := status.ErrorMessage
		if detail == "" {
			detail = status.ErrorCode
		}
		if detail == "" {
			detail = status.Status
		}
		return fmt.Errorf("generation failed: %s", detail)
	}
	if status.VideoURL == "" {
		return errors.New("generation succeeded without a result url")
	}

	// Vendor result URLs expire; relocate to our own bucket first.
	key := fmt.Sprintf("%s/%d/%d.mp4", w.opts.ResultPrefix, task.UserID, task.ID)
	resultURL, err := w.uploader.UploadFromURL(ctx, key, status.VideoURL)
	if err != nil {
		return fmt.Errorf("store result: %w", err)
	}

	if err := w.store.Complete(task.ID, resultURL); err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	slog.Info("task completed", "task_id", task.ID, "result_url", resultURL)
	return nil
}

// ensureRemoteJob submits the remote job once. The persisted remote ID
// keeps a redelivered message from submitting a second job.
func (w *Worker) ensureRemoteJob(ctx context.Context, task *models.EmojiTask, msg *queue.TaskMessage) (string, error) {
	if task.AliyunTaskID != nil && *task.AliyunTaskID != "" {
		return *task.AliyunTaskID, nil
	}

	detect := msg.Detect
	if !detect.Usable() {
		detect = task.DetectResult.Data()
	}
	if !detect.Usable() {
		return "", errors.New("detection result unusable, cannot submit job")
	}

	remoteID, err := w.pipeline.CreateTask(ctx, provider.CreateTaskRequest{
		ImageURL: msg.ImageURL,
		DrivenID: msg.DrivenID,
		FaceBBox: detect.FaceBBox,
		ExtBBox:  detect.ExtBBox,
	})
	if err != nil {
		return "", fmt.Errorf("create remote job: %w", err)
	}
	if err := w.store.SetRemoteID(task.ID, remoteID); err != nil {
		return "", fmt.Errorf("persist remote job id: %w", err)
	}
	return remoteID, nil
}

// pollRemote checks the job on a fixed interval until it is terminal or
// the overall timeout elapses. Transient poll errors do not fail the
// task; only the timeout does.
func (w *Worker) pollRemote(ctx context.Context, taskID int64, remoteID string) (*provider.TaskStatus, error) {
	deadline := time.Now().Add(w.opts.PollTimeout)
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		status, err := w.pipeline.GetTask(ctx, remoteID)
		if err != nil {
			slog.Warn("poll failed", "task_id", taskID, "remote_id", remoteID, "error", err)
		} else if status.Terminal() {
			return status, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out after %s waiting for remote job %s", w.opts.PollTimeout, remoteID)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Worker) ack(ctx context.Context, id string) {
	if err := w.consumer.Ack(ctx, id); err != nil {
		slog.Error("ack failed", "message_id", id, "error", err)
	}
}
