package worker

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/pickitchen/pickitchen-backend/internal/models"
)

// ErrTaskGone reports a message whose task row no longer exists, e.g.
// deleted by the user between enqueue and delivery.
var ErrTaskGone = errors.New("task row not found")

// TaskStore is the worker's view of task persistence. Every transition
// is a single committed write; acknowledgment of the queue message only
// happens after the terminal write returns.
type TaskStore interface {
	Get(taskID int64) (*models.EmojiTask, error)
	MarkProcessing(taskID int64) error
	SetRemoteID(taskID int64, remoteID string) error
	Complete(taskID int64, resultURL string) error
	Fail(taskID int64, message string) error
}

type gormTaskStore struct {
	db *gorm.DB
}

func NewTaskStore(db *gorm.DB) TaskStore {
	return &gormTaskStore{db: db}
}

func (s *gormTaskStore) Get(taskID int64) (*models.EmojiTask, error) {
	var task models.EmojiTask
	err := s.db.First(&task, "id = ?", taskID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskGone
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *gormTaskStore) MarkProcessing(taskID int64) error {
	return s.db.Model(&models.EmojiTask{}).
		Where("id = ?", taskID).
		Update("status", models.EmojiTaskProcessing).Error
}

func (s *gormTaskStore) SetRemoteID(taskID int64, remoteID string) error {
	return s.db.Model(&models.EmojiTask{}).
		Where("id = ?", taskID).
		Update("aliyun_task_id", remoteID).Error
}

func (s *gormTaskStore) Complete(taskID int64, resultURL string) error {
	now := time.Now()
	return s.db.Model(&models.EmojiTask{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"status":       models.EmojiTaskCompleted,
			"result_url":   resultURL,
			"completed_at": now,
		}).Error
}

func (s *gormTaskStore) Fail(taskID int64, message string) error {
	now := time.Now()
	return s.db.Model(&models.EmojiTask{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"status":        models.EmojiTaskFailed,
			"error_message": message,
			"completed_at":  now,
		}).Error
}
