package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pickitchen/pickitchen-backend/internal/catalog"
	"github.com/pickitchen/pickitchen-backend/internal/config"
	"github.com/pickitchen/pickitchen-backend/internal/dto"
	"github.com/pickitchen/pickitchen-backend/internal/ledger"
	"github.com/pickitchen/pickitchen-backend/internal/models"
	"github.com/pickitchen/pickitchen-backend/internal/provider"
	"github.com/pickitchen/pickitchen-backend/internal/queue"
	"github.com/pickitchen/pickitchen-backend/internal/storage"
)

const emojiTaskType = "emoji"

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrUnknownStyle    = errors.New("unknown style")
	ErrFaceNotDetected = errors.New("no usable face detected")
)

// TaskEnqueuer is the producer side of the task queue.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, msg *queue.TaskMessage) (string, error)
}

type EmojiService struct {
	db       *gorm.DB
	cfg      *config.Config
	catalog  *catalog.Catalog
	pipeline provider.Client
	uploader storage.Uploader
	producer TaskEnqueuer
}

func NewEmojiService(db *gorm.DB, cfg *config.Config, cat *catalog.Catalog, pipeline provider.Client, uploader storage.Uploader, producer TaskEnqueuer) *EmojiService {
	return &EmojiService{
		db:       db,
		cfg:      cfg,
		catalog:  cat,
		pipeline: pipeline,
		uploader: uploader,
		producer: producer,
	}
}

// Upload stores a source image under the configured upload prefix and
// returns its public URL.
func (s *EmojiService) Upload(ctx context.Context, userID int64, filename, contentType string, body io.Reader) (*dto.UploadResponse, error) {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	key := fmt.Sprintf("%s/%s/%s%s",
		strings.Trim(s.cfg.OSSUploadPrefix, "/"),
		strconv.FormatInt(userID, 10),
		uuid.NewString(), ext)

	url, err := s.uploader.Upload(ctx, key, body, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	return &dto.UploadResponse{URL: url, Key: key}, nil
}

// Detect runs face detection only. Free of charge; the client uses it
// to validate an image before spending points on a task.
func (s *EmojiService) Detect(ctx context.Context, imageURL string) (*provider.DetectResult, error) {
	if imageURL == "" {
		return nil, errors.New("image_url is required")
	}
	return s.pipeline.Detect(ctx, imageURL)
}

// CreateTask charges the user and records the task in one transaction,
// then hands the work to the queue. The debit is final: if the enqueue
// fails the task is marked failed and points stay spent.
func (s *EmojiService) CreateTask(ctx context.Context, userID int64, req *dto.CreateEmojiTaskRequest) (*dto.EmojiTaskResponse, error) {
	if req.ImageURL == "" {
		return nil, errors.New("image_url is required")
	}
	if !s.catalog.HasStyle(req.DrivenID) {
		return nil, ErrUnknownStyle
	}

	detect := req.Detect
	if !detect.Usable() {
		var err error
		detect, err = s.pipeline.Detect(ctx, req.ImageURL)
		if err != nil {
			return nil, fmt.Errorf("detect face: %w", err)
		}
	}
	if !detect.Usable() {
		return nil, ErrFaceNotDetected
	}

	cost := s.catalog.TaskCost(emojiTaskType)
	var styleName *string
	if st := s.styleName(req.DrivenID); st != "" {
		styleName = &st
	}

	task := models.EmojiTask{
		UserID:         userID,
		TaskType:       emojiTaskType,
		Status:         models.EmojiTaskPending,
		SourceImageURL: req.ImageURL,
		DrivenID:       req.DrivenID,
		StyleName:      styleName,
		DetectResult:   datatypes.NewJSONType(*detect),
		PointsCost:     cost,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := ledger.ChangeBalance(tx, userID, -cost, models.PointTransactionConsume, ledger.Correlation{
			TaskType: emojiTaskType,
		}); err != nil {
			return err
		}
		return tx.Create(&task).Error
	})
	if err != nil {
		return nil, err
	}

	msg := &queue.TaskMessage{
		TaskID:   task.ID,
		UserID:   userID,
		ImageURL: req.ImageURL,
		DrivenID: req.DrivenID,
		Detect:   *detect,
	}
	if _, err := s.producer.Enqueue(ctx, msg); err != nil {
		slog.Error("enqueue failed, marking task failed",
			"task_id", task.ID, "error", err)
		s.failTask(task.ID, "failed to enqueue task: "+err.Error())
		task.Status = models.EmojiTaskFailed
		errMsg := "failed to enqueue task"
		task.ErrorMessage = &errMsg
	}

	resp := taskResponse(&task)
	return &resp, nil
}

func (s *EmojiService) GetTask(userID, taskID int64) (*dto.EmojiTaskResponse, error) {
	task, err := s.ownedTask(userID, taskID)
	if err != nil {
		return nil, err
	}
	resp := taskResponse(task)
	return &resp, nil
}

func (s *EmojiService) History(userID int64, offset, limit int) (*dto.EmojiHistoryResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.Model(&models.EmojiTask{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, err
	}

	var tasks []models.EmojiTask
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&tasks).Error; err != nil {
		return nil, err
	}

	items := make([]dto.EmojiTaskResponse, 0, len(tasks))
	for i := range tasks {
		items = append(items, taskResponse(&tasks[i]))
	}
	return &dto.EmojiHistoryResponse{Items: items, Total: total, Offset: offset, Limit: limit}, nil
}

func (s *EmojiService) Delete(userID, taskID int64) error {
	task, err := s.ownedTask(userID, taskID)
	if err != nil {
		return err
	}
	return s.db.Delete(task).Error
}

func (s *EmojiService) ownedTask(userID, taskID int64) (*models.EmojiTask, error) {
	var task models.EmojiTask
	err := s.db.Where("id = ? AND user_id = ?", taskID, userID).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *EmojiService) failTask(taskID int64, message string) {
	err := s.db.Model(&models.EmojiTask{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"status":        models.EmojiTaskFailed,
			"error_message": message,
		}).Error
	if err != nil {
		slog.Error("failed to mark task failed", "task_id", taskID, "error", err)
	}
}

func (s *EmojiService) styleName(drivenID string) string {
	for _, st := range s.catalog.Styles() {
		if st.DrivenID == drivenID {
			return st.Name
		}
	}
	return ""
}

func taskResponse(task *models.EmojiTask) dto.EmojiTaskResponse {
	return dto.EmojiTaskResponse{
		ID:           task.ID,
		Status:       string(task.Status),
		TaskType:     task.TaskType,
		DrivenID:     task.DrivenID,
		StyleName:    task.StyleName,
		PointsCost:   task.PointsCost,
		ResultURL:    task.ResultURL,
		ErrorMessage: task.ErrorMessage,
		CreatedAt:    task.CreatedAt,
		CompletedAt:  task.CompletedAt,
	}
}
