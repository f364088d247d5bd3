package repository

import (
	"time"

	"gorm.io/gorm"

	"linktree-ai-go/internal/model"
)

// TaskRepository tracks the lifecycle of asynchronous ingestion tasks.
type TaskRepository interface {
	Create(task *model.IngestionTask) error
	FindByTaskID(taskID string) (*model.IngestionTask, error)
	MarkProcessing(taskID string) error
	MarkCompleted(taskID string) error
	MarkFailed(taskID string, errMsg string) error
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository instance.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Create inserts a new task row in the pending state.
func (r *taskRepository) Create(task *model.IngestionTask) error {
	return r.db.Create(task).Error
}

// FindByTaskID looks up a task by its external id.
func (r *taskRepository) FindByTaskID(taskID string) (*model.IngestionTask, error) {
	var task model.IngestionTask
	err := r.db.Where("task_id = ?", taskID).First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// MarkProcessing moves a task into the processing state.
func (r *taskRepository) MarkProcessing(taskID string) error {
	return r.db.Model(&model.IngestionTask{}).
		Where("task_id = ?", taskID).
		Update("status", model.TaskStatusProcessing).Error
}

// MarkCompleted moves a task into the completed state and stamps the
// completion time.
func (r *taskRepository) MarkCompleted(taskID string) error {
	now := time.Now()
	return r.db.Model(&model.IngestionTask{}).
		Where("task_id = ?", taskID).
		Updates(map[string]interface{}{
			"status":       model.TaskStatusCompleted,
			"completed_at": &now,
		}).Error
}

// MarkFailed moves a task into the failed state and records the error.
func (r *taskRepository) MarkFailed(taskID string, errMsg string) error {
	now := time.Now()
	return r.db.Model(&model.IngestionTask{}).
		Where("task_id = ?", taskID).
		Updates(map[string]interface{}{
			"status":        model.TaskStatusFailed,
			"error_message": errMsg,
			"completed_at":  &now,
		}).Error
}
