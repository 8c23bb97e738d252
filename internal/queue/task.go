package queue

import (
	"encoding/json"
	"fmt"

	"github.com/OParshikov/ImagePipeline/internal/model"
)

// EncodeTask - готовит тело сообщения для отправки в кафку
func EncodeTask(task *model.Task) ([]byte, error) {
	if task.Attempt < 1 {
		task.Attempt = 1
	}

	body, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task %q: %w", task.ImageID, err)
	}
	return body, nil
}

func DecodeTask(body []byte) (*model.Task, error) {
	var task model.Task
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task message: %w", err)
	}

	if task.ImageID == "" {
		return nil, fmt.Errorf("task message without image_id")
	}
	if task.Attempt < 1 {
		task.Attempt = 1
	}

	return &task, nil
}
