package queue

import (
	"testing"

	"github.com/OParshikov/ImagePipeline/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestTaskCodec(t *testing.T) {
	id := uuid.New().String()

	body, err := EncodeTask(&model.Task{
		ImageID: id,
		Attempt: 3,
		Sizes:   []model.Size{{Width: 100, Height: 100}, {Width: 300, Height: 300}},
	})
	require.NoError(t, err)

	task, err := DecodeTask(body)
	require.NoError(t, err)
	require.Equal(t, id, task.ImageID)
	require.Equal(t, 3, task.Attempt)
	require.Len(t, task.Sizes, 2)
	require.Equal(t, "100x100", task.Sizes[0].String())
}

func TestEncodeTask_DefaultsAttempt(t *testing.T) {
	body, err := EncodeTask(&model.Task{ImageID: "some-id"})
	require.NoError(t, err)

	task, err := DecodeTask(body)
	require.NoError(t, err)
	require.Equal(t, 1, task.Attempt)
}

func TestDecodeTask_Errors(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"not json", []byte("not-a-task")},
		{"missing image_id", []byte(`{"attempt":1}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTask(tt.body)
			require.Error(t, err)
		})
	}
}
