package worker

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"testing"

	"github.com/OParshikov/ImagePipeline/internal/model"
	"github.com/OParshikov/ImagePipeline/internal/queue"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
)

func testTask(id string, attempt int) *model.Task {
	return &model.Task{
		ImageID: id,
		Attempt: attempt,
		Sizes:   []model.Size{{Width: 32, Height: 32}, {Width: 64, Height: 64}},
	}
}

func TestWorker_handleTask(t *testing.T) {
	ctx := context.Background()
	id := uuid.New().String()

	tests := []struct {
		name    string
		image   *model.Image
		getErr  error
		markErr error
		wantErr bool
	}{
		{
			name:    "already ready",
			image:   &model.Image{Status: model.StatusReady},
			wantErr: false,
		},
		{
			name:    "already failed",
			image:   &model.Image{Status: model.StatusFailed},
			wantErr: false,
		},
		{
			name:    "image not found",
			getErr:  model.ErrImageNotFound,
			wantErr: false,
		},
		{
			name:    "malformed image id",
			getErr:  model.ErrIncorrectID,
			wantErr: false,
		},
		{
			name:    "db down on get",
			getErr:  errors.New("db down"),
			wantErr: true,
		},
		{
			name:    "concurrent terminal transition",
			image:   &model.Image{Status: model.StatusPending},
			markErr: model.ErrStatusConflict,
			wantErr: false,
		},
		{
			name:    "db down on mark processing",
			image:   &model.Image{Status: model.StatusPending},
			markErr: errors.New("db down"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			puts := 0

			svc := &mockWorkerService{
				getFn: func(ctx context.Context, _ string) (*model.Image, error) {
					return tt.image, tt.getErr
				},
				markProcessingFn: func(ctx context.Context, _ string) error {
					return tt.markErr
				},
			}

			w := &Worker{
				service: svc,
				storage: &mockStorage{
					putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
						puts++
						return nil
					},
				},
				maxAttempts: defaultMaxAttempts,
			}

			err := w.handleTask(ctx, testTask(id, 1))

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			// ни одна из веток не должна дойти до записи миниатюр
			require.Zero(t, puts)
		})
	}
}

func TestWorker_processTask_OK(t *testing.T) {
	ctx := context.Background()
	id := uuid.New().String()

	img := &model.Image{
		UID:         uuid.MustParse(id),
		Status:      model.StatusProcessing,
		OriginalKey: "originals/" + id + ".png",
	}

	putKeys := []string{}
	appendedKeys := []string{}
	readyCalled := false

	storage := &mockStorage{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			require.Equal(t, img.OriginalKey, key)
			return io.NopCloser(bytes.NewReader(validPNG())), model.PNG, nil
		},
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			require.Equal(t, model.JPEG, ct)
			require.Greater(t, size, int64(0))
			putKeys = append(putKeys, key)
			return nil
		},
	}

	svc := &mockWorkerService{
		appendFn: func(ctx context.Context, aID string, key string) error {
			require.Equal(t, id, aID)
			appendedKeys = append(appendedKeys, key)
			return nil
		},
		markReadyFn: func(ctx context.Context, _ string) error {
			// все миниатюры должны быть в хранилище до перехода в ready
			require.Len(t, appendedKeys, 2)
			readyCalled = true
			return nil
		},
	}

	w := &Worker{storage: storage, service: svc, maxAttempts: defaultMaxAttempts}

	require.NoError(t, w.processTask(ctx, testTask(id, 1), img))
	require.Equal(t, []string{
		"thumbs/" + id + "/32x32.jpg",
		"thumbs/" + id + "/64x64.jpg",
	}, putKeys)
	require.Equal(t, putKeys, appendedKeys)
	require.True(t, readyCalled)
}

// битый исходник - терминальный failed без ретраев
func TestWorker_processTask_DecodeError(t *testing.T) {
	id := uuid.New().String()
	failedDetail := ""

	storage := &mockStorage{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			return io.NopCloser(bytes.NewReader([]byte("not-an-image"))), "", nil
		},
	}

	svc := &mockWorkerService{
		markFailedFn: func(ctx context.Context, _ string, detail string) error {
			failedDetail = detail
			return nil
		},
	}

	w := &Worker{storage: storage, service: svc, maxAttempts: defaultMaxAttempts}

	err := w.processTask(context.Background(), testTask(id, 1), &model.Image{OriginalKey: "originals/x.png"})
	require.NoError(t, err)
	require.Contains(t, failedDetail, "cannot decode original")
}

// недоступное хранилище - транзиентная ошибка, failed не ставим
func TestWorker_processTask_StorageErrors(t *testing.T) {
	id := uuid.New().String()
	failedCalls := 0

	svc := &mockWorkerService{
		markFailedFn: func(ctx context.Context, _ string, _ string) error {
			failedCalls++
			return nil
		},
	}

	t.Run("get fails", func(t *testing.T) {
		w := &Worker{
			storage: &mockStorage{
				getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
					return nil, "", errors.New("storage down")
				},
			},
			service:     svc,
			maxAttempts: defaultMaxAttempts,
		}

		err := w.processTask(context.Background(), testTask(id, 1), &model.Image{OriginalKey: "originals/x.png"})
		require.Error(t, err)
	})

	t.Run("put fails", func(t *testing.T) {
		w := &Worker{
			storage: &mockStorage{
				getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
					return io.NopCloser(bytes.NewReader(validPNG())), model.PNG, nil
				},
				putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
					return errors.New("storage down")
				},
			},
			service:     svc,
			maxAttempts: defaultMaxAttempts,
		}

		err := w.processTask(context.Background(), testTask(id, 1), &model.Image{OriginalKey: "originals/x.png"})
		require.Error(t, err)
	})

	require.Zero(t, failedCalls)
}

func TestWorker_retryOrBury_Republish(t *testing.T) {
	id := uuid.New().String()
	var republished *model.Task

	pub := &mockPublisher{
		sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			task, err := queue.DecodeTask(v)
			require.NoError(t, err)
			republished = task
			return nil
		},
	}

	w := &Worker{publisher: pub, maxAttempts: 3}

	require.NoError(t, w.retryOrBury(context.Background(), testTask(id, 1)))
	require.NotNil(t, republished)
	require.Equal(t, 2, republished.Attempt)
	require.Equal(t, id, republished.ImageID)
}

func TestWorker_retryOrBury_DeadLetter(t *testing.T) {
	id := uuid.New().String()
	dlqCalled := false
	failedDetail := ""

	dlq := &mockPublisher{
		sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			task, err := queue.DecodeTask(v)
			require.NoError(t, err)
			require.Equal(t, 3, task.Attempt)
			dlqCalled = true
			return nil
		},
	}

	svc := &mockWorkerService{
		markFailedFn: func(ctx context.Context, _ string, detail string) error {
			failedDetail = detail
			return nil
		},
	}

	w := &Worker{deadLetter: dlq, service: svc, maxAttempts: 3}

	require.NoError(t, w.retryOrBury(context.Background(), testTask(id, 3)))
	require.True(t, dlqCalled)
	require.Equal(t, model.ErrRetriesExceeded.Error(), failedDetail)
}

// транзиентный сбой на первых двух попытках, успех на третьей:
// прогоняем цикл доставки руками, как это делает StartWorker
func TestWorker_RetryFlow_EventuallyReady(t *testing.T) {
	ctx := context.Background()
	id := uuid.New().String()

	img := &model.Image{
		UID:         uuid.MustParse(id),
		Status:      model.StatusPending,
		OriginalKey: "originals/" + id + ".png",
	}

	putCalls := 0
	finalStatus := model.StatusPending
	var requeued []byte

	storage := &mockStorage{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			return io.NopCloser(bytes.NewReader(validPNG())), model.PNG, nil
		},
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			putCalls++
			if putCalls <= 2 {
				return errors.New("transient storage failure")
			}
			return nil
		},
	}

	svc := &mockWorkerService{
		getFn: func(ctx context.Context, _ string) (*model.Image, error) {
			return img, nil
		},
		markReadyFn: func(ctx context.Context, _ string) error {
			finalStatus = model.StatusReady
			return nil
		},
		markFailedFn: func(ctx context.Context, _ string, _ string) error {
			finalStatus = model.StatusFailed
			return nil
		},
	}

	pub := &mockPublisher{
		sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			requeued = v
			return nil
		},
	}

	w := &Worker{storage: storage, service: svc, publisher: pub, deadLetter: pub, maxAttempts: 5}

	task := testTask(id, 1)
	for delivery := 0; delivery < 5; delivery++ {
		err := w.handleTask(ctx, task)
		if err == nil {
			break
		}
		require.NoError(t, w.retryOrBury(ctx, task))
		task, err = queue.DecodeTask(requeued)
		require.NoError(t, err)
	}

	require.Equal(t, model.StatusReady, finalStatus)
	require.Equal(t, 3, task.Attempt)
}

// хранилище стабильно отваливается на второй миниатюре - после исчерпания лимита
// таска уходит в dead-letter, запись помечается failed, хотя первая миниатюра уже легла
func TestWorker_RetryFlow_PartialFailureBuried(t *testing.T) {
	ctx := context.Background()
	id := uuid.New().String()

	img := &model.Image{
		UID:         uuid.MustParse(id),
		Status:      model.StatusPending,
		OriginalKey: "originals/" + id + ".png",
	}

	appendedKeys := []string{}
	failedDetail := ""
	dlqCalled := false
	var requeued []byte

	storage := &mockStorage{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			return io.NopCloser(bytes.NewReader(validPNG())), model.PNG, nil
		},
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			if key == "thumbs/"+id+"/64x64.jpg" {
				return errors.New("persistent storage failure")
			}
			return nil
		},
	}

	svc := &mockWorkerService{
		getFn: func(ctx context.Context, _ string) (*model.Image, error) {
			return img, nil
		},
		appendFn: func(ctx context.Context, _ string, key string) error {
			appendedKeys = append(appendedKeys, key)
			return nil
		},
		markFailedFn: func(ctx context.Context, _ string, detail string) error {
			failedDetail = detail
			return nil
		},
	}

	pub := &mockPublisher{
		sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			requeued = v
			return nil
		},
	}
	dlq := &mockPublisher{
		sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			dlqCalled = true
			return nil
		},
	}

	w := &Worker{storage: storage, service: svc, publisher: pub, deadLetter: dlq, maxAttempts: 3}

	task := testTask(id, 1)
	for delivery := 0; delivery < 3; delivery++ {
		err := w.handleTask(ctx, task)
		require.Error(t, err)
		require.NoError(t, w.retryOrBury(ctx, task))
		if delivery < 2 {
			task, err = queue.DecodeTask(requeued)
			require.NoError(t, err)
		}
	}

	require.True(t, dlqCalled)
	require.Equal(t, model.ErrRetriesExceeded.Error(), failedDetail)
	// в хранилище успела лечь только первая миниатюра - ссылки с failed-записи снимает БД
	for _, key := range appendedKeys {
		require.Equal(t, "thumbs/"+id+"/32x32.jpg", key)
	}
}

// повторная доставка после ready - no-op, ни одной записи в хранилище
func TestWorker_handleTask_IdempotentRedelivery(t *testing.T) {
	id := uuid.New().String()
	puts := 0

	svc := &mockWorkerService{
		getFn: func(ctx context.Context, _ string) (*model.Image, error) {
			return &model.Image{
				Status:        model.StatusReady,
				ThumbnailKeys: model.StringSlice{"thumbs/" + id + "/32x32.jpg"},
			}, nil
		},
	}

	w := &Worker{
		service: svc,
		storage: &mockStorage{
			putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
				puts++
				return nil
			},
		},
		maxAttempts: defaultMaxAttempts,
	}

	require.NoError(t, w.handleTask(context.Background(), testTask(id, 2)))
	require.Zero(t, puts)
}

func TestValidateImgFormat(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"valid png", validPNG(), false},
		{"valid jpeg", validJPEG(), false},
		{"invalid data", []byte("xxx"), true},
		{"empty data", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateImgFormat(tt.data)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func validPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{R: 100, G: 100, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func validJPEG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{R: 100, G: 100, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}
