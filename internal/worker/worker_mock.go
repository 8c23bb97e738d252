package worker

import (
	"context"
	"io"

	"github.com/OParshikov/ImagePipeline/internal/model"
	"github.com/wb-go/wbf/retry"
)

type mockWorkerService struct {
	getFn            func(ctx context.Context, id string) (*model.Image, error)
	markProcessingFn func(ctx context.Context, id string) error
	markReadyFn      func(ctx context.Context, id string) error
	markFailedFn     func(ctx context.Context, id string, detail string) error
	appendFn         func(ctx context.Context, id string, key string) error
}

func (m *mockWorkerService) Get(ctx context.Context, id string) (*model.Image, error) {
	return m.getFn(ctx, id)
}

func (m *mockWorkerService) MarkProcessing(ctx context.Context, id string) error {
	if m.markProcessingFn == nil {
		return nil
	}
	return m.markProcessingFn(ctx, id)
}

func (m *mockWorkerService) MarkReady(ctx context.Context, id string) error {
	if m.markReadyFn == nil {
		return nil
	}
	return m.markReadyFn(ctx, id)
}

func (m *mockWorkerService) MarkFailed(ctx context.Context, id string, detail string) error {
	if m.markFailedFn == nil {
		return nil
	}
	return m.markFailedFn(ctx, id, detail)
}

func (m *mockWorkerService) AppendThumbnailKey(ctx context.Context, id string, key string) error {
	if m.appendFn == nil {
		return nil
	}
	return m.appendFn(ctx, id, key)
}

//----------------------------------

type mockStorage struct {
	getFn    func(ctx context.Context, key string) (io.ReadCloser, string, error)
	putFn    func(ctx context.Context, key string, size int64, ct string, r io.Reader) error
	deleteFn func(ctx context.Context, key string) error
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.getFn(ctx, key)
}

func (m *mockStorage) Put(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
	return m.putFn(ctx, key, size, ct, r)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	if m.deleteFn == nil {
		return nil
	}
	return m.deleteFn(ctx, key)
}

//----------------------------------

type mockPublisher struct {
	sendFn func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error
}

func (m *mockPublisher) SendWithRetry(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
	return m.sendFn(ctx, s, key, v)
}
