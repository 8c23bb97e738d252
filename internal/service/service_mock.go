package service

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/OParshikov/ImagePipeline/internal/model"
	"github.com/wb-go/wbf/retry"
)

// MOCK REPOSITORY

type mockRepo struct {
	createFn     func(ctx context.Context, img *model.Image) error
	getFn        func(ctx context.Context, id string) (*model.Image, error)
	deleteFn     func(ctx context.Context, id string) error
	casFn        func(ctx context.Context, id string, next model.Status, detail string, expected ...model.Status) error
	appendFn     func(ctx context.Context, id string, key string) error
	fetchStaleFn func(ctx context.Context, window time.Duration, limit int) ([]string, error)
}

func (m *mockRepo) Create(ctx context.Context, img *model.Image) error {
	return m.createFn(ctx, img)
}

func (m *mockRepo) Get(ctx context.Context, id string) (*model.Image, error) {
	return m.getFn(ctx, id)
}

func (m *mockRepo) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockRepo) CompareAndUpdateStatus(ctx context.Context, id string, next model.Status, detail string, expected ...model.Status) error {
	return m.casFn(ctx, id, next, detail, expected...)
}

func (m *mockRepo) AppendThumbnailKey(ctx context.Context, id string, key string) error {
	return m.appendFn(ctx, id, key)
}

func (m *mockRepo) FetchStale(ctx context.Context, window time.Duration, limit int) ([]string, error) {
	return m.fetchStaleFn(ctx, window, limit)
}

// MOCK STORAGE

type mockStorage struct {
	putFn    func(ctx context.Context, key string, size int64, ct string, r io.Reader) error
	getFn    func(ctx context.Context, key string) (io.ReadCloser, string, error)
	deleteFn func(ctx context.Context, key string) error
}

func (m *mockStorage) Put(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
	return m.putFn(ctx, key, size, ct, r)
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.getFn(ctx, key)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	return m.deleteFn(ctx, key)
}

// MOCK PUBLISHER

type mockPublisher struct {
	sendFn func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error
}

func (m *mockPublisher) SendWithRetry(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
	return m.sendFn(ctx, s, key, v)
}

// MOCK для multipart.File
type fakeMultipartFile struct {
	*bytes.Reader
}

func (f *fakeMultipartFile) Close() error {
	return nil
}
