package transport

import (
	"context"

	"github.com/OParshikov/ImagePipeline/internal/model"
	"github.com/gin-gonic/gin"
)

type mockImageService struct {
	uploadFn func(ctx context.Context, d *model.ImageUploadData) (*model.Image, error)
	getFn    func(ctx context.Context, id string) (*model.Image, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockImageService) Upload(ctx context.Context, d *model.ImageUploadData) (*model.Image, error) {
	return m.uploadFn(ctx, d)
}

func (m *mockImageService) Get(ctx context.Context, id string) (*model.Image, error) {
	return m.getFn(ctx, id)
}

func (m *mockImageService) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func init() {
	gin.SetMode(gin.TestMode)
}
