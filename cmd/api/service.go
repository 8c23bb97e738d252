package main

import (
	"context"

	"github.com/OParshikov/ImagePipeline/internal/model"
)

type ImageAPIService interface {
	Upload(ctx context.Context, data *model.ImageUploadData) (*model.Image, error)
	Get(ctx context.Context, id string) (*model.Image, error)
	Delete(ctx context.Context, id string) error
	ReviveStale(ctx context.Context, limit int)
}
