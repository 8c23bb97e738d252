// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"

	"github.com/OParshikov/ImagePipeline/internal/model"
	"github.com/wb-go/wbf/ginext"
)

type ImageHandler struct {
	service ImageService
}

type ImageService interface {
	Upload(ctx context.Context, data *model.ImageUploadData) (*model.Image, error)
	Get(ctx context.Context, id string) (*model.Image, error)
	Delete(ctx context.Context, id string) error // удалить как в базе, так и в minio
}

func NewImageHandler(svc ImageService) *ImageHandler {
	return &ImageHandler{
		service: svc,
	}
}

// HealthCheck - живость процесса, сервис-слой не дергаем
func (h ImageHandler) HealthCheck(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"status": "ok"})
}

func (h ImageHandler) Upload(ctx *ginext.Context) {
	imageFile, imageHeader, err := ctx.Request.FormFile("image")
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "image is required"})
		return
	}
	defer closeFileFlow(imageFile)

	data := model.ImageUploadData{
		File:        imageFile,
		ContentType: imageHeader.Header.Get("Content-Type"),
		Size:        imageHeader.Size,
	}

	// передаем в сервис
	res, err := h.service.Upload(ctx.Request.Context(), &data)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(201, map[string]any{"id": res.UID, "status": res.Status})
}

func (h ImageHandler) GetByID(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, err := h.service.Get(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h ImageHandler) Delete(ctx *ginext.Context) {
	id := ctx.Param("id")
	if err := h.service.Delete(ctx.Request.Context(), id); err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Status(204)
}
