// Package service provides business-logic for the app
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/OParshikov/ImagePipeline/internal/model"
	"github.com/OParshikov/ImagePipeline/internal/mwlogger"
	"github.com/OParshikov/ImagePipeline/internal/queue"
	"github.com/OParshikov/ImagePipeline/internal/repository"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/retry"
)

const originalsPrefix = "originals/"

type ImageService struct {
	repo           repository.ImageRepo
	publisher      TaskPublisher
	storage        ImageStorage
	maxUploadBytes int64
	thumbSizes     []model.Size
	staleWindow    time.Duration
}

func NewImageService(cfg *config.Config, imageRep repository.ImageRepo, pub TaskPublisher, strg ImageStorage) *ImageService {
	return &ImageService{
		repo:           imageRep,
		publisher:      pub,
		storage:        strg,
		maxUploadBytes: maxUploadBytes(cfg),
		thumbSizes:     parseThumbSizes(cfg.GetString("THUMB_SIZES")),
		staleWindow:    staleWindow(cfg),
	}
}

// TaskPublisher - контракт для работы с очередью
type TaskPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// ImageStorage - контракт для работы с хранилищем
type ImageStorage interface {
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
}

// Стратегия ретрая отправки в очередь - можно потом вынести значения в конфиг/env
var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

// Upload - валидирует файл, кладет оригинал в хранилище, создает запись в БД в статусе pending
// и публикует таску на генерацию миниатюр. Порядок строго такой: байты - запись - таска,
// потерянная таска восстанавливается через ReviveStale, а запись без байтов - нет.
func (c ImageService) Upload(ctx context.Context, imageData *model.ImageUploadData) (*model.Image, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := validateUpload(imageData, c.maxUploadBytes); err != nil {
		return nil, err
	}

	newImage := &model.Image{
		UID:    uuid.New(),
		Status: model.StatusPending,
	}

	// кладем оригинал в хранилище
	srcKey := originalsPrefix + newImage.UID.String() + model.GetImageFileExt[imageData.ContentType]
	if err := c.storage.Put(ctx, srcKey, imageData.Size, imageData.ContentType, imageData.File); err != nil {
		logger.Error().Err(err).Msg("Failed to save src-image in Storage")
		return nil, model.ErrCommon500
	}
	newImage.OriginalKey = srcKey

	now := time.Now().UTC()
	newImage.CreatedAt = &now
	newImage.UpdatedAt = &now

	// шлем в базу
	if err := c.repo.Create(ctx, newImage); err != nil {
		logger.Error().Err(err).Msg("Failed to create image in DB")
		return nil, model.ErrCommon500
	}

	// кладем таску в очередь; неудача не валит аплоад - запись подберет ReviveStale
	if err := c.publishTask(ctx, newImage.UID.String()); err != nil {
		logger.Warn().Err(err).Msg(fmt.Sprintf("Failed to publish task for image %q, leaving it for the recovery sweep", newImage.UID))
	}

	return newImage, nil
}

func (c ImageService) Get(ctx context.Context, id string) (*model.Image, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return nil, model.ErrIncorrectID
	}

	res, err := c.repo.Get(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrImageNotFound):
			return nil, model.ErrImageNotFound // 404
		default:
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch image %q from DB", id))
			return nil, model.ErrCommon500
		}
	}

	return res, nil
}

func (c ImageService) Delete(ctx context.Context, id string) error {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return model.ErrIncorrectID
	}

	// читаем из базы
	res, err := c.repo.Get(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrImageNotFound):
			return model.ErrImageNotFound // 404
		default:
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch image %q from DB", id))
			return model.ErrCommon500
		}
	}

	// удаляем из базы
	if err := c.repo.Delete(ctx, id); err != nil {
		logger.Error().Err(err).Msg("Failed to delete image from DB")
		return model.ErrCommon500
	}

	// удаляем из хранилища оригинал и миниатюры, если они уже есть
	if err := c.storage.Delete(ctx, res.OriginalKey); err != nil {
		logger.Error().Err(err).Msg("Failed to delete src-image from Storage")
		return model.ErrCommon500
	}
	for _, key := range res.ThumbnailKeys {
		if err := c.storage.Delete(ctx, key); err != nil {
			logger.Error().Err(err).Msg("Failed to delete thumbnail from Storage")
			return model.ErrCommon500
		}
	}

	return nil
}

// ----- методы для воркера -----

// MarkProcessing - вход в processing разрешен и из pending, и из processing:
// повторный заход после падения воркера не ошибка, repo при этом чистит thumbnail_keys
func (c ImageService) MarkProcessing(ctx context.Context, id string) error {
	return c.transition(ctx, id, model.StatusProcessing, "", model.StatusPending, model.StatusProcessing)
}

func (c ImageService) MarkReady(ctx context.Context, id string) error {
	return c.transition(ctx, id, model.StatusReady, "", model.StatusProcessing)
}

func (c ImageService) MarkFailed(ctx context.Context, id string, detail string) error {
	return c.transition(ctx, id, model.StatusFailed, detail, model.StatusPending, model.StatusProcessing)
}

func (c ImageService) AppendThumbnailKey(ctx context.Context, id string, key string) error {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := c.repo.AppendThumbnailKey(ctx, id, key); err != nil {
		switch {
		case errors.Is(err, model.ErrImageNotFound):
			return model.ErrImageNotFound
		default:
			logger.Error().Err(err).Msg("Failed to append thumbnail key in DB")
			return err
		}
	}
	return nil
}

func (c ImageService) transition(ctx context.Context, id string, next model.Status, detail string, expected ...model.Status) error {
	if err := uuid.Validate(id); err != nil {
		return model.ErrIncorrectID
	}

	logger := mwlogger.LoggerFromContext(ctx)

	if err := c.repo.CompareAndUpdateStatus(ctx, id, next, detail, expected...); err != nil {
		switch {
		case errors.Is(err, model.ErrImageNotFound), errors.Is(err, model.ErrStatusConflict):
			return err
		default:
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to update image %q status to %q in DB", id, next))
			return err
		}
	}

	return nil
}

// ReviveStale - реанимация записей, зависших в pending/processing: публикуем таски заново.
// Дубликаты доставок безопасны - воркер идемпотентен.
func (c ImageService) ReviveStale(ctx context.Context, limit int) {
	logger := mwlogger.LoggerFromContext(ctx)

	stale, err := c.repo.FetchStale(ctx, c.staleWindow, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load stale images from DB")
		return
	}

	for _, id := range stale {
		if err := c.publishTask(ctx, id); err != nil {
			logger.Error().Err(err).Msg("Failed to publish revived task to queue")
		}
	}
}

func (c ImageService) publishTask(ctx context.Context, id string) error {
	body, err := queue.EncodeTask(&model.Task{
		ImageID: id,
		Attempt: 1,
		Sizes:   c.thumbSizes,
	})
	if err != nil {
		return err
	}

	return c.publisher.SendWithRetry(ctx, retryStrategy, []byte(id), body)
}
