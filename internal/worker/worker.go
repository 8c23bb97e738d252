// Package worker contains methods for worker to init at start, and to generate thumbnails for uploaded images
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"time"

	"github.com/OParshikov/ImagePipeline/internal/imageproc"
	"github.com/OParshikov/ImagePipeline/internal/model"
	"github.com/OParshikov/ImagePipeline/internal/queue"
	"github.com/OParshikov/ImagePipeline/internal/service"
	"github.com/disintegration/imaging"
	kafkago "github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
)

const (
	thumbsPrefix       = "thumbs/"
	defaultMaxAttempts = 3
)

var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    2 * time.Second,
	Backoff:  1.5,
}

type ImageWorkerService interface {
	Get(ctx context.Context, id string) (*model.Image, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkReady(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, detail string) error
	AppendThumbnailKey(ctx context.Context, id string, key string) error
}

type Worker struct {
	storage     service.ImageStorage
	service     ImageWorkerService
	queue       <-chan kafkago.Message
	consumer    *wbfkafka.Consumer
	publisher   service.TaskPublisher
	deadLetter  service.TaskPublisher
	maxAttempts int
}

func NewWorkerInstance(strg service.ImageStorage, svc ImageWorkerService, q <-chan kafkago.Message, cons *wbfkafka.Consumer, pub, dlq service.TaskPublisher, maxAttempts int) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Worker{storage: strg, service: svc, queue: q, consumer: cons, publisher: pub, deadLetter: dlq, maxAttempts: maxAttempts}
}

func (w *Worker) StartWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				log.Println("Queue channel closed, stopping worker...")
				return
			}

			task, err := queue.DecodeTask(msg.Value)
			if err != nil {
				// битое сообщение перечитывать бессмысленно
				log.Printf("Dropping poison message: %v", err)
				w.commit(ctx, msg)
				continue
			}

			if err := w.handleTask(ctx, task); err != nil {
				log.Printf("Task %s attempt %d failed: %v", task.ImageID, task.Attempt, err)
				if rErr := w.retryOrBury(ctx, task); rErr != nil {
					// не коммитим - кафка передоставит сообщение сама
					log.Printf("Failed to requeue task %s: %v", task.ImageID, rErr)
					continue
				}
			}

			w.commit(ctx, msg)
		}
	}
}

// handleTask - возвращает ошибку только на транзиентных сбоях (хранилище/БД);
// терминальные исходы (декод не удался, запись удалена) завершаются внутри без ошибки
func (w *Worker) handleTask(ctx context.Context, task *model.Task) error {
	img, err := w.service.Get(ctx, task.ImageID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrImageNotFound):
			// запись удалили пока таска лежала в очереди - просто дропаем
			return nil
		case errors.Is(err, model.ErrIncorrectID):
			// кривой id не починится ретраями
			return nil
		default:
			return fmt.Errorf("worker failed to fetch image info %q from DB: %w", task.ImageID, err)
		}
	}

	// защита от повторной доставки уже завершенной таски
	switch img.Status {
	case model.StatusReady, model.StatusFailed:
		return nil
	}

	if err := w.service.MarkProcessing(ctx, task.ImageID); err != nil {
		switch {
		case errors.Is(err, model.ErrImageNotFound), errors.Is(err, model.ErrStatusConflict), errors.Is(err, model.ErrIncorrectID):
			// кто-то успел довести запись до терминального статуса
			return nil
		default:
			return fmt.Errorf("failed to mark image %q as processing: %w", task.ImageID, err)
		}
	}

	return w.processTask(ctx, task, img)
}

func (w *Worker) processTask(ctx context.Context, task *model.Task, img *model.Image) error {
	if len(task.Sizes) == 0 {
		return w.failTerminal(ctx, task.ImageID, "task carries no target sizes")
	}

	// достать из storage оригинал
	base, _, err := w.storage.Get(ctx, img.OriginalKey)
	if err != nil {
		return fmt.Errorf("worker failed to fetch base-image from storage: %w", err)
	}
	defer closeFileFlow(base)

	data, err := io.ReadAll(base)
	if err != nil {
		return fmt.Errorf("worker failed to read base-image from storage: %w", err)
	}

	// битый исходник ретраить бессмысленно - сразу failed
	if err := validateImgFormat(data); err != nil {
		return w.failTerminal(ctx, task.ImageID, fmt.Sprintf("cannot decode original: %v", err))
	}

	for _, size := range task.Sizes {
		result, resSize, err := imageproc.Thumbnailer(bytes.NewReader(data), size.Width, size.Height)
		if err != nil {
			return w.failTerminal(ctx, task.ImageID, fmt.Sprintf("cannot generate %s thumbnail: %v", size, err))
		}

		key := fmt.Sprintf("%s%s/%s.jpg", thumbsPrefix, task.ImageID, size)
		if err := w.storage.Put(ctx, key, resSize, model.JPEG, result); err != nil {
			return fmt.Errorf("worker failed to put %s thumbnail to storage: %w", size, err)
		}

		if err := w.service.AppendThumbnailKey(ctx, task.ImageID, key); err != nil {
			if errors.Is(err, model.ErrImageNotFound) {
				return nil
			}
			return fmt.Errorf("worker failed to append thumbnail key to DB: %w", err)
		}
	}

	// ready только после того, как все варианты легли в хранилище
	if err := w.service.MarkReady(ctx, task.ImageID); err != nil {
		switch {
		case errors.Is(err, model.ErrImageNotFound), errors.Is(err, model.ErrStatusConflict):
			return nil
		default:
			return fmt.Errorf("failed to mark image %q as ready: %w", task.ImageID, err)
		}
	}

	return nil
}

// retryOrBury - передоставка с инкрементом attempt, после исчерпания лимита - в dead-letter и failed
func (w *Worker) retryOrBury(ctx context.Context, task *model.Task) error {
	if task.Attempt < w.maxAttempts {
		next := *task
		next.Attempt++

		body, err := queue.EncodeTask(&next)
		if err != nil {
			return err
		}
		return w.publisher.SendWithRetry(ctx, retryStrategy, []byte(next.ImageID), body)
	}

	body, err := queue.EncodeTask(task)
	if err != nil {
		return err
	}
	if err := w.deadLetter.SendWithRetry(ctx, retryStrategy, []byte(task.ImageID), body); err != nil {
		return fmt.Errorf("failed to publish task %q to dead-letter: %w", task.ImageID, err)
	}

	return w.failTerminal(ctx, task.ImageID, model.ErrRetriesExceeded.Error())
}

func (w *Worker) failTerminal(ctx context.Context, id string, detail string) error {
	if err := w.service.MarkFailed(ctx, id, detail); err != nil &&
		!errors.Is(err, model.ErrImageNotFound) && !errors.Is(err, model.ErrStatusConflict) &&
		!errors.Is(err, model.ErrIncorrectID) {
		return fmt.Errorf("failed to mark image %q as failed: %w", id, err)
	}
	return nil
}

func (w *Worker) commit(ctx context.Context, msg kafkago.Message) {
	if err := w.consumer.Commit(ctx, msg); err != nil {
		log.Printf("Failed to commit queue-message: %v", err)
	}
}

func validateImgFormat(data []byte) error {
	_, f, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return err
	}

	format, err := imaging.FormatFromExtension(f)
	if err != nil {
		return err
	}

	switch format {
	case imaging.PNG, imaging.JPEG, imaging.GIF:
	default:
		return model.ErrDecodeFailed
	}

	return nil
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}

	if err := res.Close(); err != nil {
		log.Println("Worker failed to close fileflow:", err)
	}
}
