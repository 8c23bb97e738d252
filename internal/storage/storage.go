package storage

import (
	"log"
	"time"

	"github.com/OParshikov/ImagePipeline/internal/storage/miniostorage"
	"github.com/wb-go/wbf/config"
)

// NewImgStorage - коннект к хранилищу оригиналов и миниатюр, ждет до победного
func NewImgStorage(cfg *config.Config, delay time.Duration) *miniostorage.MinioImageStorage {
	for attempt := 1; ; attempt++ {
		client, err := miniostorage.NewMinioClient(cfg)
		if err != nil {
			log.Printf("Failed to init connection to IMG-storage (attempt %d): %v\nNext retry in %v...", attempt, err, delay)
			time.Sleep(delay)
			continue
		}
		log.Println("Successfully connected IMG-storage!")
		return client
	}
}
