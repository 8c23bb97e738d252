package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/OParshikov/ImagePipeline/internal/model"
	"github.com/wb-go/wbf/config"
)

const (
	defaultMaxUploadBytes = 5 << 20 // 5 MiB
	defaultStaleWindow    = 10 * time.Minute
)

var defaultThumbSizes = []model.Size{
	{Width: 100, Height: 100},
	{Width: 300, Height: 300},
	{Width: 1200, Height: 1200},
}

func validateUpload(raw *model.ImageUploadData, maxBytes int64) error {
	if raw == nil || raw.File == nil || raw.Size <= 0 {
		return model.ErrEmptyFile
	}
	if raw.Size > maxBytes {
		return model.ErrFileTooLarge
	}
	if !model.InImageTypeMap[raw.ContentType] {
		return model.ErrUnsupportedType
	}
	return nil
}

func maxUploadBytes(cfg *config.Config) int64 {
	v := cfg.GetInt("MAX_UPLOAD_BYTES")
	if v <= 0 {
		return defaultMaxUploadBytes
	}
	return int64(v)
}

func staleWindow(cfg *config.Config) time.Duration {
	v := cfg.GetInt("STALE_WINDOW_SEC")
	if v <= 0 {
		return defaultStaleWindow
	}
	return time.Duration(v) * time.Second
}

// parseThumbSizes - разбирает THUMB_SIZES вида "100x100,300x300" или "100,300";
// одиночное число трактуем как квадратную рамку
func parseThumbSizes(raw string) []model.Size {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultThumbSizes
	}

	sizes := make([]model.Size, 0, 3)
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}

		w, h, found := strings.Cut(part, "x")
		width, err := strconv.Atoi(strings.TrimSpace(w))
		if err != nil || width <= 0 {
			continue
		}

		height := width
		if found {
			height, err = strconv.Atoi(strings.TrimSpace(h))
			if err != nil || height <= 0 {
				continue
			}
		}

		sizes = append(sizes, model.Size{Width: width, Height: height})
	}

	if len(sizes) == 0 {
		return defaultThumbSizes
	}
	return sizes
}
