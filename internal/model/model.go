// Package model provides data-structs for internal app-usage
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

var StatusMap = map[Status]bool{
	StatusPending:    true,
	StatusProcessing: true,
	StatusReady:      true,
	StatusFailed:     true,
}

//---------------------

type Image struct {
	UID           uuid.UUID   `json:"id"`
	OriginalKey   string      `json:"original_ref"`
	ThumbnailKeys StringSlice `json:"thumbnail_refs"`
	Status        Status      `json:"status"`
	ErrorDetail   string      `json:"error_detail,omitempty"`
	CreatedAt     *time.Time  `json:"created_at,omitempty"`
	UpdatedAt     *time.Time  `json:"updated_at,omitempty"`
}

type ImageUploadData struct {
	File        multipart.File
	ContentType string
	Size        int64
}

//-------------------

// Task - сообщение в очереди на генерацию миниатюр для одной картинки
type Task struct {
	ImageID string `json:"image_id"`
	Attempt int    `json:"attempt"`
	Sizes   []Size `json:"sizes"`
}

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ------------------

var (
	ErrCommon500       error = errors.New("something went wrong. Try again later") // 500
	ErrIncorrectID     error = errors.New("incorrect image UUID")                  // 400
	ErrImageNotFound   error = errors.New("specified image UUID doesn't exist")    // 404
	ErrEmptyFile       error = errors.New("empty image file provided")             // 400
	ErrFileTooLarge    error = errors.New("image file exceeds maximum size")       // 400
	ErrUnsupportedType error = errors.New("unsupported image content-type")        // 400
	ErrStatusConflict  error = errors.New("image status has changed concurrently")
	ErrDecodeFailed    error = errors.New("image content cannot be decoded")
	ErrRetriesExceeded error = errors.New("max retries exceeded")
)

//--------------------

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	GIF  = "image/gif"
)

var GetImageFileExt = map[string]string{
	JPEG: ".jpg",
	PNG:  ".png",
	GIF:  ".gif",
}

var InImageTypeMap = map[string]bool{
	JPEG: true,
	PNG:  true,
	GIF:  true,
}

//--------------------

type StringSlice []string

func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = []string{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for StringSlice")
	}

	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to []StringSlice: %w", err)
	}
	return nil
}

func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 || s == nil {
		return []byte(`[]`), nil
	}
	res, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal []StringSlice to JSONB: %w", err)
	}

	return res, nil
}
