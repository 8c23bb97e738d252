package imgpostgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/OParshikov/ImagePipeline/internal/model"
	"github.com/wb-go/wbf/dbpg"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

func (p PostgresRepo) Create(ctx context.Context, n *model.Image) error {
	query := `INSERT INTO images (image_uid, original_key, thumbnail_keys, status, error_detail, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := p.DB.ExecContext(ctx, query, n.UID, n.OriginalKey, n.ThumbnailKeys, n.Status, n.ErrorDetail, n.CreatedAt, n.CreatedAt)
	return err
}

func (p PostgresRepo) Get(ctx context.Context, id string) (*model.Image, error) {
	query := `SELECT image_uid, original_key, thumbnail_keys, status, error_detail, created_at, updated_at
	FROM images
	WHERE image_uid = $1`
	var image model.Image

	err := p.DB.QueryRowContext(ctx, query, id).Scan(&image.UID,
		&image.OriginalKey,
		&image.ThumbnailKeys,
		&image.Status,
		&image.ErrorDetail,
		&image.CreatedAt,
		&image.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrImageNotFound
		default:
			return nil, err // 500
		}
	}
	return &image, nil
}

func (p PostgresRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM images
	WHERE image_uid = $1`

	res, err := p.DB.ExecContext(ctx, query, id)
	if err != nil {
		return err // 500
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return model.ErrImageNotFound // 404
	}
	return nil
}

// CompareAndUpdateStatus - переход статуса строго из одного из expected-статусов.
// Вход в processing и failed обнуляет thumbnail_keys: повторная доставка не плодит дубли ссылок,
// а у failed-записи не остаётся ссылок от частично сгенерированных миниатюр.
func (p PostgresRepo) CompareAndUpdateStatus(ctx context.Context, id string, next model.Status, errDetail string, expected ...model.Status) error {
	if len(expected) == 0 {
		return fmt.Errorf("no expected statuses provided for transition to %q", next)
	}

	args := []any{next, errDetail, id}
	placeholders := make([]string, 0, len(expected))
	for i, st := range expected {
		args = append(args, st)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+4))
	}

	query := fmt.Sprintf(`UPDATE images
	SET status = $1,
	    error_detail = $2,
	    thumbnail_keys = CASE WHEN $1::text IN ('processing', 'failed') THEN '[]'::jsonb ELSE thumbnail_keys END,
	    updated_at = now()
	WHERE image_uid = $3 AND status IN (%s)`, strings.Join(placeholders, ", "))

	res, err := p.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err // 500
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return p.explainMiss(ctx, id)
	}
	return nil
}

// AppendThumbnailKey - идемпотентная запись ссылки: уже присутствующий ключ не дублируем,
// даже если два воркера наперегонки прошлись по одной записи
func (p PostgresRepo) AppendThumbnailKey(ctx context.Context, id string, key string) error {
	entry, err := json.Marshal([]string{key})
	if err != nil {
		return fmt.Errorf("failed to marshal thumbnail key %q: %w", key, err)
	}

	query := `UPDATE images
	SET thumbnail_keys = thumbnail_keys || $2::jsonb, updated_at = now()
	WHERE image_uid = $1 AND NOT thumbnail_keys @> $2::jsonb`

	res, err := p.DB.ExecContext(ctx, query, id, entry)
	if err != nil {
		return err // 500
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// либо записи нет, либо ключ уже на месте
		var exists bool
		check := `SELECT EXISTS(SELECT 1 FROM images WHERE image_uid = $1)`
		if err := p.DB.QueryRowContext(ctx, check, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return model.ErrImageNotFound // 404
		}
	}
	return nil
}

func (p PostgresRepo) FetchStale(ctx context.Context, window time.Duration, limit int) ([]string, error) {
	query := `SELECT image_uid
	FROM images
	WHERE status IN ($1, $2)
	AND updated_at < now() - make_interval(secs => $3)
	LIMIT $4`

	rows, err := p.DB.QueryContext(ctx, query, model.StatusPending, model.StatusProcessing, window.Seconds(), limit)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	stale := make([]string, 0, limit)
	for rows.Next() {
		uid := ""
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		stale = append(stale, uid)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return stale, nil
}

// различаем "записи нет" и "запись есть, но статус уже другой"
func (p PostgresRepo) explainMiss(ctx context.Context, id string) error {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM images WHERE image_uid = $1)`
	if err := p.DB.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return err
	}

	if !exists {
		return model.ErrImageNotFound // 404
	}
	return model.ErrStatusConflict
}
