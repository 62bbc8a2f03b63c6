package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/infra"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/sqlinline"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ImageRepository is the metadata store for persisted images. Every read is
// scoped by owner.
type ImageRepository struct {
	sql infra.SQLExecutor
}

func NewImageRepository(sql infra.SQLExecutor) *ImageRepository {
	return &ImageRepository{sql: sql}
}

// EnsureSchema creates the generated_images table when it is missing.
func (r *ImageRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.sql.Exec(ctx, sqlinline.QEnsureGeneratedImagesTable)
	return err
}

// Insert writes img as one atomic row. A missing ID is generated; CreatedAt is
// taken from the database.
func (r *ImageRepository) Insert(ctx context.Context, img *domain.PersistedImage) error {
	if img == nil {
		return fmt.Errorf("image record is required")
	}
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	params, err := json.Marshal(paramsOrEmpty(img.Params))
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertGeneratedImage,
		img.ID,
		img.OwnerID,
		img.Prompt,
		string(img.ProviderID),
		img.StorageKey,
		img.StorageURL,
		img.RevisedPrompt,
		params,
	)
	var createdAt time.Time
	if err := row.Scan(&createdAt); err != nil {
		return err
	}
	img.CreatedAt = createdAt
	return nil
}

// GetByID returns domain.ErrNotFound when the row is missing or owned by
// someone else.
func (r *ImageRepository) GetByID(ctx context.Context, ownerID, id string) (*domain.PersistedImage, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	img, err := scanImage(r.sql.QueryRow(ctx, sqlinline.QSelectGeneratedImage, ownerID, id))
	if infra.IsNoRows(err) {
		return nil, domain.ErrNotFound
	}
	return img, err
}

// ListByOwner returns the owner's images newest first, optionally only those
// created before the given instant.
func (r *ImageRepository) ListByOwner(ctx context.Context, ownerID string, before *time.Time, limit int) ([]domain.PersistedImage, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListGeneratedImages, ownerID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := make([]domain.PersistedImage, 0, limit)
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return images, nil
}

// Delete removes the row and returns its storage key so the caller can remove
// the object.
func (r *ImageRepository) Delete(ctx context.Context, ownerID, id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", domain.ErrNotFound
	}
	var key string
	if err := r.sql.QueryRow(ctx, sqlinline.QDeleteGeneratedImage, ownerID, id).Scan(&key); err != nil {
		if infra.IsNoRows(err) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return key, nil
}

func scanImage(row pgx.Row) (*domain.PersistedImage, error) {
	var (
		img      domain.PersistedImage
		provider string
		params   []byte
	)
	if err := row.Scan(&img.ID, &img.OwnerID, &img.Prompt, &provider, &img.StorageKey, &img.StorageURL, &img.RevisedPrompt, &params, &img.CreatedAt); err != nil {
		return nil, err
	}
	img.ProviderID = domain.ProviderID(provider)
	img.Params = domain.ParameterBag{}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &img.Params); err != nil {
			return nil, fmt.Errorf("decode params: %w", err)
		}
	}
	return &img, nil
}

func paramsOrEmpty(p domain.ParameterBag) domain.ParameterBag {
	if p == nil {
		return domain.ParameterBag{}
	}
	return p
}
