// Package persist stores a generated image in object storage and records its
// metadata, deleting the object again when the record cannot be written.
package persist

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/infra"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/metrics"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/storage"
)

const (
	ContentType  = "image/png"
	CacheControl = "public, max-age=3600"

	rollbackTimeout = 30 * time.Second
)

// Materializer turns a canonical image reference into bytes.
type Materializer interface {
	Materialize(ctx context.Context, ref string) ([]byte, string, error)
}

// MetadataStore is the record side of the pipeline. Insert must be a single
// atomic write.
type MetadataStore interface {
	Insert(ctx context.Context, img *domain.PersistedImage) error
	Delete(ctx context.Context, ownerID, id string) (string, error)
}

type Recorder interface {
	ObservePersist(provider, outcome string)
	ObserveRollback(outcome string)
}

type Options struct {
	Fetcher  Materializer
	Store    storage.Store
	Metadata MetadataStore
	Logger   *infra.Logger
	Metrics  Recorder
	Now      func() time.Time
}

// Input is the metadata persisted alongside the image bytes.
type Input struct {
	OwnerID       string
	Prompt        string
	ProviderID    domain.ProviderID
	RevisedPrompt string
	Params        domain.ParameterBag
}

type Pipeline struct {
	fetcher  Materializer
	store    storage.Store
	metadata MetadataStore
	logger   *infra.Logger
	metrics  Recorder
	now      func() time.Time
}

func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		fetcher:  opts.Fetcher,
		store:    opts.Store,
		metadata: opts.Metadata,
		logger:   logger,
		metrics:  opts.Metrics,
		now:      now,
	}
}

// Persist materializes ref, writes it under a key derived from owner, provider
// and the current millisecond, then inserts the metadata row. A failed insert
// deletes the object before MetadataWriteFailed is returned.
func (p *Pipeline) Persist(ctx context.Context, ref string, in Input) (*domain.PersistedImage, error) {
	img, err := p.persist(ctx, ref, in)
	if p.metrics != nil {
		p.metrics.ObservePersist(string(in.ProviderID), metrics.Outcome(string(domain.KindOf(err)), err))
	}
	return img, err
}

func (p *Pipeline) persist(ctx context.Context, ref string, in Input) (*domain.PersistedImage, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	provider, _ := domain.ParseProviderID(string(in.ProviderID))

	data, _, err := p.fetcher.Materialize(ctx, ref)
	if err != nil {
		p.logger.Warn().Err(err).Str("owner_id", in.OwnerID).Str("provider", string(provider)).Msg("persist: materialize failed")
		return nil, err
	}

	key := StorageKey(in.OwnerID, provider, p.now())
	log := p.logger.With().Str("owner_id", in.OwnerID).Str("provider", string(provider)).Str("storage_key", key).Logger()

	if err := p.store.Put(ctx, key, data, ContentType, CacheControl); err != nil {
		log.Error().Err(err).Msg("persist: storage write failed")
		return nil, domain.StorageWriteFailed(key, err)
	}

	img := &domain.PersistedImage{
		OwnerID:       in.OwnerID,
		Prompt:        strings.TrimSpace(in.Prompt),
		ProviderID:    provider,
		StorageKey:    key,
		StorageURL:    p.store.PublicURL(key),
		RevisedPrompt: strings.TrimSpace(in.RevisedPrompt),
		Params:        in.Params,
	}
	if img.Params == nil {
		img.Params = domain.ParameterBag{}
	}

	if err := p.metadata.Insert(ctx, img); err != nil {
		log.Error().Err(err).Msg("persist: metadata insert failed, removing stored object")
		werr := domain.MetadataWriteFailed(err)
		if derr := p.rollback(ctx, key); derr != nil {
			log.Error().Err(derr).Msg("persist: rollback delete failed, object orphaned")
			werr.Diagnostic = "orphaned storage object " + key
		}
		return nil, werr
	}

	log.Info().Str("image_id", img.ID).Int("bytes", len(data)).Msg("persist: image stored")
	return img, nil
}

// rollback runs even when ctx is already cancelled.
func (p *Pipeline) rollback(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	err := p.store.Delete(ctx, key)
	if p.metrics != nil {
		outcome := "deleted"
		if err != nil {
			outcome = "failed"
		}
		p.metrics.ObserveRollback(outcome)
	}
	return err
}

// Delete removes the metadata row first; once it is gone the image no longer
// exists for readers, so a failed object delete is only logged.
func (p *Pipeline) Delete(ctx context.Context, ownerID, id string) error {
	key, err := p.metadata.Delete(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := p.store.Delete(ctx, key); err != nil {
		p.logger.Error().Err(err).Str("owner_id", ownerID).Str("storage_key", key).Msg("persist: object delete failed after record removal")
	}
	return nil
}

// StorageKey composes "{owner}/{provider}-{unixMillis}.png".
func StorageKey(ownerID string, provider domain.ProviderID, at time.Time) string {
	return fmt.Sprintf("%s/%s-%d.png", safeSegment(ownerID), provider, at.UnixMilli())
}

func safeSegment(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (in Input) validate() error {
	if strings.TrimSpace(in.OwnerID) == "" {
		return domain.Validation("ownerId", "owner id is required")
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return domain.Validation("prompt", "prompt is required")
	}
	if _, ok := domain.ParseProviderID(string(in.ProviderID)); !ok {
		return domain.Validation("provider", "unsupported provider %q", in.ProviderID)
	}
	return nil
}
