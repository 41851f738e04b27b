package track

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"trackpeer-core/pkg/clock"
	"trackpeer-core/pkg/db/option"
	"trackpeer-core/pkg/errutil"
	"trackpeer-core/pkg/repository"
	"trackpeer-core/services/genre"
	"trackpeer-core/services/notify"
)

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    clock.Clock
	notifier notify.Notifier

	tracks repository.Repository[Track]
	genres repository.Repository[genre.Genre]
}

type Params struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Clock    clock.Clock
	Notifier notify.Notifier
}

func NewService(p Params) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		clock:    p.Clock,
		notifier: p.Notifier,
		tracks:   repository.ProvideStore[Track](p.DB),
		genres:   repository.ProvideStore[genre.Genre](p.DB),
	}
}

type CreateParams struct {
	ArtistID         string
	Title            string
	PackageType      PackageType
	ReviewsRequested int
	GenreIDs         []string
}

// Create queues a funded track. How the requested review count was paid for
// (cash, credits, promo) is the payment collaborator's concern; the engine
// only needs the number.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Track, error) {
	if p.ArtistID == "" {
		return nil, errutil.ValidationFailed("artist_id is required", nil)
	}
	if p.Title == "" {
		return nil, errutil.ValidationFailed("title is required", nil)
	}
	if p.ReviewsRequested <= 0 {
		return nil, errutil.ValidationFailed("reviews_requested must be positive", nil)
	}
	if p.PackageType.String() == "" {
		p.PackageType = PackageBasic
	}

	var genres []genre.Genre
	if len(p.GenreIDs) > 0 {
		found, err := s.genres.Find(ctx, &genre.Genre{}, option.ApplyOperator(option.Condition{
			Field:    "id",
			Operator: option.IN,
			Value:    p.GenreIDs,
		}))
		if err != nil {
			return nil, err
		}
		for _, g := range found {
			genres = append(genres, *g)
		}
	}

	now := s.clock.Now()
	t := &Track{
		ID:               s.node.Generate().String(),
		CreatedAt:        now,
		UpdatedAt:        now,
		ArtistID:         p.ArtistID,
		Title:            p.Title,
		Status:           StatusQueued,
		PackageType:      p.PackageType,
		ReviewsRequested: p.ReviewsRequested,
		Genres:           genres,
	}

	if err := s.tracks.Create(ctx, t); err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, notify.Event{
		Type:             notify.TrackQueued,
		TrackID:          t.ID,
		ReviewsRequested: t.ReviewsRequested,
	})

	return t, nil
}

func (s *Service) Get(ctx context.Context, trackID string) (*Track, error) {
	t, err := s.tracks.FindOne(ctx, &Track{ID: trackID})
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errutil.NotFound("track not found", nil)
	}
	return t, nil
}

// Cancel moves a queued or in-progress track to CANCELLED. Completions that
// race with the cancellation are rejected by the queue engine, so a
// cancelled track can never transition to COMPLETED afterwards.
func (s *Service) Cancel(ctx context.Context, trackID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tx = tx.Scopes(option.LockingUpdate)

		t, err := s.tracks.WithTrx(tx).FindOne(ctx, &Track{ID: trackID})
		if err != nil {
			return err
		}
		if t == nil {
			return errutil.NotFound("track not found", nil)
		}
		if t.Status.Terminal() {
			return errutil.Conflict("track is already "+string(t.Status), nil)
		}

		if err := s.tracks.WithTrx(tx).Update(ctx, trackID, &map[string]any{
			"status":     StatusCancelled,
			"updated_at": time.Now(),
		}); err != nil {
			return err
		}

		zap.L().Info("track cancelled", zap.String("track_id", trackID))
		return nil
	})
}
