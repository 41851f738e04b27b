package reviewer

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"trackpeer-core/pkg/config"
	"trackpeer-core/pkg/errutil"
	"trackpeer-core/pkg/repository"
)

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	rates RateTable

	profiles repository.Repository[ReviewerProfile]
}

type Params struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config
}

func NewService(p Params) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		rates:    NewRateTable(p.Config.Queue.TierRates),
		profiles: repository.ProvideStore[ReviewerProfile](p.DB),
	}
}

// Rates exposes the payout table to the completion step of the queue engine.
func (s *Service) Rates() RateTable {
	return s.rates
}

func (s *Service) Get(ctx context.Context, reviewerID string) (*ReviewerProfile, error) {
	profile, err := s.profiles.FindOne(ctx, &ReviewerProfile{ID: reviewerID})
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, errutil.NotFound("reviewer not found", nil)
	}
	return profile, nil
}

// RefreshRating persists a recomputed average rating and re-evaluates the
// reviewer's tier. The caller owns the aggregate; this keeps the rating and
// tier in step without this package reaching into the review table.
func (s *Service) RefreshRating(ctx context.Context, reviewerID string, averageRating float64) error {
	profile, err := s.profiles.FindOne(ctx, &ReviewerProfile{ID: reviewerID})
	if err != nil {
		return err
	}
	if profile == nil {
		return errutil.NotFound("reviewer not found", nil)
	}

	updates := map[string]any{
		"average_rating": averageRating,
		"updated_at":     time.Now(),
	}

	if newTier := CalculateTier(profile.TotalReviews, averageRating); newTier != profile.Tier {
		updates["tier"] = newTier
		zap.L().Info("reviewer tier changed",
			zap.String("reviewer_id", reviewerID),
			zap.String("from", profile.Tier.String()),
			zap.String("to", newTier.String()),
		)
	}

	return s.profiles.Update(ctx, reviewerID, &updates)
}

// UpdateTier re-evaluates the tier from current volume and rating.
func (s *Service) UpdateTier(ctx context.Context, reviewerID string) error {
	profile, err := s.profiles.FindOne(ctx, &ReviewerProfile{ID: reviewerID})
	if err != nil {
		return err
	}
	if profile == nil {
		return errutil.NotFound("reviewer not found", nil)
	}

	newTier := CalculateTier(profile.TotalReviews, profile.AverageRating)
	if newTier == profile.Tier {
		return nil
	}

	return s.profiles.Update(ctx, reviewerID, &map[string]any{
		"tier":       newTier,
		"updated_at": time.Now(),
	})
}
