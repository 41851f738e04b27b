package bootstrap

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"trackpeer-core/services/artist"
	"trackpeer-core/services/chart"
	"trackpeer-core/services/genre"
	"trackpeer-core/services/identity"
	"trackpeer-core/services/queue"
	"trackpeer-core/services/reviewer"
	"trackpeer-core/services/track"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Migrate brings the schema up to date, including the composite unique
// indexes the engines rely on for their concurrency guarantees.
func (s *Service) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&identity.User{},
		&genre.Genre{},
		&artist.ArtistProfile{},
		&reviewer.ReviewerProfile{},
		&track.Track{},
		&queue.Review{},
		&chart.ChartSubmission{},
		&chart.ChartVote{},
	)
	if err != nil {
		zap.L().Error("[bootstrap] schema migration failed", zap.Error(err))
		return err
	}

	zap.L().Info("[bootstrap] schema migrated")
	return nil
}
