package chart

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"trackpeer-core/pkg/clock"
	"trackpeer-core/pkg/config"
	"trackpeer-core/pkg/db"
	"trackpeer-core/pkg/db/option"
	"trackpeer-core/pkg/errutil"
	"trackpeer-core/pkg/repository"
	"trackpeer-core/services/artist"
	"trackpeer-core/services/identity"
	"trackpeer-core/services/track"
)

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock clock.Clock
	cfg   config.ChartConfig

	submissions repository.Repository[ChartSubmission]
	votes       repository.Repository[ChartVote]
	artists     repository.Repository[artist.ArtistProfile]
	tracks      repository.Repository[track.Track]
	users       repository.Repository[identity.User]
}

type Params struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Clock  clock.Clock
	Config *config.Config
}

func NewService(p Params) *Service {
	return &Service{
		db:          p.DB,
		node:        p.Node,
		clock:       p.Clock,
		cfg:         p.Config.Chart,
		submissions: repository.ProvideStore[ChartSubmission](p.DB),
		votes:       repository.ProvideStore[ChartVote](p.DB),
		artists:     repository.ProvideStore[artist.ArtistProfile](p.DB),
		tracks:      repository.ProvideStore[track.Track](p.DB),
		users:       repository.ProvideStore[identity.User](p.DB),
	}
}

type SubmitParams struct {
	TrackID  string
	ArtistID string
}

// Submit places a track on today's chart. Free artists hold one slot, Pro
// artists three; submitting past the limit evicts the artist's lowest-voted
// entry of the day rather than failing.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*ChartSubmission, error) {
	today := dateOf(s.clock.Now())

	var out *ChartSubmission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tx = tx.Scopes(option.LockingUpdate)

		profile, err := s.artists.WithTrx(tx).FindOne(ctx, &artist.ArtistProfile{ID: p.ArtistID})
		if err != nil {
			return err
		}
		if profile == nil {
			return errutil.NotFound("artist not found", nil)
		}

		t, err := s.tracks.WithTrx(tx).FindOne(ctx, &track.Track{ID: p.TrackID})
		if err != nil {
			return err
		}
		if t == nil {
			return errutil.NotFound("track not found", nil)
		}
		if t.ArtistID != profile.ID {
			return errutil.Forbidden("you can only submit your own tracks", nil)
		}

		slots := s.cfg.FreeSlots
		if profile.IsPro() {
			slots = s.cfg.ProSlots
		}

		existing, err := s.submissions.WithTrx(tx).Find(ctx,
			&ChartSubmission{ArtistID: profile.ID, ChartDate: today})
		if err != nil {
			return err
		}
		if len(existing) >= slots {
			lowest := existing[0]
			for _, sub := range existing[1:] {
				if sub.VoteCount < lowest.VoteCount ||
					(sub.VoteCount == lowest.VoteCount && sub.CreatedAt.After(lowest.CreatedAt)) {
					lowest = sub
				}
			}
			if err := tx.Where("submission_id = ?", lowest.ID).Delete(&ChartVote{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&ChartSubmission{}, "id = ?", lowest.ID).Error; err != nil {
				return err
			}
			zap.L().Info("evicted chart submission",
				zap.String("submission_id", lowest.ID),
				zap.String("track_id", lowest.TrackID),
			)
		}

		now := s.clock.Now()
		out = &ChartSubmission{
			ID:        s.node.Generate().String(),
			CreatedAt: now,
			UpdatedAt: now,
			TrackID:   t.ID,
			ChartDate: today,
			ArtistID:  profile.ID,
			IsPro:     profile.IsPro(),
		}
		if err := s.submissions.WithTrx(tx).Create(ctx, out); err != nil {
			if db.IsUniqueViolation(err) {
				return errutil.Conflict("track is already on today's chart", nil)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CastVote records one vote and, for voters with an artist profile, grants a
// review credit up to the daily cap. Checks run cheapest-first so obvious
// gaming fails before a transaction is opened.
func (s *Service) CastVote(ctx context.Context, submissionID, voterUserID string, listenSeconds int) (*ChartVote, error) {
	if listenSeconds < s.cfg.MinListenSeconds {
		return nil, errutil.ValidationFailed(
			fmt.Sprintf("listen for at least %d seconds before voting", s.cfg.MinListenSeconds), nil)
	}

	now := s.clock.Now()

	voter, err := s.users.FindOne(ctx, &identity.User{ID: voterUserID})
	if err != nil {
		return nil, err
	}
	if voter == nil {
		return nil, errutil.NotFound("user not found", nil)
	}
	if now.Sub(voter.CreatedAt) < s.cfg.MinVoterAccountAge {
		return nil, errutil.Forbidden("account is too new to vote", nil)
	}

	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("submission_id", submissionID),
		zap.String("voter_id", voterUserID),
	)

	var vote *ChartVote
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tx = tx.Scopes(option.LockingUpdate)

		sub, err := s.submissions.WithTrx(tx).FindOne(ctx, &ChartSubmission{ID: submissionID})
		if err != nil {
			return err
		}
		if sub == nil {
			return errutil.NotFound("submission not found", nil)
		}
		if !sub.ChartDate.Equal(dateOf(now)) {
			return errutil.Conflict("voting is closed for this chart day", nil)
		}

		// locking the voter's artist profile serializes concurrent votes by
		// the same artist, which is what makes the daily cap exact
		voterProfile, err := s.artists.WithTrx(tx).FindOne(ctx, &artist.ArtistProfile{UserID: voterUserID})
		if err != nil {
			return err
		}
		if voterProfile != nil && voterProfile.ID == sub.ArtistID {
			return errutil.Forbidden("you cannot vote for your own track", nil)
		}

		grantCredit := false
		if voterProfile != nil {
			grantedToday := voterProfile.CreditsGrantedToday
			if voterProfile.CreditsGrantedAt == nil || !dateOf(*voterProfile.CreditsGrantedAt).Equal(dateOf(now)) {
				grantedToday = 0
			}
			grantCredit = grantedToday < s.cfg.DailyCreditCap
		}

		vote = &ChartVote{
			ID:             s.node.Generate().String(),
			CreatedAt:      now,
			UpdatedAt:      now,
			SubmissionID:   sub.ID,
			VoterID:        voterUserID,
			ListenDuration: listenSeconds,
			CreditGranted:  grantCredit,
		}
		if err := s.votes.WithTrx(tx).Create(ctx, vote); err != nil {
			if db.IsUniqueViolation(err) {
				return errutil.Conflict("you already voted for this track today", nil)
			}
			return err
		}

		if err := tx.Model(&ChartSubmission{}).Where("id = ?", sub.ID).Updates(map[string]any{
			"vote_count": gorm.Expr("vote_count + 1"),
			"updated_at": time.Now(),
		}).Error; err != nil {
			return err
		}

		if grantCredit {
			grantedToday := int64(1)
			if voterProfile.CreditsGrantedAt != nil && dateOf(*voterProfile.CreditsGrantedAt).Equal(dateOf(now)) {
				grantedToday = voterProfile.CreditsGrantedToday + 1
			}
			if err := tx.Model(&artist.ArtistProfile{}).Where("id = ?", voterProfile.ID).Updates(map[string]any{
				"review_credits":        gorm.Expr("review_credits + 1"),
				"total_credits_earned":  gorm.Expr("total_credits_earned + 1"),
				"credits_granted_today": grantedToday,
				"credits_granted_at":    now,
				"updated_at":            time.Now(),
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zapLog.Info("vote recorded", zap.Bool("credit_granted", vote.CreditGranted))
	return vote, nil
}

// RetractVote removes a vote while its chart day is still open. Credits are
// a one-way grant: a credit earned for the vote stays with the voter, and
// the granting vote still counts against the daily cap.
func (s *Service) RetractVote(ctx context.Context, submissionID, voterUserID string) error {
	now := s.clock.Now()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tx = tx.Scopes(option.LockingUpdate)

		sub, err := s.submissions.WithTrx(tx).FindOne(ctx, &ChartSubmission{ID: submissionID})
		if err != nil {
			return err
		}
		if sub == nil {
			return errutil.NotFound("submission not found", nil)
		}
		if !sub.ChartDate.Equal(dateOf(now)) {
			return errutil.Conflict("voting is closed for this chart day", nil)
		}

		vote, err := s.votes.WithTrx(tx).FindOne(ctx, &ChartVote{SubmissionID: submissionID, VoterID: voterUserID})
		if err != nil {
			return err
		}
		if vote == nil {
			return errutil.NotFound("vote not found", nil)
		}

		if err := tx.Delete(&ChartVote{}, "id = ?", vote.ID).Error; err != nil {
			return err
		}

		return tx.Model(&ChartSubmission{}).
			Where("id = ? AND vote_count > 0", sub.ID).
			Updates(map[string]any{
				"vote_count": gorm.Expr("vote_count - 1"),
				"updated_at": time.Now(),
			}).Error
	})
}

// RecordPlay counts a qualified listen against a submission.
func (s *Service) RecordPlay(ctx context.Context, submissionID string) error {
	res := s.db.WithContext(ctx).Model(&ChartSubmission{}).
		Where("id = ?", submissionID).
		Updates(map[string]any{
			"play_count": gorm.Expr("play_count + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.NotFound("submission not found", nil)
	}
	return nil
}

// Daily returns the chart for a day, ranked. Before finalization the order
// is computed live; the comparator is the same one finalization persists, so
// readers never see the order change at midnight.
func (s *Service) Daily(ctx context.Context, day time.Time) ([]*ChartSubmission, error) {
	subs, err := s.submissions.Find(ctx, &ChartSubmission{ChartDate: dateOf(day)})
	if err != nil {
		return nil, err
	}
	return RankDaily(subs), nil
}

// FeaturedWinner returns the previous day's finalized number one, or nil
// when that day has not been finalized or had no entries.
func (s *Service) FeaturedWinner(ctx context.Context, day time.Time) (*ChartSubmission, error) {
	yesterday := dateOf(day).AddDate(0, 0, -1)
	return s.submissions.FindOne(ctx, &ChartSubmission{ChartDate: yesterday, IsFeatured: true})
}

// Weekly aggregates the trailing seven chart days ending at day.
func (s *Service) Weekly(ctx context.Context, day time.Time) ([]WeeklyEntry, error) {
	end := dateOf(day)
	start := end.AddDate(0, 0, -6)

	subs, err := s.submissions.Find(ctx, &ChartSubmission{},
		option.ApplyOperator(option.Condition{Field: "chart_date", Operator: option.GTE, Value: start}),
		option.ApplyOperator(option.Condition{Field: "chart_date", Operator: option.LTE, Value: end}),
	)
	if err != nil {
		return nil, err
	}
	return RankWeekly(subs), nil
}

// Finalize freezes a day's chart: ranks are persisted and the winner is
// flagged as featured. Re-running on an already finalized day recomputes the
// same ranks, so the operation is safe to retry.
func (s *Service) Finalize(ctx context.Context, day time.Time) (int, error) {
	chartDay := dateOf(day)
	now := s.clock.Now()

	var total int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subs, err := s.submissions.WithTrx(tx).Find(ctx,
			&ChartSubmission{ChartDate: chartDay},
			option.WithLockingUpdate(),
		)
		if err != nil {
			return err
		}
		total = len(subs)
		if total == 0 {
			return nil
		}

		for i, sub := range RankDaily(subs) {
			rank := i + 1
			if err := tx.Model(&ChartSubmission{}).Where("id = ?", sub.ID).Updates(map[string]any{
				"rank":         rank,
				"is_featured":  rank == 1,
				"finalized_at": now,
				"updated_at":   time.Now(),
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	zap.L().Info("chart finalized",
		zap.Time("chart_date", chartDay),
		zap.Int("entries", total),
	)
	return total, nil
}
