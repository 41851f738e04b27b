package queue

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"trackpeer-core/pkg/clock"
	"trackpeer-core/pkg/config"
	"trackpeer-core/pkg/db"
	"trackpeer-core/pkg/db/option"
	"trackpeer-core/pkg/errutil"
	"trackpeer-core/pkg/repository"
	"trackpeer-core/services/notify"
	"trackpeer-core/services/reviewer"
	"trackpeer-core/services/track"
)

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	clock     clock.Clock
	cfg       config.QueueConfig
	reviewers *reviewer.Service
	notifier  notify.Notifier

	reviews  repository.Repository[Review]
	tracks   repository.Repository[track.Track]
	profiles repository.Repository[reviewer.ReviewerProfile]

	sweep singleflight.Group
}

type Params struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Clock     clock.Clock
	Config    *config.Config
	Reviewers *reviewer.Service
	Notifier  notify.Notifier
}

func NewService(p Params) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		clock:     p.Clock,
		cfg:       p.Config.Queue,
		reviewers: p.Reviewers,
		notifier:  p.Notifier,
		reviews:   repository.ProvideStore[Review](p.DB),
		tracks:    repository.ProvideStore[track.Track](p.DB),
		profiles:  repository.ProvideStore[reviewer.ReviewerProfile](p.DB),
	}
}

// AssignReviewersToTrack fills every open slot on a track with an eligible
// reviewer. It is idempotent: re-running against a fully assigned track is a
// no-op. Open slots = requested - completed - live assignments, so the live
// set can never exceed what the track still needs.
func (s *Service) AssignReviewersToTrack(ctx context.Context, trackID string) (int, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("track_id", trackID),
	)

	assigned := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tx = tx.Scopes(option.LockingUpdate)

		t, err := s.tracks.WithTrx(tx).FindOne(ctx, &track.Track{ID: trackID})
		if err != nil {
			return err
		}
		if t == nil {
			return errutil.NotFound("track not found", nil)
		}
		if t.Status != track.StatusQueued && t.Status != track.StatusInProgress {
			return nil
		}

		completed, err := s.reviews.WithTrx(tx).Count(ctx, &Review{TrackID: trackID, Status: StatusCompleted})
		if err != nil {
			return err
		}
		live, err := s.reviews.WithTrx(tx).Count(ctx, &Review{TrackID: trackID, Active: active()})
		if err != nil {
			return err
		}

		needed := t.ReviewsRequested - int(completed) - int(live)
		if needed <= 0 {
			return nil
		}

		eligible, err := s.eligibleReviewers(ctx, tx, t, needed)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		for _, profile := range eligible {
			entry := &Review{
				ID:                     s.node.Generate().String(),
				CreatedAt:              now,
				UpdatedAt:              now,
				TrackID:                t.ID,
				ReviewerID:             profile.ID,
				Active:                 active(),
				Status:                 StatusAssigned,
				Priority:               t.PackageType.Priority(),
				AssignedAt:             now,
				ExpiresAt:              now.Add(s.cfg.AssignmentWindow),
				CountsTowardCompletion: true,
			}
			if err := s.reviews.WithTrx(tx).Create(ctx, entry); err != nil {
				if db.IsUniqueViolation(err) {
					// a concurrent request already assigned this reviewer;
					// the slot stays open for the next pass
					zapLog.Warn("lost assignment race", zap.String("reviewer_id", profile.ID))
					continue
				}
				return err
			}
			assigned++
		}

		if assigned > 0 && t.Status == track.StatusQueued {
			return s.tracks.WithTrx(tx).Update(ctx, t.ID, &map[string]any{
				"status":     track.StatusInProgress,
				"updated_at": time.Now(),
			})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if assigned > 0 {
		zapLog.Info("assigned reviewers", zap.Int("count", assigned))
	}
	return assigned, nil
}

// eligibleReviewers selects candidates for a track: unrestricted, onboarded,
// quiz passed, old enough account, genre overlap when the track is tagged,
// and no prior review row for this track (which also excludes reviewers who
// just expired out of it). Ordered best-first: tier, then average rating.
func (s *Service) eligibleReviewers(ctx context.Context, tx *gorm.DB, t *track.Track, limit int) ([]*reviewer.ReviewerProfile, error) {
	cutoff := s.clock.Now().Add(-s.cfg.MinReviewerAccountAge)

	q := tx.WithContext(ctx).Model(&reviewer.ReviewerProfile{}).
		Joins("JOIN users ON users.id = reviewer_profiles.user_id").
		Where("reviewer_profiles.is_restricted = ?", false).
		Where("reviewer_profiles.completed_onboarding = ?", true).
		Where("reviewer_profiles.onboarding_quiz_passed = ?", true).
		Where("users.created_at <= ?", cutoff).
		Where("NOT EXISTS (SELECT 1 FROM reviews WHERE reviews.track_id = ? AND reviews.reviewer_id = reviewer_profiles.id)", t.ID)

	var genreIDs []string
	if err := tx.WithContext(ctx).Table("track_genres").Where("track_id = ?", t.ID).Pluck("genre_id", &genreIDs).Error; err != nil {
		return nil, err
	}
	if len(genreIDs) > 0 {
		q = q.Where("EXISTS (SELECT 1 FROM reviewer_genres WHERE reviewer_genres.reviewer_profile_id = reviewer_profiles.id AND reviewer_genres.genre_id IN ?)", genreIDs)
	}

	if t.PackageType == track.PackagePro {
		q = q.Where("reviewer_profiles.tier = ?", reviewer.TierPro)
	}

	q = q.Order("CASE reviewer_profiles.tier WHEN 'PRO' THEN 3 WHEN 'VERIFIED' THEN 2 ELSE 1 END DESC").
		Order("reviewer_profiles.average_rating DESC").
		Order("reviewer_profiles.id ASC")

	if limit > 0 {
		q = q.Limit(limit)
	}

	var profiles []*reviewer.ReviewerProfile
	if err := q.Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// ExpireAndReassign marks every live review past its window as EXPIRED and
// immediately re-runs assignment for the affected tracks, so a freed slot
// goes to a different eligible reviewer.
func (s *Service) ExpireAndReassign(ctx context.Context) (int, error) {
	now := s.clock.Now()

	var expired []*Review
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		expired, err = s.reviews.WithTrx(tx).Find(ctx, &Review{},
			option.ApplyOperator(option.Condition{Field: "status", Operator: option.IN, Value: []Status{StatusAssigned, StatusInProgress}}),
			option.ApplyOperator(option.Condition{Field: "expires_at", Operator: option.LT, Value: now}),
			option.WithLockingUpdate(),
		)
		if err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}

		ids := make([]string, 0, len(expired))
		for _, entry := range expired {
			ids = append(ids, entry.ID)
		}

		return tx.Model(&Review{}).Where("id IN ?", ids).Updates(map[string]any{
			"status":     StatusExpired,
			"active":     nil,
			"updated_at": time.Now(),
		}).Error
	})
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	affected := make(map[string]struct{}, len(expired))
	for _, entry := range expired {
		affected[entry.TrackID] = struct{}{}
	}

	for trackID := range affected {
		if _, err := s.AssignReviewersToTrack(ctx, trackID); err != nil {
			zap.L().Error("failed to reassign after expiry",
				zap.String("track_id", trackID),
				zap.Error(err),
			)
		}
	}

	zap.L().Info("expired stale assignments", zap.Int("count", len(expired)))
	return len(expired), nil
}

// SweepNow runs the expiry sweep, collapsing concurrent hot-path callers
// into a single pass.
func (s *Service) SweepNow(ctx context.Context) (int, error) {
	v, err, _ := s.sweep.Do("expire_sweep", func() (any, error) {
		return s.ExpireAndReassign(context.WithoutCancel(ctx))
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// ReviewerQueue lists a reviewer's live assignments, best first. The expiry
// sweep runs first so the reviewer never sees stale entries.
func (s *Service) ReviewerQueue(ctx context.Context, reviewerID string) ([]*Review, error) {
	if _, err := s.SweepNow(ctx); err != nil {
		zap.L().Error("queue sweep failed", zap.Error(err))
	}

	allow := map[string]bool{"priority": true, "assigned_at": true}
	return s.reviews.Find(ctx, &Review{ReviewerID: reviewerID, Active: active()},
		option.WithSortBy(option.QuerySortBy{SortBy: "priority", OrderBy: "desc", Allow: allow}),
		option.WithSortBy(option.QuerySortBy{SortBy: "assigned_at", OrderBy: "asc", Allow: allow}),
	)
}

// Heartbeat records listen time for a live review. The first tick moves
// ASSIGNED to IN_PROGRESS; the credited delta is clamped so a stalled client
// cannot fabricate listen time.
func (s *Service) Heartbeat(ctx context.Context, reviewID string) (*Review, error) {
	var out *Review
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tx = tx.Scopes(option.LockingUpdate)

		entry, err := s.reviews.WithTrx(tx).FindOne(ctx, &Review{ID: reviewID})
		if err != nil {
			return err
		}
		if entry == nil {
			return errutil.NotFound("review not found", nil)
		}
		if entry.Status.Terminal() {
			return errutil.BadRequest("review is not active", nil)
		}

		now := s.clock.Now()
		if now.After(entry.ExpiresAt) {
			return errutil.Conflict("assignment expired", nil)
		}

		delta := 1
		if entry.LastHeartbeat != nil {
			delta = int(now.Sub(*entry.LastHeartbeat).Seconds())
			if delta < 0 {
				delta = 0
			}
			if delta > 10 {
				delta = 10
			}
		}

		updates := map[string]any{
			"listen_duration": gorm.Expr("listen_duration + ?", delta),
			"last_heartbeat":  now,
			"updated_at":      now,
		}
		if entry.Status == StatusAssigned {
			updates["status"] = StatusInProgress
		}

		if err := tx.Model(&Review{}).Where("id = ?", reviewID).Updates(updates).Error; err != nil {
			return err
		}

		out, err = s.reviews.WithTrx(tx).FindOne(ctx, &Review{ID: reviewID})
		return err
	})
	return out, err
}

type CompleteParams struct {
	FirstImpression  string
	ProductionScore  int
	VocalScore       *int
	OriginalityScore int
	WouldListenAgain bool
	BestPart         string
	WeakestPart      string
	AdditionalNotes  string
}

type CompletionResult struct {
	Earnings         int64
	TrackCompleted   bool
	ReviewsCompleted int
	ReviewsRequested int
}

var firstImpressions = map[string]bool{
	"STRONG_HOOK":   true,
	"DECENT":        true,
	"LOST_INTEREST": true,
}

func (p CompleteParams) validate() error {
	if !firstImpressions[p.FirstImpression] {
		return errutil.ValidationFailed("first_impression is invalid", nil)
	}
	if p.ProductionScore < 1 || p.ProductionScore > 5 {
		return errutil.ValidationFailed("production_score must be between 1 and 5", nil)
	}
	if p.VocalScore != nil && (*p.VocalScore < 1 || *p.VocalScore > 5) {
		return errutil.ValidationFailed("vocal_score must be between 1 and 5", nil)
	}
	if p.OriginalityScore < 1 || p.OriginalityScore > 5 {
		return errutil.ValidationFailed("originality_score must be between 1 and 5", nil)
	}
	if err := validateFeedback("best_part", p.BestPart); err != nil {
		return err
	}
	return validateFeedback("weakest_part", p.WeakestPart)
}

var wordPattern = regexp.MustCompile(`[a-z0-9']+`)

const minFeedbackWords = 30

// validateFeedback rejects feedback that is too short or too repetitive to
// be worth paying for.
func validateFeedback(field, text string) error {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	if len(words) < minFeedbackWords {
		return errutil.ValidationFailed(fmt.Sprintf("%s must be at least %d words", field, minFeedbackWords), nil)
	}

	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	if len(unique) < 8 || float64(len(unique))/float64(len(words)) < 0.3 {
		return errutil.ValidationFailed(field+" seems too repetitive, please be more specific", nil)
	}
	return nil
}

// CompleteReview transitions a live review to COMPLETED and settles it: the
// payout, the reviewer's balance, the track counter and the possible track
// completion all commit in one transaction, or none of them do.
func (s *Service) CompleteReview(ctx context.Context, reviewID string, p CompleteParams) (*CompletionResult, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("review_id", reviewID),
	)

	result := &CompletionResult{}
	var reviewerID, trackID string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tx = tx.Scopes(option.LockingUpdate)

		entry, err := s.reviews.WithTrx(tx).FindOne(ctx, &Review{ID: reviewID})
		if err != nil {
			return err
		}
		if entry == nil {
			return errutil.NotFound("review not found", nil)
		}
		switch entry.Status {
		case StatusCompleted:
			return errutil.Conflict("review already submitted", nil)
		case StatusExpired:
			return errutil.Conflict("assignment expired", nil)
		}

		now := s.clock.Now()
		if now.After(entry.ExpiresAt) {
			return errutil.Conflict("assignment expired", nil)
		}
		if entry.ListenDuration < s.cfg.MinReviewListenSeconds {
			return errutil.ValidationFailed(fmt.Sprintf("must listen for at least %d seconds", s.cfg.MinReviewListenSeconds), nil)
		}
		if entry.LastHeartbeat == nil || now.Sub(*entry.LastHeartbeat) > s.cfg.HeartbeatGrace {
			return errutil.ValidationFailed("listen session expired, keep listening and try again", nil)
		}

		t, err := s.tracks.WithTrx(tx).FindOne(ctx, &track.Track{ID: entry.TrackID})
		if err != nil {
			return err
		}
		if t == nil {
			return errutil.NotFound("track not found", nil)
		}
		if t.Status == track.StatusCancelled {
			// leave the review live; the sweep will expire it
			return errutil.Conflict("track was cancelled", nil)
		}
		if entry.CountsTowardCompletion && t.ReviewsCompleted >= t.ReviewsRequested {
			return errutil.Conflict("track already has all requested reviews", nil)
		}

		profile, err := s.profiles.WithTrx(tx).FindOne(ctx, &reviewer.ReviewerProfile{ID: entry.ReviewerID})
		if err != nil {
			return err
		}
		if profile == nil {
			return errutil.NotFound("reviewer not found", nil)
		}

		var earnings int64
		if !entry.IsPromo {
			earnings = s.reviewers.Rates().RateFor(profile.Tier)
		}

		if err := tx.Model(&Review{}).Where("id = ?", entry.ID).Updates(map[string]any{
			"status":            StatusCompleted,
			"active":            nil,
			"paid_amount":       earnings,
			"completed_at":      now,
			"first_impression":  p.FirstImpression,
			"production_score":  p.ProductionScore,
			"vocal_score":       p.VocalScore,
			"originality_score": p.OriginalityScore,
			"would_listen_again": p.WouldListenAgain,
			"best_part":         p.BestPart,
			"weakest_part":      p.WeakestPart,
			"additional_notes":  p.AdditionalNotes,
			"updated_at":        now,
		}).Error; err != nil {
			return err
		}

		if err := tx.Model(&reviewer.ReviewerProfile{}).Where("id = ?", profile.ID).Updates(map[string]any{
			"total_reviews":   gorm.Expr("total_reviews + 1"),
			"pending_balance": gorm.Expr("pending_balance + ?", earnings),
			"total_earnings":  gorm.Expr("total_earnings + ?", earnings),
			"updated_at":      time.Now(),
		}).Error; err != nil {
			return err
		}

		if entry.CountsTowardCompletion {
			// the guard keeps reviews_completed from ever passing the
			// requested total, whatever the interleaving
			res := tx.Model(&track.Track{}).
				Where("id = ? AND reviews_completed < reviews_requested", t.ID).
				Updates(map[string]any{
					"reviews_completed": gorm.Expr("reviews_completed + 1"),
					"updated_at":        time.Now(),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errutil.Conflict("track already has all requested reviews", nil)
			}

			t, err = s.tracks.WithTrx(tx).FindOne(ctx, &track.Track{ID: t.ID})
			if err != nil {
				return err
			}
			if t.ReviewsCompleted >= t.ReviewsRequested {
				if err := s.tracks.WithTrx(tx).Update(ctx, t.ID, &map[string]any{
					"status":       track.StatusCompleted,
					"completed_at": now,
					"updated_at":   time.Now(),
				}); err != nil {
					return err
				}
				result.TrackCompleted = true
			}
		}

		result.Earnings = earnings
		result.ReviewsCompleted = t.ReviewsCompleted
		result.ReviewsRequested = t.ReviewsRequested
		reviewerID = entry.ReviewerID
		trackID = entry.TrackID
		return nil
	})
	if err != nil {
		return nil, err
	}

	zapLog.Info("review completed",
		zap.String("reviewer_id", reviewerID),
		zap.Int64("earnings", result.Earnings),
		zap.Bool("track_completed", result.TrackCompleted),
	)

	milestoneHalf := (result.ReviewsRequested + 1) / 2
	if result.ReviewsCompleted == milestoneHalf && !result.TrackCompleted {
		s.notifier.Publish(ctx, notify.Event{
			Type:             notify.ReviewProgress,
			TrackID:          trackID,
			ReviewsCompleted: result.ReviewsCompleted,
			ReviewsRequested: result.ReviewsRequested,
		})
	}
	if result.TrackCompleted {
		s.notifier.Publish(ctx, notify.Event{
			Type:             notify.TrackCompleted,
			TrackID:          trackID,
			ReviewsCompleted: result.ReviewsCompleted,
			ReviewsRequested: result.ReviewsRequested,
		})
	}

	if err := s.reviewers.UpdateTier(ctx, reviewerID); err != nil {
		zap.L().Error("failed to update reviewer tier", zap.String("reviewer_id", reviewerID), zap.Error(err))
	}

	return result, nil
}

// RateReview records the artist's 1-5 rating of a completed review and
// refreshes the reviewer's average rating and tier.
func (s *Service) RateReview(ctx context.Context, reviewID string, rating int) error {
	if rating < 1 || rating > 5 {
		return errutil.ValidationFailed("rating must be between 1 and 5", nil)
	}

	entry, err := s.reviews.FindOne(ctx, &Review{ID: reviewID})
	if err != nil {
		return err
	}
	if entry == nil {
		return errutil.NotFound("review not found", nil)
	}
	if entry.Status != StatusCompleted {
		return errutil.BadRequest("only completed reviews can be rated", nil)
	}

	if err := s.reviews.Update(ctx, reviewID, &map[string]any{
		"artist_rating": rating,
		"updated_at":    time.Now(),
	}); err != nil {
		return err
	}

	var avg float64
	if err := s.db.WithContext(ctx).Model(&Review{}).
		Where("reviewer_id = ? AND artist_rating IS NOT NULL", entry.ReviewerID).
		Select("COALESCE(AVG(artist_rating), 0)").
		Scan(&avg).Error; err != nil {
		return err
	}

	return s.reviewers.RefreshRating(ctx, entry.ReviewerID, avg)
}
