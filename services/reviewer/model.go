package reviewer

import (
	"time"

	"trackpeer-core/services/genre"
)

type Tier string

var (
	TierRookie   Tier = "ROOKIE"
	TierVerified Tier = "VERIFIED"
	TierPro      Tier = "PRO"
)

func (t Tier) String() string {
	switch t {
	case TierRookie, TierVerified, TierPro:
		return string(t)
	default:
		return ""
	}
}

// Weight orders tiers for eligibility ranking (PRO first).
func (t Tier) Weight() int {
	switch t {
	case TierPro:
		return 3
	case TierVerified:
		return 2
	default:
		return 1
	}
}

// ReviewerProfile is the payout side of the marketplace. PendingBalance and
// TotalEarnings are mutated only through store-level increments inside the
// completion transaction.
type ReviewerProfile struct {
	ID                   string        `gorm:"column:id;primaryKey"`
	CreatedAt            time.Time     `gorm:"column:created_at"`
	UpdatedAt            time.Time     `gorm:"column:updated_at"`
	UserID               string        `gorm:"column:user_id;uniqueIndex"`
	Tier                 Tier          `gorm:"column:tier;type:varchar(20);default:'ROOKIE'"`
	AverageRating        float64       `gorm:"column:average_rating;not null;default:0"`
	TotalReviews         int64         `gorm:"column:total_reviews;not null;default:0"`
	PendingBalance       int64         `gorm:"column:pending_balance;not null;default:0"`
	TotalEarnings        int64         `gorm:"column:total_earnings;not null;default:0"`
	IsRestricted         bool          `gorm:"column:is_restricted"`
	CompletedOnboarding  bool          `gorm:"column:completed_onboarding"`
	OnboardingQuizPassed bool          `gorm:"column:onboarding_quiz_passed"`
	Genres               []genre.Genre `gorm:"many2many:reviewer_genres"`
}
