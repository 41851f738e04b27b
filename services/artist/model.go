package artist

import (
	"time"
)

type SubscriptionStatus string

var (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionInactive SubscriptionStatus = "inactive"
)

func (s SubscriptionStatus) String() string {
	switch s {
	case SubscriptionActive, SubscriptionInactive:
		return string(s)
	default:
		return ""
	}
}

// ArtistProfile holds the voter-side credit balance. ReviewCredits is only
// ever mutated through store-level increments; the daily grant cap is
// enforced inside the vote transaction.
//
// CreditsGrantedToday/CreditsGrantedAt carry the cap state: the counter
// survives vote retraction, so credits stay a one-way grant and cycling a
// vote cannot re-earn them.
type ArtistProfile struct {
	ID                  string             `gorm:"column:id;primaryKey"`
	CreatedAt           time.Time          `gorm:"column:created_at"`
	UpdatedAt           time.Time          `gorm:"column:updated_at"`
	UserID              string             `gorm:"column:user_id;uniqueIndex"`
	ArtistName          string             `gorm:"column:artist_name"`
	SubscriptionStatus  SubscriptionStatus `gorm:"column:subscription_status;type:varchar(20);default:'inactive'"`
	CompletedOnboarding bool               `gorm:"column:completed_onboarding"`
	ReviewCredits       int64              `gorm:"column:review_credits;not null;default:0"`
	TotalCreditsEarned  int64              `gorm:"column:total_credits_earned;not null;default:0"`
	CreditsGrantedToday int64              `gorm:"column:credits_granted_today;not null;default:0"`
	CreditsGrantedAt    *time.Time         `gorm:"column:credits_granted_at"`
}

// IsPro reports whether the artist holds an active Pro subscription.
func (m *ArtistProfile) IsPro() bool {
	return m.SubscriptionStatus == SubscriptionActive
}
