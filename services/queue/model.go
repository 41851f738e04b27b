package queue

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

var (
	StatusAssigned   Status = "ASSIGNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusExpired    Status = "EXPIRED"
)

func (s Status) String() string {
	switch s {
	case StatusAssigned, StatusInProgress, StatusCompleted, StatusExpired:
		return string(s)
	default:
		return ""
	}
}

// Terminal reports whether the review has left the active set. COMPLETED and
// EXPIRED rows never transition again; nothing re-enters ASSIGNED.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusExpired
}

// Review is one reviewer's assignment against one track.
//
// Active mirrors the non-terminal statuses: true while ASSIGNED/IN_PROGRESS,
// NULL once terminal. The composite unique index on (track_id, reviewer_id,
// active) is what actually enforces one live assignment per pair — NULLs
// don't collide, so any number of terminal rows may accumulate while a
// second live row is impossible no matter how requests interleave.
type Review struct {
	ID         string    `gorm:"column:id;primaryKey"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
	TrackID    string    `gorm:"column:track_id;index;uniqueIndex:idx_live_assignment"`
	ReviewerID string    `gorm:"column:reviewer_id;index;uniqueIndex:idx_live_assignment"`
	Active     *bool     `gorm:"column:active;uniqueIndex:idx_live_assignment"`
	Status     Status    `gorm:"column:status;type:varchar(20);default:'ASSIGNED'"`
	Priority   int       `gorm:"column:priority;not null;default:0"`
	AssignedAt time.Time `gorm:"column:assigned_at"`
	ExpiresAt  time.Time `gorm:"column:expires_at;index"`

	ListenDuration int        `gorm:"column:listen_duration;not null;default:0"`
	LastHeartbeat  *time.Time `gorm:"column:last_heartbeat"`

	// Promo assignments complete without payout; whether they count toward
	// the track's requested total is tracked separately.
	IsPromo                bool  `gorm:"column:is_promo"`
	CountsTowardCompletion bool  `gorm:"column:counts_toward_completion;default:true"`
	PaidAmount             int64 `gorm:"column:paid_amount;not null;default:0"`

	FirstImpression  string         `gorm:"column:first_impression;type:varchar(30)"`
	ProductionScore  int            `gorm:"column:production_score"`
	VocalScore       *int           `gorm:"column:vocal_score"`
	OriginalityScore int            `gorm:"column:originality_score"`
	WouldListenAgain bool           `gorm:"column:would_listen_again"`
	BestPart         string         `gorm:"column:best_part;type:text"`
	WeakestPart      string         `gorm:"column:weakest_part;type:text"`
	AdditionalNotes  string         `gorm:"column:additional_notes;type:text"`
	ArtistRating     *int           `gorm:"column:artist_rating"`
	Metadata         datatypes.JSON `gorm:"column:metadata"`

	CompletedAt *time.Time `gorm:"column:completed_at"`
}

func active() *bool {
	v := true
	return &v
}
