package chart

import (
	"time"
)

// ChartSubmission is one track's entry on one chart day. The unique index on
// (track_id, chart_date) keeps a track from appearing twice on the same day;
// VoteCount and PlayCount only move through store-level increments.
//
// IsPro snapshots the submitter's subscription at submission time so the
// daily tiebreak stays stable even if the subscription lapses mid-day.
type ChartSubmission struct {
	ID        string    `gorm:"column:id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`

	TrackID   string    `gorm:"column:track_id;index;uniqueIndex:idx_track_day"`
	ChartDate time.Time `gorm:"column:chart_date;index;uniqueIndex:idx_track_day"`
	ArtistID  string    `gorm:"column:artist_id;index"`
	IsPro     bool      `gorm:"column:is_pro"`

	VoteCount int64 `gorm:"column:vote_count;not null;default:0"`
	PlayCount int64 `gorm:"column:play_count;not null;default:0"`

	Rank        *int       `gorm:"column:rank"`
	IsFeatured  bool       `gorm:"column:is_featured"`
	FinalizedAt *time.Time `gorm:"column:finalized_at"`
}

// ChartVote records one user's vote for one submission. The unique index on
// (submission_id, voter_id) is the one-vote guarantee; CreditGranted marks
// votes that earned the voter a review credit.
type ChartVote struct {
	ID        string    `gorm:"column:id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`

	SubmissionID string `gorm:"column:submission_id;index;uniqueIndex:idx_vote_once"`
	VoterID      string `gorm:"column:voter_id;index;uniqueIndex:idx_vote_once"`

	ListenDuration int  `gorm:"column:listen_duration;not null;default:0"`
	CreditGranted  bool `gorm:"column:credit_granted"`
}

// dateOf normalizes a moment to its UTC chart day.
func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
