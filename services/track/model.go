package track

import (
	"time"

	"trackpeer-core/services/genre"
)

type Status string

var (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusQueued         Status = "QUEUED"
	StatusInProgress     Status = "IN_PROGRESS"
	StatusCompleted      Status = "COMPLETED"
	StatusCancelled      Status = "CANCELLED"
)

func (s Status) String() string {
	switch s {
	case StatusPendingPayment, StatusQueued, StatusInProgress, StatusCompleted, StatusCancelled:
		return string(s)
	default:
		return ""
	}
}

// Terminal reports whether no further status transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type PackageType string

var (
	PackageBasic    PackageType = "BASIC"
	PackageStandard PackageType = "STANDARD"
	PackagePro      PackageType = "PRO"
)

func (t PackageType) String() string {
	switch t {
	case PackageBasic, PackageStandard, PackagePro:
		return string(t)
	default:
		return ""
	}
}

// Priority returns the queue priority assignments inherit from the package.
func (t PackageType) Priority() int {
	switch t {
	case PackagePro:
		return 10
	case PackageStandard:
		return 5
	default:
		return 0
	}
}

// Track is a submitted piece of music awaiting peer feedback.
// ReviewsCompleted only moves through store-level increments inside the
// completion transaction and never exceeds ReviewsRequested.
type Track struct {
	ID               string        `gorm:"column:id;primaryKey"`
	CreatedAt        time.Time     `gorm:"column:created_at"`
	UpdatedAt        time.Time     `gorm:"column:updated_at"`
	ArtistID         string        `gorm:"column:artist_id;index"`
	Title            string        `gorm:"column:title"`
	Status           Status        `gorm:"column:status;type:varchar(20);default:'PENDING_PAYMENT'"`
	PackageType      PackageType   `gorm:"column:package_type;type:varchar(20);default:'BASIC'"`
	ReviewsRequested int           `gorm:"column:reviews_requested;not null"`
	ReviewsCompleted int           `gorm:"column:reviews_completed;not null;default:0"`
	CompletedAt      *time.Time    `gorm:"column:completed_at"`
	Genres           []genre.Genre `gorm:"many2many:track_genres"`
}
