package identity

import (
	"time"
)

// User is the minimal account record the engines read for eligibility:
// account age gates both reviewer assignment and chart voting. Credentials,
// sessions and onboarding flows live outside the core.
type User struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Email     string    `gorm:"column:email;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}
