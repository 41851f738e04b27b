package genre

// Genre tags both tracks and reviewer preferences; assignment eligibility
// requires at least one overlap when the track is tagged.
type Genre struct {
	ID   string `gorm:"column:id;primaryKey"`
	Name string `gorm:"column:name"`
	Slug string `gorm:"column:slug;uniqueIndex"`
}
