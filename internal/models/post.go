package models

import (
	"time"

	"gorm.io/gorm"
)

// Post is a feed entry with a single attached image.
type Post struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Title    string `gorm:"not null" json:"title"`
	Content  string `gorm:"type:text;not null" json:"content"`
	ImageKey string `gorm:"not null" json:"imageKey"`
	// ImageURL is derived from ImageKey when the post leaves the service.
	ImageURL  string         `gorm:"-" json:"imageUrl"`
	UserID    uint           `gorm:"not null;index" json:"userId"`
	User      *User          `gorm:"foreignKey:UserID" json:"-"`
	Creator   *Creator       `gorm:"-" json:"creator,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Creator is the public projection of a post owner.
type Creator struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// AttachCreator fills Creator from the preloaded owner, if any.
func (p *Post) AttachCreator() {
	if p.User != nil {
		p.Creator = &Creator{ID: p.User.ID, Name: p.User.Name}
	}
}
