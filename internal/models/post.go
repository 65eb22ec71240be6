package models

import "time"

// Post represents a blog article.
type Post struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	AuthorID    uint       `gorm:"not null;index" json:"-"`
	Author      User       `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt time.Time  `gorm:"not null;index" json:"published_at"`
	Tags        []Tag      `gorm:"many2many:post_tags;constraint:OnDelete:CASCADE" json:"tags"`
	Comments    []Comment  `gorm:"foreignKey:PostID" json:"comments"`
	Reactions   []Reaction `gorm:"foreignKey:PostID" json:"reactions"`
	// ReactionCounts is not persisted; computed at query time for every emoji kind
	ReactionCounts map[string]int64 `gorm:"-" json:"reaction_counts"`
}

// IsPublished reports whether anonymous readers may see the post.
func (p *Post) IsPublished(now time.Time) bool {
	return !p.PublishedAt.After(now)
}
