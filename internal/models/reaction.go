package models

import "time"

// Emoji is one of the fixed reaction kinds.
type Emoji string

const (
	EmojiLike  Emoji = "LIKE"
	EmojiLove  Emoji = "LOVE"
	EmojiHaha  Emoji = "HAHA"
	EmojiWow   Emoji = "WOW"
	EmojiSad   Emoji = "SAD"
	EmojiAngry Emoji = "ANGRY"
)

// Emojis lists every reaction kind in display order.
var Emojis = []Emoji{EmojiLike, EmojiLove, EmojiHaha, EmojiWow, EmojiSad, EmojiAngry}

// ParseEmoji returns the emoji matching s exactly.
func ParseEmoji(s string) (Emoji, bool) {
	for _, e := range Emojis {
		if string(e) == s {
			return e, true
		}
	}
	return "", false
}

// Reaction is a user's emoji on a post; at most one row per (post, user, emoji).
type Reaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_reaction_post_user_emoji" json:"-"`
	Post      *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_reaction_post_user_emoji;index" json:"-"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Emoji     Emoji     `gorm:"size:10;not null;uniqueIndex:idx_reaction_post_user_emoji" json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// EmptyReactionCounts returns a zeroed count for every emoji kind.
func EmptyReactionCounts() map[string]int64 {
	counts := make(map[string]int64, len(Emojis))
	for _, e := range Emojis {
		counts[string(e)] = 0
	}
	return counts
}
