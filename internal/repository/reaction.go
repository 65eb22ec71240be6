package repository

import (
	"context"

	"plume/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReactionRepository defines persistence operations for post reactions.
type ReactionRepository interface {
	// Toggle removes the user's emoji on the post if present and adds it
	// otherwise. It reports whether the reaction now exists.
	Toggle(ctx context.Context, postID, userID uint, emoji models.Emoji) (bool, error)
	Counts(ctx context.Context, postIDs []uint) (map[uint]map[string]int64, error)
}

type reactionRepository struct {
	db *gorm.DB
}

// NewReactionRepository returns a gorm-backed ReactionRepository.
func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

func (r *reactionRepository) Toggle(ctx context.Context, postID, userID uint, emoji models.Emoji) (bool, error) {
	var added bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND user_id = ? AND emoji = ?", postID, userID, emoji).
			Delete(&models.Reaction{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			added = false
			return nil
		}

		reaction := models.Reaction{PostID: postID, UserID: userID, Emoji: emoji}
		// A concurrent toggle may have inserted the same row; that is still "added".
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(&reaction).Error; err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return added, nil
}

func (r *reactionRepository) Counts(ctx context.Context, postIDs []uint) (map[uint]map[string]int64, error) {
	counts, err := reactionCounts(r.db.WithContext(ctx), postIDs)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return counts, nil
}

type reactionCountRow struct {
	PostID uint
	Emoji  string
	Total  int64
}

// reactionCounts returns, for every post id, a count for all emoji kinds.
func reactionCounts(db *gorm.DB, postIDs []uint) (map[uint]map[string]int64, error) {
	counts := make(map[uint]map[string]int64, len(postIDs))
	for _, id := range postIDs {
		counts[id] = models.EmptyReactionCounts()
	}
	if len(postIDs) == 0 {
		return counts, nil
	}

	var rows []reactionCountRow
	if err := db.Model(&models.Reaction{}).
		Select("post_id, emoji, COUNT(*) AS total").
		Where("post_id IN ?", postIDs).
		Group("post_id, emoji").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		if c, ok := counts[row.PostID]; ok {
			c[row.Emoji] = row.Total
		}
	}
	return counts, nil
}
