package repository

import (
	"errors"

	"github.com/google/uuid"
	"github.com/user/cinesense/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InteractionRepository struct {
	db *gorm.DB
}

func NewInteractionRepository(db *gorm.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// LikeReview 点赞影评并维护冗余计数，重复点赞为无操作
func (r *InteractionRepository) LikeReview(userID, reviewID uuid.UUID) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.ReviewLike{UserID: userID, ReviewID: reviewID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&model.Review{}).Where("id = ?", reviewID).
			UpdateColumn("likes_count", gorm.Expr("likes_count + 1")).Error
	})
}

// UnlikeReview 取消点赞
func (r *InteractionRepository) UnlikeReview(userID, reviewID uuid.UUID) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND review_id = ?", userID, reviewID).
			Delete(&model.ReviewLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&model.Review{}).
			Where("id = ? AND likes_count > 0", reviewID).
			UpdateColumn("likes_count", gorm.Expr("likes_count - 1")).Error
	})
}

// UpsertWatchlist 写入或更新想看清单状态
func (r *InteractionRepository) UpsertWatchlist(entry *model.Watchlist) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "movie_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status"}),
	}).Create(entry).Error
}

// ListWatchlist 查询用户的想看清单
func (r *InteractionRepository) ListWatchlist(userID uuid.UUID) ([]model.Watchlist, error) {
	var entries []model.Watchlist
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

// FindWatchlistEntry 查询单条想看记录
func (r *InteractionRepository) FindWatchlistEntry(userID, movieID uuid.UUID) (*model.Watchlist, error) {
	var entry model.Watchlist
	err := r.db.Where("user_id = ? AND movie_id = ?", userID, movieID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}
