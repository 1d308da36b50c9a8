package repository

import (
	"errors"

	"github.com/google/uuid"
	"github.com/user/cinesense/internal/model"
	"gorm.io/gorm"
)

type ReviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// FindByID 按 ID 查找影评
func (r *ReviewRepository) FindByID(id uuid.UUID) (*model.Review, error) {
	var review model.Review
	err := r.db.First(&review, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &review, nil
}

// ExistsByID 判断影评是否存在
func (r *ReviewRepository) ExistsByID(id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.Model(&model.Review{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByMovieID 查询某电影的全部影评
func (r *ReviewRepository) ListByMovieID(movieID uuid.UUID) ([]model.Review, error) {
	var reviews []model.Review
	err := r.db.Where("movie_id = ?", movieID).
		Order("created_at DESC").
		Find(&reviews).Error
	return reviews, err
}

// Create 写入一条影评（用户影评等非摄取入口使用）
func (r *ReviewRepository) Create(review *model.Review) error {
	return r.db.Create(review).Error
}

// Count 影评总数
func (r *ReviewRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.Review{}).Count(&count).Error
	return count, err
}
