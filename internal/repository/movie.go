package repository

import (
	"errors"

	"github.com/google/uuid"
	"github.com/user/cinesense/internal/model"
	"gorm.io/gorm"
)

type MovieRepository struct {
	db *gorm.DB
}

func NewMovieRepository(db *gorm.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// ExistsByTMDBID 按 TMDB ID 判断电影是否已入库（摄取幂等检查）
func (r *MovieRepository) ExistsByTMDBID(tmdbID int) (bool, error) {
	var count int64
	err := r.db.Model(&model.Movie{}).Where("tmdb_id = ?", tmdbID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByTMDBID 按 TMDB ID 查找电影
func (r *MovieRepository) FindByTMDBID(tmdbID int) (*model.Movie, error) {
	var movie model.Movie
	err := r.db.Preload("Genres").Where("tmdb_id = ?", tmdbID).First(&movie).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &movie, nil
}

// FindByID 按 ID 查找电影（含类型与影评）
func (r *MovieRepository) FindByID(id uuid.UUID) (*model.Movie, error) {
	var movie model.Movie
	err := r.db.Preload("Genres").Preload("Reviews").First(&movie, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &movie, nil
}

// FindByIDs 批量查找电影（含类型），搜索结果关联查询只发一次
// 失效的 ID 不报错，直接缺席于返回结果
func (r *MovieRepository) FindByIDs(ids []uuid.UUID) (map[uuid.UUID]*model.Movie, error) {
	result := make(map[uuid.UUID]*model.Movie, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var movies []model.Movie
	if err := r.db.Preload("Genres").Where("id IN ?", ids).Find(&movies).Error; err != nil {
		return nil, err
	}

	for i := range movies {
		result[movies[i].ID] = &movies[i]
	}
	return result, nil
}

// List 分页查询电影列表
func (r *MovieRepository) List(page, pageSize int) ([]model.Movie, int64, error) {
	var total int64
	if err := r.db.Model(&model.Movie{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var movies []model.Movie
	err := r.db.Preload("Genres").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&movies).Error
	if err != nil {
		return nil, 0, err
	}
	return movies, total, nil
}

// Count 电影总数
func (r *MovieRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.Movie{}).Count(&count).Error
	return count, err
}

// Delete 删除电影，影评随 CASCADE 一并删除
// 向量库中对应的点会成为孤儿，由搜索端按失效引用过滤
func (r *MovieRepository) Delete(id uuid.UUID) error {
	return r.db.Select("Reviews").Delete(&model.Movie{ID: id}).Error
}
