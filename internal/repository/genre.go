package repository

import (
	"errors"

	"github.com/user/cinesense/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GenreRepository struct {
	db *gorm.DB
}

func NewGenreRepository(db *gorm.DB) *GenreRepository {
	return &GenreRepository{db: db}
}

// UpsertTaxonomy 批量写入类型参照表，ID 冲突时更新名称
// TMDB 的类型 ID 直接用作主键，保证两侧一致
func (r *GenreRepository) UpsertTaxonomy(genres []model.Genre) error {
	if len(genres) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(&genres).Error
}

// GetOrCreateByName 按名称取或建类型（mock 数据等无外部 ID 的入口使用）
func (r *GenreRepository) GetOrCreateByName(name string) (*model.Genre, error) {
	var genre model.Genre
	err := r.db.Where("name = ?", name).First(&genre).Error
	if err == nil {
		return &genre, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	genre = model.Genre{Name: name}
	if err := r.db.Create(&genre).Error; err != nil {
		return nil, err
	}
	return &genre, nil
}

// ListAll 返回全部类型
func (r *GenreRepository) ListAll() ([]model.Genre, error) {
	var genres []model.Genre
	err := r.db.Order("id").Find(&genres).Error
	return genres, err
}

// FindByIDs 批量按 ID 查找类型
func (r *GenreRepository) FindByIDs(ids []int) ([]model.Genre, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var genres []model.Genre
	err := r.db.Where("id IN ?", ids).Find(&genres).Error
	return genres, err
}
