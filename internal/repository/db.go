package repository

import (
	"fmt"

	"github.com/user/cinesense/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB 初始化数据库连接
func InitDB(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("无法连接数据库: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 测试连接
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库 ping 失败: %w", err)
	}

	// 设置连接池
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return db, nil
}

// Migrate 建表，可重复执行
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Genre{},
		&model.Movie{},
		&model.Review{},
		&model.ReviewLike{},
		&model.Watchlist{},
	)
}

// Reset 删除并重建所有表（危险操作，仅供摄取重置模式使用）
func Reset(db *gorm.DB) error {
	err := db.Migrator().DropTable(
		&model.ReviewLike{},
		&model.Watchlist{},
		&model.Review{},
		"movie_genres",
		&model.Movie{},
		&model.Genre{},
		&model.User{},
	)
	if err != nil {
		return fmt.Errorf("删除表失败: %w", err)
	}
	return Migrate(db)
}

// Repositories 仓库集合
type Repositories struct {
	DB          *gorm.DB
	Movie       *MovieRepository
	Review      *ReviewRepository
	Genre       *GenreRepository
	User        *UserRepository
	Interaction *InteractionRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:          db,
		Movie:       NewMovieRepository(db),
		Review:      NewReviewRepository(db),
		Genre:       NewGenreRepository(db),
		User:        NewUserRepository(db),
		Interaction: NewInteractionRepository(db),
	}
}
