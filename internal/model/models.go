package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Movie 电影模型
// TMDBID 唯一（可为空），保证重复摄取同一部电影时可幂等跳过
type Movie struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	TMDBID      *int       `json:"tmdb_id" gorm:"uniqueIndex;index"`
	Title       string     `json:"title" gorm:"size:500;not null;index"`
	Overview    string     `json:"overview" gorm:"type:text"`
	ReleaseDate *time.Time `json:"release_date"`
	PosterPath  string     `json:"poster_path" gorm:"size:255"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Reviews []Review `json:"reviews,omitempty" gorm:"foreignKey:MovieID;constraint:OnDelete:CASCADE"`
	Genres  []Genre  `json:"genres,omitempty" gorm:"many2many:movie_genres"`
}

// BeforeCreate 生成 UUID 主键
func (m *Movie) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Year 返回上映年份，无上映日期时返回 0
func (m *Movie) Year() int {
	if m.ReleaseDate == nil {
		return 0
	}
	return m.ReleaseDate.Year()
}

// GenreNames 返回类型名称列表
func (m *Movie) GenreNames() []string {
	names := make([]string, 0, len(m.Genres))
	for _, g := range m.Genres {
		names = append(names, g.Name)
	}
	return names
}

// Review 影评模型
// 每条影评在向量库中对应一个以 Review.ID 为点 ID 的向量点
type Review struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	MovieID         uuid.UUID  `json:"movie_id" gorm:"type:uuid;not null;index"`
	Content         string     `json:"content" gorm:"type:text;not null"`
	Source          string     `json:"source" gorm:"size:100;not null;default:unknown"` // tmdb / user
	Rating          *float64   `json:"rating"`
	UserID          *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	AuthorName      string     `json:"author_name" gorm:"size:255"`
	AuthorAvatarURL string     `json:"author_avatar_url" gorm:"size:500"`
	LikesCount      int        `json:"likes_count" gorm:"not null;default:0"`
	CreatedAt       time.Time  `json:"created_at"`

	Movie *Movie `json:"-" gorm:"foreignKey:MovieID"`
}

// BeforeCreate 生成 UUID 主键
func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Genre 电影类型，小型参照表
// 来自 TMDB 时直接使用其类型 ID，保持两侧一致
type Genre struct {
	ID   int    `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"size:100;not null;unique"`

	Movies []Movie `json:"-" gorm:"many2many:movie_genres"`
}

// User 用户模型
type User struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Username     string    `json:"username" gorm:"size:50;not null;uniqueIndex"`
	Nickname     string    `json:"nickname" gorm:"size:50;not null"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"`
	Email        *string   `json:"email" gorm:"size:255;uniqueIndex"`
	AvatarURL    string    `json:"avatar_url" gorm:"size:255"`
	CreatedAt    time.Time `json:"created_at"`
}

// BeforeCreate 生成 UUID 主键
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// ReviewLike 影评点赞
type ReviewLike struct {
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey"`
	ReviewID  uuid.UUID `json:"review_id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
}

// Watchlist 想看清单
type Watchlist struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_user_movie_watchlist"`
	MovieID   uuid.UUID `json:"movie_id" gorm:"type:uuid;not null;uniqueIndex:idx_user_movie_watchlist"`
	Status    string    `json:"status" gorm:"size:20;default:plan_to_watch"` // plan_to_watch / completed / dropped
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate 生成 UUID 主键
func (w *Watchlist) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
