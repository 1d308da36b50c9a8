package service

import (
	"context"
	"log"
	"time"

	"github.com/user/cinesense/internal/model"
	"gorm.io/gorm"
)

// mockMovie 内置演示数据条目
type mockMovie struct {
	title       string
	overview    string
	releaseDate string
	genres      []string
	reviews     []mockReview
}

type mockReview struct {
	content string
	rating  float64
}

// mockMovies 无 TMDB 凭证时用于本地演示的固定数据集
var mockMovies = []mockMovie{
	{
		title:       "The Dark Knight",
		overview:    "Batman raises the stakes in his war on crime with the help of Lt. Jim Gordon and District Attorney Harvey Dent.",
		releaseDate: "2008-07-18",
		genres:      []string{"Action", "Crime", "Drama"},
		reviews: []mockReview{
			{"A dark and gritty superhero movie with an unforgettable villain. Heath Ledger's Joker is chaotic, menacing and utterly captivating from start to finish.", 9.5},
			{"Intense crime thriller disguised as a comic book film. The moral dilemmas feel real and the tension never lets up.", 9.0},
			{"Gripping from the opening bank heist to the final confrontation. Dark, violent and thought provoking.", 8.5},
		},
	},
	{
		title:       "Inception",
		overview:    "A thief who steals corporate secrets through dream-sharing technology is given the inverse task of planting an idea.",
		releaseDate: "2010-07-16",
		genres:      []string{"Action", "Science Fiction", "Thriller"},
		reviews: []mockReview{
			{"A mind-bending heist movie inside dreams within dreams. Visually stunning and intellectually demanding, it rewards repeated viewings.", 9.0},
			{"Complex layered storytelling with incredible special effects. The rotating hallway fight is one of the best action scenes ever filmed.", 8.5},
			{"Smart science fiction that trusts the audience. The ambiguous ending still sparks debate years later.", 8.0},
		},
	},
	{
		title:       "Titanic",
		overview:    "A seventeen-year-old aristocrat falls in love with a kind but poor artist aboard the luxurious, ill-fated R.M.S. Titanic.",
		releaseDate: "1997-12-19",
		genres:      []string{"Drama", "Romance"},
		reviews: []mockReview{
			{"A heartbreaking romance set against a historical tragedy. The love story between Jack and Rose made me cry, beautiful and devastating.", 9.0},
			{"Epic romantic drama with breathtaking production design. The sinking sequence is terrifying and emotionally overwhelming.", 8.5},
			{"An uplifting love story that turns into tragedy. Feel-good in its warmth, crushing in its ending.", 8.0},
		},
	},
}

// SeedMock 写入内置演示数据并完成向量化，幂等：同名电影已存在则整体跳过
func (p *IngestionPipeline) SeedMock(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{}
	var units []ProcessedUnit

	// 类型参照表先于事务就绪
	genreByName := make(map[string]model.Genre)
	for _, m := range mockMovies {
		for _, name := range m.genres {
			if _, ok := genreByName[name]; ok {
				continue
			}
			g, err := p.repos.Genre.GetOrCreateByName(name)
			if err != nil {
				return stats, err
			}
			genreByName[name] = *g
		}
	}

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range mockMovies {
			var count int64
			if err := tx.Model(&model.Movie{}).Where("title = ?", m.title).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				stats.Skipped++
				continue
			}

			genres := make([]model.Genre, 0, len(m.genres))
			for _, name := range m.genres {
				genres = append(genres, genreByName[name])
			}

			released, _ := time.Parse("2006-01-02", m.releaseDate)
			movie := model.Movie{
				Title:       m.title,
				Overview:    m.overview,
				ReleaseDate: &released,
				Genres:      genres,
			}
			if err := tx.Create(&movie).Error; err != nil {
				return err
			}
			stats.Movies++

			genreIDs := make([]int, 0, len(genres))
			for _, g := range genres {
				genreIDs = append(genreIDs, g.ID)
			}
			unit := ProcessedUnit{
				MovieID:    movie.ID,
				MovieTitle: movie.Title,
				GenreIDs:   genreIDs,
				Year:       movie.Year(),
				Source:     "mock",
			}

			for _, r := range m.reviews {
				rating := r.rating
				review := model.Review{
					MovieID: movie.ID,
					Content: r.content,
					Source:  "mock",
					Rating:  &rating,
				}
				if err := tx.Create(&review).Error; err != nil {
					return err
				}
				stats.Reviews++

				unit.ReviewIDs = append(unit.ReviewIDs, review.ID)
				unit.Contents = append(unit.Contents, r.content)
				unit.Ratings = append(unit.Ratings, r.rating)
			}
			units = append(units, unit)
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	count, err := p.embedAndLoad(ctx, units)
	if err != nil {
		return stats, err
	}
	stats.Vectors = count

	log.Printf("[Ingest] 演示数据已就绪: 电影 %d | 影评 %d | 向量 %d | 跳过 %d",
		stats.Movies, stats.Reviews, stats.Vectors, stats.Skipped)
	return stats, nil
}
