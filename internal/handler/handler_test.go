package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/user/cinesense/internal/model"
	"github.com/user/cinesense/internal/repository"
	"github.com/user/cinesense/internal/service"
	"github.com/user/cinesense/internal/utils"
	"github.com/user/cinesense/internal/vectorstore"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubEmbedder struct{}

func (stubEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, 8), nil
}

func (stubEmbedder) EmbedMany(ctx context.Context, texts []string, batchSize int) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, 8)
	}
	return out, nil
}

func (stubEmbedder) Dimension() int    { return 8 }
func (stubEmbedder) ModelName() string { return "stub-model" }

type stubVectorIndex struct {
	hits      []vectorstore.ScoredReview
	searchErr error
	count     uint64
	countErr  error
}

func (s *stubVectorIndex) Search(ctx context.Context, vector []float32, params vectorstore.SearchParams) ([]vectorstore.ScoredReview, error) {
	return s.hits, s.searchErr
}

func (s *stubVectorIndex) PointsCount(ctx context.Context) (uint64, error) {
	return s.count, s.countErr
}

func newTestRouter(t *testing.T, index *stubVectorIndex) (*gin.Engine, *gorm.DB, *repository.Repositories) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, repository.Migrate(db))

	repos := repository.NewRepositories(db)
	searchSvc := service.NewSearchService(stubEmbedder{}, index, repos.Movie)
	h := NewHandler(db, repos, searchSvc, index, stubEmbedder{})

	r := gin.New()
	r.GET("/health", h.Health)
	api := r.Group("/api")
	api.POST("/search", h.Search)
	api.GET("/movies", h.ListMovies)
	api.GET("/movies/:id", h.GetMovie)
	api.GET("/genres", h.ListGenres)
	return r, db, repos
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, utils.Response) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var envelope utils.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return w, envelope
}

func TestSearchEndpoint(t *testing.T) {
	index := &stubVectorIndex{}
	r, db, _ := newTestRouter(t, index)

	released := time.Date(2008, 7, 18, 0, 0, 0, 0, time.UTC)
	movie := model.Movie{Title: "The Dark Knight", ReleaseDate: &released}
	require.NoError(t, db.Create(&movie).Error)
	index.hits = []vectorstore.ScoredReview{{
		ReviewID: uuid.New(),
		Score:    0.87,
		Payload:  vectorstore.PointPayload{MovieID: movie.ID},
	}}

	w, envelope := doJSON(t, r, http.MethodPost, "/api/search",
		map[string]interface{}{"query": "dark gritty crime"})
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, envelope.Success)

	raw, _ := json.Marshal(envelope.Data)
	var resp model.SearchResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Equal(t, 1, resp.TotalResults)
	require.Equal(t, "The Dark Knight", resp.Results[0].Title)
}

func TestSearchEndpointValidation(t *testing.T) {
	r, _, _ := newTestRouter(t, &stubVectorIndex{})

	w, envelope := doJSON(t, r, http.MethodPost, "/api/search",
		map[string]interface{}{"query": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.False(t, envelope.Success)
}

func TestSearchEndpointMalformedBody(t *testing.T) {
	r, _, _ := newTestRouter(t, &stubVectorIndex{})

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

// 索引未初始化返回 503，提示先运行摄取
func TestSearchEndpointCollectionMissing(t *testing.T) {
	index := &stubVectorIndex{searchErr: vectorstore.ErrCollectionMissing}
	r, _, _ := newTestRouter(t, index)

	w, envelope := doJSON(t, r, http.MethodPost, "/api/search",
		map[string]interface{}{"query": "anything at all"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.False(t, envelope.Success)
}

func TestGetMovieEndpoint(t *testing.T) {
	r, db, _ := newTestRouter(t, &stubVectorIndex{})

	movie := model.Movie{Title: "Found Movie"}
	require.NoError(t, db.Create(&movie).Error)

	w, envelope := doJSON(t, r, http.MethodGet, "/api/movies/"+movie.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, envelope.Success)

	w, _ = doJSON(t, r, http.MethodGet, "/api/movies/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, r, http.MethodGet, "/api/movies/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListMoviesEndpoint(t *testing.T) {
	r, db, _ := newTestRouter(t, &stubVectorIndex{})
	for i := 0; i < 3; i++ {
		movie := model.Movie{Title: fmt.Sprintf("Movie %d", i)}
		require.NoError(t, db.Create(&movie).Error)
	}

	w, envelope := doJSON(t, r, http.MethodGet, "/api/movies?page=1&page_size=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	raw, _ := json.Marshal(envelope.Data)
	var resp model.MovieListResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Equal(t, int64(3), resp.Total)
	require.Len(t, resp.Movies, 2)
}

func TestHealthEndpoint(t *testing.T) {
	index := &stubVectorIndex{count: 42}
	r, _, _ := newTestRouter(t, index)

	w, envelope := doJSON(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	raw, _ := json.Marshal(envelope.Data)
	var resp model.HealthResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Equal(t, "ok", resp.Status)
	require.True(t, resp.PostgresOK)
	require.True(t, resp.QdrantOK)
	require.Equal(t, uint64(42), resp.VectorsCount)
	require.Equal(t, "stub-model", resp.EmbeddingModel)
}

func TestHealthEndpointDegraded(t *testing.T) {
	index := &stubVectorIndex{countErr: vectorstore.ErrCollectionMissing}
	r, _, _ := newTestRouter(t, index)

	_, envelope := doJSON(t, r, http.MethodGet, "/health", nil)

	raw, _ := json.Marshal(envelope.Data)
	var resp model.HealthResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Equal(t, "degraded", resp.Status)
	require.False(t, resp.QdrantOK)
}
