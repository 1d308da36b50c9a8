package vectorstore

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestBuildFilterEmpty(t *testing.T) {
	require.Nil(t, buildFilter(SearchFilter{}))
}

func TestBuildFilterConditions(t *testing.T) {
	f := buildFilter(SearchFilter{
		MinYear:   intPtr(2000),
		MaxYear:   intPtr(2015),
		MinRating: floatPtr(7.5),
	})
	require.NotNil(t, f)
	require.Len(t, f.Must, 3)

	year0 := f.Must[0].GetField()
	require.Equal(t, "year", year0.Key)
	require.Equal(t, float64(2000), year0.Range.GetGte())

	year1 := f.Must[1].GetField()
	require.Equal(t, "year", year1.Key)
	require.Equal(t, float64(2015), year1.Range.GetLte())

	rating := f.Must[2].GetField()
	require.Equal(t, "rating", rating.Key)
	require.Equal(t, 7.5, rating.Range.GetGte())
}

func TestBuildFilterSingleBound(t *testing.T) {
	f := buildFilter(SearchFilter{MinRating: floatPtr(6)})
	require.NotNil(t, f)
	require.Len(t, f.Must, 1)
	require.Equal(t, "rating", f.Must[0].GetField().Key)
}

func TestPayloadRoundTrip(t *testing.T) {
	original := PointPayload{
		MovieID:    uuid.New(),
		MovieTitle: "The Dark Knight",
		Rating:     9.5,
		Year:       2008,
		GenreIDs:   []string{"28", "80"},
		Source:     "tmdb",
	}

	decoded := decodePayload(encodePayload(original))
	require.Equal(t, original, decoded)
}

// movie_id 缺失或非法时保持零值，由查询端按失效引用跳过
func TestDecodePayloadBadMovieID(t *testing.T) {
	values := encodePayload(PointPayload{MovieTitle: "Orphan", Year: 1999})
	delete(values, "movie_id")

	decoded := decodePayload(values)
	require.Equal(t, uuid.Nil, decoded.MovieID)
	require.Equal(t, "Orphan", decoded.MovieTitle)
}
