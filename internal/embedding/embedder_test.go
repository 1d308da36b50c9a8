package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/user/cinesense/internal/config"
)

// newEmbedServer 伪 Ollama embed 服务，向量由文本长度决定，保证确定性
func newEmbedServer(t *testing.T, dim int, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)

		if calls != nil {
			calls.Add(1)
		}

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		embeddings := make([][]float32, len(req.Input))
		for i, text := range req.Input {
			vec := make([]float32, dim)
			for j := range vec {
				vec[j] = float32(len(text)+j) / 100
			}
			embeddings[i] = vec
		}
		json.NewEncoder(w).Encode(embedResponse{Embeddings: embeddings})
	}))
}

func newTestEngine(host string, dim int) *Engine {
	return NewEngine(config.EmbeddingConfig{
		Host:      host,
		Model:     "paraphrase-multilingual",
		Dimension: dim,
		CacheSize: 64,
	})
}

func TestEmbedOne(t *testing.T) {
	srv := newEmbedServer(t, 384, nil)
	defer srv.Close()

	engine := newTestEngine(srv.URL, 384)
	vec, err := engine.EmbedOne(context.Background(), "a dark crime thriller")
	require.NoError(t, err)
	require.Len(t, vec, 384)
}

// 同一文本的向量必须确定；第二次调用走缓存不落服务端
func TestEmbedOneDeterministicAndCached(t *testing.T) {
	var calls atomic.Int64
	srv := newEmbedServer(t, 8, &calls)
	defer srv.Close()

	engine := newTestEngine(srv.URL, 8)
	ctx := context.Background()

	first, err := engine.EmbedOne(ctx, "same text")
	require.NoError(t, err)
	afterFirst := calls.Load()

	second, err := engine.EmbedOne(ctx, "same text")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, afterFirst, calls.Load(), "cached call must not hit the server")
}

// 服务不可达时显式报错，绝不返回零向量
func TestEmbedFailsLoudWhenUnavailable(t *testing.T) {
	engine := newTestEngine("http://127.0.0.1:1", 384)

	vec, err := engine.EmbedOne(context.Background(), "anything")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrEmbeddingUnavailable)
	require.Nil(t, vec)

	// 服务持续不可达时每次调用都报错
	_, err = engine.EmbedMany(context.Background(), []string{"x"}, 4)
	require.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

// 初始化失败不固化：服务恢复后下一次调用重新预热并成功
func TestEmbedRecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		embeddings := make([][]float32, len(req.Input))
		for i := range embeddings {
			embeddings[i] = make([]float32, 8)
		}
		json.NewEncoder(w).Encode(embedResponse{Embeddings: embeddings})
	}))
	defer srv.Close()

	engine := newTestEngine(srv.URL, 8)
	ctx := context.Background()

	_, err := engine.EmbedOne(ctx, "first attempt")
	require.ErrorIs(t, err, ErrEmbeddingUnavailable)

	vec, err := engine.EmbedOne(ctx, "second attempt")
	require.NoError(t, err)
	require.Len(t, vec, 8)
}

// 首个调用方的上下文取消不能把引擎永久卡死：
// 预热独立于请求期限，之后带新上下文的调用照常成功
func TestEmbedSurvivesCancelledFirstCaller(t *testing.T) {
	srv := newEmbedServer(t, 8, nil)
	defer srv.Close()

	engine := newTestEngine(srv.URL, 8)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.EmbedOne(cancelled, "doomed request")
	require.Error(t, err)

	vec, err := engine.EmbedOne(context.Background(), "healthy request")
	require.NoError(t, err)
	require.Len(t, vec, 8)
}

// 首次初始化校验模型输出维度
func TestEmbedDimensionMismatch(t *testing.T) {
	srv := newEmbedServer(t, 16, nil)
	defer srv.Close()

	engine := newTestEngine(srv.URL, 384)
	_, err := engine.EmbedOne(context.Background(), "anything")
	require.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestEmbedManyEmptyInput(t *testing.T) {
	var calls atomic.Int64
	srv := newEmbedServer(t, 8, &calls)
	defer srv.Close()

	engine := newTestEngine(srv.URL, 8)
	vecs, err := engine.EmbedMany(context.Background(), nil, 4)
	require.NoError(t, err)
	require.NotNil(t, vecs)
	require.Empty(t, vecs)
	require.Equal(t, int64(0), calls.Load(), "empty batch must not call the server")
}

func TestEmbedManyBatchesAndOrder(t *testing.T) {
	srv := newEmbedServer(t, 8, nil)
	defer srv.Close()

	engine := newTestEngine(srv.URL, 8)
	ctx := context.Background()

	texts := []string{"aa", "bbbb", "cccccc", "dddddddd", "e"}
	vecs, err := engine.EmbedMany(ctx, texts, 2)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))

	// 输出顺序与输入一一对应（伪服务向量编码了文本长度）
	for i, text := range texts {
		single, err := engine.EmbedOne(ctx, text)
		require.NoError(t, err)
		require.Equal(t, single, vecs[i], "vector for %q out of order", text)
	}
}
