package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/user/cinesense/internal/config"
)

// ErrEmbeddingUnavailable 向量模型不可用
// 模型加载失败必须显式报错，绝不允许静默返回零向量
var ErrEmbeddingUnavailable = errors.New("embedding model unavailable")

// Embedder 文本向量化接口
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string, batchSize int) ([][]float32, error)
	Dimension() int
	ModelName() string
}

// Engine 基于 Ollama 兼容服务的向量引擎
// 模型句柄在首次成功调用时初始化一次，进程生命周期内共享复用；
// 初始化由互斥锁保护，并发首调不会重复加载模型。
// 只固化成功：初始化失败会向当前调用报错，下一次调用重新尝试，
// 避免一次瞬时故障把引擎卡死到进程重启
type Engine struct {
	host      string
	model     string
	dimension int
	client    *http.Client

	// 同一清洗后文本的向量是确定的，可安全缓存
	cache *lru.Cache[string, []float32]

	initMu sync.Mutex
	ready  bool
}

// NewEngine 创建向量引擎，不触发模型加载
func NewEngine(cfg config.EmbeddingConfig) *Engine {
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 2048
	}
	cache, _ := lru.New[string, []float32](cacheSize)

	return &Engine{
		host:      cfg.Host,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: 60 * time.Second},
		cache:     cache,
	}
}

// embedRequest Ollama embed API 请求结构
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse Ollama embed API 响应结构
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// ensureReady 加载模型并校验输出维度，成功后固化，失败则下次调用重试
// 预热请求使用独立的超时上下文，不受调用方请求期限影响：
// 首个调用方的取消不能把引擎永久卡死
func (e *Engine) ensureReady() error {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.ready {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	vecs, err := e.callEmbed(ctx, []string{"warmup"})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vecs) != 1 || len(vecs[0]) != e.dimension {
		return fmt.Errorf("%w: 模型 %s 输出维度 %d，期望 %d",
			ErrEmbeddingUnavailable, e.model, len(vecs[0]), e.dimension)
	}

	e.ready = true
	return nil
}

// callEmbed 调用 embedding 服务，输入输出顺序一一对应
func (e *Engine) callEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post request to embedding server failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding server returned status %d: %s", resp.StatusCode, msg)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d",
			len(result.Embeddings), len(texts))
	}
	return result.Embeddings, nil
}

// EmbedOne 生成单条文本的向量
func (e *Engine) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := e.cache.Get(text); ok {
		return vec, nil
	}

	if err := e.ensureReady(); err != nil {
		return nil, err
	}

	vecs, err := e.callEmbed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	e.cache.Add(text, vecs[0])
	return vecs[0], nil
}

// EmbedMany 批量生成向量，batchSize 以内存换吞吐
// 空输入直接返回空结果，不触发模型调用
func (e *Engine) EmbedMany(ctx context.Context, texts []string, batchSize int) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if batchSize <= 0 {
		batchSize = 32
	}

	if err := e.ensureReady(); err != nil {
		return nil, err
	}

	result := make([][]float32, len(texts))

	// 先命中缓存，只把未命中的送入批次
	var missTexts []string
	var missIdx []int
	for i, t := range texts {
		if vec, ok := e.cache.Get(t); ok {
			result[i] = vec
			continue
		}
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}

	for start := 0; start < len(missTexts); start += batchSize {
		end := start + batchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}

		vecs, err := e.callEmbed(ctx, missTexts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
		}
		for i, vec := range vecs {
			idx := missIdx[start+i]
			result[idx] = vec
			e.cache.Add(texts[idx], vec)
		}
	}

	return result, nil
}

// Dimension 向量维度
func (e *Engine) Dimension() int {
	return e.dimension
}

// ModelName 模型名称
func (e *Engine) ModelName() string {
	return e.model
}

// Close 显式释放连接资源
func (e *Engine) Close() {
	e.client.CloseIdleConnections()
}
