package providers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"dubber/internal/pkg/cache"
	"dubber/internal/pkg/dubbing"
	"dubber/internal/pkg/id"
)

// ClipCache 合成结果缓存（cache.RedisCache 实现）
type ClipCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// cachedClip 缓存中保存的内容
type cachedClip struct {
	Data       []byte `json:"data"`
	DurationMs int64  `json:"duration_ms"`
}

// CachedSynthesizer 为合成器加一层缓存
//
// key 由 (namespace, 音色, 语速, 音高, 文本) 决定；namespace 应包含会影响
// 输出音频的配置（如采样率）。缓存读写失败只记录日志，不影响合成。
type CachedSynthesizer struct {
	next      dubbing.Synthesizer
	cache     ClipCache
	ttl       time.Duration
	namespace string
}

// NewCachedSynthesizer 创建带缓存的合成器，ttl <= 0 时使用 cache.ClipCacheTTL
func NewCachedSynthesizer(next dubbing.Synthesizer, c ClipCache, ttl time.Duration, namespace string) *CachedSynthesizer {
	if ttl <= 0 {
		ttl = cache.ClipCacheTTL
	}
	return &CachedSynthesizer{next: next, cache: c, ttl: ttl, namespace: namespace}
}

// Synthesize 实现 dubbing.Synthesizer
func (s *CachedSynthesizer) Synthesize(ctx context.Context, req dubbing.SynthesisRequest) (dubbing.Clip, error) {
	logger := zerolog.Ctx(ctx)
	key := s.Key(req)

	var hit cachedClip
	err := s.cache.Get(ctx, key, &hit)
	switch {
	case err == nil && len(hit.Data) > 0:
		logger.Debug().Str("key", key).Msg("synthesis cache hit")
		return dubbing.Clip{Data: hit.Data, DurationMs: hit.DurationMs}, nil
	case err != nil && !errors.Is(err, cache.ErrMiss):
		logger.Warn().Err(err).Str("key", key).Msg("synthesis cache read failed")
	}

	clip, err := s.next.Synthesize(ctx, req)
	if err != nil {
		return dubbing.Clip{}, err
	}

	if err := s.cache.Set(ctx, key, cachedClip{Data: clip.Data, DurationMs: clip.DurationMs}, s.ttl); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("synthesis cache write failed")
	}
	return clip, nil
}

// Key 请求对应的缓存 key
func (s *CachedSynthesizer) Key(req dubbing.SynthesisRequest) string {
	return cache.ClipCacheKey(id.FromContent(
		s.namespace,
		req.VoiceID,
		strconv.Itoa(req.RatePercent),
		strconv.Itoa(req.PitchHz),
		req.Text,
	))
}
