package providers

import (
	"context"

	"dubber/internal/pkg/dubbing"
	"dubber/internal/pkg/tts"
)

// TTSClient 火山引擎 TTS 接口（tts.Client 实现）
type TTSClient interface {
	Synthesize(ctx context.Context, req tts.Request) (*tts.Result, error)
}

// Decoder 将合成服务返回的音频转换为时间线使用的 Clip（audiokit.Toolkit 实现）
type Decoder interface {
	Decode(ctx context.Context, data []byte) (dubbing.Clip, error)
}

// VolcengineSynthesizer 基于火山引擎 TTS 的 dubbing.Synthesizer
type VolcengineSynthesizer struct {
	client  TTSClient
	decoder Decoder
}

// NewVolcengineSynthesizer 创建合成器
func NewVolcengineSynthesizer(client TTSClient, decoder Decoder) *VolcengineSynthesizer {
	return &VolcengineSynthesizer{client: client, decoder: decoder}
}

// Synthesize 实现 dubbing.Synthesizer
func (s *VolcengineSynthesizer) Synthesize(ctx context.Context, req dubbing.SynthesisRequest) (dubbing.Clip, error) {
	result, err := s.client.Synthesize(ctx, tts.Request{
		Text:        req.Text,
		Voice:       req.VoiceID,
		RatePercent: req.RatePercent,
		PitchHz:     req.PitchHz,
	})
	if err != nil {
		return dubbing.Clip{}, err
	}

	clip, err := s.decoder.Decode(ctx, result.AudioData)
	if err != nil {
		return dubbing.Clip{}, &dubbing.AudioProcessingError{Op: "decode", Err: err}
	}
	return clip, nil
}
