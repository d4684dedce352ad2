package dubbing

import (
	"context"
	"fmt"
	"strings"
)

// Clip 一段音频及其时长
// Data 的具体格式由 AudioToolkit 决定，对编排流程不透明
type Clip struct {
	Data       []byte
	DurationMs int64
}

// SynthesisRequest 单条 cue 的合成请求
type SynthesisRequest struct {
	Text        string
	VoiceID     string
	RatePercent int
	PitchHz     int
}

// Synthesizer 语音合成服务（外部协作方）
// 对同样的 (text, voice, rate, pitch) 视为纯函数，可以并发调用
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (Clip, error)
}

// SynthesizerFunc 函数适配器
type SynthesizerFunc func(ctx context.Context, req SynthesisRequest) (Clip, error)

// Synthesize 实现 Synthesizer
func (f SynthesizerFunc) Synthesize(ctx context.Context, req SynthesisRequest) (Clip, error) {
	return f(ctx, req)
}

// 语速 / 音高的可调范围
const (
	MinRatePercent = -100
	MaxRatePercent = 100
	MinPitchHz     = -100
	MaxPitchHz     = 100
)

// VoiceSettings 单个配音任务的音色配置
// 每个任务一份，任务执行期间不修改
type VoiceSettings struct {
	VoiceID     string `json:"voice_id"`
	RatePercent int    `json:"rate_percent"`
	PitchHz     int    `json:"pitch_hz"`
}

// 预设
var (
	PresetDefault = VoiceSettings{RatePercent: 0, PitchHz: 0}
	PresetCrisp   = VoiceSettings{RatePercent: 10, PitchHz: 5}
)

// Normalize 返回限制在合法范围内的副本，VoiceID 为空时使用 defaultVoice
func (v VoiceSettings) Normalize(defaultVoice string) VoiceSettings {
	v.VoiceID = strings.TrimSpace(v.VoiceID)
	if v.VoiceID == "" {
		v.VoiceID = defaultVoice
	}
	v.RatePercent = clampInt(v.RatePercent, MinRatePercent, MaxRatePercent)
	v.PitchHz = clampInt(v.PitchHz, MinPitchHz, MaxPitchHz)
	return v
}

// WithPreset 保留音色，替换语速和音高
func (v VoiceSettings) WithPreset(preset VoiceSettings) VoiceSettings {
	v.RatePercent = preset.RatePercent
	v.PitchHz = preset.PitchHz
	return v
}

// RateString 形如 "+10%" / "-10%"
func (v VoiceSettings) RateString() string {
	return fmt.Sprintf("%+d%%", v.RatePercent)
}

// PitchString 形如 "+5Hz" / "-5Hz"
func (v VoiceSettings) PitchString() string {
	return fmt.Sprintf("%+dHz", v.PitchHz)
}

// Request 为指定文本构造合成请求
func (v VoiceSettings) Request(text string) SynthesisRequest {
	return SynthesisRequest{
		Text:        text,
		VoiceID:     v.VoiceID,
		RatePercent: v.RatePercent,
		PitchHz:     v.PitchHz,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
