package audiokit

import (
	"context"
	"fmt"
	"strings"

	"dubber/internal/pkg/dubbing"
	"dubber/internal/pkg/ffmpeg"
	"dubber/internal/pkg/wav"
)

// 默认值
const (
	DefaultSampleRate   = 24000
	DefaultExportFormat = "mp3"
	DefaultBitrate      = "128k"
)

// Config 音频工具配置
type Config struct {
	SampleRate   int    // 统一的 PCM 采样率
	ExportFormat string // mp3 或 wav
	Bitrate      string // 仅对有损格式生效
}

// Toolkit 基于 ffmpeg 和 PCM WAV 的音频工具
//
// 时间线上的 Clip.Data 统一为单声道 16 位 PCM WAV，且恰好包含 BytesFor(DurationMs) 字节；
// 静音、截断、拼接直接操作 PCM，变速和编解码交给 ffmpeg。
type Toolkit struct {
	ffmpeg       *ffmpeg.Client
	format       wav.Format
	exportFormat string
	bitrate      string
}

// New 创建 Toolkit
func New(client *ffmpeg.Client, cfg Config) *Toolkit {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	exportFormat := strings.ToLower(strings.TrimSpace(cfg.ExportFormat))
	if exportFormat == "" {
		exportFormat = DefaultExportFormat
	}
	bitrate := cfg.Bitrate
	if bitrate == "" && exportFormat != "wav" {
		bitrate = DefaultBitrate
	}

	return &Toolkit{
		ffmpeg:       client,
		format:       wav.Mono16(cfg.SampleRate),
		exportFormat: exportFormat,
		bitrate:      bitrate,
	}
}

// Format 时间线使用的 PCM 格式
func (t *Toolkit) Format() wav.Format {
	return t.format
}

// Decode 将合成服务返回的音频转换为统一格式的 Clip
func (t *Toolkit) Decode(ctx context.Context, data []byte) (dubbing.Clip, error) {
	if audio, err := wav.Parse(data); err == nil && audio.Format == t.format {
		return toClip(audio, audio.DurationMs()), nil
	}

	decoded, err := t.ffmpeg.Decode(ctx, data, t.format.SampleRate, t.format.Channels)
	if err != nil {
		return dubbing.Clip{}, err
	}
	return t.parse(decoded)
}

// Stretch 实现 dubbing.AudioToolkit
func (t *Toolkit) Stretch(ctx context.Context, clip dubbing.Clip, factor float64) (dubbing.Clip, error) {
	out, err := t.ffmpeg.Stretch(ctx, clip.Data, factor)
	if err != nil {
		return dubbing.Clip{}, err
	}
	return t.parse(out)
}

// Truncate 实现 dubbing.AudioToolkit
func (t *Toolkit) Truncate(_ context.Context, clip dubbing.Clip, durationMs int64) (dubbing.Clip, error) {
	audio, err := t.parseAudio(clip.Data)
	if err != nil {
		return dubbing.Clip{}, err
	}
	return toClip(audio, min(durationMs, clip.DurationMs)), nil
}

// Silence 实现 dubbing.AudioToolkit
func (t *Toolkit) Silence(_ context.Context, durationMs int64) (dubbing.Clip, error) {
	return toClip(wav.Silence(t.format, durationMs), durationMs), nil
}

// Concat 实现 dubbing.AudioToolkit
// 每个片段按累计的 DurationMs 落在对应的帧位置，输出时长为各片段时长之和
func (t *Toolkit) Concat(_ context.Context, clips []dubbing.Clip) (dubbing.Clip, error) {
	spans := make([]wav.Span, len(clips))
	var totalMs int64
	for i, clip := range clips {
		audio, err := t.parseAudio(clip.Data)
		if err != nil {
			return dubbing.Clip{}, fmt.Errorf("segment %d: %w", i, err)
		}
		spans[i] = wav.Span{Audio: audio, DurationMs: clip.DurationMs}
		totalMs += clip.DurationMs
	}

	combined, err := wav.Assemble(t.format, spans)
	if err != nil {
		return dubbing.Clip{}, err
	}
	return dubbing.Clip{Data: combined.Encode(), DurationMs: totalMs}, nil
}

// Export 实现 dubbing.Exporter
func (t *Toolkit) Export(ctx context.Context, clip dubbing.Clip) ([]byte, string, error) {
	if t.exportFormat == "wav" {
		return clip.Data, "wav", nil
	}
	out, err := t.ffmpeg.Encode(ctx, clip.Data, t.exportFormat, t.bitrate)
	if err != nil {
		return nil, "", err
	}
	return out, t.exportFormat, nil
}

func (t *Toolkit) parse(data []byte) (dubbing.Clip, error) {
	audio, err := t.parseAudio(data)
	if err != nil {
		return dubbing.Clip{}, err
	}
	return toClip(audio, audio.DurationMs()), nil
}

func (t *Toolkit) parseAudio(data []byte) (*wav.Audio, error) {
	audio, err := wav.Parse(data)
	if err != nil {
		return nil, err
	}
	if audio.Format != t.format {
		return nil, fmt.Errorf("%w: got %+v, want %+v", wav.ErrFormatMismatch, audio.Format, t.format)
	}
	return audio, nil
}

// toClip 将音频调整为恰好 durationMs 毫秒
func toClip(audio *wav.Audio, durationMs int64) dubbing.Clip {
	return dubbing.Clip{
		Data:       audio.Resize(durationMs).Encode(),
		DurationMs: durationMs,
	}
}
