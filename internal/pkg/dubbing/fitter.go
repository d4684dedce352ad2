package dubbing

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// DefaultMaxCompression 默认最大压缩倍率
const DefaultMaxCompression = 3.0

// AudioToolkit 音频处理能力（外部协作方）
type AudioToolkit interface {
	// Stretch 保持音高的变速，factor > 1 表示加速（时长变为 1/factor）
	Stretch(ctx context.Context, clip Clip, factor float64) (Clip, error)
	// Truncate 截掉尾部，使时长恰好为 durationMs
	Truncate(ctx context.Context, clip Clip, durationMs int64) (Clip, error)
	// Silence 生成指定时长的静音
	Silence(ctx context.Context, durationMs int64) (Clip, error)
	// Concat 依次拼接
	Concat(ctx context.Context, clips []Clip) (Clip, error)
}

// Exporter 将拼接结果编码为最终的输出格式
type Exporter interface {
	Export(ctx context.Context, clip Clip) ([]byte, string, error)
}

// FitReport 时长适配结果
type FitReport struct {
	NaturalMs int64   // 合成音频的原始时长
	TargetMs  int64   // cue 时间窗
	FittedMs  int64   // 适配后的时长
	Ratio     float64 // 实际使用的压缩倍率，未压缩为 1
	Clamped   bool    // 所需倍率超过上限
	Truncated bool    // 压缩后仍超长，尾部被截断
}

// Fitter 将合成音频压入 cue 时间窗
type Fitter struct {
	toolkit        AudioToolkit
	maxCompression float64
}

// NewFitter 创建 Fitter，maxCompression < 1 时使用默认值
func NewFitter(toolkit AudioToolkit, maxCompression float64) *Fitter {
	if maxCompression < 1 {
		maxCompression = DefaultMaxCompression
	}
	return &Fitter{
		toolkit:        toolkit,
		maxCompression: maxCompression,
	}
}

// MaxCompression 当前压缩上限
func (f *Fitter) MaxCompression() float64 {
	return f.maxCompression
}

// Fit 适配单条 cue 的音频
//
// 不超长时原样返回（剩余时间留给下一个 cue 之前的静音）；
// 超长时按 min(实际倍率, 上限) 压缩，仍超长则截断到 targetMs。
// 倍率被限制和截断都不是错误，只记录日志。
func (f *Fitter) Fit(ctx context.Context, ordinal int, clip Clip, targetMs int64) (Clip, FitReport, error) {
	report := FitReport{
		NaturalMs: clip.DurationMs,
		TargetMs:  targetMs,
		FittedMs:  clip.DurationMs,
		Ratio:     1,
	}

	if clip.DurationMs <= targetMs {
		return clip, report, nil
	}

	logger := zerolog.Ctx(ctx).With().Int("ordinal", ordinal).Logger()

	fitted := clip
	if targetMs > 0 {
		ratio := float64(clip.DurationMs) / float64(targetMs)
		if ratio > f.maxCompression {
			logger.Warn().
				Float64("required_ratio", ratio).
				Float64("max_compression", f.maxCompression).
				Msg("compression ratio clamped")
			ratio = f.maxCompression
			report.Clamped = true
		}

		stretched, err := f.toolkit.Stretch(ctx, clip, ratio)
		if err != nil {
			return Clip{}, report, &AudioProcessingError{Ordinal: ordinal, Op: "stretch", Err: err}
		}
		fitted = stretched
		report.Ratio = ratio
	}

	if fitted.DurationMs > targetMs {
		truncated, err := f.toolkit.Truncate(ctx, fitted, targetMs)
		if err != nil {
			return Clip{}, report, &AudioProcessingError{Ordinal: ordinal, Op: "truncate", Err: err}
		}
		logger.Warn().
			Int64("natural_ms", clip.DurationMs).
			Int64("compressed_ms", fitted.DurationMs).
			Int64("target_ms", targetMs).
			Msg("clip truncated to cue window")
		fitted = truncated
		report.Truncated = true
	}

	if fitted.DurationMs > targetMs {
		return Clip{}, report, &AudioProcessingError{
			Ordinal: ordinal,
			Op:      "truncate",
			Err:     fmt.Errorf("%w: got %dms, want <= %dms", errFitOverrun, fitted.DurationMs, targetMs),
		}
	}

	report.FittedMs = fitted.DurationMs
	return fitted, report, nil
}

var errFitOverrun = errors.New("toolkit returned clip longer than requested")
