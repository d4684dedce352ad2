package dubbing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// 默认值
const (
	DefaultWorkers       = 4
	DefaultMaxSheetBytes = 5 * 1024 * 1024
)

// Config 编排器配置
type Config struct {
	MaxCompression float64 // 最大压缩倍率，默认 3.0
	Workers        int     // 并发合成数，默认 4
	RateLimit      float64 // 每秒最多合成请求数，0 表示不限制
	MaxSheetBytes  int     // 字幕表大小上限，默认 5MB
	DefaultVoice   string  // 请求未指定音色时使用
}

// Placement 单条 cue 在成品中的落点
type Placement struct {
	Ordinal    int     `json:"ordinal"`
	Text       string  `json:"text"`
	CueStartMs int64   `json:"cue_start_ms"`
	CueEndMs   int64   `json:"cue_end_ms"`
	GapMs      int64   `json:"gap_ms"`   // 该 cue 前插入的静音
	StartMs    int64   `json:"start_ms"` // 语音实际开始位置
	NaturalMs  int64   `json:"natural_ms"`
	FittedMs   int64   `json:"fitted_ms"`
	Ratio      float64 `json:"ratio"`
	Clamped    bool    `json:"clamped,omitempty"`
	Truncated  bool    `json:"truncated,omitempty"`
	Skipped    bool    `json:"skipped,omitempty"` // 空文本，未合成
	Overlap    bool    `json:"overlap,omitempty"` // cue 开始于游标之前
}

// Result 配音结果
type Result struct {
	Audio      []byte
	Format     string
	DurationMs int64
	Placements []Placement
}

// Option Dubber 可选项
type Option func(*Dubber)

// WithExporter 设置最终编码器，不设置时直接输出 AudioToolkit 的拼接结果
func WithExporter(exporter Exporter) Option {
	return func(d *Dubber) {
		d.exporter = exporter
	}
}

// Dubber 配音编排器：解析 → 逐 cue 合成、适配、追加 → 拼接输出
// 任一 cue 失败则整个任务失败，不返回部分结果
type Dubber struct {
	synth    Synthesizer
	toolkit  AudioToolkit
	exporter Exporter
	fitter   *Fitter
	limiter  *rate.Limiter
	cfg      Config
}

// NewDubber 创建编排器
func NewDubber(synth Synthesizer, toolkit AudioToolkit, cfg Config, opts ...Option) *Dubber {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.MaxSheetBytes <= 0 {
		cfg.MaxSheetBytes = DefaultMaxSheetBytes
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	d := &Dubber{
		synth:   synth,
		toolkit: toolkit,
		fitter:  NewFitter(toolkit, cfg.MaxCompression),
		limiter: limiter,
		cfg:     cfg,
	}
	d.cfg.MaxCompression = d.fitter.MaxCompression()

	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Config 返回生效的配置
func (d *Dubber) Config() Config {
	return d.cfg
}

// Dub 任务入口：解析字幕表并生成与时间轴对齐的音轨
func (d *Dubber) Dub(ctx context.Context, sheet string, settings VoiceSettings) (*Result, error) {
	if len(sheet) > d.cfg.MaxSheetBytes {
		return nil, &ParseError{Reason: fmt.Sprintf("cue sheet exceeds %d bytes", d.cfg.MaxSheetBytes)}
	}

	cues, err := ParseCues(sheet)
	if err != nil {
		return nil, err
	}
	return d.DubCues(ctx, cues, settings)
}

// synthSlot 单条 cue 的预取结果
type synthSlot struct {
	done chan struct{}
	clip Clip
	err  error
}

// DubCues 对已解析的 cue 执行配音
//
// 合成按有界并发预取，时间线严格按 cue 顺序折叠：
// 第 i 条 cue 前的静音取决于第 i-1 条留下的游标。
func (d *Dubber) DubCues(ctx context.Context, cues []Cue, settings VoiceSettings) (*Result, error) {
	settings = settings.Normalize(d.cfg.DefaultVoice)
	logger := zerolog.Ctx(ctx).With().
		Str("voice", settings.VoiceID).
		Str("rate", settings.RateString()).
		Str("pitch", settings.PitchString()).
		Logger()
	ctx = logger.WithContext(ctx)

	started := time.Now()
	logger.Info().Int("cues", len(cues)).Int("workers", d.cfg.Workers).Msg("dubbing started")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	// 额外的 1 个名额留给投递协程
	g.SetLimit(d.cfg.Workers + 1)

	slots := make([]*synthSlot, len(cues))
	for i, cue := range cues {
		if !cue.IsSilent() {
			slots[i] = &synthSlot{done: make(chan struct{})}
		}
	}

	// window 限制已合成但尚未折叠的音频数量
	window := make(chan struct{}, d.cfg.Workers*2)
	g.Go(func() error {
		for i, cue := range cues {
			slot := slots[i]
			if slot == nil {
				continue
			}
			select {
			case window <- struct{}{}:
			case <-gctx.Done():
				return nil
			}
			cue := cue
			g.Go(func() error {
				defer close(slot.done)
				slot.clip, slot.err = d.synthesize(gctx, cue, settings)
				return slot.err
			})
		}
		return nil
	})

	// groupErr 停止预取并返回最先失败的合成错误
	groupErr := func() error {
		cancel()
		if err := g.Wait(); err != nil {
			return err
		}
		return ctx.Err()
	}
	fail := func(err error) (*Result, error) {
		cancel()
		_ = g.Wait()
		logger.Error().Err(err).
			Str("kind", string(KindOf(err))).
			Int("failed_ordinal", FailedOrdinal(err)).
			Msg("dubbing failed")
		return nil, err
	}

	timeline := NewTimeline()
	defer timeline.Discard()
	placements := make([]Placement, 0, len(cues))

	for i, cue := range cues {
		placement := Placement{
			Ordinal:    cue.Ordinal,
			Text:       cue.Text,
			CueStartMs: cue.StartMs,
			CueEndMs:   cue.EndMs,
			Ratio:      1,
		}

		gap := timeline.GapTo(cue.StartMs)
		switch {
		case gap > 0:
			silence, err := d.toolkit.Silence(ctx, gap)
			if err != nil {
				return fail(&AudioProcessingError{Ordinal: cue.Ordinal, Op: "silence", Err: err})
			}
			if err := timeline.AppendSilence(silence); err != nil {
				return fail(&AudioProcessingError{Ordinal: cue.Ordinal, Op: "silence", Err: err})
			}
			placement.GapMs = gap
		case gap < 0:
			// 不回退游标，该 cue 紧接在上一条之后
			logger.Warn().
				Int("ordinal", cue.Ordinal).
				Int64("cue_start_ms", cue.StartMs).
				Int64("cursor_ms", timeline.CursorMs()).
				Msg("cue starts before cursor, placing it at cursor")
			placement.Overlap = true
		}

		placement.StartMs = timeline.CursorMs()

		slot := slots[i]
		if slot == nil {
			placement.Skipped = true
			placements = append(placements, placement)
			continue
		}

		select {
		case <-slot.done:
		case <-gctx.Done():
			return fail(groupErr())
		}
		<-window
		if slot.err != nil {
			return fail(groupErr())
		}

		clip := slot.clip
		slot.clip = Clip{}

		fitted, report, err := d.fitter.Fit(ctx, cue.Ordinal, clip, cue.DurationMs())
		if err != nil {
			return fail(err)
		}

		timeline.AppendSpeech(cue.Ordinal, fitted)

		placement.NaturalMs = report.NaturalMs
		placement.FittedMs = report.FittedMs
		placement.Ratio = report.Ratio
		placement.Clamped = report.Clamped
		placement.Truncated = report.Truncated
		placements = append(placements, placement)
	}

	if err := g.Wait(); err != nil {
		return fail(err)
	}

	rendered, err := d.toolkit.Concat(ctx, timeline.Clips())
	if err != nil {
		return fail(&AudioProcessingError{Op: "concat", Err: err})
	}

	result := &Result{
		Audio:      rendered.Data,
		DurationMs: timeline.CursorMs(),
		Placements: placements,
	}

	if d.exporter != nil {
		data, format, err := d.exporter.Export(ctx, rendered)
		if err != nil {
			return fail(&AudioProcessingError{Op: "export", Err: err})
		}
		result.Audio = data
		result.Format = format
	}

	logger.Info().
		Int64("duration_ms", result.DurationMs).
		Int("bytes", len(result.Audio)).
		Dur("elapsed", time.Since(started)).
		Msg("dubbing completed")

	return result, nil
}

// synthesize 限速后调用合成服务，错误包装为 *SynthesisError
// 合成服务返回的 *AudioProcessingError（如解码失败）保留类别并补上序号；
// 任务被取消或超时时原样返回 ctx.Err()，不归入合成失败
func (d *Dubber) synthesize(ctx context.Context, cue Cue, settings VoiceSettings) (Clip, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Clip{}, ctxErr
		}
		return Clip{}, fmt.Errorf("rate limiter: %w", err)
	}
	clip, err := d.synth.Synthesize(ctx, settings.Request(cue.Text))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Clip{}, ctxErr
		}
		var audioErr *AudioProcessingError
		if errors.As(err, &audioErr) {
			return Clip{}, &AudioProcessingError{Ordinal: cue.Ordinal, Op: audioErr.Op, Err: audioErr.Err}
		}
		return Clip{}, &SynthesisError{Ordinal: cue.Ordinal, Err: err}
	}
	return clip, nil
}
