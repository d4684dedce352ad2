package providers

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"dubber/internal/config"
	"dubber/internal/pkg/audiokit"
	"dubber/internal/pkg/dubbing"
	"dubber/internal/pkg/ffmpeg"
	"dubber/internal/pkg/tts"
)

// Pipeline 组装好的配音流水线
type Pipeline struct {
	Dubber  *dubbing.Dubber
	Toolkit *audiokit.Toolkit
	FFmpeg  *ffmpeg.Client
}

// NewPipeline 按配置组装 TTS、音频工具和编排器
// clipCache 为 nil 时不缓存合成结果
func NewPipeline(cfg *config.Config, clipCache ClipCache) (*Pipeline, error) {
	ff := ffmpeg.NewClient(ffmpeg.Config{
		FFmpegPath:  cfg.FFmpeg.FFmpegPath,
		FFprobePath: cfg.FFmpeg.FFprobePath,
	})

	toolkit := audiokit.New(ff, audiokit.Config{
		SampleRate:   cfg.Dubbing.SampleRate,
		ExportFormat: cfg.Dubbing.OutputFormat,
		Bitrate:      cfg.Dubbing.Bitrate,
	})

	ttsClient, err := tts.NewClient(tts.Config{
		APIURL:      cfg.TTS.APIURL,
		AccessToken: cfg.TTS.AccessToken,
		AppID:       cfg.TTS.AppID,
		Cluster:     cfg.TTS.Cluster,
		VoiceType:   cfg.Dubbing.DefaultVoice,
		SampleRate:  toolkit.Format().SampleRate,
		Encoding:    cfg.TTS.Encoding,
		Language:    cfg.TTS.Language,
		Timeout:     cfg.TTS.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}

	var synth dubbing.Synthesizer = NewVolcengineSynthesizer(ttsClient, toolkit)
	if clipCache != nil {
		namespace := fmt.Sprintf("volcengine/%s/%s/%d", cfg.TTS.Cluster, cfg.TTS.Encoding, toolkit.Format().SampleRate)
		synth = NewCachedSynthesizer(synth, clipCache, cfg.Dubbing.CacheTTL, namespace)
		log.Info().Str("namespace", namespace).Msg("synthesis cache enabled")
	}

	dubber := dubbing.NewDubber(synth, toolkit, dubbing.Config{
		MaxCompression: cfg.Dubbing.MaxCompression,
		Workers:        cfg.Dubbing.Workers,
		RateLimit:      cfg.Dubbing.RateLimit,
		MaxSheetBytes:  cfg.Dubbing.MaxSheetBytes,
		DefaultVoice:   ttsClient.VoiceType(),
	}, dubbing.WithExporter(toolkit))

	return &Pipeline{
		Dubber:  dubber,
		Toolkit: toolkit,
		FFmpeg:  ff,
	}, nil
}
