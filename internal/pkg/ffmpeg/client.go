package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// atempo 单级滤镜的取值范围
const (
	minAtempo = 0.5
	maxAtempo = 2.0
)

// Config FFmpeg 配置
type Config struct {
	FFmpegPath  string // 默认: ffmpeg
	FFprobePath string // 默认: ffprobe
}

// Client FFmpeg 客户端
// 所有输入输出都走 stdin/stdout 管道，不落盘
type Client struct {
	ffmpegPath  string
	ffprobePath string
}

// NewClient 创建 FFmpeg 客户端
func NewClient(cfg Config) *Client {
	ffmpegPath := strings.TrimSpace(cfg.FFmpegPath)
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	ffprobePath := strings.TrimSpace(cfg.FFprobePath)
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	return &Client{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// AudioInfo 音频信息
type AudioInfo struct {
	Duration   float64 // 时长（秒）
	SampleRate int
	Channels   int
	CodecName  string
}

// DurationMs 时长（毫秒）
func (i AudioInfo) DurationMs() int64 {
	return int64(math.Round(i.Duration * 1000))
}

// probeResult ffprobe JSON 输出
type probeResult struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe 通过 ffprobe 获取音频信息
func (c *Client) Probe(ctx context.Context, data []byte) (*AudioInfo, error) {
	output, err := c.run(ctx, c.ffprobePath, data,
		"-v", "error",
		"-show_entries", "format=duration:stream=codec_type,codec_name,sample_rate,channels",
		"-of", "json",
		"pipe:0",
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbe(output)
}

func parseProbe(output []byte) (*AudioInfo, error) {
	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &AudioInfo{}
	if d, err := strconv.ParseFloat(strings.TrimSpace(result.Format.Duration), 64); err == nil {
		info.Duration = d
	}
	for _, s := range result.Streams {
		if s.CodecType != "audio" {
			continue
		}
		info.CodecName = s.CodecName
		info.Channels = s.Channels
		info.SampleRate, _ = strconv.Atoi(s.SampleRate)
		break
	}
	return info, nil
}

// Decode 将任意格式的音频解码为 16 位 PCM WAV
func (c *Client) Decode(ctx context.Context, data []byte, sampleRate, channels int) ([]byte, error) {
	output, err := c.run(ctx, c.ffmpegPath, data,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-f", "wav",
		"pipe:1",
	)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}
	return output, nil
}

// Stretch 保持音高变速，factor > 1 加速
func (c *Client) Stretch(ctx context.Context, wavData []byte, factor float64) ([]byte, error) {
	filter, err := AtempoFilter(factor)
	if err != nil {
		return nil, err
	}

	output, err := c.run(ctx, c.ffmpegPath, wavData,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-filter:a", filter,
		"-acodec", "pcm_s16le",
		"-f", "wav",
		"pipe:1",
	)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg atempo failed: %w", err)
	}

	log.Debug().
		Float64("factor", factor).
		Str("filter", filter).
		Int("bytes", len(output)).
		Msg("audio stretched")

	return output, nil
}

// Encode 将 WAV 编码为指定格式（mp3 等）
func (c *Client) Encode(ctx context.Context, wavData []byte, format, bitrate string) ([]byte, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
	}
	if bitrate != "" {
		args = append(args, "-b:a", bitrate)
	}
	args = append(args, "-f", format, "pipe:1")

	output, err := c.run(ctx, c.ffmpegPath, wavData, args...)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg encode %s failed: %w", format, err)
	}

	log.Info().
		Str("format", format).
		Str("bitrate", bitrate).
		Int("bytes", len(output)).
		Msg("audio encoded")

	return output, nil
}

// run 执行命令，stdin 写入 input，返回 stdout
func (c *Client) run(ctx context.Context, binary string, input []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// AtempoChain 将倍率拆成若干个 [0.5, 2.0] 范围内的 atempo 级联
func AtempoChain(factor float64) ([]float64, error) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, fmt.Errorf("invalid tempo factor %v", factor)
	}

	var chain []float64
	for factor > maxAtempo {
		chain = append(chain, maxAtempo)
		factor /= maxAtempo
	}
	for factor < minAtempo {
		chain = append(chain, minAtempo)
		factor /= minAtempo
	}
	return append(chain, factor), nil
}

// AtempoFilter 生成 atempo 滤镜字符串，如 "atempo=2.000000,atempo=1.500000"
func AtempoFilter(factor float64) (string, error) {
	chain, err := AtempoChain(factor)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(chain))
	for i, f := range chain {
		parts[i] = "atempo=" + strconv.FormatFloat(f, 'f', 6, 64)
	}
	return strings.Join(parts, ","), nil
}
