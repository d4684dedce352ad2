package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"dubber/internal/pkg/id"
)

// 默认值
const (
	DefaultAPIURL     = "https://openspeech.bytedance.com/api/v1/tts"
	DefaultCluster    = "volcano_tts"
	DefaultVoiceType  = "BV115_streaming"
	DefaultSampleRate = 24000
	DefaultEncoding   = "mp3"
	DefaultLanguage   = "cn"
	DefaultTimeout    = 30 * time.Second

	successCode = 3000
)

// Config TTS 配置
type Config struct {
	APIURL      string        // API 地址
	AccessToken string        // 访问令牌（必需）
	AppID       string        // 应用ID（可选）
	Cluster     string        // 集群名称
	VoiceType   string        // 请求未指定音色时使用
	SampleRate  int           // 采样率
	Encoding    string        // mp3 / wav / pcm
	Language    string        // 语种
	Timeout     time.Duration // 单次请求超时
}

// Client 火山引擎 TTS 客户端（文本转语音）
// 参考: https://openspeech.bytedance.com/api/v1/tts
type Client struct {
	apiURL      string
	accessToken string
	appID       string
	cluster     string
	voiceType   string
	sampleRate  int
	encoding    string
	language    string
	httpClient  *http.Client
}

// NewClient 创建 TTS 客户端
func NewClient(config Config) (*Client, error) {
	if config.AccessToken == "" {
		return nil, fmt.Errorf("TTS access token is required")
	}

	c := &Client{
		apiURL:      withDefault(config.APIURL, DefaultAPIURL),
		accessToken: config.AccessToken,
		appID:       config.AppID,
		cluster:     withDefault(config.Cluster, DefaultCluster),
		voiceType:   withDefault(config.VoiceType, DefaultVoiceType),
		sampleRate:  config.SampleRate,
		encoding:    withDefault(config.Encoding, DefaultEncoding),
		language:    withDefault(config.Language, DefaultLanguage),
	}
	if c.sampleRate == 0 {
		c.sampleRate = DefaultSampleRate
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c.httpClient = &http.Client{Timeout: timeout}

	return c, nil
}

// VoiceType 默认音色
func (c *Client) VoiceType() string {
	return c.voiceType
}

// Request 合成请求
type Request struct {
	Text        string
	Voice       string // 为空时使用默认音色
	RatePercent int    // 语速调整，-100 ~ +100
	PitchHz     int    // 音高调整，-100 ~ +100
}

// Result 合成结果
type Result struct {
	AudioData  []byte // 音频数据（encoding 指定的格式）
	Encoding   string
	DurationMs int64 // 服务端返回的时长，未返回时为 0
}

// APIError 服务端返回的业务错误
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("TTS API error: %s (code: %d)", e.Message, e.Code)
	}
	return fmt.Sprintf("TTS API request failed: status %d: %s", e.StatusCode, e.Message)
}

// apiResponse 接口响应
type apiResponse struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Data     string `json:"data"`
	Addition struct {
		Duration json.RawMessage `json:"duration"`
	} `json:"addition"`
}

// Synthesize 合成一段语音
func (c *Client) Synthesize(ctx context.Context, req Request) (*Result, error) {
	requestID := id.New()
	requestConfig := c.buildRequestConfig(req, requestID)

	reqBody, err := json.Marshal(requestConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer; %s", c.accessToken))
	httpReq.Header.Set("Content-Type", "application/json")

	log.Debug().
		Str("request_id", requestID).
		Int("text_len", len([]rune(req.Text))).
		Str("voice", withDefault(req.Voice, c.voiceType)).
		Msg("sending TTS request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: truncateBody(respBody)}
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		// 服务端偶尔返回缺少逗号的 JSON
		if err := json.Unmarshal([]byte(fixJSON(string(respBody))), &apiResp); err != nil {
			return nil, fmt.Errorf("failed to parse JSON response: %w", err)
		}
	}

	if apiResp.Code != successCode {
		message := apiResp.Message
		if message == "" {
			message = "unknown error"
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Code: apiResp.Code, Message: message}
	}

	if apiResp.Data == "" {
		return nil, fmt.Errorf("audio data not found in response")
	}
	audioData, err := base64.StdEncoding.DecodeString(apiResp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio data: %w", err)
	}

	return &Result{
		AudioData:  audioData,
		Encoding:   c.encoding,
		DurationMs: parseDurationMs(apiResp.Addition.Duration),
	}, nil
}

// buildRequestConfig 构建请求配置
func (c *Client) buildRequestConfig(req Request, requestID string) map[string]interface{} {
	appConfig := map[string]interface{}{
		"token":   c.accessToken,
		"cluster": c.cluster,
	}
	if c.appID != "" {
		appConfig["appid"] = c.appID
	}

	audioConfig := map[string]interface{}{
		"voice_type":       withDefault(req.Voice, c.voiceType),
		"encoding":         c.encoding,
		"compression_rate": 1,
		"rate":             c.sampleRate,
		"speed_ratio":      SpeedRatio(req.RatePercent),
		"volume_ratio":     1.0,
		"pitch_ratio":      PitchRatio(req.PitchHz),
		"language":         c.language,
	}

	requestConfig := map[string]interface{}{
		"reqid":     requestID,
		"text":      req.Text,
		"text_type": "plain",
		"operation": "query",
	}

	return map[string]interface{}{
		"app":     appConfig,
		"user":    map[string]interface{}{"uid": requestID},
		"audio":   audioConfig,
		"request": requestConfig,
	}
}

// SpeedRatio 语速百分比转换为 speed_ratio，范围 [0.2, 3.0]
func SpeedRatio(ratePercent int) float64 {
	return clampFloat(1+float64(ratePercent)/100, 0.2, 3.0)
}

// PitchRatio 音高偏移（Hz）按 200Hz 基准转换为 pitch_ratio，范围 [0.1, 3.0]
func PitchRatio(pitchHz int) float64 {
	return clampFloat((200+float64(pitchHz))/200, 0.1, 3.0)
}

// parseDurationMs addition.duration 可能是字符串或数字（毫秒）
func parseDurationMs(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	s := strings.Trim(string(raw), `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}

// fixJSON 修复缺少逗号的 JSON
func fixJSON(jsonStr string) string {
	fixed := strings.ReplaceAll(jsonStr, "}{", "},{")
	fixed = strings.ReplaceAll(fixed, "}{\"phone", "},{\"phone")
	fixed = strings.ReplaceAll(fixed, "}{\"word", "},{\"word")
	return fixed
}

func truncateBody(body []byte) string {
	const max = 512
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func withDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
