package config

import (
	"errors"
	"fmt"
	"time"
)

// Config 应用配置根结构
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Storage StorageConfig `mapstructure:"storage"`
	TTS     TTSConfig     `mapstructure:"tts"`
	FFmpeg  FFmpegConfig  `mapstructure:"ffmpeg"`
	Dubbing DubbingConfig `mapstructure:"dubbing"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	MinPoolSize uint64 `mapstructure:"min_pool_size"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"` // 关闭时不缓存合成结果
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`          // JWT密钥
	Issuer            string        `mapstructure:"issuer"`              // 签发方
	AccessTokenExpiry time.Duration `mapstructure:"access_token_expiry"` // Access Token过期时间
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type  string       `mapstructure:"type"` // local, oss, s3, minio
	Local *LocalConfig `mapstructure:"local,omitempty"`
	OSS   *OSSConfig   `mapstructure:"oss,omitempty"`
}

// LocalConfig 本地文件系统配置
type LocalConfig struct {
	BasePath      string `mapstructure:"base_path"`      // 基础路径
	BaseURL       string `mapstructure:"base_url"`       // 基础URL（用于生成访问URL）
	PresignExpiry int    `mapstructure:"presign_expiry"` // 预签名URL过期时间（秒）
}

// OSSConfig 阿里云OSS配置
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`          // OSS端点
	Bucket          string `mapstructure:"bucket"`            // Bucket名称
	AccessKeyID     string `mapstructure:"access_key_id"`     // AccessKey ID
	AccessKeySecret string `mapstructure:"access_key_secret"` // AccessKey Secret
	PresignExpiry   int    `mapstructure:"presign_expiry"`    // 预签名URL过期时间（秒）
}

// TTSConfig 火山引擎语音合成配置
type TTSConfig struct {
	APIURL      string        `mapstructure:"api_url"`
	AccessToken string        `mapstructure:"access_token"`
	AppID       string        `mapstructure:"app_id"`
	Cluster     string        `mapstructure:"cluster"`
	Encoding    string        `mapstructure:"encoding"` // 服务端返回的音频格式
	Language    string        `mapstructure:"language"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// FFmpegConfig FFmpeg 可执行文件路径
type FFmpegConfig struct {
	FFmpegPath  string `mapstructure:"ffmpeg_path"`
	FFprobePath string `mapstructure:"ffprobe_path"`
}

// DubbingConfig 配音任务配置
type DubbingConfig struct {
	DefaultVoice   string        `mapstructure:"default_voice"`   // 请求未指定音色时使用
	MaxCompression float64       `mapstructure:"max_compression"` // 最大压缩倍率
	Workers        int           `mapstructure:"workers"`         // 单任务并发合成数
	RateLimit      float64       `mapstructure:"rate_limit"`      // 每秒合成请求数，0 不限制
	MaxSheetBytes  int           `mapstructure:"max_sheet_bytes"` // 字幕表大小上限
	SampleRate     int           `mapstructure:"sample_rate"`     // 时间线 PCM 采样率
	OutputFormat   string        `mapstructure:"output_format"`   // mp3 / wav
	Bitrate        string        `mapstructure:"bitrate"`         // mp3 码率
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`       // 合成结果缓存时间
	JobTimeout     time.Duration `mapstructure:"job_timeout"`     // 单个任务超时
	MaxConcurrent  int           `mapstructure:"max_concurrent"`  // 服务端同时执行的任务数
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	return c.Dubbing.Validate()
}

// Validate 验证配音配置
func (d *DubbingConfig) Validate() error {
	if d.MaxCompression < 1 {
		return fmt.Errorf("invalid dubbing.max_compression %v, must be >= 1", d.MaxCompression)
	}
	if d.Workers < 1 {
		return fmt.Errorf("invalid dubbing.workers %d, must be >= 1", d.Workers)
	}
	if d.RateLimit < 0 {
		return fmt.Errorf("invalid dubbing.rate_limit %v, must be >= 0", d.RateLimit)
	}
	if d.MaxSheetBytes <= 0 {
		return errors.New("invalid dubbing.max_sheet_bytes, must be positive")
	}
	if d.SampleRate <= 0 {
		return errors.New("invalid dubbing.sample_rate, must be positive")
	}
	switch d.OutputFormat {
	case "mp3", "wav":
	default:
		return fmt.Errorf("invalid dubbing.output_format %q, must be mp3/wav", d.OutputFormat)
	}
	return nil
}
