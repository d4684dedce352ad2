package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dubber/internal/config"
	"dubber/internal/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "dubber",
	Short: "Dubber - timestamp-synchronized speech dubbing",
	Long: `Dubber turns an SRT cue sheet into a single audio track whose speech
lines up with the cue timestamps. Each cue is synthesized, time-compressed
or truncated to fit its window, and joined with silence.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./configs/config.yaml)")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.dubber")
	}

	// 环境变量设置
	viper.SetEnvPrefix("DUBBER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 设置默认值
	setDefaults()

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			fmt.Fprintln(os.Stderr, "No config file found, using defaults and environment variables")
		} else {
			fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
			os.Exit(1)
		}
	}

	// 反序列化到结构体
	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to unmarshal config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	log.Debug().Str("config_file", viper.ConfigFileUsed()).Msg("configuration loaded")
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "60s")

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.time_format", "RFC3339")

	// MongoDB
	viper.SetDefault("mongo.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo.database", "dubber")
	viper.SetDefault("mongo.max_pool_size", 100)
	viper.SetDefault("mongo.min_pool_size", 10)

	// Redis
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)

	// Auth
	viper.SetDefault("auth.issuer", "dubber")
	viper.SetDefault("auth.access_token_expiry", "24h")

	// Storage
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local.base_path", "./data")
	viper.SetDefault("storage.local.base_url", "http://localhost:8080/files")

	// TTS
	viper.SetDefault("tts.api_url", "https://openspeech.bytedance.com/api/v1/tts")
	viper.SetDefault("tts.cluster", "volcano_tts")
	viper.SetDefault("tts.encoding", "mp3")
	viper.SetDefault("tts.language", "cn")
	viper.SetDefault("tts.timeout", "30s")

	// FFmpeg
	viper.SetDefault("ffmpeg.ffmpeg_path", "ffmpeg")
	viper.SetDefault("ffmpeg.ffprobe_path", "ffprobe")

	// Dubbing
	viper.SetDefault("dubbing.default_voice", "BV115_streaming")
	viper.SetDefault("dubbing.max_compression", 3.0)
	viper.SetDefault("dubbing.workers", 4)
	viper.SetDefault("dubbing.rate_limit", 0)
	viper.SetDefault("dubbing.max_sheet_bytes", 5*1024*1024)
	viper.SetDefault("dubbing.sample_rate", 24000)
	viper.SetDefault("dubbing.output_format", "mp3")
	viper.SetDefault("dubbing.bitrate", "128k")
	viper.SetDefault("dubbing.cache_ttl", "168h")
	viper.SetDefault("dubbing.job_timeout", "30m")
	viper.SetDefault("dubbing.max_concurrent", 2)
}

// GetConfig returns the global configuration
func GetConfig() *config.Config {
	return cfg
}
