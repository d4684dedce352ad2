package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"dubber/internal/pkg/cache"
	"dubber/internal/pkg/dubbing"
	"dubber/internal/pkg/dubbing/providers"
	"dubber/internal/pkg/id"
	"dubber/internal/pkg/logger"
)

var dubCmd = &cobra.Command{
	Use:   "dub",
	Short: "Dub an SRT cue sheet into a single audio file",
	Long: `Run one dubbing job locally: parse the cue sheet, synthesize every cue,
fit each clip into its window and write the joined track.`,
	Example: `  dubber dub -i episode.srt -o episode.mp3 --voice BV700_streaming --rate 10 --pitch 5
  dubber dub -i episode.srt --preset crisp --report placements.srt`,
	RunE: runDub,
}

func init() {
	rootCmd.AddCommand(dubCmd)

	flags := dubCmd.Flags()
	flags.StringP("input", "i", "", "input cue sheet (SRT)")
	flags.StringP("output", "o", "", "output audio file (default: input name with the output format extension)")
	flags.String("voice", "", "voice id (default: dubbing.default_voice)")
	flags.Int("rate", 0, "speaking rate adjustment in percent, -100..100")
	flags.Int("pitch", 0, "pitch adjustment in Hz, -100..100")
	flags.String("preset", "", "voice preset (default/crisp), overrides --rate and --pitch")
	flags.Float64("max-compression", 0, "maximum time compression ratio (default: dubbing.max_compression)")
	flags.Int("workers", 0, "concurrent synthesis requests (default: dubbing.workers)")
	flags.String("format", "", "output format mp3/wav (default: dubbing.output_format)")
	flags.String("report", "", "write actual clip placements as SRT to this file")
	flags.Bool("quiet", false, "do not print the placement table")

	_ = dubCmd.MarkFlagRequired("input")
}

func runDub(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	cfg := *GetConfig()

	if flags.Changed("max-compression") {
		cfg.Dubbing.MaxCompression, _ = flags.GetFloat64("max-compression")
	}
	if flags.Changed("workers") {
		cfg.Dubbing.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("format") {
		format, _ := flags.GetString("format")
		cfg.Dubbing.OutputFormat = strings.ToLower(format)
	}
	if err := cfg.Dubbing.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	settings, err := voiceFromFlags(cmd)
	if err != nil {
		return err
	}

	input, _ := flags.GetString("input")
	output, _ := flags.GetString("output")
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + "." + cfg.Dubbing.OutputFormat
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("failed to read cue sheet: %w", err)
	}

	var clipCache providers.ClipCache
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without synthesis cache")
		} else {
			defer rc.Close()
			clipCache = rc
		}
	}

	pipeline, err := providers.NewPipeline(&cfg, clipCache)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithJob(ctx, id.New())

	result, err := pipeline.Dubber.Dub(ctx, dubbing.DecodeSheet(data), settings)
	if err != nil {
		return describeFailure(err)
	}

	if err := os.WriteFile(output, result.Audio, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if report, _ := flags.GetString("report"); report != "" {
		srt, err := dubbing.FormatPlacementSRT(result.Placements)
		if err != nil {
			return err
		}
		if err := os.WriteFile(report, []byte(srt), 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if quiet, _ := flags.GetBool("quiet"); !quiet {
		fmt.Fprintln(out, renderPlacements(result.Placements))
	}
	fmt.Fprintf(out, "wrote %s (%s, %s, %d cues)\n",
		output,
		humanize.Bytes(uint64(len(result.Audio))),
		formatMs(result.DurationMs),
		len(result.Placements),
	)
	return nil
}

// voiceFromFlags 从命令行参数构造音色设置
func voiceFromFlags(cmd *cobra.Command) (dubbing.VoiceSettings, error) {
	flags := cmd.Flags()
	voice, _ := flags.GetString("voice")
	rate, _ := flags.GetInt("rate")
	pitch, _ := flags.GetInt("pitch")
	settings := dubbing.VoiceSettings{VoiceID: voice, RatePercent: rate, PitchHz: pitch}

	preset, _ := flags.GetString("preset")
	switch strings.ToLower(preset) {
	case "":
	case "default":
		settings = settings.WithPreset(dubbing.PresetDefault)
	case "crisp":
		settings = settings.WithPreset(dubbing.PresetCrisp)
	default:
		return settings, fmt.Errorf("unknown preset %q (want default or crisp)", preset)
	}
	return settings, nil
}

// describeFailure 为命令行补充失败类别和 cue 序号
func describeFailure(err error) error {
	kind := dubbing.KindOf(err)
	if ordinal := dubbing.FailedOrdinal(err); ordinal > 0 {
		return fmt.Errorf("dubbing failed (%s, cue %d): %w", kind, ordinal, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("dubbing cancelled: %w", err)
	}
	return fmt.Errorf("dubbing failed (%s): %w", kind, err)
}
