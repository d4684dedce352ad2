package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"

	"dubber/internal/config"
)

func TestInit(t *testing.T) {
	Convey("Init 按配置设置全局日志", t, func() {
		defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

		So(Init(&config.LogConfig{Level: "warn", Format: "json", Output: "stdout"}), ShouldBeNil)
		So(zerolog.GlobalLevel(), ShouldEqual, zerolog.WarnLevel)
		So(zerolog.DefaultContextLogger, ShouldNotBeNil)

		Convey("非法级别回落到 info", func() {
			So(Init(&config.LogConfig{Level: "loud"}), ShouldBeNil)
			So(zerolog.GlobalLevel(), ShouldEqual, zerolog.InfoLevel)
		})
	})
}

func TestWithJob(t *testing.T) {
	Convey("WithJob 在日志中附带 job_id", t, func() {
		var buf bytes.Buffer
		base := zerolog.New(&buf)
		ctx := WithJob(base.WithContext(context.Background()), "job-42")

		zerolog.Ctx(ctx).Warn().Msg("hello")
		So(buf.String(), ShouldContainSubstring, `"job_id":"job-42"`)
	})
}
