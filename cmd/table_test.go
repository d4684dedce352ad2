package cmd

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"dubber/internal/pkg/dubbing"
)

func TestFormatMs(t *testing.T) {
	Convey("formatMs 输出时分秒毫秒", t, func() {
		So(formatMs(0), ShouldEqual, "00:00:00.000")
		So(formatMs(3723456), ShouldEqual, "01:02:03.456")
	})
}

func TestRenderPlacements(t *testing.T) {
	Convey("落点表格包含注记", t, func() {
		out := renderPlacements([]dubbing.Placement{
			{Ordinal: 1, Text: "Hello", CueEndMs: 1000, NaturalMs: 5000, FittedMs: 1000, Ratio: 3, Clamped: true, Truncated: true},
			{Ordinal: 2, CueStartMs: 1000, CueEndMs: 2000, StartMs: 1000, Ratio: 1, Skipped: true},
		})
		So(out, ShouldContainSubstring, "clamped,truncated")
		So(out, ShouldContainSubstring, "skipped")
		So(out, ShouldContainSubstring, "5000ms")
	})

	Convey("长文本被截断", t, func() {
		So(ellipsis("abcdef", 4), ShouldEqual, "abc…")
		So(ellipsis("abc", 4), ShouldEqual, "abc")
	})
}
