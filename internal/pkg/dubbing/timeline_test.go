package dubbing

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTimeline(t *testing.T) {
	Convey("Timeline 只追加且游标只前进", t, func() {
		tl := NewTimeline()
		So(tl.CursorMs(), ShouldEqual, 0)
		So(tl.GapTo(1500), ShouldEqual, 1500)

		So(tl.AppendSilence(Clip{DurationMs: 1500}), ShouldBeNil)
		tl.AppendSpeech(1, Clip{DurationMs: 700})
		So(tl.CursorMs(), ShouldEqual, 2200)
		So(tl.GapTo(2000), ShouldEqual, -200)

		segments := tl.Segments()
		So(len(segments), ShouldEqual, 2)
		So(segments[0].Kind, ShouldEqual, SegmentSilence)
		So(segments[1].Kind, ShouldEqual, SegmentSpeech)
		So(segments[1].Ordinal, ShouldEqual, 1)
		So(segments[1].StartMs, ShouldEqual, 1500)
		So(len(tl.Clips()), ShouldEqual, 2)

		Convey("静音时长必须为正", func() {
			So(tl.AppendSilence(Clip{DurationMs: 0}), ShouldNotBeNil)
			So(tl.CursorMs(), ShouldEqual, 2200)
		})

		Convey("Discard 清空片段", func() {
			tl.Discard()
			So(tl.Segments(), ShouldBeEmpty)
			So(tl.CursorMs(), ShouldEqual, 0)
		})
	})
}
