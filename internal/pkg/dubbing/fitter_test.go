package dubbing

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestFitter_Fit(t *testing.T) {
	Convey("Fitter.Fit 将音频压入时间窗", t, func() {
		ctx := context.Background()
		toolkit := &fakeToolkit{}
		fitter := NewFitter(toolkit, 3.0)

		Convey("不超长时原样返回，不调用变速", func() {
			clip := Clip{Data: []byte("a"), DurationMs: 800}
			fitted, report, err := fitter.Fit(ctx, 1, clip, 1000)
			So(err, ShouldBeNil)
			So(fitted.DurationMs, ShouldEqual, 800)
			So(report.Ratio, ShouldEqual, 1)
			So(report.Truncated, ShouldBeFalse)
			So(toolkit.factors, ShouldBeEmpty)
		})

		Convey("刚好等于时间窗", func() {
			fitted, _, err := fitter.Fit(ctx, 1, Clip{DurationMs: 1000}, 1000)
			So(err, ShouldBeNil)
			So(fitted.DurationMs, ShouldEqual, 1000)
			So(toolkit.factors, ShouldBeEmpty)
		})

		Convey("超长时按所需倍率压缩", func() {
			fitted, report, err := fitter.Fit(ctx, 1, Clip{DurationMs: 2500}, 2000)
			So(err, ShouldBeNil)
			So(toolkit.factors, ShouldResemble, []float64{1.25})
			So(fitted.DurationMs, ShouldEqual, 2000)
			So(report.Clamped, ShouldBeFalse)
			So(report.Truncated, ShouldBeFalse)
		})

		Convey("倍率超过上限时限制为上限并截断到时间窗", func() {
			fitted, report, err := fitter.Fit(ctx, 7, Clip{DurationMs: 5000}, 1000)
			So(err, ShouldBeNil)
			So(len(toolkit.factors), ShouldEqual, 1)
			So(toolkit.factors[0], ShouldBeLessThanOrEqualTo, 3.0)
			So(fitted.DurationMs, ShouldEqual, 1000)
			So(report.NaturalMs, ShouldEqual, 5000)
			So(report.Ratio, ShouldEqual, 3.0)
			So(report.Clamped, ShouldBeTrue)
			So(report.Truncated, ShouldBeTrue)
			So(toolkit.truncates, ShouldResemble, []int64{1000})
		})

		Convey("压缩后因取整略超长时截断", func() {
			toolkit.overrunMs = 3
			fitted, report, err := fitter.Fit(ctx, 1, Clip{DurationMs: 1500}, 1000)
			So(err, ShouldBeNil)
			So(fitted.DurationMs, ShouldEqual, 1000)
			So(report.Clamped, ShouldBeFalse)
			So(report.Truncated, ShouldBeTrue)
		})

		Convey("时间窗为 0 时直接截断", func() {
			fitted, report, err := fitter.Fit(ctx, 1, Clip{DurationMs: 300}, 0)
			So(err, ShouldBeNil)
			So(fitted.DurationMs, ShouldEqual, 0)
			So(toolkit.factors, ShouldBeEmpty)
			So(report.Truncated, ShouldBeTrue)
		})

		Convey("变速失败返回 AudioProcessingError", func() {
			toolkit.stretchErr = errors.New("ffmpeg exited 1")
			_, _, err := fitter.Fit(ctx, 4, Clip{DurationMs: 3000}, 1000)
			So(err, ShouldNotBeNil)
			So(KindOf(err), ShouldEqual, ErrorKindAudioProcessing)
			So(FailedOrdinal(err), ShouldEqual, 4)
		})

		Convey("工具未能截断时报错", func() {
			toolkit.skipTruncTo = true
			_, _, err := fitter.Fit(ctx, 2, Clip{DurationMs: 5000}, 1000)
			So(errors.Is(err, errFitOverrun), ShouldBeTrue)
		})
	})

	Convey("压缩上限非法时使用默认值", t, func() {
		So(NewFitter(&fakeToolkit{}, 0).MaxCompression(), ShouldEqual, DefaultMaxCompression)
		So(NewFitter(&fakeToolkit{}, 0.5).MaxCompression(), ShouldEqual, DefaultMaxCompression)
		So(NewFitter(&fakeToolkit{}, 1.5).MaxCompression(), ShouldEqual, 1.5)
	})
}

func TestFitter_Property(t *testing.T) {
	Convey("任意时长组合下结果不超过时间窗，未超长时保持原长", t, func() {
		ctx := context.Background()
		fitter := NewFitter(&fakeToolkit{}, 3.0)
		for natural := int64(0); natural <= 6000; natural += 370 {
			for target := int64(0); target <= 4000; target += 450 {
				fitted, _, err := fitter.Fit(ctx, 1, Clip{DurationMs: natural}, target)
				So(err, ShouldBeNil)
				if natural > target {
					So(fitted.DurationMs, ShouldBeLessThanOrEqualTo, target)
				} else {
					So(fitted.DurationMs, ShouldEqual, natural)
				}
			}
		}
	})
}
