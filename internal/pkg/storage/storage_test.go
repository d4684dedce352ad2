package storage

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestJobKey(t *testing.T) {
	Convey("JobKey 生成任务产物 key", t, func() {
		So(JobKey("u1", "j1", "output.mp3"), ShouldEqual, "dubbing/u1/j1/output.mp3")

		Convey("不允许路径穿越", func() {
			key := JobKey("../etc", "j1", "a/b.mp3")
			So(key, ShouldEqual, "dubbing/__etc/j1/a_b.mp3")
		})

		Convey("空段使用占位符", func() {
			So(JobKey("", "j1", "report.srt"), ShouldEqual, "dubbing/_/j1/report.srt")
		})
	})
}

func TestContentType(t *testing.T) {
	Convey("ContentType 按扩展名映射", t, func() {
		So(ContentType("a/output.mp3"), ShouldEqual, "audio/mpeg")
		So(ContentType("a/output.WAV"), ShouldEqual, "audio/wav")
		So(ContentType("a/report.srt"), ShouldEqual, "application/x-subrip")
		So(ContentType("a/blob"), ShouldEqual, "application/octet-stream")
	})
}
