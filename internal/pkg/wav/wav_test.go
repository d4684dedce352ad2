package wav

import (
	"encoding/binary"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseEncode(t *testing.T) {
	Convey("WAV 编解码", t, func() {
		format := Mono16(16000)

		Convey("Encode 后 Parse 得到相同的格式和数据", func() {
			src := Silence(format, 250)
			So(len(src.PCM), ShouldEqual, 8000)
			So(src.DurationMs(), ShouldEqual, 250)

			parsed, err := Parse(src.Encode())
			So(err, ShouldBeNil)
			So(parsed.Format, ShouldResemble, format)
			So(len(parsed.PCM), ShouldEqual, 8000)
		})

		Convey("跳过 data 之前的 LIST 块", func() {
			encoded := Silence(format, 10).Encode()
			list := []byte("LIST\x05\x00\x00\x00abcde\x00")
			withList := append([]byte{}, encoded[:36]...)
			withList = append(withList, list...)
			withList = append(withList, encoded[36:]...)

			parsed, err := Parse(withList)
			So(err, ShouldBeNil)
			So(parsed.DurationMs(), ShouldEqual, 10)
		})

		Convey("data 长度超出文件时按实际长度截取", func() {
			encoded := Silence(format, 100).Encode()
			binary.LittleEndian.PutUint32(encoded[40:44], 0xFFFFFFFF)
			parsed, err := Parse(encoded)
			So(err, ShouldBeNil)
			So(parsed.DurationMs(), ShouldEqual, 100)
		})

		Convey("非 WAV 数据返回 InvalidHeaderError", func() {
			_, err := Parse([]byte("ID3\x03\x00 definitely an mp3 frame"))
			var headerErr *InvalidHeaderError
			So(errors.As(err, &headerErr), ShouldBeTrue)
		})

		Convey("缺少 data 块", func() {
			encoded := Silence(format, 10).Encode()[:36]
			_, err := Parse(encoded)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestEditing(t *testing.T) {
	Convey("截断、静音和拼接", t, func() {
		format := Mono16(24000)
		a := Silence(format, 1000)

		Convey("Truncate 截到指定时长", func() {
			So(a.Truncate(400).DurationMs(), ShouldEqual, 400)
			So(a.Truncate(5000), ShouldEqual, a)
			So(a.Truncate(0).DurationMs(), ShouldEqual, 0)
		})

		Convey("Resize 截掉尾帧或补静音", func() {
			odd := &Audio{Format: format, PCM: make([]byte, (24000+23)*2)}
			So(len(odd.Resize(1000).PCM), ShouldEqual, 48000)
			So(len(a.Resize(1500).PCM), ShouldEqual, 72000)
			So(a.Resize(1000), ShouldEqual, a)
		})

		Convey("Assemble 时长相加", func() {
			out, err := Assemble(format, []Span{{a, 1000}, {Silence(format, 500), 500}})
			So(err, ShouldBeNil)
			So(out.DurationMs(), ShouldEqual, 1500)
		})

		Convey("空列表得到空音频", func() {
			out, err := Assemble(format, nil)
			So(err, ShouldBeNil)
			So(out.DurationMs(), ShouldEqual, 0)
			So(len(out.Encode()), ShouldEqual, 44)
		})

		Convey("格式不一致时报错", func() {
			_, err := Assemble(format, []Span{{Silence(Mono16(16000), 10), 10}})
			So(errors.Is(err, ErrFormatMismatch), ShouldBeTrue)
		})
	})
}

func TestAssemble_FrameAlignment(t *testing.T) {
	Convey("44.1kHz 下片段起点由累计毫秒数决定，误差不累积", t, func() {
		format := Mono16(44100)

		// 7ms = 308.7 帧，逐段取整会每段丢 0.7 帧
		var spans []Span
		for i := 0; i < 1000; i++ {
			spans = append(spans, Span{Silence(format, 7), 7})
		}
		out, err := Assemble(format, spans)
		So(err, ShouldBeNil)
		So(len(out.PCM), ShouldEqual, format.BytesFor(7000))
		So(len(out.PCM)/format.FrameSize(), ShouldEqual, 308700)
	})

	Convey("片段内容落在 BytesFor(起点) 处", t, func() {
		format := Mono16(44100)
		marker := &Audio{Format: format, PCM: make([]byte, format.BytesFor(10)+4*format.FrameSize())}
		for i := range marker.PCM {
			marker.PCM[i] = 0x7F
		}

		out, err := Assemble(format, []Span{{Silence(format, 13), 13}, {marker, 10}, {Silence(format, 5), 5}})
		So(err, ShouldBeNil)

		start := format.BytesFor(13)
		end := format.BytesFor(23)
		So(out.PCM[start-1], ShouldEqual, 0)
		So(out.PCM[start], ShouldEqual, 0x7F)
		So(out.PCM[end-1], ShouldEqual, 0x7F)
		So(out.PCM[end], ShouldEqual, 0)
		So(len(out.PCM), ShouldEqual, format.BytesFor(28))
	})
}
