package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os/exec"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	. "github.com/smartystreets/goconvey/convey"

	"dubber/internal/pkg/wav"
)

func TestAtempoChain(t *testing.T) {
	Convey("AtempoChain 拆分倍率", t, func() {
		product := func(chain []float64) float64 {
			p := 1.0
			for _, f := range chain {
				p *= f
			}
			return p
		}

		for _, factor := range []float64{1.0, 1.25, 2.0, 3.0, 4.5, 0.3} {
			chain, err := AtempoChain(factor)
			So(err, ShouldBeNil)
			So(math.Abs(product(chain)-factor), ShouldBeLessThan, 1e-9)
			for _, f := range chain {
				So(f, ShouldBeBetweenOrEqual, minAtempo, maxAtempo)
			}
		}

		Convey("3.0 拆成两级", func() {
			chain, _ := AtempoChain(3.0)
			So(chain, ShouldResemble, []float64{2.0, 1.5})
		})

		Convey("非法倍率报错", func() {
			_, err := AtempoChain(0)
			So(err, ShouldNotBeNil)
			_, err = AtempoChain(math.Inf(1))
			So(err, ShouldNotBeNil)
		})

		Convey("滤镜字符串", func() {
			filter, err := AtempoFilter(3.0)
			So(err, ShouldBeNil)
			So(filter, ShouldEqual, "atempo=2.000000,atempo=1.500000")
		})
	})
}

func TestParseProbe(t *testing.T) {
	Convey("parseProbe 解析 ffprobe JSON", t, func() {
		output := []byte(`{"streams":[{"codec_type":"audio","codec_name":"mp3","sample_rate":"24000","channels":1}],"format":{"duration":"2.512000"}}`)
		info, err := parseProbe(output)
		So(err, ShouldBeNil)
		So(info.SampleRate, ShouldEqual, 24000)
		So(info.Channels, ShouldEqual, 1)
		So(info.CodecName, ShouldEqual, "mp3")
		So(info.DurationMs(), ShouldEqual, 2512)

		Convey("非法 JSON", func() {
			_, err := parseProbe([]byte("not json"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestClient_Logging(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	Convey("变速和编码写出结构化日志", t, func() {
		var buf bytes.Buffer
		saved := log.Logger
		log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
		defer func() { log.Logger = saved }()

		ctx := context.Background()
		client := NewClient(Config{})
		input := wav.Silence(wav.Mono16(16000), 500).Encode()

		_, err := client.Stretch(ctx, input, 2.0)
		So(err, ShouldBeNil)
		_, err = client.Encode(ctx, input, "mp3", "64k")
		So(err, ShouldBeNil)

		var messages []string
		for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
			var entry map[string]any
			So(json.Unmarshal(line, &entry), ShouldBeNil)
			messages = append(messages, entry["message"].(string))
		}
		So(messages, ShouldContain, "audio stretched")
		So(messages, ShouldContain, "audio encoded")
	})
}
