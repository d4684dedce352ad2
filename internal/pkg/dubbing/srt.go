package dubbing

import (
	"bytes"
	"fmt"
	"time"

	"github.com/asticode/go-astisub"
)

// FormatSRT 将 cue 列表重新序列化为 SRT 文本
func FormatSRT(cues []Cue) (string, error) {
	subs := astisub.NewSubtitles()
	for i, cue := range cues {
		subs.Items = append(subs.Items, newSRTItem(i+1, cue.StartMs, cue.EndMs, cue.Text))
	}
	return writeSRT(subs)
}

// FormatPlacementSRT 以 SRT 形式导出每条语音在成品音轨中的实际位置
// 被跳过（静音）的 cue 不输出
func FormatPlacementSRT(placements []Placement) (string, error) {
	subs := astisub.NewSubtitles()
	for _, p := range placements {
		if p.Skipped {
			continue
		}
		text := p.Text
		if p.Truncated {
			text = fmt.Sprintf("%s [truncated %d→%dms]", text, p.NaturalMs, p.FittedMs)
		}
		subs.Items = append(subs.Items, newSRTItem(len(subs.Items)+1, p.StartMs, p.StartMs+p.FittedMs, text))
	}
	return writeSRT(subs)
}

func newSRTItem(index int, startMs, endMs int64, text string) *astisub.Item {
	return &astisub.Item{
		Index:   index,
		StartAt: time.Duration(startMs) * time.Millisecond,
		EndAt:   time.Duration(endMs) * time.Millisecond,
		Lines: []astisub.Line{
			{Items: []astisub.LineItem{{Text: text}}},
		},
	}
}

func writeSRT(subs *astisub.Subtitles) (string, error) {
	if len(subs.Items) == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	if err := subs.WriteToSRT(&buf); err != nil {
		return "", fmt.Errorf("write srt: %w", err)
	}
	return buf.String(), nil
}
