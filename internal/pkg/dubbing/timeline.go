package dubbing

import "fmt"

// SegmentKind 片段类型
type SegmentKind string

const (
	SegmentSilence SegmentKind = "silence"
	SegmentSpeech  SegmentKind = "speech"
)

// Segment 时间线上的一个片段
type Segment struct {
	Kind    SegmentKind
	Ordinal int   // 语音片段对应的 cue 序号，静音为 0
	StartMs int64 // 片段在成品中的绝对开始位置
	Clip    Clip
}

// Timeline 只追加的时间线，CursorMs 为已追加内容的结束位置，只前进不回退
type Timeline struct {
	segments []Segment
	cursorMs int64
}

// NewTimeline 创建空时间线
func NewTimeline() *Timeline {
	return &Timeline{}
}

// CursorMs 当前游标
func (t *Timeline) CursorMs() int64 {
	return t.cursorMs
}

// Segments 已追加的片段（只读视图）
func (t *Timeline) Segments() []Segment {
	return t.segments
}

// Clips 按顺序返回所有片段的音频
func (t *Timeline) Clips() []Clip {
	clips := make([]Clip, len(t.segments))
	for i, seg := range t.segments {
		clips[i] = seg.Clip
	}
	return clips
}

// GapTo 计算游标到 startMs 的间隔，负数表示 cue 与已追加内容重叠
func (t *Timeline) GapTo(startMs int64) int64 {
	return startMs - t.cursorMs
}

// AppendSilence 追加静音，时长必须为正
func (t *Timeline) AppendSilence(clip Clip) error {
	if clip.DurationMs <= 0 {
		return fmt.Errorf("silence duration must be positive, got %dms", clip.DurationMs)
	}
	t.append(SegmentSilence, 0, clip)
	return nil
}

// AppendSpeech 追加一条适配后的语音，游标按实际时长前进
func (t *Timeline) AppendSpeech(ordinal int, clip Clip) {
	t.append(SegmentSpeech, ordinal, clip)
}

func (t *Timeline) append(kind SegmentKind, ordinal int, clip Clip) {
	t.segments = append(t.segments, Segment{
		Kind:    kind,
		Ordinal: ordinal,
		StartMs: t.cursorMs,
		Clip:    clip,
	})
	t.cursorMs += clip.DurationMs
}

// Discard 任务失败时丢弃所有片段，之后不应再使用该时间线
func (t *Timeline) Discard() {
	t.segments = nil
	t.cursorMs = 0
}
