package dubbing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// fakeToolkit 只按时长模拟音频处理，Data 记录片段来源便于断言顺序
type fakeToolkit struct {
	mu        sync.Mutex
	factors   []float64
	truncates []int64
	silences  []int64

	stretchErr  error
	overrunMs   int64 // Stretch 结果额外加长
	skipTruncTo bool  // Truncate 不生效，用于模拟异常工具
}

func (f *fakeToolkit) Stretch(_ context.Context, clip Clip, factor float64) (Clip, error) {
	f.mu.Lock()
	f.factors = append(f.factors, factor)
	f.mu.Unlock()
	if f.stretchErr != nil {
		return Clip{}, f.stretchErr
	}
	return Clip{
		Data:       clip.Data,
		DurationMs: int64(math.Ceil(float64(clip.DurationMs)/factor)) + f.overrunMs,
	}, nil
}

func (f *fakeToolkit) Truncate(_ context.Context, clip Clip, durationMs int64) (Clip, error) {
	f.mu.Lock()
	f.truncates = append(f.truncates, durationMs)
	f.mu.Unlock()
	if f.skipTruncTo {
		return clip, nil
	}
	return Clip{Data: clip.Data, DurationMs: durationMs}, nil
}

func (f *fakeToolkit) Silence(_ context.Context, durationMs int64) (Clip, error) {
	f.mu.Lock()
	f.silences = append(f.silences, durationMs)
	f.mu.Unlock()
	return Clip{Data: []byte(fmt.Sprintf("silence(%d)", durationMs)), DurationMs: durationMs}, nil
}

func (f *fakeToolkit) Concat(_ context.Context, clips []Clip) (Clip, error) {
	parts := make([]string, len(clips))
	var total int64
	for i, c := range clips {
		parts[i] = string(c.Data)
		total += c.DurationMs
	}
	return Clip{Data: []byte(strings.Join(parts, "|")), DurationMs: total}, nil
}

// fakeSynth 按文本返回预设时长
type fakeSynth struct {
	durations map[string]int64
	fail      map[string]error
	delay     map[string]time.Duration
	calls     atomic.Int32

	mu       sync.Mutex
	requests []SynthesisRequest
}

func (s *fakeSynth) Synthesize(ctx context.Context, req SynthesisRequest) (Clip, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if d, ok := s.delay[req.Text]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return Clip{}, ctx.Err()
		}
	}
	if err, ok := s.fail[req.Text]; ok {
		return Clip{}, err
	}
	dur, ok := s.durations[req.Text]
	if !ok {
		dur = 500
	}
	return Clip{Data: []byte(req.Text), DurationMs: dur}, nil
}

var errVoiceRejected = errors.New("voice rejected")

// fakeExporter 记录导出次数
type fakeExporter struct {
	calls int
}

func (e *fakeExporter) Export(_ context.Context, clip Clip) ([]byte, string, error) {
	e.calls++
	return append([]byte("mp3:"), clip.Data...), "mp3", nil
}
