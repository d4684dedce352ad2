package dubbing

import (
	"errors"
	"fmt"
)

// ErrNoValidCues 字幕表中没有识别出任何有效 cue
var ErrNoValidCues = errors.New("no valid cues found")

// ParseError 字幕表无法解析（空内容或没有任何合法块）
// 在任何语音合成开始之前返回
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil && e.Reason != "" {
		return fmt.Sprintf("parse cue sheet: %s: %v", e.Reason, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("parse cue sheet: %v", e.Err)
	}
	return fmt.Sprintf("parse cue sheet: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SynthesisError 外部语音合成服务失败（网络、音色被拒、配额等）
type SynthesisError struct {
	Ordinal int // 失败 cue 的序号（字幕表中的 index）
	Err     error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesize cue %d: %v", e.Ordinal, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// AudioProcessingError 解码 / 变速 / 截断 / 拼接失败
type AudioProcessingError struct {
	Ordinal int    // 相关 cue 序号，拼接阶段为 0
	Op      string // stretch, truncate, silence, concat, export, decode
	Err     error
}

func (e *AudioProcessingError) Error() string {
	if e.Ordinal > 0 {
		return fmt.Sprintf("audio %s for cue %d: %v", e.Op, e.Ordinal, e.Err)
	}
	return fmt.Sprintf("audio %s: %v", e.Op, e.Err)
}

func (e *AudioProcessingError) Unwrap() error { return e.Err }

// ErrorKind 错误类别，用于任务记录和 HTTP 错误码映射
type ErrorKind string

const (
	ErrorKindNone            ErrorKind = ""
	ErrorKindParse           ErrorKind = "parse"
	ErrorKindSynthesis       ErrorKind = "synthesis"
	ErrorKindAudioProcessing ErrorKind = "audio_processing"
	ErrorKindInternal        ErrorKind = "internal"
)

// KindOf 返回错误所属类别
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	var parseErr *ParseError
	var synthErr *SynthesisError
	var audioErr *AudioProcessingError
	switch {
	case errors.As(err, &parseErr):
		return ErrorKindParse
	case errors.As(err, &synthErr):
		return ErrorKindSynthesis
	case errors.As(err, &audioErr):
		return ErrorKindAudioProcessing
	default:
		return ErrorKindInternal
	}
}

// FailedOrdinal 返回导致任务失败的 cue 序号，无法定位时返回 0
func FailedOrdinal(err error) int {
	var synthErr *SynthesisError
	if errors.As(err, &synthErr) {
		return synthErr.Ordinal
	}
	var audioErr *AudioProcessingError
	if errors.As(err, &audioErr) {
		return audioErr.Ordinal
	}
	return 0
}
