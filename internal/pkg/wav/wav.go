package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// RIFF/WAVE 布局常量
const (
	riffHeaderSize  = 12 // "RIFF" + size + "WAVE"
	chunkHeaderSize = 8  // id + size
	pcmHeaderSize   = 44 // 规范 PCM 头：RIFF + fmt(16) + data 头
	fmtChunkSize    = 16
	formatPCM       = 1
	formatExtended  = 0xFFFE
)

// ErrFormatMismatch 拼接的片段格式不一致
var ErrFormatMismatch = errors.New("wav format mismatch")

// InvalidHeaderError WAV 头无法解析
type InvalidHeaderError struct {
	Details string
}

func (e *InvalidHeaderError) Error() string {
	return fmt.Sprintf("invalid wav header: %s", e.Details)
}

// Format PCM 格式
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Mono16 单声道 16 位 PCM
func Mono16(sampleRate int) Format {
	return Format{SampleRate: sampleRate, Channels: 1, BitsPerSample: 16}
}

// FrameSize 每帧字节数
func (f Format) FrameSize() int {
	return f.Channels * f.BitsPerSample / 8
}

// BytesFor 指定时长对应的 PCM 字节数（按帧对齐，向下取整）
func (f Format) BytesFor(ms int64) int {
	if ms <= 0 {
		return 0
	}
	frames := ms * int64(f.SampleRate) / 1000
	return int(frames) * f.FrameSize()
}

// DurationMs PCM 字节数对应的时长
func (f Format) DurationMs(n int) int64 {
	frameSize := f.FrameSize()
	if frameSize == 0 || f.SampleRate == 0 {
		return 0
	}
	frames := int64(n / frameSize)
	return frames * 1000 / int64(f.SampleRate)
}

func (f Format) validate() error {
	if f.SampleRate <= 0 || f.Channels <= 0 || f.BitsPerSample <= 0 || f.BitsPerSample%8 != 0 {
		return &InvalidHeaderError{Details: fmt.Sprintf("unsupported format %+v", f)}
	}
	return nil
}

// Audio 已解析的 PCM 音频
type Audio struct {
	Format Format
	PCM    []byte
}

// DurationMs 时长
func (a *Audio) DurationMs() int64 {
	return a.Format.DurationMs(len(a.PCM))
}

// Parse 解析 WAV 字节
//
// 跳过 LIST、fact 等元数据块；data 块长度超出文件时（管道输出的 WAV 常见）按实际长度截取。
func Parse(data []byte) (*Audio, error) {
	if len(data) < riffHeaderSize {
		return nil, &InvalidHeaderError{Details: fmt.Sprintf("file too short (%d bytes)", len(data))}
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, &InvalidHeaderError{Details: "missing RIFF/WAVE signature"}
	}

	var (
		format    Format
		fmtFound  bool
		pcm       []byte
		dataFound bool
	)

	offset := riffHeaderSize
	for offset+chunkHeaderSize <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + chunkHeaderSize

		switch chunkID {
		case "fmt ":
			if chunkSize < fmtChunkSize || body+fmtChunkSize > len(data) {
				return nil, &InvalidHeaderError{Details: "fmt chunk too short"}
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			if audioFormat != formatPCM && audioFormat != formatExtended {
				return nil, &InvalidHeaderError{Details: fmt.Sprintf("unsupported audio format %d", audioFormat)}
			}
			format = Format{
				Channels:      int(binary.LittleEndian.Uint16(data[body+2 : body+4])),
				SampleRate:    int(binary.LittleEndian.Uint32(data[body+4 : body+8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(data[body+14 : body+16])),
			}
			fmtFound = true
		case "data":
			end := body + chunkSize
			if chunkSize < 0 || end > len(data) || end < body {
				end = len(data)
			}
			pcm = data[body:end]
			dataFound = true
		}

		if dataFound {
			break
		}
		offset = body + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}

	if !fmtFound {
		return nil, &InvalidHeaderError{Details: "fmt chunk not found"}
	}
	if !dataFound {
		return nil, &InvalidHeaderError{Details: "data chunk not found"}
	}
	if err := format.validate(); err != nil {
		return nil, err
	}

	// 丢弃不完整的尾帧
	pcm = pcm[:len(pcm)-len(pcm)%format.FrameSize()]

	return &Audio{Format: format, PCM: pcm}, nil
}

// Encode 编码为规范的 44 字节头 PCM WAV
func (a *Audio) Encode() []byte {
	f := a.Format
	out := make([]byte, pcmHeaderSize+len(a.PCM))

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(pcmHeaderSize-8+len(a.PCM)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], fmtChunkSize)
	binary.LittleEndian.PutUint16(out[20:22], formatPCM)
	binary.LittleEndian.PutUint16(out[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(f.SampleRate*f.FrameSize()))
	binary.LittleEndian.PutUint16(out[32:34], uint16(f.FrameSize()))
	binary.LittleEndian.PutUint16(out[34:36], uint16(f.BitsPerSample))

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(a.PCM)))
	copy(out[pcmHeaderSize:], a.PCM)

	return out
}

// Truncate 截取前 ms 毫秒，不足时原样返回
func (a *Audio) Truncate(ms int64) *Audio {
	n := a.Format.BytesFor(ms)
	if n >= len(a.PCM) {
		return a
	}
	return &Audio{Format: a.Format, PCM: a.PCM[:n]}
}

// Resize 调整为恰好 BytesFor(ms) 字节：多出的尾帧丢弃，不足时补静音
func (a *Audio) Resize(ms int64) *Audio {
	n := a.Format.BytesFor(ms)
	switch {
	case n == len(a.PCM):
		return a
	case n < len(a.PCM):
		return &Audio{Format: a.Format, PCM: a.PCM[:n]}
	default:
		pcm := make([]byte, n)
		copy(pcm, a.PCM)
		return &Audio{Format: a.Format, PCM: pcm}
	}
}

// Silence 生成指定时长的静音
func Silence(format Format, ms int64) *Audio {
	return &Audio{Format: format, PCM: make([]byte, format.BytesFor(ms))}
}

// Span 时间轴上的一段音频，占据 DurationMs 毫秒
type Span struct {
	Audio      *Audio
	DurationMs int64
}

// Assemble 依次排布片段，所有片段必须与 format 一致
//
// 片段 i 占据 [BytesFor(起点), BytesFor(终点))，起点和终点为累计毫秒数；
// 超出区间的尾帧丢弃，不足的部分为静音。输出长度恰好为 BytesFor(总时长)。
func Assemble(format Format, spans []Span) (*Audio, error) {
	var totalMs int64
	for i, span := range spans {
		if span.Audio.Format != format {
			return nil, fmt.Errorf("%w: part %d is %+v, want %+v", ErrFormatMismatch, i, span.Audio.Format, format)
		}
		if span.DurationMs < 0 {
			return nil, fmt.Errorf("part %d has negative duration %dms", i, span.DurationMs)
		}
		totalMs += span.DurationMs
	}

	pcm := make([]byte, format.BytesFor(totalMs))
	var posMs int64
	for _, span := range spans {
		start := format.BytesFor(posMs)
		posMs += span.DurationMs
		end := format.BytesFor(posMs)
		copy(pcm[start:end], span.Audio.PCM)
	}
	return &Audio{Format: format, PCM: pcm}, nil
}
