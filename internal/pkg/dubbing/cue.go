package dubbing

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/charmap"
)

// Cue 字幕表中的一条定时记录
// 解析后不可变，按字幕表中的出现顺序排列（不重新排序）
type Cue struct {
	Ordinal int    // 字幕表中的序号
	StartMs int64  // 开始时间（毫秒）
	EndMs   int64  // 结束时间（毫秒），StartMs <= EndMs
	Text    string // 合并为单行并去除首尾空白的文本
}

// DurationMs cue 时间窗长度（毫秒）
func (c Cue) DurationMs() int64 {
	return c.EndMs - c.StartMs
}

// IsSilent 文本为空的 cue 不进行合成
func (c Cue) IsSilent() bool {
	return strings.TrimSpace(c.Text) == ""
}

// reTimestampLine 匹配 "HH:MM:SS,mmm --> HH:MM:SS,mmm"，毫秒分隔符兼容 '.'，结束时间后允许附加设置
var reTimestampLine = regexp.MustCompile(
	`^(\d+):([0-5]\d):([0-5]\d)[,.](\d{3})\s*-->\s*(\d+):([0-5]\d):([0-5]\d)[,.](\d{3})(?:\s.*)?$`)

// DecodeSheet 将上传的字幕表字节转换为文本
// 非法 UTF-8 时按 Windows-1252 解码
func DecodeSheet(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "")
	}
	return string(decoded)
}

// ParseCues 将字幕表文本解析为有序的 cue 列表
//
// 块格式：序号行、时间戳行、零或多行文本，以空行或输入结束为界。
// 形状不符的块被静默跳过；一个 cue 都没有识别出时返回 *ParseError。
func ParseCues(raw string) ([]Cue, error) {
	raw = strings.TrimPrefix(raw, "\ufeff")
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	var cues []Cue
	for _, block := range splitBlocks(strings.Split(raw, "\n")) {
		cue, ok := parseBlock(block)
		if !ok {
			log.Debug().
				Int("lines", len(block)).
				Str("first_line", block[0]).
				Msg("skipping malformed cue block")
			continue
		}
		cues = append(cues, cue)
	}

	if len(cues) == 0 {
		return nil, &ParseError{Err: ErrNoValidCues}
	}
	return cues, nil
}

// splitBlocks 按空行切分；缺少空行时，"序号行+时间戳行" 也视为新块开始
func splitBlocks(lines []string) [][]string {
	var blocks [][]string
	var current []string

	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, current)
			current = nil
		}
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if len(current) >= 2 && i+1 < len(lines) && isIndexLine(line) && isTimestampLine(lines[i+1]) {
			flush()
		}
		current = append(current, line)
	}
	flush()

	return blocks
}

// parseBlock 解析单个块
func parseBlock(block []string) (Cue, bool) {
	if len(block) < 2 {
		return Cue{}, false
	}

	ordinal, err := strconv.Atoi(strings.TrimSpace(block[0]))
	if err != nil {
		return Cue{}, false
	}

	startMs, endMs, ok := parseTimestampLine(block[1])
	if !ok || endMs < startMs {
		return Cue{}, false
	}

	textLines := make([]string, 0, len(block)-2)
	for _, line := range block[2:] {
		textLines = append(textLines, strings.TrimSpace(line))
	}

	return Cue{
		Ordinal: ordinal,
		StartMs: startMs,
		EndMs:   endMs,
		Text:    strings.TrimSpace(strings.Join(textLines, " ")),
	}, true
}

func isIndexLine(line string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(line))
	return err == nil
}

func isTimestampLine(line string) bool {
	return reTimestampLine.MatchString(strings.TrimSpace(line))
}

// parseTimestampLine 解析时间戳行，返回开始和结束毫秒
func parseTimestampLine(line string) (int64, int64, bool) {
	m := reTimestampLine.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return 0, 0, false
	}
	start, ok := timestampToMs(m[1], m[2], m[3], m[4])
	if !ok {
		return 0, 0, false
	}
	end, ok := timestampToMs(m[5], m[6], m[7], m[8])
	if !ok {
		return 0, 0, false
	}
	return start, end, true
}

// maxTimestampHours 时间戳小时数上限，超出的块视为形状不符
const maxTimestampHours = 99999

// timestampToMs ((H*3600+M*60+S)*1000)+mmm
func timestampToMs(h, m, s, ms string) (int64, bool) {
	var parts [4]int64
	for i, v := range []string{h, m, s, ms} {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		parts[i] = n
	}
	if parts[0] > maxTimestampHours {
		return 0, false
	}
	return (parts[0]*3600+parts[1]*60+parts[2])*1000 + parts[3], true
}
