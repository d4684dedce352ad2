package dubbing

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	dubbingModel "dubber/internal/model/dubbing"
	"dubber/internal/pkg/ctxutil"
	"dubber/internal/pkg/dubbing"
	httputil "dubber/internal/pkg/http"
	"dubber/internal/service"
)

// ErrorResponse 错误响应类型别名（使用共用的 http.ErrorResponse）
type ErrorResponse = httputil.ErrorResponse

// JobInfo 配音任务 DTO
type JobInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	VoiceID      string `json:"voice_id"`
	Rate         string `json:"rate"`  // 如 +10%
	Pitch        string `json:"pitch"` // 如 +5Hz
	CueCount     int    `json:"cue_count"`
	DurationMs   int64  `json:"duration_ms,omitempty"`
	OutputFormat string `json:"output_format,omitempty"`
	OutputBytes  int64  `json:"output_bytes,omitempty"`
	HasReport    bool   `json:"has_report"`
	Truncated    int    `json:"truncated,omitempty"`
	Clamped      int    `json:"clamped,omitempty"`
	Skipped      int    `json:"skipped,omitempty"`
	Overlapping  int    `json:"overlapping,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	FailedCue    int    `json:"failed_cue,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	StartedAt    string `json:"started_at,omitempty"`
	CompletedAt  string `json:"completed_at,omitempty"`
}

// toJobInfo 将 Job 实体转换为 JobInfo DTO
func toJobInfo(job *dubbingModel.Job) JobInfo {
	settings := dubbing.VoiceSettings{VoiceID: job.VoiceID, RatePercent: job.RatePercent, PitchHz: job.PitchHz}
	info := JobInfo{
		ID:           job.ID,
		Name:         job.Name,
		Status:       string(job.Status),
		VoiceID:      job.VoiceID,
		Rate:         settings.RateString(),
		Pitch:        settings.PitchString(),
		CueCount:     job.CueCount,
		DurationMs:   job.DurationMs,
		OutputFormat: job.OutputFormat,
		OutputBytes:  job.OutputBytes,
		HasReport:    job.ReportKey != "",
		Truncated:    job.Truncated,
		Clamped:      job.Clamped,
		Skipped:      job.Skipped,
		Overlapping:  job.Overlapping,
		ErrorKind:    job.ErrorKind,
		ErrorMessage: job.ErrorMessage,
		FailedCue:    job.FailedCue,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Format(time.RFC3339),
	}
	if job.StartedAt != nil {
		info.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		info.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return info
}

// toJobInfoList 将 Job 实体列表转换为 DTO 列表
func toJobInfoList(jobs []*dubbingModel.Job) []JobInfo {
	list := make([]JobInfo, len(jobs))
	for i, job := range jobs {
		list[i] = toJobInfo(job)
	}
	return list
}

// currentUserID 从认证中间件注入的 context 中获取用户ID
func currentUserID(c *gin.Context) (string, bool) {
	userID, ok := ctxutil.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httputil.NewErrorResponse(httputil.CodeUnauthorized, "未授权"))
	}
	return userID, ok
}

// writeError 根据错误类型设置状态码和错误码
func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, httputil.CodeInternal
	message := "服务器内部错误"
	detail := ""

	switch {
	case dubbing.KindOf(err) == dubbing.ErrorKindParse:
		status, code, message, detail = http.StatusBadRequest, httputil.CodeUnparsableSheet, "字幕表无法解析", err.Error()
	case errors.Is(err, service.ErrUnknownFile):
		status, code, message = http.StatusBadRequest, httputil.CodeUnknownArtifact, err.Error()
	case errors.Is(err, service.ErrJobNotFound):
		status, code, message = http.StatusNotFound, httputil.CodeNotFound, err.Error()
	case errors.Is(err, service.ErrJobNotFinished), errors.Is(err, service.ErrJobBusy):
		status, code, message = http.StatusConflict, httputil.CodeJobNotFinished, err.Error()
	case errors.Is(err, service.ErrJobFailed):
		status, code, message = http.StatusConflict, httputil.CodeJobFailed, err.Error()
	case errors.Is(err, service.ErrShuttingDown):
		status, code, message = http.StatusServiceUnavailable, httputil.CodeShuttingDown, err.Error()
	default:
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("dubbing request failed")
	}

	c.JSON(status, httputil.NewErrorResponse(code, message, detail))
}
