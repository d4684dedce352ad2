package dubbing

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dubber/internal/pkg/dubbing"
	httputil "dubber/internal/pkg/http"
	"dubber/internal/service"
)

// CreateJobRequest 创建配音任务请求（JSON 或 multipart 表单）
type CreateJobRequest struct {
	Name        string `json:"name" form:"name"`                 // 任务名称（可选）
	CueSheet    string `json:"cue_sheet" form:"cue_sheet"`       // SRT 字幕表文本（multipart 时也可上传同名文件）
	VoiceID     string `json:"voice_id" form:"voice_id"`         // 音色（可选，默认使用配置）
	RatePercent int    `json:"rate_percent" form:"rate_percent"` // 语速 -100 ~ 100
	PitchHz     int    `json:"pitch_hz" form:"pitch_hz"`         // 音高 -100 ~ 100
	Preset      string `json:"preset" form:"preset"`             // default / crisp，设置后覆盖语速和音高
}

// CreateJob 创建配音任务
// @Summary      创建配音任务
// @Description  上传 SRT 字幕表，按时间轴生成配音音轨。字幕表在请求中同步解析，配音在后台执行
// @Tags         配音
// @Accept       json,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      CreateJobRequest  true  "任务参数"
// @Success      201      {object}  map[string]interface{}  "成功响应"  "{\"code\": 0, \"message\": \"success\", \"data\": {\"job_id\": \"...\", \"status\": \"pending\"}}"
// @Failure      400      {object}  ErrorResponse  "请求参数错误或字幕表无法解析"
// @Failure      401      {object}  ErrorResponse  "未授权"
// @Failure      503      {object}  ErrorResponse  "服务正在关闭"
// @Failure      500      {object}  ErrorResponse  "服务器内部错误"
// @Router       /api/v1/dubbing/jobs [post]
func (h *Handler) CreateJob(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreateJobRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeInvalidRequest, "Invalid request body", err.Error()))
		return
	}

	sheet := []byte(req.CueSheet)
	if file, err := c.FormFile("cue_sheet"); err == nil {
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeInvalidRequest, "Invalid cue_sheet file", err.Error()))
			return
		}
		defer f.Close()

		// 多读 1 字节，超限交给 service 层返回 ParseError
		sheet, err = io.ReadAll(io.LimitReader(f, h.maxSheetBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeInvalidRequest, "Invalid cue_sheet file", err.Error()))
			return
		}
	}
	if len(strings.TrimSpace(string(sheet))) == 0 {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeInvalidRequest, "cue_sheet is required"))
		return
	}

	voice := dubbing.VoiceSettings{VoiceID: req.VoiceID, RatePercent: req.RatePercent, PitchHz: req.PitchHz}
	switch strings.ToLower(req.Preset) {
	case "":
	case "default":
		voice = voice.WithPreset(dubbing.PresetDefault)
	case "crisp":
		voice = voice.WithPreset(dubbing.PresetCrisp)
	default:
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeInvalidRequest, "Unknown preset", req.Preset))
		return
	}

	result, err := h.dubbingService.CreateJob(c.Request.Context(), &service.CreateJobRequest{
		UserID:   userID,
		Name:     strings.TrimSpace(req.Name),
		CueSheet: sheet,
		Voice:    voice,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httputil.NewSuccessResponse("success", result))
}
