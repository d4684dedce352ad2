package dubbing

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httputil "dubber/internal/pkg/http"
)

// JobURI 任务路径参数
type JobURI struct {
	JobID string `uri:"job_id" binding:"required"` // 任务ID（必填）
}

// GetJobResponseData 获取任务响应数据
type GetJobResponseData struct {
	Job JobInfo `json:"job"`
}

// GetJob 获取配音任务
// @Summary      获取配音任务
// @Description  查询任务状态；失败时包含错误类别和失败的 cue 序号
// @Tags         配音
// @Produce      json
// @Security     BearerAuth
// @Param        job_id  path      string  true  "任务ID"
// @Success      200     {object}  map[string]interface{}  "成功响应"
// @Failure      401     {object}  ErrorResponse  "未授权"
// @Failure      404     {object}  ErrorResponse  "任务不存在"
// @Failure      500     {object}  ErrorResponse  "服务器内部错误"
// @Router       /api/v1/dubbing/jobs/{job_id} [get]
func (h *Handler) GetJob(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var uri JobURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeInvalidRequest, "Invalid job_id", err.Error()))
		return
	}

	job, err := h.dubbingService.GetJob(c.Request.Context(), userID, uri.JobID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httputil.NewSuccessResponse("success", GetJobResponseData{Job: toJobInfo(job)}))
}
