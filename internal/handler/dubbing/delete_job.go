package dubbing

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httputil "dubber/internal/pkg/http"
)

// DeleteJob 删除配音任务
// @Summary      删除配音任务
// @Description  删除已结束的任务及其产物；执行中的任务不能删除
// @Tags         配音
// @Produce      json
// @Security     BearerAuth
// @Param        job_id  path      string  true  "任务ID"
// @Success      200     {object}  map[string]interface{}  "成功响应"
// @Failure      401     {object}  ErrorResponse  "未授权"
// @Failure      404     {object}  ErrorResponse  "任务不存在"
// @Failure      409     {object}  ErrorResponse  "任务正在执行"
// @Failure      500     {object}  ErrorResponse  "服务器内部错误"
// @Router       /api/v1/dubbing/jobs/{job_id} [delete]
func (h *Handler) DeleteJob(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var uri JobURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeInvalidRequest, "Invalid job_id", err.Error()))
		return
	}

	if err := h.dubbingService.DeleteJob(c.Request.Context(), userID, uri.JobID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httputil.NewSuccessResponse("success", gin.H{"job_id": uri.JobID}))
}
