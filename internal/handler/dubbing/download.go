package dubbing

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httputil "dubber/internal/pkg/http"
	"dubber/internal/service"
)

// Download 下载配音产物
// @Summary      下载配音产物
// @Description  本地存储直接返回文件流，对象存储重定向到预签名URL。file=report 时返回实际落点的 SRT
// @Tags         配音
// @Produce      application/octet-stream
// @Security     BearerAuth
// @Param        job_id  path      string  true   "任务ID"
// @Param        file    query     string  false  "audio（默认）或 report"
// @Success      200     {file}    binary  "文件流"
// @Success      302     {string}  string  "重定向到预签名URL"
// @Failure      401     {object}  ErrorResponse  "未授权"
// @Failure      404     {object}  ErrorResponse  "任务不存在"
// @Failure      409     {object}  ErrorResponse  "任务未完成或已失败"
// @Failure      500     {object}  ErrorResponse  "服务器内部错误"
// @Router       /api/v1/dubbing/jobs/{job_id}/download [get]
func (h *Handler) Download(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var uri JobURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeInvalidRequest, "Invalid job_id", err.Error()))
		return
	}

	result, err := h.dubbingService.GetDownload(c.Request.Context(), &service.GetDownloadRequest{
		UserID:   userID,
		JobID:    uri.JobID,
		Artifact: c.Query("file"),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	if result.Body == nil {
		c.Redirect(http.StatusFound, result.URL)
		return
	}
	defer result.Body.Close()

	c.DataFromReader(http.StatusOK, -1, result.ContentType, result.Body, map[string]string{
		"Content-Disposition": `attachment; filename="` + result.FileName + `"`,
	})
}
